package chain

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"etl-records/internal/record"
)

// AccessLogBuilder returns the builder for access_log records:
// url -> status -> method -> status_class -> timestamp.
func AccessLogBuilder(rules AccessLogRules) Builder {
	return func() *Chain {
		return New(record.KindAccessLog,
			accessURL(),
			accessStatus(rules.MinStatus, rules.MaxStatus),
			accessMethod(),
			accessStatusClass(),
			timestampLink(),
		)
	}
}

// accessURL accepts an absolute path or an absolute http(s) URL and derives
// the "path" field.
func accessURL() Link {
	return NewLink("url", func(rec record.Record) (record.Record, error) {
		raw, err := requireString(rec, "url")
		if err != nil {
			return rec, err
		}

		u, err := url.Parse(raw)
		if err != nil {
			return rec, Rejectf("malformed url %q", raw)
		}
		if !strings.HasPrefix(raw, "/") {
			if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return rec, Rejectf("malformed url %q", raw)
			}
		}

		path := u.Path
		if path == "" {
			path = "/"
		}
		return rec.With("url", raw).With("path", path), nil
	})
}

// accessStatus requires an integral status code inside [min, max] and stores
// it as an int.
func accessStatus(min, max int) Link {
	return NewLink("status", func(rec record.Record) (record.Record, error) {
		n, err := requireNumber(rec, "status")
		if err != nil {
			return rec, err
		}
		if n != math.Trunc(n) {
			return rec, Rejectf("status must be an integer")
		}
		status := int(n)
		if status < min || status > max {
			return rec, Rejectf("status %d out of range [%d, %d]", status, min, max)
		}
		return rec.With("status", status), nil
	})
}

func accessMethod() Link {
	return NewLink("method", func(rec record.Record) (record.Record, error) {
		v, ok := rec.Get("method")
		if !ok || v == nil {
			return rec.With("method", "GET"), nil
		}
		s, ok := v.(string)
		if !ok {
			return rec, Rejectf("method must be a string")
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			s = "GET"
		}
		return rec.With("method", s), nil
	})
}

// accessStatusClass relies on the status link having stored an int.
func accessStatusClass() Link {
	return NewLink("status_class", func(rec record.Record) (record.Record, error) {
		status, ok := rec.Fields["status"].(int)
		if !ok {
			return rec, fmt.Errorf("status not normalised before status_class")
		}
		return rec.With("status_class", fmt.Sprintf("%dxx", status/100)), nil
	})
}
