package chain

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"etl-records/internal/record"
)

// requireString returns the trimmed string value of key or a Failure when
// the key is missing, not a string, or blank.
func requireString(rec record.Record, key string) (string, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", Rejectf("missing %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", Rejectf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Rejectf("%s must not be empty", key)
	}
	return s, nil
}

// requireNumber returns the numeric value of key or a Failure.
func requireNumber(rec record.Record, key string) (float64, error) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, Rejectf("missing %s", key)
	}
	n, ok := toFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, Rejectf("%s must be a number", key)
	}
	return n, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// timestampLink normalises an optional "timestamp" field to RFC3339 in UTC.
// Records without a timestamp pass through unchanged.
func timestampLink() Link {
	return NewLink("timestamp", func(rec record.Record) (record.Record, error) {
		v, ok := rec.Get("timestamp")
		if !ok || v == nil {
			return rec, nil
		}
		s, ok := v.(string)
		if !ok {
			return rec, Rejectf("timestamp must be a string")
		}
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return rec, Rejectf("malformed timestamp %q", s)
		}
		return rec.With("timestamp", ts.UTC().Format(time.RFC3339Nano)), nil
	})
}
