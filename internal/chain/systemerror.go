package chain

import (
	"strings"

	"etl-records/internal/record"
)

// SystemErrorBuilder returns the builder for system_error records:
// severity -> message -> alert -> timestamp.
func SystemErrorBuilder(rules SystemErrorRules) Builder {
	return func() *Chain {
		return New(record.KindSystemError,
			sysSeverity(rules.Severities),
			sysMessage(),
			sysAlert(),
			timestampLink(),
		)
	}
}

func sysSeverity(allowed []string) Link {
	return NewLink("severity", func(rec record.Record) (record.Record, error) {
		sev, err := requireString(rec, "severity")
		if err != nil {
			return rec, err
		}
		sev = strings.ToLower(sev)
		if !contains(allowed, sev) {
			return rec, Rejectf("unknown severity %q", sev)
		}
		return rec.With("severity", sev), nil
	})
}

func sysMessage() Link {
	return NewLink("message", func(rec record.Record) (record.Record, error) {
		msg, err := requireString(rec, "message")
		if err != nil {
			return rec, err
		}
		return rec.With("message", msg), nil
	})
}

func sysAlert() Link {
	return NewLink("alert", func(rec record.Record) (record.Record, error) {
		sev, _ := rec.Fields["severity"].(string)
		return rec.With("alert", sev == "error" || sev == "critical"), nil
	})
}
