package mediator

import (
	"context"

	"etl-records/internal/config"
	"etl-records/internal/record"
	"etl-records/internal/sink"

	"github.com/sirupsen/logrus"
)

// FromConfig opens every configured sink and returns a Router over them. If
// one sink cannot be opened, the ones already opened are closed again.
func FromConfig(ctx context.Context, cfg *config.Config) (*Router, error) {
	var opened []sink.Sink
	open := func(name string, sc config.SinkConfig) (sink.Sink, error) {
		s, err := sink.FromConfig(ctx, name, sc, cfg.Retry)
		if err != nil {
			return nil, err
		}
		opened = append(opened, s)
		return s, nil
	}
	cleanup := func() {
		for _, s := range opened {
			if err := s.Close(ctx); err != nil {
				logrus.Warnf("failed to close sink during cleanup: %v", err)
			}
		}
	}

	perKind := map[record.Kind]config.SinkConfig{
		record.KindAccessLog:   cfg.Sinks.AccessLog,
		record.KindTransaction: cfg.Sinks.Transaction,
		record.KindSystemError: cfg.Sinks.SystemError,
	}

	writers := make(map[record.Kind]Writer, len(perKind))
	for _, k := range record.Kinds {
		s, err := open(k.String(), perKind[k])
		if err != nil {
			cleanup()
			return nil, err
		}
		writers[k] = NewRecordWriter(s)
	}

	rs, err := open("rejected", cfg.Sinks.Rejected)
	if err != nil {
		cleanup()
		return nil, err
	}

	return NewRouter(writers, NewRejectedWriter(rs))
}
