package sink

import (
	"context"
	"fmt"

	"etl-records/internal/config"

	"github.com/sirupsen/logrus"
)

// FromConfig builds the back-end described by sc and wraps it with the
// retry decorator. name identifies the sink in file names and logs.
func FromConfig(ctx context.Context, name string, sc config.SinkConfig, retry config.RetryConfig) (Sink, error) {
	var (
		s   Sink
		err error
	)

	switch sc.Type {
	case config.SinkLog, "":
		s = NewLogSink(name, nil)
	case config.SinkCSV:
		s, err = NewCSVSink(sc.CSV.OutputDir, name)
	case config.SinkJSONL:
		s, err = NewJSONLSink(sc.JSONL.Path)
	case config.SinkMongo:
		s, err = NewMongoSink(ctx, sc.Mongo.URI, sc.Mongo.Database, sc.Mongo.Collection, sc.Mongo.BatchSize)
	case config.SinkKafka:
		s, err = NewKafkaSink(sc.Kafka.BootstrapServers, sc.Kafka.Topic)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sc.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialise %s sink %s: %w", sc.Type, name, err)
	}

	logrus.Debugf("sink %s ready | type=%s", name, sc.Type)
	return NewRetrySink(s, retry.Attempts, retry.DelayMS), nil
}
