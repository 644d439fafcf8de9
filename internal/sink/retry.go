package sink

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetrySink decorates another Sink adding automatic retry capabilities.
// It attempts to write the event up to the configured number of attempts,
// waiting the specified delay between retries, so transient back-end
// failures do not turn into lost records.
//
// If attempts is < 1, it defaults to 1 (no retries).
// If delayMs is 0, it defaults to 1000ms.
//
// Close is forwarded once without retry; flushing twice could duplicate
// buffered data.
type RetrySink struct {
	inner    Sink
	attempts int
	delay    time.Duration
	sleep    func(time.Duration)
}

// NewRetrySink builds a new Sink with retry behaviour around the provided
// inner sink.
func NewRetrySink(inner Sink, attempts int, delayMs int) Sink {
	if inner == nil {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}
	if delayMs == 0 {
		delayMs = 1000
	}
	return &RetrySink{
		inner:    inner,
		attempts: attempts,
		delay:    time.Duration(delayMs) * time.Millisecond,
		sleep:    time.Sleep,
	}
}

// Write forwards the call to the wrapped sink retrying on failure.
func (r *RetrySink) Write(evt Event) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.inner.Write(evt)
		if err == nil {
			return nil
		}

		logrus.Warnf("sink write failed (attempt %d/%d): %v", attempt, r.attempts, err)

		if attempt < r.attempts {
			r.sleep(r.delay)
		}
	}
	return err
}

// Close forwards to the wrapped sink.
func (r *RetrySink) Close(ctx context.Context) error {
	return r.inner.Close(ctx)
}
