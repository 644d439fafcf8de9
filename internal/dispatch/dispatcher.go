package dispatch

import (
	"context"
	"errors"
	"time"

	"etl-records/internal/chain"
	"etl-records/internal/mediator"
	"etl-records/internal/metrics"
	"etl-records/internal/record"

	"github.com/sirupsen/logrus"
)

// UnknownTypeReason is the rejection reason for records whose type has no
// registered chain.
const UnknownTypeReason = "Unknown type"

// Registry resolves the chain builder of a record kind.
type Registry interface {
	Lookup(kind record.Kind) (chain.Builder, bool)
}

// Summary counts the outcomes of one run.
type Summary struct {
	Loaded    int `json:"loaded"`
	Succeeded int `json:"succeeded"`
	Rejected  int `json:"rejected"`
	// Errors is the subset of Rejected caused by unexpected chain errors
	// rather than validation failures.
	Errors int `json:"errors"`
}

// Dispatcher runs a batch through the per-kind chains and reports every
// outcome to the mediator. It holds no reference to any writer.
//
// Records are processed one at a time in input order, so outcomes reach the
// mediator in that same order.
type Dispatcher struct {
	registry Registry
	mediator mediator.Mediator
}

// New builds a Dispatcher. Both collaborators are injected so tests can use
// fakes.
func New(registry Registry, med mediator.Mediator) *Dispatcher {
	return &Dispatcher{registry: registry, mediator: med}
}

// Run processes every record and then finalizes the mediator exactly once.
// Per-record failures never stop the batch; the only error returned is the
// aggregate finalize error.
func (d *Dispatcher) Run(ctx context.Context, records []record.Record) (Summary, error) {
	sum := Summary{Loaded: len(records)}
	metrics.RecordsLoaded.Add(float64(len(records)))

	startTs := time.Now()
	for _, rec := range records {
		switch d.process(rec) {
		case metrics.OutcomeSuccess:
			sum.Succeeded++
		case metrics.OutcomeError:
			sum.Rejected++
			sum.Errors++
		default:
			sum.Rejected++
		}
	}

	err := d.mediator.Finalize(ctx)

	logrus.Infof("[OK] Dispatch finished | Records: %d | Succeeded: %d | Rejected: %d | Time: %.2fs",
		sum.Loaded, sum.Succeeded, sum.Rejected, time.Since(startTs).Seconds())
	return sum, err
}

// process handles one record and returns its outcome label.
func (d *Dispatcher) process(rec record.Record) string {
	kind := rec.Kind().String()
	log := logrus.WithFields(logrus.Fields{"index": rec.Index, "type": rec.Type()})

	builder, ok := d.registry.Lookup(rec.Kind())
	if !ok {
		log.Info("record rejected: unknown type")
		d.mediator.OnRejected(rec, UnknownTypeReason)
		metrics.RecordsProcessed.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return metrics.OutcomeRejected
	}

	ch := builder()
	startTs := time.Now()
	out, err := ch.Handle(rec)
	metrics.ChainLatency.WithLabelValues(kind).Observe(time.Since(startTs).Seconds())

	if err == nil {
		log.WithField("links", ch.Trace()).Debug("record processed")
		d.mediator.OnSuccess(out)
		metrics.RecordsProcessed.WithLabelValues(kind, metrics.OutcomeSuccess).Inc()
		return metrics.OutcomeSuccess
	}

	outcome := metrics.OutcomeRejected
	reason := err.Error()

	var f *chain.Failure
	if errors.As(err, &f) {
		reason = f.Reason
		log.WithFields(logrus.Fields{"link": f.Link, "reason": reason}).Info("record rejected")
	} else {
		// Unexpected errors (including recovered panics) are still turned into
		// rejections so the batch keeps going.
		outcome = metrics.OutcomeError
		log.Errorf("chain error: %v", err)
	}

	d.mediator.OnRejected(rec, reason)
	metrics.RecordsProcessed.WithLabelValues(kind, outcome).Inc()
	return outcome
}
