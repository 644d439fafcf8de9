package mediator

import (
	"context"
	"errors"
	"fmt"

	"etl-records/internal/metrics"
	"etl-records/internal/record"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyFinalized is returned by Finalize on every call after the first.
var ErrAlreadyFinalized = errors.New("mediator already finalized")

// Mediator decouples what happened to a record from where it is stored.
// The dispatch loop only reports outcomes; the mediator owns every writer.
type Mediator interface {
	// OnSuccess routes a processed record to the writer of its kind.
	OnSuccess(rec record.Record)
	// OnRejected routes a record and its non-empty reason to the rejection writer.
	OnRejected(rec record.Record, reason string)
	// Finalize gives every writer a chance to flush and close. It is called
	// once, after the last outcome has been reported.
	Finalize(ctx context.Context) error
}

// Router is the Mediator backed by one Writer per known kind and a single
// RejectionWriter.
//
// Writer failures never propagate to the caller: an Accept error is logged
// and counted, and Finalize keeps going through the remaining writers before
// returning every failure joined together.
type Router struct {
	writers   map[record.Kind]Writer
	rejected  RejectionWriter
	failures  int
	finalized bool
}

// NewRouter requires a writer for every kind in record.Kinds and a rejection
// writer.
func NewRouter(writers map[record.Kind]Writer, rejected RejectionWriter) (*Router, error) {
	if rejected == nil {
		return nil, fmt.Errorf("rejection writer is required")
	}
	m := make(map[record.Kind]Writer, len(writers))
	for _, k := range record.Kinds {
		w, ok := writers[k]
		if !ok || w == nil {
			return nil, fmt.Errorf("no writer configured for %s", k)
		}
		m[k] = w
	}
	return &Router{writers: m, rejected: rejected}, nil
}

// OnSuccess implements Mediator.
func (r *Router) OnSuccess(rec record.Record) {
	w, ok := r.writers[rec.Kind()]
	if !ok {
		// Only reachable with a registry that knows more kinds than the router.
		r.OnRejected(rec, fmt.Sprintf("no writer for type %q", rec.Type()))
		return
	}
	if err := w.Accept(rec); err != nil {
		r.failures++
		metrics.SinkFailures.WithLabelValues(rec.Kind().String(), "accept").Inc()
		logrus.WithFields(logrus.Fields{
			"sink":  rec.Kind().String(),
			"index": rec.Index,
		}).Errorf("failed to write record: %v", err)
	}
}

// OnRejected implements Mediator.
func (r *Router) OnRejected(rec record.Record, reason string) {
	rej, err := record.NewRejection(rec, reason)
	if err != nil {
		logrus.Warn(err)
		rej, _ = record.NewRejection(rec, "rejected without reason")
	}
	if err := r.rejected.Accept(rej); err != nil {
		r.failures++
		metrics.SinkFailures.WithLabelValues("rejected", "accept").Inc()
		logrus.WithFields(logrus.Fields{
			"sink":   "rejected",
			"index":  rec.Index,
			"reason": rej.Reason(),
		}).Errorf("failed to write rejection: %v", err)
	}
}

// AcceptFailures returns how many Accept calls failed so far.
func (r *Router) AcceptFailures() int { return r.failures }

// Finalize implements Mediator. Writers are finalized one after the other in
// a fixed order (known kinds, then rejections).
func (r *Router) Finalize(ctx context.Context) error {
	if r.finalized {
		return ErrAlreadyFinalized
	}
	r.finalized = true

	var errs []error
	for _, k := range record.Kinds {
		if err := r.writers[k].Finalize(ctx); err != nil {
			errs = append(errs, r.finalizeFailed(k.String(), err))
		}
	}
	if err := r.rejected.Finalize(ctx); err != nil {
		errs = append(errs, r.finalizeFailed("rejected", err))
	}
	return errors.Join(errs...)
}

func (r *Router) finalizeFailed(name string, err error) error {
	metrics.SinkFailures.WithLabelValues(name, "finalize").Inc()
	logrus.WithField("sink", name).Errorf("failed to finalize sink: %v", err)
	return fmt.Errorf("finalize %s: %w", name, err)
}
