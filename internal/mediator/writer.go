package mediator

import (
	"context"

	"etl-records/internal/record"
	"etl-records/internal/sink"
)

// Writer accepts successfully processed records of one kind.
type Writer interface {
	Accept(rec record.Record) error
	Finalize(ctx context.Context) error
}

// RejectionWriter accepts rejected records together with their reason.
type RejectionWriter interface {
	Accept(rej record.Rejection) error
	Finalize(ctx context.Context) error
}

// RecordWriter stores records as flat documents in a sink.
type RecordWriter struct {
	sink      sink.Sink
	finalized bool
}

// NewRecordWriter writes records to s.
func NewRecordWriter(s sink.Sink) *RecordWriter {
	return &RecordWriter{sink: s}
}

// Accept implements Writer.
func (w *RecordWriter) Accept(rec record.Record) error {
	return w.sink.Write(sink.Event(rec.Map()))
}

// Finalize closes the sink. Subsequent calls are no-ops.
func (w *RecordWriter) Finalize(ctx context.Context) error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.sink.Close(ctx)
}

// RejectedWriter stores rejection notices in a sink. Each document carries
// the declared type, the batch index, the reason and the original record.
type RejectedWriter struct {
	sink      sink.Sink
	finalized bool
}

// NewRejectedWriter writes rejections to s.
func NewRejectedWriter(s sink.Sink) *RejectedWriter {
	return &RejectedWriter{sink: s}
}

// Accept implements RejectionWriter.
func (w *RejectedWriter) Accept(rej record.Rejection) error {
	rec := rej.Record()
	return w.sink.Write(sink.Event{
		"type":   rec.Type(),
		"index":  rec.Index,
		"reason": rej.Reason(),
		"record": rec.Map(),
	})
}

// Finalize closes the sink. Subsequent calls are no-ops.
func (w *RejectedWriter) Finalize(ctx context.Context) error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.sink.Close(ctx)
}
