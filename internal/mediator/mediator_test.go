package mediator

import (
	"context"
	"errors"
	"testing"

	"etl-records/internal/record"
	"etl-records/internal/sink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSink fails writes and/or close.
type failingSink struct {
	writeErr error
	closeErr error
	closed   int
}

func (s *failingSink) Write(sink.Event) error { return s.writeErr }

func (s *failingSink) Close(context.Context) error {
	s.closed++
	return s.closeErr
}

type fixture struct {
	access, tx, sys, rejected *sink.MemorySink
	router                    *Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		access:   sink.NewMemorySink(),
		tx:       sink.NewMemorySink(),
		sys:      sink.NewMemorySink(),
		rejected: sink.NewMemorySink(),
	}
	r, err := NewRouter(map[record.Kind]Writer{
		record.KindAccessLog:   NewRecordWriter(f.access),
		record.KindTransaction: NewRecordWriter(f.tx),
		record.KindSystemError: NewRecordWriter(f.sys),
	}, NewRejectedWriter(f.rejected))
	require.NoError(t, err)
	f.router = r
	return f
}

func TestNewRouterRequiresEveryWriter(t *testing.T) {
	_, err := NewRouter(map[record.Kind]Writer{
		record.KindAccessLog: NewRecordWriter(sink.NewMemorySink()),
	}, NewRejectedWriter(sink.NewMemorySink()))
	assert.Error(t, err)

	_, err = NewRouter(map[record.Kind]Writer{}, nil)
	assert.Error(t, err)
}

func TestOnSuccessRoutesByKind(t *testing.T) {
	f := newFixture(t)

	f.router.OnSuccess(record.New("access_log", 0, record.Fields{"url": "/x"}))
	f.router.OnSuccess(record.New("transaction", 1, record.Fields{"amount": 1.0}))
	f.router.OnSuccess(record.New("system_error", 2, record.Fields{"message": "m"}))

	require.Len(t, f.access.Events, 1)
	require.Len(t, f.tx.Events, 1)
	require.Len(t, f.sys.Events, 1)
	assert.Empty(t, f.rejected.Events)

	assert.Equal(t, "access_log", f.access.Events[0]["type"])
	assert.Equal(t, "/x", f.access.Events[0]["url"])
}

func TestOnSuccessWithUnroutableKindIsRejected(t *testing.T) {
	f := newFixture(t)

	f.router.OnSuccess(record.New("bogus", 0, nil))

	require.Len(t, f.rejected.Events, 1)
	assert.Equal(t, `no writer for type "bogus"`, f.rejected.Events[0]["reason"])
}

func TestOnRejectedAlwaysUsesRejectionSink(t *testing.T) {
	f := newFixture(t)

	f.router.OnRejected(record.New("transaction", 4, record.Fields{"amount": -5.0}), "amount must be positive, got -5")
	f.router.OnRejected(record.New("bogus", 5, nil), "Unknown type")
	f.router.OnRejected(record.New("access_log", 6, nil), "")

	assert.Empty(t, f.access.Events)
	assert.Empty(t, f.tx.Events)
	require.Len(t, f.rejected.Events, 3)

	first := f.rejected.Events[0]
	assert.Equal(t, "transaction", first["type"])
	assert.Equal(t, 4, first["index"])
	assert.Equal(t, "amount must be positive, got -5", first["reason"])
	assert.Equal(t, -5.0, first["record"].(map[string]interface{})["amount"])

	assert.Equal(t, "Unknown type", f.rejected.Events[1]["reason"])
	assert.Equal(t, "rejected without reason", f.rejected.Events[2]["reason"])
}

func TestAcceptFailuresAreIsolated(t *testing.T) {
	bad := &failingSink{writeErr: errors.New("disk full")}
	good := sink.NewMemorySink()
	rejected := sink.NewMemorySink()

	r, err := NewRouter(map[record.Kind]Writer{
		record.KindAccessLog:   NewRecordWriter(bad),
		record.KindTransaction: NewRecordWriter(good),
		record.KindSystemError: NewRecordWriter(sink.NewMemorySink()),
	}, NewRejectedWriter(rejected))
	require.NoError(t, err)

	r.OnSuccess(record.New("access_log", 0, nil))
	r.OnSuccess(record.New("transaction", 1, nil))

	assert.Equal(t, 1, r.AcceptFailures())
	assert.Len(t, good.Events, 1)
	assert.Empty(t, rejected.Events, "a failed write is not re-routed")
}

func TestFinalizeClosesEverySinkOnce(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.Finalize(context.Background()))
	for _, s := range []*sink.MemorySink{f.access, f.tx, f.sys, f.rejected} {
		assert.Equal(t, 1, s.Closed)
	}

	assert.ErrorIs(t, f.router.Finalize(context.Background()), ErrAlreadyFinalized)
	for _, s := range []*sink.MemorySink{f.access, f.tx, f.sys, f.rejected} {
		assert.Equal(t, 1, s.Closed)
	}
}

func TestFinalizeContinuesAfterFailure(t *testing.T) {
	boom := errors.New("flush failed")
	first := &failingSink{closeErr: boom}
	middle := &failingSink{}
	last := &failingSink{closeErr: errors.New("broker gone")}

	r, err := NewRouter(map[record.Kind]Writer{
		record.KindAccessLog:   NewRecordWriter(first),
		record.KindTransaction: NewRecordWriter(middle),
		record.KindSystemError: NewRecordWriter(&failingSink{}),
	}, NewRejectedWriter(last))
	require.NoError(t, err)

	err = r.Finalize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "finalize access_log")
	assert.Contains(t, err.Error(), "finalize rejected")

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, middle.closed)
	assert.Equal(t, 1, last.closed)
}

func TestWriterFinalizeIsIdempotent(t *testing.T) {
	s := sink.NewMemorySink()
	w := NewRecordWriter(s)
	require.NoError(t, w.Finalize(context.Background()))
	require.NoError(t, w.Finalize(context.Background()))
	assert.Equal(t, 1, s.Closed)

	rs := sink.NewMemorySink()
	rw := NewRejectedWriter(rs)
	require.NoError(t, rw.Finalize(context.Background()))
	require.NoError(t, rw.Finalize(context.Background()))
	assert.Equal(t, 1, rs.Closed)
}
