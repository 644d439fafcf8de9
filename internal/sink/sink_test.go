package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()

	s, err := NewCSVSink(filepath.Join(dir, "nested"), "access_log")
	require.NoError(t, err)

	require.NoError(t, s.Write(Event{"url": "/a", "status": 200, "type": "access_log"}))
	require.NoError(t, s.Write(Event{"url": "/b", "type": "access_log"}))
	require.NoError(t, s.Close(context.Background()))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "status,type,url,_extra\n200,access_log,/a,\n,access_log,/b,\n", string(data))
}

func TestCSVSinkKeepsKeysOutsideHeader(t *testing.T) {
	s, err := NewCSVSink(t.TempDir(), "access_log")
	require.NoError(t, err)

	require.NoError(t, s.Write(Event{"type": "access_log", "url": "/a"}))
	require.NoError(t, s.Write(Event{"type": "access_log", "url": "/b", "timestamp": "2024-01-01T00:00:00Z"}))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, [][]string{
		{"type", "url", ExtraColumn},
		{"access_log", "/a", ""},
		{"access_log", "/b", `{"timestamp":"2024-01-01T00:00:00Z"}`},
	}, readCSV(t, s.Path()))
}

func TestCSVSinkEncodesNestedValuesAsJSON(t *testing.T) {
	s, err := NewCSVSink(t.TempDir(), "rejected")
	require.NoError(t, err)

	require.NoError(t, s.Write(Event{
		"reason": "Unknown type",
		"record": map[string]interface{}{"type": "bogus", "tags": []interface{}{"a", 1.5}},
		"index":  3,
	}))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, [][]string{
		{"index", "reason", "record", ExtraColumn},
		{"3", "Unknown type", `{"tags":["a",1.5],"type":"bogus"}`, ""},
	}, readCSV(t, s.Path()))
}

func TestCSVSinkAppendsWithoutSecondHeader(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		s, err := NewCSVSink(dir, "rejected")
		require.NoError(t, err)
		require.NoError(t, s.Write(Event{"reason": "Unknown type"}))
		require.NoError(t, s.Close(context.Background()))
	}

	data, err := os.ReadFile(filepath.Join(dir, "rejected.csv"))
	require.NoError(t, err)
	assert.Equal(t, "reason,_extra\nUnknown type,\nUnknown type,\n", string(data))
}

func TestCSVSinkAppendUsesExistingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access_log.csv")
	require.NoError(t, os.WriteFile(path, []byte("url,type\n/old,access_log\n"), 0o644))

	s, err := NewCSVSink(dir, "access_log")
	require.NoError(t, err)
	require.NoError(t, s.Write(Event{"type": "access_log", "url": "/new"}))
	// no column for status and no extra column to put it in
	assert.Error(t, s.Write(Event{"type": "access_log", "url": "/x", "status": 200}))
	require.NoError(t, s.Close(context.Background()))

	assert.Equal(t, [][]string{
		{"url", "type"},
		{"/old", "access_log"},
		{"/new", "access_log"},
	}, readCSV(t, path))
}

func TestCSVSinkCloseWithoutWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVSink(dir, "empty")
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tx.jsonl")

	s, err := NewJSONLSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(Event{"type": "transaction", "amount": 1.5}))
	require.NoError(t, s.Write(Event{"type": "transaction", "amount": 2.0}))
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	assert.Error(t, s.Write(Event{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var amounts []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var evt map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &evt))
		amounts = append(amounts, evt["amount"].(float64))
	}
	assert.Equal(t, []float64{1.5, 2.0}, amounts)
}

func TestLogSink(t *testing.T) {
	s := NewLogSink("system_error", nil)
	require.NoError(t, s.Write(Event{"message": "m"}))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, s.count)
}

type flakySink struct {
	failures int
	writes   int
	closed   int
}

func (s *flakySink) Write(Event) error {
	s.writes++
	if s.writes <= s.failures {
		return errors.New("transient")
	}
	return nil
}

func (s *flakySink) Close(context.Context) error {
	s.closed++
	return nil
}

func TestRetrySink(t *testing.T) {
	inner := &flakySink{failures: 2}
	r := NewRetrySink(inner, 3, 10).(*RetrySink)

	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, r.Write(Event{}))
	assert.Equal(t, 3, inner.writes)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, slept)

	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, 1, inner.closed)
}

func TestRetrySinkGivesUp(t *testing.T) {
	inner := &flakySink{failures: 10}
	r := NewRetrySink(inner, 2, 1).(*RetrySink)
	r.sleep = func(time.Duration) {}

	assert.Error(t, r.Write(Event{}))
	assert.Equal(t, 2, inner.writes)
}

func TestRetrySinkDefaults(t *testing.T) {
	assert.Nil(t, NewRetrySink(nil, 3, 10))

	r := NewRetrySink(&flakySink{}, 0, 0).(*RetrySink)
	assert.Equal(t, 1, r.attempts)
	assert.Equal(t, time.Second, r.delay)
}
