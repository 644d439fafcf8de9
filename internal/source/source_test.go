package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"etl-records/internal/config"
	"etl-records/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const batch = `[{"type":"access_log","url":"/x","status":200},{"type":"bogus"}]`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(batch), 0o644))

	records, err := NewLoader(config.RetryConfig{}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, record.KindAccessLog, records[0].Kind())
	assert.Equal(t, "bogus", records[1].Type())
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(config.RetryConfig{})

	_, err := l.Load(context.Background(), "")
	assert.Error(t, err)

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"access_log"}`), 0o644))
	_, err = l.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadURLRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(batch))
	}))
	defer srv.Close()

	l := NewLoader(config.RetryConfig{Attempts: 3, DelayMS: 1})
	records, err := l.Load(context.Background(), srv.URL+"/batch.json")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLoadURLGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLoader(config.RetryConfig{Attempts: 2, DelayMS: 1})
	_, err := l.Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
