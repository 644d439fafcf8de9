package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"etl-records/internal/config"
	"etl-records/internal/parser"
	"etl-records/internal/record"

	"github.com/sirupsen/logrus"
)

// Loader reads a whole batch before processing starts. Locations are either
// a local file path or an http(s) URL; remote fetches are retried with the
// configured attempts and delay.
type Loader struct {
	client   *http.Client
	parser   *parser.Parser
	retryCfg config.RetryConfig
}

// NewLoader builds a Loader. Zero retry values fall back to 3 attempts and
// 1500ms between them.
func NewLoader(retryCfg config.RetryConfig) *Loader {
	if retryCfg.Attempts == 0 {
		retryCfg.Attempts = 3
	}
	if retryCfg.DelayMS == 0 {
		retryCfg.DelayMS = 1500
	}
	return &Loader{
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   parser.New(),
		retryCfg: retryCfg,
	}
}

// Load reads and decodes the batch found at location.
func (l *Loader) Load(ctx context.Context, location string) ([]record.Record, error) {
	if location == "" {
		return nil, fmt.Errorf("input location is required")
	}

	raw, err := l.read(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch %s: %w", location, err)
	}

	records, err := l.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", location, err)
	}
	return records, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return l.fetch(ctx, location)
	}
	return os.ReadFile(location)
}

// fetch downloads url with retry logic.
func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		body []byte
		err  error
	)

	for attempt := 1; attempt <= l.retryCfg.Attempts; attempt++ {
		body, err = l.get(ctx, url)
		if err == nil {
			return body, nil
		}

		logrus.Warnf("batch fetch failed (attempt %d/%d): %v", attempt, l.retryCfg.Attempts, err)

		// Don't wait after the final attempt
		if attempt < l.retryCfg.Attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(l.retryCfg.DelayMS) * time.Millisecond):
			}
		}
	}

	return nil, err
}

func (l *Loader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
