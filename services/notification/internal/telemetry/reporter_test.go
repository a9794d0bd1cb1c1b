package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"herald/pkg/config"
	"herald/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *capturingTransport) Configure(options sentry.ClientOptions) {}

func (t *capturingTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *capturingTransport) Flush(timeout time.Duration) bool { return true }

func (t *capturingTransport) FlushWithContext(ctx context.Context) bool { return true }

func (t *capturingTransport) Close() {}

func (t *capturingTransport) captured() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewLogReporter(logger.NewWithWriters(&buf, &buf))

	reporter.Report(context.Background(), errors.New("link failed"), map[string]string{"user_id": "u-1"})
	reporter.Report(context.Background(), nil, nil)

	assert.Contains(t, buf.String(), `msg="[TELEMETRY] link failed"`)
	assert.Contains(t, buf.String(), "user_id=u-1")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("[TELEMETRY]")))
}

func TestSentryReporter(t *testing.T) {
	transport := &capturingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "", Transport: transport})
	require.NoError(t, err)

	reporter := NewSentryReporter(sentry.NewHub(client, sentry.NewScope()), logger.NewWithWriters(io.Discard, io.Discard))
	reporter.Report(context.Background(), errors.New("link failed"), map[string]string{"event": "ADDED_MODERATOR"})
	reporter.Report(context.Background(), nil, nil)

	events := transport.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "ADDED_MODERATOR", events[0].Tags["event"])
	require.NotEmpty(t, events[0].Exception)
	assert.Equal(t, "link failed", events[0].Exception[0].Value)
}

func TestNewReporter_FallsBackToLog(t *testing.T) {
	reporter, err := NewReporter(&config.Config{}, logger.NewWithWriters(io.Discard, io.Discard))
	require.NoError(t, err)
	assert.IsType(t, &LogReporter{}, reporter)
}

func TestNewReporter_InvalidDSN(t *testing.T) {
	_, err := NewReporter(&config.Config{SentryDSN: "not a dsn"}, logger.NewWithWriters(io.Discard, io.Discard))
	assert.Error(t, err)
}
