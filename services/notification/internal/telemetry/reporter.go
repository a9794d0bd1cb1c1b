package telemetry

import (
	"context"
	"fmt"
	"time"

	"herald/pkg/config"
	"herald/pkg/logger"

	"github.com/getsentry/sentry-go"
)

// Reporter receives errors that do not fail a job but must not go unnoticed.
// Report never blocks on delivery and never panics.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// NewReporter returns a Sentry-backed reporter when a DSN is configured and a
// log-only reporter otherwise.
func NewReporter(cfg *config.Config, log *logger.Logger) (Reporter, error) {
	if cfg.SentryDSN == "" {
		log.Warn("SENTRY_DSN not set, errors are reported to the log only")
		return NewLogReporter(log), nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}
	return NewSentryReporter(sentry.NewHub(client, sentry.NewScope()), log), nil
}

type LogReporter struct {
	logger *logger.Logger
}

func NewLogReporter(log *logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

func (r *LogReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	fields := make([]interface{}, 0, len(tags)*2)
	for k, v := range tags {
		fields = append(fields, k, v)
	}
	r.logger.With(fields...).Error("[TELEMETRY] %v", err)
}

type SentryReporter struct {
	hub    *sentry.Hub
	logger *logger.Logger
}

func NewSentryReporter(hub *sentry.Hub, log *logger.Logger) *SentryReporter {
	return &SentryReporter{hub: hub, logger: log}
}

func (r *SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("[TELEMETRY] sentry capture panicked: %v", p)
		}
	}()

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
	r.logger.Error("[TELEMETRY] reported: %v", err)
}

// Flush waits up to timeout for buffered events to be sent.
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
