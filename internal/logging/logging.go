// Package logging provides structured logging with request-scoped context
// fields (trace id, tenant id, vendor, consent id), grounded on the
// teacher's infrastructure/logging package.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	tenantIDKey  ctxKey = "tenant_id"
	vendorKey    ctxKey = "vendor"
	consentIDKey ctxKey = "consent_id"
)

// Logger wraps logrus.Logger with the gateway's structured-field helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New builds a Logger at the given level ("debug"|"info"|"warn"|"error") and
// format ("json"|"text").
func New(service, level, format string) *Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if format == "text" {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
	l.SetOutput(os.Stdout)
	return &Logger{Logger: l, service: service}
}

// NewFromEnv builds a logger from LOG_LEVEL / LOG_FORMAT, defaulting to
// info/json.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext builds a logrus.Entry carrying every request-scoped field
// present on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if v := TraceIDFrom(ctx); v != "" {
		entry = entry.WithField("trace_id", v)
	}
	if v := TenantIDFrom(ctx); v != "" {
		entry = entry.WithField("tenant_id", v)
	}
	if v := VendorFrom(ctx); v != "" {
		entry = entry.WithField("vendor", v)
	}
	if v := ConsentIDFrom(ctx); v != "" {
		entry = entry.WithField("consent_id", v)
	}
	return entry
}

// LogRequest logs one completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, dur time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": status,
		"duration_ms": dur.Milliseconds(),
	}).Info("http request")
}

// LogVendorCall logs one outbound vendor HTTP call.
func (l *Logger) LogVendorCall(ctx context.Context, vendor, method, path string, status int, dur time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"vendor":      vendor,
		"method":      method,
		"path":        path,
		"status_code": status,
		"duration_ms": dur.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("vendor call failed")
		return
	}
	entry.Debug("vendor call")
}

// LogSyncResult logs the outcome of one sync job.
func (l *Logger) LogSyncResult(ctx context.Context, jobID string, status string, dur time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"job_id":      jobID,
		"status":      status,
		"duration_ms": dur.Milliseconds(),
	}).Info("sync job finished")
}

// NewTraceID returns a fresh trace id.
func NewTraceID() string { return uuid.NewString() }

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func fromValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func WithTraceID(ctx context.Context, v string) context.Context   { return withValue(ctx, traceIDKey, v) }
func TraceIDFrom(ctx context.Context) string                      { return fromValue(ctx, traceIDKey) }
func WithTenantID(ctx context.Context, v string) context.Context  { return withValue(ctx, tenantIDKey, v) }
func TenantIDFrom(ctx context.Context) string                     { return fromValue(ctx, tenantIDKey) }
func WithVendor(ctx context.Context, v string) context.Context    { return withValue(ctx, vendorKey, v) }
func VendorFrom(ctx context.Context) string                       { return fromValue(ctx, vendorKey) }
func WithConsentID(ctx context.Context, v string) context.Context { return withValue(ctx, consentIDKey, v) }
func ConsentIDFrom(ctx context.Context) string                    { return fromValue(ctx, consentIDKey) }
