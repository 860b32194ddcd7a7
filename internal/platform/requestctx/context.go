package requestctx

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	traceKey
	operatorKey
)

var nop = zap.NewNop()

// Trace carries the Cloud Trace identifiers parsed from the inbound request.
type Trace struct {
	ID        string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Resource returns the fully qualified trace resource name used by Cloud Logging.
func (t Trace) Resource() string {
	if t.ID == "" || t.ProjectID == "" {
		return ""
	}
	return "projects/" + t.ProjectID + "/traces/" + t.ID
}

// WithLogger stores the request scoped logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = nop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the request scoped logger, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nop
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return nop
}

func WithTrace(ctx context.Context, trace Trace) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey, trace)
}

func TraceFrom(ctx context.Context) (Trace, bool) {
	if ctx == nil {
		return Trace{}, false
	}
	trace, ok := ctx.Value(traceKey).(Trace)
	return trace, ok
}

// TraceID returns the trace identifier or an empty string.
func TraceID(ctx context.Context) string {
	trace, _ := TraceFrom(ctx)
	return trace.ID
}

// WithOperator records the authenticated console operator (admin UID or email).
func WithOperator(ctx context.Context, operator string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorKey, strings.TrimSpace(operator))
}

// Operator returns the console operator stored on the context.
func Operator(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	operator, _ := ctx.Value(operatorKey).(string)
	return operator
}

// NoopLogger exposes the shared no-op logger so callers can detect the fallback.
func NoopLogger() *zap.Logger { return nop }
