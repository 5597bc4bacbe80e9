// Package obslog provides the context-scoped logger handed to node
// implementations: every entry is stamped with the flow, execution, and
// node identifying a single invocation.
package obslog

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ctxKey is an unexported context key type so values set here never collide
// with keys from other packages.
type ctxKey string

const (
	flowIDKey      ctxKey = "flow_id"
	executionIDKey ctxKey = "execution_id"
	nodeIDKey      ctxKey = "node_id"
	nodeTypeKey    ctxKey = "node_type"
)

// Scope identifies a single node invocation within a flow execution.
type Scope struct {
	FlowID      string
	ExecutionID string
	NodeID      string
	NodeType    string
}

// WithScope returns a context carrying s, retrievable by Logger's
// WithContext.
func WithScope(ctx context.Context, s Scope) context.Context {
	ctx = context.WithValue(ctx, flowIDKey, s.FlowID)
	ctx = context.WithValue(ctx, executionIDKey, s.ExecutionID)
	ctx = context.WithValue(ctx, nodeIDKey, s.NodeID)
	ctx = context.WithValue(ctx, nodeTypeKey, s.NodeType)
	return ctx
}

func scopeFromContext(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if v, ok := ctx.Value(flowIDKey).(string); ok && v != "" {
		fields["flow_id"] = v
	}
	if v, ok := ctx.Value(executionIDKey).(string); ok && v != "" {
		fields["execution_id"] = v
	}
	if v, ok := ctx.Value(nodeIDKey).(string); ok && v != "" {
		fields["node_id"] = v
	}
	if v, ok := ctx.Value(nodeTypeKey).(string); ok && v != "" {
		fields["node_type"] = v
	}
	return fields
}

// Logger wraps a *logrus.Logger, producing entries scoped by whatever flow
// execution fields are present on the context.
type Logger struct {
	base *logrus.Logger
}

// New wraps an existing logrus logger (typically the process-wide one from
// pkg/logger) for context-scoped use.
func New(base *logrus.Logger) *Logger {
	return &Logger{base: base}
}

// WithContext returns a logrus entry stamped with the scope fields present
// on ctx, falling back to an unscoped entry when none are set.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	return l.base.WithFields(scopeFromContext(ctx))
}

// Info logs an info-level message scoped to ctx.
func (l *Logger) Info(ctx context.Context, args ...any) { l.WithContext(ctx).Info(args...) }

// Debug logs a debug-level message scoped to ctx.
func (l *Logger) Debug(ctx context.Context, args ...any) { l.WithContext(ctx).Debug(args...) }

// Warn logs a warn-level message scoped to ctx.
func (l *Logger) Warn(ctx context.Context, args ...any) { l.WithContext(ctx).Warn(args...) }

// Error logs an error-level message scoped to ctx, attaching err as a field
// when non-nil.
func (l *Logger) Error(ctx context.Context, err error, args ...any) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(args...)
}
