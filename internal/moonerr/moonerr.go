// Package moonerr classifies streaming-session errors by severity and
// forwards the pipeline-failure class to Sentry. Transient and protocol
// errors are log-and-continue; they never need to tear a session down.
package moonerr

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// Kind classifies an error by how a session should react to it.
type Kind int

const (
	KindTransientIO Kind = iota
	KindProtocolViolation
	KindPipelineFailure
	KindClientTermination
	KindHostTermination
)

func (k Kind) String() string {
	switch k {
	case KindTransientIO:
		return "transient_io"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindPipelineFailure:
		return "pipeline_failure"
	case KindClientTermination:
		return "client_termination"
	case KindHostTermination:
		return "host_termination"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its taxonomy classification and the
// component that raised it.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify wraps err with a taxonomy kind and component name.
func Classify(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// Reporter forwards pipeline failures to Sentry. It is safe to use with a
// zero-value DSN: Init becomes a no-op and Report only logs.
type Reporter struct {
	log     *zap.Logger
	enabled bool
}

// NewReporter initializes Sentry if dsn is non-empty; otherwise it returns a
// Reporter that only logs, which keeps the core free of any hard dependency
// on an outer program having configured a DSN.
func NewReporter(log *zap.Logger, dsn, environment string) (*Reporter, error) {
	r := &Reporter{log: log.Named("moonerr")}
	if dsn == "" {
		return r, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	r.enabled = true
	return r, nil
}

// Report escalates a pipeline failure. Only KindPipelineFailure is sent to
// Sentry; other kinds are logged locally, since only pipeline failures
// cause full session teardown.
func (r *Reporter) Report(e *Error) {
	fields := []zap.Field{
		zap.String("component", e.Component),
		zap.String("kind", e.Kind.String()),
		zap.Error(e.Err),
	}
	switch e.Kind {
	case KindPipelineFailure:
		r.log.Error("pipeline failure", fields...)
		if r.enabled {
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("component", e.Component)
				sentry.CaptureException(e)
			})
		}
	case KindProtocolViolation:
		r.log.Warn("protocol violation", fields...)
	case KindTransientIO:
		r.log.Debug("transient io error", fields...)
	default:
		r.log.Info("session ended", fields...)
	}
}

// Flush blocks briefly to let Sentry drain its queue before process exit.
func (r *Reporter) Flush() {
	if r.enabled {
		sentry.Flush(2e9)
	}
}
