package loom

import "context"

// Logger is implemented by the host's logging stack. See adapters/jlog for a
// jettison backed implementation.
type Logger interface {
	// Debug will be used by the engine for debug logs when in debug mode.
	Debug(ctx context.Context, msg string, meta MKV)
	// Error is used when writing errors to the logs.
	Error(ctx context.Context, err error)
}

// MKV is a multiple key value store for the logger to format into its output.
type MKV map[string]string

// logger wraps the configured Logger so that call sites do not need nil
// checks when no logger was provided.
type logger struct {
	inner Logger
	debug bool
}

func (l *logger) Debug(ctx context.Context, msg string, meta MKV) {
	if l.inner == nil || !l.debug {
		return
	}

	l.inner.Debug(ctx, msg, meta)
}

func (l *logger) Error(ctx context.Context, err error) {
	if l.inner == nil {
		return
	}

	l.inner.Error(ctx, err)
}
