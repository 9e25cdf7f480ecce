// Package jlog provides a jettison backed loom.Logger.
package jlog

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/luno/jettison/log"

	"github.com/loomworks/loom"
)

// New returns a loom.Logger writing through jettison/log.
func New() Logger {
	return Logger{}
}

type Logger struct{}

func (l Logger) Debug(ctx context.Context, msg string, meta loom.MKV) {
	log.Debug(ctx, msg, j.MKS(meta))
}

func (l Logger) Error(ctx context.Context, err error) {
	log.Error(ctx, errors.Wrap(err, ""))
}

var _ loom.Logger = Logger{}
