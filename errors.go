package loom

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	ErrInstanceNotFound      = errors.New("workflow instance not found", j.C("ERR_9c1b2a77de41f3c8"))
	ErrWorkflowNotRegistered = errors.New("workflow kind is not registered", j.C("ERR_41f6a0c59b22e817"))
	ErrActivityNotRegistered = errors.New("activity is not registered", j.C("ERR_7d3e91bb04c6fa52"))
	ErrEngineNotRunning      = errors.New("submit failed - engine is not running", j.C("ERR_c50f8714a9d3be26"))
	ErrNonDeterministic      = errors.New("history does not match scheduling decision - workflow must be deterministic", j.C("ERR_2ab64c03e7f198d5"))
	ErrInvalidEvent          = errors.New("invalid history event", j.C("ERR_5f07c2d8a16e94b3"))
	ErrTaskSetFailed         = errors.New("task set contains a permanently failed call", j.C("ERR_b37da9e04c81f562"))
)
