package engine

import "errors"

var (
	// ErrNotFound reports removal (or status lookup) of an unknown task
	// name. It is a no-op error to the caller, never fatal to the engine.
	ErrNotFound = errors.New("task not found")

	// ErrDisabled is returned by Start when the engine is disabled by config.
	ErrDisabled = errors.New("scheduler engine disabled")
)
