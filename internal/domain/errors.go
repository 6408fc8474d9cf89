package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEngineOffline     = errors.New("engine offline")
	ErrInvalidProcess    = errors.New("invalid process type")
	ErrMissingParams     = errors.New("missing required parameters")
	ErrAlreadyProcessing = errors.New("job already processing")
	// ErrInvalidTransition signals a programming error: a terminal-state write
	// against a record that is not pending/processing.
	ErrInvalidTransition = errors.New("invalid status transition")
)
