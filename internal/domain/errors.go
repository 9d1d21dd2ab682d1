package domain

import "errors"

// Workflow-integrity errors. State machine and approval engine failures are
// raised synchronously to the caller and never swallowed; the automation
// engine records them per action instead.
var (
	// ErrInvalidTransition means an illegal state edge was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed means the edge is legal but a data-dependent guard
	// is unmet, e.g. approving without required documents.
	ErrGuardFailed = errors.New("transition guard failed")

	// ErrNotFound means an unknown claim, approval request, or approver.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyResolved means an approver responded twice.
	ErrAlreadyResolved = errors.New("already resolved")

	// ErrExpired means the approval request is past its deadline.
	ErrExpired = errors.New("request expired")
)
