package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotOwner            = errors.New("job belongs to another owner")
	ErrInvalidTransition   = errors.New("invalid job status transition")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidExecContext  = errors.New("invalid executor context")
	ErrLockBusy            = errors.New("owner is locked by another operation")
	ErrQueueFull           = errors.New("worker queue is full")

	// Pipeline stage errors. The processor wraps stage failures with one of
	// these so the recorded failure reason names the stage that broke.
	ErrPlan      = errors.New("segment planning failed")
	ErrFetch     = errors.New("source fetch failed")
	ErrTranscode = errors.New("transcode failed")
	ErrStorage   = errors.New("artifact storage failed")
)
