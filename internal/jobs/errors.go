package jobs

import "errors"

var (
	ErrInvalidParams = errors.New("invalid job parameters")
	ErrPrecondition  = errors.New("job precondition not met")
	ErrQueueFull     = errors.New("job queue is full")
	ErrShuttingDown  = errors.New("job pool is shutting down")
)
