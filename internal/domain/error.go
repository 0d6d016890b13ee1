package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidExecContext   = errors.New("invalid execution context")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrSubscriptionNotFound = errors.New("monitoring subscription not found")
	ErrJobFinished          = errors.New("job already reached a terminal status")
	ErrJobInProgress        = errors.New("a job for this chat is already running")
	ErrInvalidTransition    = errors.New("invalid job status transition")
	ErrInvalidEvent         = errors.New("invalid status event")
	ErrLockNotAcquired      = errors.New("lock not acquired")
	ErrQueueFull            = errors.New("worker queue full")
)

// ExecutionTimeoutError is returned when the export tool outlives its deadline and is killed.
type ExecutionTimeoutError struct {
	Args    []string
	Timeout time.Duration
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("tdl command timed out after %s: %s", e.Timeout, strings.Join(e.Args, " "))
}

// ExecutionFailedError carries the exit code and captured stderr of a failed tool run.
type ExecutionFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("tdl exited with %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

// OutputParseError means the tool exited cleanly but stdout was not JSON.
type OutputParseError struct {
	RawOutput string
	Err       error
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("failed to parse tdl output: %v", e.Err)
}

func (e *OutputParseError) Unwrap() error { return e.Err }

// SummarizationError wraps any failure of the LLM call.
// StatusCode is zero when no HTTP response was received.
type SummarizationError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *SummarizationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s summarization failed (http %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s summarization failed: %v", e.Provider, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
