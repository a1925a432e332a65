// Package job owns the analysis job lifecycle: the in-memory record store
// and the background processor pool that runs the pipeline per job.
package job

import (
	"errors"
	"time"
)

// Status is a job's lifecycle state. Transitions run strictly forward:
// queued -> processing -> complete | error. Both complete and error are
// terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// rank orders statuses for the forward-only transition check.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusComplete, StatusError:
		return 2
	}
	return -1
}

func (s Status) terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Record is one tracked job. The store owns all records; callers only ever
// see copies.
type Record struct {
	ID          string
	Status      Status
	Dir         string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ResultPath  string
	Error       string
	ErrorDetail string
}

// Fields carries the optional updates applied alongside a status
// transition.
type Fields struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	ResultPath  string
	Error       string
	ErrorDetail string
}

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrBadTransition is returned when a transition would move a job
	// backward or out of a terminal state.
	ErrBadTransition = errors.New("invalid status transition")
	// ErrQueueFull is returned when the processor's queue cannot accept
	// another job.
	ErrQueueFull = errors.New("job queue full")
)

// Counts summarizes the store for the health endpoint.
type Counts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Complete   int `json:"complete"`
	Error      int `json:"error"`
}
