package event

import "time"

type EventType string

// Job lifecycle events published by the server and processor.
const (
	EventJobQueued    EventType = "job.queued"
	EventJobStarted   EventType = "job.started"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobDeleted   EventType = "job.deleted"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// JobEvent is the payload for job lifecycle events.
type JobEvent struct {
	JobID    string
	Status   string
	Error    string
	Duration time.Duration
}
