package job

import (
	"time"

	"onfly/internal/eventbus"
)

// Event types published on the bus.
const (
	EventStarted   = "job.started"
	EventFinished  = "job.finished"
	EventFailed    = "job.failed"
	EventCancelled = "job.cancelled"
	EventSkipped   = "job.skipped"
	EventDisposed  = "job.disposed"
)

// Event is the Data payload of every job.* bus event.
type Event struct {
	ID       string        `json:"id"`
	Job      string        `json:"job"`
	Kind     string        `json:"kind"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func (j *Job) publish(e Event) {
	if j.bus == nil {
		return
	}
	e.Job = j.name
	j.bus.Publish(eventbus.Event{Type: e.Kind, Data: e})
}
