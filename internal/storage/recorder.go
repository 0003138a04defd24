package storage

import (
	"context"
	"time"

	"onfly/internal/eventbus"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

const writeTimeout = 2 * time.Second

// Recorder writes job outcome events to a Store.
type Recorder struct {
	store Store
	log   logx.Logger
}

func NewRecorder(store Store, log logx.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Run records events from bus until ctx is done.
func (r *Recorder) Run(ctx context.Context, bus eventbus.Bus) error {
	return eventbus.Consume(ctx, bus, 256, r.Handle, "job.")
}

// Handle records one bus event; non-outcome events are ignored.
func (r *Recorder) Handle(e eventbus.Event) {
	if r == nil || r.store == nil {
		return
	}
	ev, ok := e.Data.(job.Event)
	if !ok {
		return
	}
	switch ev.Kind {
	case job.EventFinished, job.EventFailed, job.EventCancelled:
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := r.store.AppendRun(ctx, RunRecord{
		ID:       ev.ID,
		Job:      ev.Job,
		Kind:     ev.Kind,
		Started:  ev.Started,
		Duration: ev.Duration,
		Error:    ev.Error,
	})
	if err != nil {
		r.log.Warn("history write failed", logx.String("job", ev.Job), logx.Err(err))
	}
}
