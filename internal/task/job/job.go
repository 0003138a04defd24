package job

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"onfly/internal/eventbus"
	"onfly/internal/task/registry"
	logx "onfly/pkg/logx"
)

const (
	// DefaultTimeout bounds a firing when WithTimeout is not called.
	DefaultTimeout = time.Hour
	// DefaultRealignMargin is added to every drift-corrected delay so the
	// timer never fires just before the intended instant.
	DefaultRealignMargin = 100 * time.Millisecond

	skipLogEvery = 5 * time.Second
)

// Callback is the unit of work. ctx is cancelled when the firing times out;
// timeout is passed so the work can self-limit.
type Callback func(ctx context.Context, timeout time.Duration) error

// Registry is the registry type jobs register themselves in.
type Registry = registry.Registry[*Job]

// NewRegistry returns an empty job registry.
func NewRegistry() *Registry { return registry.New[*Job]() }

// Job is one recurring (or single-shot) unit of work with its own timer.
//
// Configure with the With* builder methods, then Schedule. Builder calls made
// after scheduling take effect from the next firing.
type Job struct {
	name string
	cb   Callback

	baseLog logx.Logger
	log     logx.Logger
	reg     *Registry
	bus     eventbus.Bus
	ctx     context.Context
	margin  time.Duration

	token   runToken
	skipLog *rate.Limiter

	mu             sync.Mutex
	timeout        time.Duration
	onStart        func(*Job)
	onEnd          func(*Job)
	onException    func(error)
	state          State
	timer          *periodicTimer
	period         time.Duration
	dueTime        time.Duration
	firstExecution time.Time
	lastScheduled  time.Time
	single         bool
	scheduled      bool
	disposed       bool
}

type Option func(*Job)

// WithLogger attaches a logger. Without one the job logs nothing.
func WithLogger(l logx.Logger) Option { return func(j *Job) { j.baseLog = l } }

// WithRegistry makes the job add itself on Schedule and remove itself on Dispose.
func WithRegistry(r *Registry) Option { return func(j *Job) { j.reg = r } }

// WithBus publishes lifecycle events for every firing.
func WithBus(b eventbus.Bus) Option { return func(j *Job) { j.bus = b } }

// WithContext sets the parent of every callback context. Cancelling it aborts
// in-flight firings.
func WithContext(ctx context.Context) Option { return func(j *Job) { j.ctx = ctx } }

// WithRealignMargin sets the slack added to each drift-corrected re-arm.
func WithRealignMargin(d time.Duration) Option {
	return func(j *Job) {
		if d >= 0 {
			j.margin = d
		}
	}
}

// New returns an unscheduled job; configure it, then call Schedule.
func New(name string, cb Callback, opts ...Option) *Job {
	j := &Job{
		name:    name,
		cb:      cb,
		ctx:     context.Background(),
		margin:  DefaultRealignMargin,
		timeout: DefaultTimeout,
		skipLog: rate.NewLimiter(rate.Every(skipLogEvery), 1),
	}
	for _, o := range opts {
		if o != nil {
			o(j)
		}
	}
	if j.ctx == nil {
		j.ctx = context.Background()
	}
	j.log = j.baseLog
	if !j.log.IsZero() {
		j.log = j.log.With(logx.String("job", name))
	}
	return j
}

// WithTimeout bounds each firing. d <= 0 keeps the current value.
func (j *Job) WithTimeout(d time.Duration) *Job {
	if d > 0 {
		j.mu.Lock()
		j.timeout = d
		j.mu.Unlock()
	}
	return j
}

func (j *Job) WithOnStart(fn func(*Job)) *Job {
	j.mu.Lock()
	j.onStart = fn
	j.mu.Unlock()
	return j
}

func (j *Job) WithOnEnd(fn func(*Job)) *Job {
	j.mu.Lock()
	j.onEnd = fn
	j.mu.Unlock()
	return j
}

func (j *Job) WithOnException(fn func(error)) *Job {
	j.mu.Lock()
	j.onException = fn
	j.mu.Unlock()
	return j
}

func (j *Job) FriendlyName() string { return j.name }

func (j *Job) IsScheduled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.scheduled
}

func (j *Job) IsSingleRecurrence() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.single
}

func (j *Job) IsDisposed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.disposed
}

// State returns a copy of the job state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Timeout() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.timeout
}

func (j *Job) Period() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.period
}

func (j *Job) DueTime() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dueTime
}

func (j *Job) FirstExecution() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.firstExecution
}

// NextRun is the instant drift correction is currently aiming at.
func (j *Job) NextRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastScheduled
}

type hooks struct {
	timeout     time.Duration
	onStart     func(*Job)
	onEnd       func(*Job)
	onException func(error)
}

func (j *Job) hooks() hooks {
	j.mu.Lock()
	defer j.mu.Unlock()
	return hooks{timeout: j.timeout, onStart: j.onStart, onEnd: j.onEnd, onException: j.onException}
}
