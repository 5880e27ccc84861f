package registration

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"imaged/internal/events"
)

// Status is the lifecycle state of a registration run. Transitions only ever
// move idle -> running -> {converged, cancelled, failed}; terminal states are
// final until the next Start.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusConverged Status = "converged"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Snapshot is an internally consistent copy of the worker's progress: a
// reader never sees a new objective paired with a stale transform. Transform
// values are immutable, so the shallow copy is safe.
type Snapshot struct {
	Status    Status
	Transform Transform
	Objective float64
	Iteration int
	Err       string
}

// Config bounds a run.
type Config struct {
	// IterationCap fails the run when exceeded. Defaults to 1000.
	IterationCap int
	// NotifyBatch is how many steps run between snapshot publishes, to
	// bound the notification rate. Defaults to 1.
	NotifyBatch int
}

const (
	defaultIterationCap = 1000
	defaultNotifyBatch  = 1
)

// Runner owns the registration worker. The caller thread polls Snapshot()
// and never blocks on the worker; progress pings are coalesced through the
// shared event bucket keyed by (registration.progress, source).
type Runner struct {
	opt    Optimizer
	bucket *events.Bucket
	source any
	log    zerolog.Logger
	cfg    Config

	mu     sync.Mutex
	snap   Snapshot
	cancel atomic.Bool
	done   chan struct{}
}

// NewRunner builds an idle runner. source identifies the owning model in
// bucket entries; bucket may be shared with other producers.
func NewRunner(opt Optimizer, bucket *events.Bucket, source any, cfg Config, log zerolog.Logger) *Runner {
	if cfg.IterationCap <= 0 {
		cfg.IterationCap = defaultIterationCap
	}
	if cfg.NotifyBatch <= 0 {
		cfg.NotifyBatch = defaultNotifyBatch
	}
	return &Runner{
		opt:    opt,
		bucket: bucket,
		source: source,
		log:    log,
		cfg:    cfg,
		snap:   Snapshot{Status: StatusIdle, Objective: math.NaN()},
	}
}

var errAlreadyRunning = errors.New("registration already running")

// IsAlreadyRunning reports whether err indicates a Start while running.
func IsAlreadyRunning(err error) bool { return errors.Is(err, errAlreadyRunning) }

// Start launches a run from the given initial transform, resetting any prior
// terminal state. It fails only if a run is already in flight.
func (r *Runner) Start(initial Transform) error {
	if initial.IsZero() {
		initial = Identity()
	}
	r.mu.Lock()
	if r.snap.Status == StatusRunning {
		r.mu.Unlock()
		return errAlreadyRunning
	}
	r.cancel.Store(false)
	r.snap = Snapshot{Status: StatusRunning, Transform: initial, Objective: math.NaN()}
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	go r.run(initial, done)
	return nil
}

// Cancel requests cooperative cancellation. The worker observes it at the
// next step boundary; callers should keep polling until a terminal status
// appears.
func (r *Runner) Cancel() { r.cancel.Store(true) }

// Snapshot returns the latest published progress snapshot.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Objective returns the latest objective value, NaN before any run.
func (r *Runner) Objective() float64 { return r.Snapshot().Objective }

// Done returns a channel closed when the current run's worker exits. Nil if
// Start has never been called.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Runner) run(current Transform, done chan struct{}) {
	defer close(done)

	iter := 0
	objective := math.NaN()
	sinceNotify := 0

	finish := func(status Status, errMsg string) {
		r.publish(Snapshot{Status: status, Transform: current, Objective: objective, Iteration: iter, Err: errMsg})
		r.notify(events.KindRegistrationDone)
		r.log.Debug().Str("status", string(status)).Int("iterations", iter).Msg("registration finished")
	}

	for {
		if r.cancel.Load() {
			finish(StatusCancelled, "")
			return
		}
		next, obj, converged, err := r.opt.Step(current)
		if err != nil {
			finish(StatusFailed, err.Error())
			return
		}
		if math.IsNaN(obj) || math.IsInf(obj, 0) {
			finish(StatusFailed, "non-finite objective")
			return
		}
		// Commit the step only after it is known to be valid, so the last
		// published transform is always usable.
		current = next
		objective = obj
		iter++

		if converged {
			finish(StatusConverged, "")
			return
		}
		if iter >= r.cfg.IterationCap {
			finish(StatusFailed, "iteration cap reached without convergence")
			return
		}

		sinceNotify++
		if sinceNotify >= r.cfg.NotifyBatch {
			sinceNotify = 0
			// Publish before notify: a consumer that sees the bucket entry
			// is guaranteed to read a snapshot at least this fresh.
			r.publish(Snapshot{Status: StatusRunning, Transform: current, Objective: objective, Iteration: iter})
			r.notify(events.KindRegistrationProgress)
		}
	}
}

func (r *Runner) publish(s Snapshot) {
	r.mu.Lock()
	r.snap = s
	r.mu.Unlock()
}

func (r *Runner) notify(kind events.Kind) {
	if r.bucket != nil {
		r.bucket.Put(kind, r.source)
	}
}
