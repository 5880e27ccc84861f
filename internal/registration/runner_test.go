package registration

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/events"
)

type modelStandIn struct{}

func waitDone(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not finish")
	}
}

func TestObjectiveBeforeAnyRun(t *testing.T) {
	r := NewRunner(&ScriptedOptimizer{}, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if !math.IsNaN(r.Objective()) {
		t.Fatalf("expected NaN sentinel before first run, got %v", r.Objective())
	}
	if got := r.Snapshot().Status; got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestRunToConvergence(t *testing.T) {
	opt := &ScriptedOptimizer{Steps: []ScriptedStep{
		{Objective: 9},
		{Objective: 4},
		{Objective: 1, Converged: true},
	}}
	bucket := events.NewBucket()
	src := &modelStandIn{}
	r := NewRunner(opt, bucket, src, Config{}, zerolog.Nop())

	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)

	s := r.Snapshot()
	if s.Status != StatusConverged {
		t.Fatalf("expected converged, got %s (%s)", s.Status, s.Err)
	}
	if s.Iteration != 3 {
		t.Fatalf("expected 3 iterations, got %d", s.Iteration)
	}
	if s.Objective != 1 {
		t.Fatalf("expected final objective 1, got %v", s.Objective)
	}
	if !bucket.Has(events.KindRegistration, src) {
		t.Fatalf("expected a coalesced registration event in the bucket")
	}
	if bucket.Has(events.KindRegistrationProgress, &modelStandIn{}) {
		t.Fatalf("event must be keyed to the originating source")
	}
}

func TestSnapshotIterationMonotonic(t *testing.T) {
	steps := make([]ScriptedStep, 50)
	for i := range steps {
		steps[i].Objective = float64(50 - i)
	}
	steps[len(steps)-1].Converged = true
	r := NewRunner(&ScriptedOptimizer{Steps: steps}, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}

	last := 0
	for {
		s := r.Snapshot()
		if s.Iteration < last {
			t.Fatalf("iteration went backward: %d -> %d", last, s.Iteration)
		}
		last = s.Iteration
		if s.Status != StatusRunning && s.Status != StatusIdle {
			break
		}
	}
	waitDone(t, r)
}

func TestCancelObservedAtStepBoundary(t *testing.T) {
	opt := &ScriptedOptimizer{
		Steps:   []ScriptedStep{{Objective: 5}},
		Entered: make(chan struct{}),
		Block:   make(chan struct{}),
	}
	r := NewRunner(opt, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Cancel only once the worker is inside Step, so the cancel flag cannot
	// be observed before the step begins and the release below always has a
	// receiver.
	<-opt.Entered
	r.Cancel()
	opt.Block <- struct{}{} // release the in-flight step
	waitDone(t, r)

	s := r.Snapshot()
	if s.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", s.Status)
	}
	// The step that was in flight still committed cleanly.
	if s.Iteration != 1 || s.Objective != 5 {
		t.Fatalf("last snapshot corrupted: %+v", s)
	}
}

func TestOptimizerErrorFailsRun(t *testing.T) {
	opt := &ScriptedOptimizer{Steps: []ScriptedStep{
		{Objective: 3},
		{Err: errors.New("singular hessian")},
	}}
	r := NewRunner(opt, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)

	s := r.Snapshot()
	if s.Status != StatusFailed || s.Err == "" {
		t.Fatalf("expected failed with message, got %+v", s)
	}
	// The last valid objective survives for inspection.
	if s.Objective != 3 {
		t.Fatalf("expected last valid objective 3, got %v", s.Objective)
	}
}

func TestNonFiniteObjectiveFailsRun(t *testing.T) {
	opt := &ScriptedOptimizer{Steps: []ScriptedStep{{Objective: math.Inf(1)}}}
	r := NewRunner(opt, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)
	if s := r.Snapshot(); s.Status != StatusFailed {
		t.Fatalf("expected failed on non-finite objective, got %+v", s)
	}
}

func TestIterationCap(t *testing.T) {
	opt := &ScriptedOptimizer{Steps: []ScriptedStep{{Objective: 1}}} // never converges
	r := NewRunner(opt, events.NewBucket(), nil, Config{IterationCap: 25}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)
	s := r.Snapshot()
	if s.Status != StatusFailed || s.Iteration != 25 {
		t.Fatalf("expected failure at cap 25, got %+v", s)
	}
}

func TestStartWhileRunning(t *testing.T) {
	opt := &ScriptedOptimizer{
		Steps: []ScriptedStep{{Objective: 1, Converged: true}},
		Block: make(chan struct{}),
	}
	r := NewRunner(opt, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(Identity()); !IsAlreadyRunning(err) {
		t.Fatalf("expected already-running error, got %v", err)
	}
	opt.Block <- struct{}{}
	waitDone(t, r)

	// Terminal state resets on the next Start.
	opt2 := &ScriptedOptimizer{Steps: []ScriptedStep{{Objective: 0, Converged: true}}}
	r2 := NewRunner(opt2, events.NewBucket(), nil, Config{}, zerolog.Nop())
	if err := r2.Start(Identity()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitDone(t, r2)
}

func TestMeanSquaresOptimizerConverges(t *testing.T) {
	opt := &MeanSquaresOptimizer{
		Fixed:  [3]float64{10, -4, 2},
		Moving: [3]float64{0, 0, 0},
	}
	r := NewRunner(opt, events.NewBucket(), nil, Config{NotifyBatch: 8}, zerolog.Nop())
	if err := r.Start(Identity()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, r)

	s := r.Snapshot()
	if s.Status != StatusConverged {
		t.Fatalf("expected convergence, got %+v", s)
	}
	got := s.Transform.ApplyPoint(opt.Moving)
	for i, want := range opt.Fixed {
		if diff := got[i] - want; diff > 1e-2 || diff < -1e-2 {
			t.Fatalf("axis %d: mapped to %v, want %v", i, got[i], want)
		}
	}
}

func TestTransformOps(t *testing.T) {
	tr := Translation(1, 2, 3)
	if got := tr.Translation(); got != [3]float64{1, 2, 3} {
		t.Fatalf("translation part: %v", got)
	}
	p := tr.ApplyPoint([3]float64{1, 1, 1})
	if p != [3]float64{2, 3, 4} {
		t.Fatalf("apply point: %v", p)
	}
	composed := Translation(1, 0, 0).Compose(Translation(0, 1, 0))
	if got := composed.Translation(); got != [3]float64{1, 1, 0} {
		t.Fatalf("compose: %v", got)
	}
	// Matrix returns a copy.
	m := tr.Matrix()
	m.Set(0, 3, 99)
	if tr.Translation()[0] != 1 {
		t.Fatalf("matrix copy aliased internal state")
	}
	var zero Transform
	if !zero.IsZero() || zero.Matrix().At(0, 0) != 1 {
		t.Fatalf("zero transform should read as identity")
	}
}

func TestDomainLabels(t *testing.T) {
	if len(Modes()) != 2 || len(Metrics()) != 3 || len(Inits()) != 3 {
		t.Fatalf("unexpected domain sizes")
	}
	if ModeRigid.Label() == "" || MetricMeanSquares.Label() == "" || InitCenters.Label() == "" {
		t.Fatalf("labels must be non-empty")
	}
}
