package registration

import (
	"errors"
	"math"
	"sync"
)

// Optimizer is the external numerical service stepped by the runner. One call
// improves the transform once and reports the new objective value.
type Optimizer interface {
	Step(current Transform) (next Transform, objective float64, converged bool, err error)
}

// MeanSquaresOptimizer is the reference optimizer: damped translation descent
// pulling the moving image's center onto the fixed image's center. It exists
// so the daemon has a working end-to-end path and tests have a predictable
// convergent optimizer; the real metric-driven optimizers live outside this
// core.
type MeanSquaresOptimizer struct {
	Fixed  [3]float64 // fixed image center
	Moving [3]float64 // moving image center
	Rate   float64    // step fraction per iteration, defaults to 0.5
	Tol    float64    // squared-distance convergence tolerance, defaults to 1e-6
}

func (o *MeanSquaresOptimizer) Step(current Transform) (Transform, float64, bool, error) {
	rate := o.Rate
	if rate <= 0 || rate > 1 {
		rate = 0.5
	}
	tol := o.Tol
	if tol <= 0 {
		tol = 1e-6
	}

	moved := current.ApplyPoint(o.Moving)
	var obj float64
	var step [3]float64
	for i := 0; i < 3; i++ {
		d := o.Fixed[i] - moved[i]
		obj += d * d
		step[i] = rate * d
	}

	tr := current.Translation()
	for i := 0; i < 3; i++ {
		tr[i] += step[i]
	}
	next := current.WithTranslation(tr)
	return next, obj, obj < tol, nil
}

// ScriptedOptimizer replays a fixed sequence of step outcomes; tests use it
// to drive the runner deterministically. After the script is exhausted it
// keeps returning the final outcome.
type ScriptedOptimizer struct {
	mu    sync.Mutex
	Steps []ScriptedStep
	pos   int
	// Entered, when non-nil, is sent to as each step begins, before any
	// Block receive, so a test knows the worker is inside Step.
	Entered chan struct{}
	// Block, when non-nil, is received from before each step, letting a
	// test hold the worker at a step boundary.
	Block chan struct{}
}

type ScriptedStep struct {
	Objective float64
	Converged bool
	Err       error
}

func (o *ScriptedOptimizer) Step(current Transform) (Transform, float64, bool, error) {
	if o.Entered != nil {
		o.Entered <- struct{}{}
	}
	if o.Block != nil {
		<-o.Block
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Steps) == 0 {
		return current, math.NaN(), false, errors.New("scripted optimizer has no steps")
	}
	s := o.Steps[o.pos]
	if o.pos < len(o.Steps)-1 {
		o.pos++
	}
	next := current.Compose(Translation(1, 0, 0))
	return next, s.Objective, s.Converged, s.Err
}
