// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"io"
	"math"
	"testing"
)

// isAns1 tests against the known roots (±5, ±3) of the fcn1 system.
func isAns1(x []float64, tol float64) bool {
	ax1 := math.Abs(x[0]) - 5.0
	ax2 := math.Abs(x[1]) - 3.0
	return math.Abs(ax1) <= tol && math.Abs(ax2) <= tol
}

func testStop() Control {
	return Control{
		MaxEvals:      500,
		FcnTolerance:  1.0e-8,
		VarTolerance:  1.0e-12,
		GradTolerance: 1.0e-12,
	}
}

func TestNewtonSystem(t *testing.T) {

	p := NewtonProblem{
		Fcn:  &Fcn{N: 2, M: 2, Eval: fcn1, Jac: jac1},
		Stop: testStop(),
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	w := s.Init()
	r, err := s.Solve([]float64{1, 1}, w)

	switch {
	case err != nil:
		t.Fatal(err)
	case !r.OK:
		t.Fatal("TestNewtonSystem: not converged")
	case !isAns1(r.X, 1e-6):
		t.Fatalf("TestNewtonSystem: expected +/-(5, 3), received (%f, %f)", r.X[0], r.X[1])
	case r.Iterations >= 15:
		t.Fatalf("TestNewtonSystem: too many iterations (%d)", r.Iterations)
	case flagCount(&r.Behavior) != 1:
		t.Fatal("TestNewtonSystem: expected exactly one convergence flag")
	case r.JacEvals != r.Iterations:
		t.Fatal("TestNewtonSystem: expected one jacobian evaluation per iteration")
	}
}

func TestNewtonNumericJacobian(t *testing.T) {

	p := NewtonProblem{
		Fcn:  &Fcn{N: 2, M: 2, Eval: fcn1},
		Stop: testStop(),
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve([]float64{1, 1}, s.Init())
	switch {
	case err != nil:
		t.Fatal(err)
	case !r.OK || !isAns1(r.X, 1e-6):
		t.Fatal("TestNewtonNumericJacobian: wrong answer")
	}
}

func TestNewtonPureStep(t *testing.T) {

	// With the search disabled every step is the full Newton step.
	p := NewtonProblem{
		Fcn:  &Fcn{N: 2, M: 2, Eval: fcn1, Jac: jac1},
		Stop: testStop(),
		Line: LineSearch{Disable: true},
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve([]float64{1, 1}, s.Init())
	switch {
	case err != nil:
		t.Fatal(err)
	case !r.OK || !isAns1(r.X, 1e-6):
		t.Fatal("TestNewtonPureStep: wrong answer")
	}
}

func TestNewtonDeterministic(t *testing.T) {

	p := NewtonProblem{
		Fcn:  &Fcn{N: 2, M: 2, Eval: fcn1, Jac: jac1},
		Stop: testStop(),
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	w := s.Init()
	r1, err1 := s.Solve([]float64{1, 1}, w)
	r2, err2 := s.Solve([]float64{1, 1}, w)

	switch {
	case err1 != nil || err2 != nil:
		t.Fatal(err1, err2)
	case r1.Behavior != r2.Behavior:
		t.Fatal("TestNewtonDeterministic: iteration counts differ between identical solves")
	case r1.X[0] != r2.X[0] || r1.X[1] != r2.X[1]:
		t.Fatal("TestNewtonDeterministic: final points differ between identical solves")
	}
}

func TestNewtonBudgetExhausted(t *testing.T) {

	stop := testStop()
	stop.MaxEvals = 3
	stop.FcnTolerance = 1e-300
	stop.VarTolerance = 1e-300
	stop.GradTolerance = 1e-300

	p := NewtonProblem{
		Fcn:  &Fcn{N: 2, M: 2, Eval: fcn1, Jac: jac1},
		Stop: stop,
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve([]float64{1, 1}, s.Init())
	switch {
	case KindOf(err) != ErrConvergence:
		t.Fatal("TestNewtonBudgetExhausted: expected a convergence failure")
	case r == nil || r.OK:
		t.Fatal("TestNewtonBudgetExhausted: expected the best iterate of a failed solve")
	case flagCount(&r.Behavior) != 0:
		t.Fatal("TestNewtonBudgetExhausted: no convergence flag may be set on failure")
	}
}

func TestNewtonStalledSearch(t *testing.T) {

	// A kinked residual the claimed Jacobian cannot decrease: every trial
	// step is rejected, and the failed solve must report the starting
	// iterate together with its matching residual.
	fn := &Fcn{
		N: 1, M: 1,
		Eval: func(x, f []float64) { f[0] = 1 + 2*math.Abs(x[0]) },
		Jac:  func(x, jac []float64) { jac[0] = 2 },
	}
	p := NewtonProblem{Fcn: fn, Stop: testStop()}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve([]float64{0}, s.Init())
	f := make([]float64, 1)
	fn.Eval(r.X, f)

	switch {
	case KindOf(err) != ErrSpurious:
		t.Fatal("TestNewtonStalledSearch: expected a spurious convergence failure")
	case r.OK:
		t.Fatal("TestNewtonStalledSearch: a stalled solve must not report success")
	case r.X[0] != 0:
		t.Fatalf("TestNewtonStalledSearch: expected the starting iterate, received %g", r.X[0])
	case r.F[0] != f[0]:
		t.Fatalf("TestNewtonStalledSearch: residual %g does not match f(x) = %g", r.F[0], f[0])
	}
}

func TestNewtonStatusLog(t *testing.T) {

	p := NewtonProblem{
		Fcn:    &Fcn{N: 2, M: 2, Eval: fcn1, Jac: jac1},
		Stop:   testStop(),
		Logger: &Logger{Level: LogIter, Msg: io.Discard},
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}
	if r, err := s.Solve([]float64{1, 1}, s.Init()); err != nil || !r.OK {
		t.Fatal("TestNewtonStatusLog: logging must not affect the solve")
	}
}
