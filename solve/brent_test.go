// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"math"
	"testing"
)

func sinc(x float64) float64 { return math.Sin(x) / x }

func TestBrentSinc(t *testing.T) {

	p := BrentProblem{
		Fcn: sinc,
		Stop: Control{
			MaxEvals:     100,
			FcnTolerance: 1.0e-10,
			VarTolerance: 1.0e-10,
		},
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve(1.5, 5.0)
	switch {
	case err != nil:
		t.Fatal(err)
	case !r.OK:
		t.Fatal("TestBrentSinc: not converged")
	case math.Abs(r.X[0]-math.Pi) > 1e-8:
		t.Fatalf("TestBrentSinc: expected pi, received %.12f", r.X[0])
	case flagCount(&r.Behavior) != 1:
		t.Fatal("TestBrentSinc: expected exactly one convergence flag")
	case r.FuncEvals > 100:
		t.Fatal("TestBrentSinc: evaluation count over budget")
	}
}

func TestBrentNoBracket(t *testing.T) {

	p := BrentProblem{Fcn: sinc, Stop: Control{MaxEvals: 100}}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	// sin(x)/x is positive on the whole of [0.5, 2.5].
	_, err = s.Solve(0.5, 2.5)
	if KindOf(err) != ErrInvalidInput {
		t.Fatal("TestBrentNoBracket: non-bracketing interval not rejected")
	}
}

func TestBrentEndpointRoot(t *testing.T) {

	f := func(x float64) float64 { return x - 2 }
	p := BrentProblem{Fcn: f, Stop: Control{MaxEvals: 100}}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve(2.0, 5.0)
	switch {
	case err != nil:
		t.Fatal(err)
	case !r.OK || r.X[0] != 2.0:
		t.Fatal("TestBrentEndpointRoot: exact endpoint root not detected")
	case !r.ConvergeOnFcn:
		t.Fatal("TestBrentEndpointRoot: expected function-norm convergence")
	}
}

func TestBrentToleranceTooSmall(t *testing.T) {

	p := BrentProblem{
		Fcn:  sinc,
		Stop: Control{MaxEvals: 100, VarTolerance: 1e-18},
	}
	if _, err := p.New(); KindOf(err) != ErrToleranceTooSmall {
		t.Fatal("TestBrentToleranceTooSmall: unachievable tolerance not rejected")
	}
}

func TestBrentBudgetExhausted(t *testing.T) {

	p := BrentProblem{
		Fcn:  sinc,
		Stop: Control{MaxEvals: 4, FcnTolerance: 1e-300, VarTolerance: 1e-15 * 2},
	}
	s, err := p.New()
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Solve(1.5, 5.0)
	switch {
	case KindOf(err) != ErrConvergence:
		t.Fatal("TestBrentBudgetExhausted: expected a convergence failure")
	case r == nil || r.OK:
		t.Fatal("TestBrentBudgetExhausted: expected the best abscissa of a failed solve")
	case flagCount(&r.Behavior) != 0:
		t.Fatal("TestBrentBudgetExhausted: no convergence flag may be set on failure")
	}
}
