// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Workspace contains the scratch space of the Newton and Quasi-Newton
// solvers. Repeated solves through one workspace allocate nothing beyond
// the returned Result. To avoid race conditions, separate workspaces need
// to be created for each goroutine, but multiple workspaces could share
// one solver.
type Workspace struct {
	n int
	// jacobian, row-major n×n
	jac []float64
	// newton step and right-hand side
	dx, rhs []float64
	// previous iterate and trial residual
	xold, ft []float64
	// gradient of ½‖𝒇‖²
	grad []float64
	// forward-difference scratch
	jacWork []float64
	// secant vectors (quasi-newton only)
	sdx, df, jdx, fold []float64
	lu                 mat.LU
}

func newWorkspace(n, jacLen int) *Workspace {
	w := &Workspace{n: n}
	w.jac = make([]float64, n*n)
	w.dx = make([]float64, n)
	w.rhs = make([]float64, n)
	w.xold = make([]float64, n)
	w.ft = make([]float64, n)
	w.grad = make([]float64, n)
	if jacLen > 0 {
		w.jacWork = make([]float64, jacLen)
	}
	return w
}

// NewtonProblem specifies a square system 𝒇(𝐱) = 0 for Newton's method.
type NewtonProblem struct {
	Fcn    *Fcn       // Function and optional analytic Jacobian, m = n.
	Stop   Control    // Stop condition.
	Line   LineSearch // Line-search option.
	Logger *Logger    // Optional status reporting.
}

// New validates the problem and creates a Newton solver.
func (p *NewtonProblem) New() (*NewtonSolver, error) {
	const op = "newton"
	spec, err := newIterSpec(op, p.Fcn, p.Stop, p.Line, p.Logger)
	if err != nil {
		return nil, err
	}
	return &NewtonSolver{*spec}, nil
}

// iterSpec is the validated configuration shared by the newton-family solvers.
type iterSpec struct {
	n      int
	fcn    Fcn
	stop   Control
	line   LineSearch
	logger *Logger
}

func newIterSpec(op string, fcn *Fcn, stop Control, line LineSearch, logger *Logger) (*iterSpec, error) {
	if err := fcn.validate(op); err != nil {
		return nil, err
	}
	if fcn.M != fcn.N {
		return nil, errKind(ErrInvalidInput, op, "system must be square (m = n)")
	}
	stop = stop.WithDefaults()
	line = line.WithDefaults()
	if err := stop.Validate(op); err != nil {
		return nil, err
	}
	if err := line.Validate(op); err != nil {
		return nil, err
	}
	return &iterSpec{n: fcn.N, fcn: *fcn, stop: stop, line: line, logger: logger}, nil
}

// NewtonSolver solves 𝒇(𝐱) = 0 by damped Newton iteration:
// the dense system 𝐉·𝚫𝐱 = -𝒇 is solved every iteration and the step
// length is chosen by a backtracking line search unless disabled,
// in which case the full step t = 1 is always taken.
type NewtonSolver struct {
	iterSpec
}

// Init allocates the workspace for the Newton solver.
func (s *NewtonSolver) Init() *Workspace {
	return newWorkspace(s.n, s.fcn.JacWorkLen())
}

// Solve runs the Newton iteration from the initial guess x.
// The result holds the best iterate found even when an error is returned.
func (s *NewtonSolver) Solve(x []float64, w *Workspace) (*Result, error) {

	const op = "newton"
	if len(x) != s.n {
		panic("initial x dimension not match spec")
	}
	if w == nil || w.n != s.n {
		panic("workspace dimension not match spec")
	}

	n := s.n
	loc := slices.Clone(x)
	fv := make([]float64, n)

	res := &Result{X: loc, F: fv}
	b := &res.Behavior

	s.fcn.Eval(loc, fv)
	b.FuncEvals++

	var nerr error
	if maxAbs(fv) < s.stop.FcnTolerance {
		b.ConvergeOnFcn = true
	} else {
		for {
			if b.FuncEvals >= s.stop.MaxEvals {
				nerr = errKind(ErrConvergence, op, "evaluation budget exhausted")
				break
			}
			b.Iterations++

			evals, err := s.fcn.Jacobian(loc, fv, w.jac, w.jacWork)
			if err != nil {
				nerr = err
				break
			}
			b.JacEvals++
			b.FuncEvals += evals

			if err = newtonStep(w, fv); err != nil {
				nerr = wrapKind(ErrDivergent, op, err, "solve J·dx = -f")
				break
			}

			var t float64
			if t, nerr = s.takeStep(loc, fv, w, b); nerr != nil {
				break
			}

			dgemv(n, n, w.jac, true, fv, w.grad)
			s.logger.Status(b, math.Abs(t)*dnrm2(n, w.dx), dnrm2(n, fv))

			if Converged(&s.stop, fv, w.xold, loc, w.grad, b) {
				break
			}
		}
	}

	res.OK = nerr == nil
	return res, nerr
}

// newtonStep solves the dense linear system 𝐉·𝚫𝐱 = -𝒇 into w.dx.
func newtonStep(w *Workspace, fv []float64) error {
	n := w.n
	for i, v := range fv {
		w.rhs[i] = -v
	}
	w.lu.Factorize(mat.NewDense(n, n, w.jac))
	return w.lu.SolveVecTo(mat.NewVecDense(n, w.dx), false, mat.NewVecDense(n, w.rhs))
}

// takeStep advances loc along w.dx, selecting the step length by
// backtracking on ½‖𝒇‖² unless the search is disabled. On a stalled
// search the best trial step is accepted when one exists.
func (s *iterSpec) takeStep(loc, fv []float64, w *Workspace, b *Behavior) (t float64, err error) {

	n := s.n
	dcopy(n, loc, w.xold)

	t = one
	if !s.line.Disable {
		f0 := half * ddot(n, fv, fv)
		// 𝚫𝐱 = -𝐉⁻¹𝒇 makes the directional derivative ∇(½‖𝒇‖²)ᵀ𝚫𝐱 = -‖𝒇‖²
		slope := -two * f0
		if slope < zero {
			phi := func(t float64) float64 {
				for i := 0; i < n; i++ {
					loc[i] = w.xold[i] + t*w.dx[i]
				}
				s.fcn.Eval(loc, w.ft)
				return half * ddot(n, w.ft, w.ft)
			}
			st, _, evals, serr := Backtrack(phi, f0, slope, &s.line)
			b.FuncEvals += evals
			if serr == nil {
				// loc and w.ft already hold the accepted trial
				dcopy(n, w.ft, fv)
				return st, nil
			}
			if KindOf(serr) != ErrSpurious || st == zero {
				// phi left loc at the last rejected trial: put the iterate
				// back so the result stays consistent with fv.
				dcopy(n, w.xold, loc)
				return st, serr
			}
			t = st // best trial of a stalled search
		}
	}

	for i := 0; i < n; i++ {
		loc[i] = w.xold[i] + t*w.dx[i]
	}
	s.fcn.Eval(loc, fv)
	b.FuncEvals++
	return t, nil
}
