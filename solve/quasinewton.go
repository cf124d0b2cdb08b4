// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"math"
	"slices"
)

// QuasiNewtonProblem specifies a square system 𝒇(𝐱) = 0 for the
// Broyden quasi-Newton solver.
type QuasiNewtonProblem struct {
	Fcn    *Fcn       // Function and optional analytic Jacobian, m = n.
	Stop   Control    // Stop condition.
	Line   LineSearch // Line-search option, enabled unless Disable is set.
	Logger *Logger    // Optional status reporting.
}

// New validates the problem and creates a quasi-Newton solver.
func (p *QuasiNewtonProblem) New() (*QuasiNewtonSolver, error) {
	const op = "quasi-newton"
	spec, err := newIterSpec(op, p.Fcn, p.Stop, p.Line, p.Logger)
	if err != nil {
		return nil, err
	}
	return &QuasiNewtonSolver{*spec}, nil
}

// QuasiNewtonSolver shares the Newton iteration skeleton but computes the
// Jacobian only once, refreshing it afterwards with Broyden's rank-one
// secant update:
//
//	𝐉ₖ₊₁ = 𝐉ₖ + (𝚫𝒇 - 𝐉ₖ𝚫𝐱)·𝚫𝐱ᵀ / (𝚫𝐱ᵀ𝚫𝐱)
//
// so the Jacobian evaluation count stays at one for well-behaved problems
// regardless of the iteration count. A singular updated Jacobian forces a
// single fresh recomputation before the solve is abandoned as divergent.
//
// Disabling the line search is sometimes the more robust choice on poorly
// scaled systems where backtracking makes no progress; no rescaling is
// attempted on the solver side.
type QuasiNewtonSolver struct {
	iterSpec
}

// Init allocates the workspace for the quasi-Newton solver.
func (s *QuasiNewtonSolver) Init() *Workspace {
	n := s.n
	w := newWorkspace(n, s.fcn.JacWorkLen())
	w.sdx = make([]float64, n)
	w.df = make([]float64, n)
	w.jdx = make([]float64, n)
	w.fold = make([]float64, n)
	return w
}

// Solve runs the quasi-Newton iteration from the initial guess x.
// The result holds the best iterate found even when an error is returned.
func (s *QuasiNewtonSolver) Solve(x []float64, w *Workspace) (*Result, error) {

	const op = "quasi-newton"
	if len(x) != s.n {
		panic("initial x dimension not match spec")
	}
	if w == nil || w.n != s.n || w.sdx == nil {
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
		haveJac := false
		for {
			if b.FuncEvals >= s.stop.MaxEvals {
				nerr = errKind(ErrConvergence, op, "evaluation budget exhausted")
				break
			}
			b.Iterations++

			fresh := !haveJac
			if fresh {
				if nerr = s.evalJacobian(loc, fv, w, b); nerr != nil {
					break
				}
				haveJac = true
			} else {
				broydenUpdate(w)
			}

			for {
				if err := newtonStep(w, fv); err == nil {
					break
				} else if fresh {
					nerr = wrapKind(ErrDivergent, op, err, "solve J·dx = -f")
					break
				}
				// The secant updates degraded the Jacobian, recompute it once.
				if nerr = s.evalJacobian(loc, fv, w, b); nerr != nil {
					break
				}
				fresh = true
			}
			if nerr != nil {
				break
			}

			dcopy(n, fv, w.fold)

			var t float64
			if t, nerr = s.takeStep(loc, fv, w, b); nerr != nil {
				break
			}

			// Secant pair for the next Broyden update.
			for i := 0; i < n; i++ {
				w.sdx[i] = loc[i] - w.xold[i]
				w.df[i] = fv[i] - w.fold[i]
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

func (s *iterSpec) evalJacobian(loc, fv []float64, w *Workspace, b *Behavior) error {
	evals, err := s.fcn.Jacobian(loc, fv, w.jac, w.jacWork)
	if err != nil {
		return err
	}
	b.JacEvals++
	b.FuncEvals += evals
	return nil
}

// broydenUpdate applies the rank-one secant correction to w.jac from the
// stored pair (𝚫𝐱, 𝚫𝒇). A vanishing step leaves the Jacobian untouched.
func broydenUpdate(w *Workspace) {
	n := w.n
	d := ddot(n, w.sdx, w.sdx)
	if d <= zero {
		return
	}
	dgemv(n, n, w.jac, false, w.sdx, w.jdx)
	for i := 0; i < n; i++ {
		w.jdx[i] = (w.df[i] - w.jdx[i]) / d
	}
	for i := 0; i < n; i++ {
		daxpy(n, w.jdx[i], w.sdx, w.jac[i*n:(i+1)*n])
	}
}
