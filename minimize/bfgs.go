// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minimize

import (
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/curioloop/nonlin/numdiff"
	"github.com/curioloop/nonlin/solve"
)

// Gradient evaluates the analytic gradient ∇𝒇(𝐱) into the n-vector g.
type Gradient func(x, g []float64)

// BFGSProblem specifies an unconstrained minimization problem for the
// BFGS quasi-Newton solver.
type BFGSProblem struct {
	N      int              // The problem dimension.
	Object Objective        // Objective function.
	Grad   Gradient         // Optional analytic gradient; forward differences when nil.
	Stop   solve.Control    // Stop condition.
	Line   solve.LineSearch // Line-search option.
	Logger *solve.Logger    // Optional status reporting.
}

// New validates the problem and creates a BFGS solver.
func (p *BFGSProblem) New() (*BFGS, error) {
	const op = "bfgs"
	if p.Object == nil {
		return nil, &solve.Error{Kind: solve.ErrInvalidOperation, Op: op,
			Err: errors.New("no function has been bound")}
	}
	if p.N <= 0 {
		return nil, &solve.Error{Kind: solve.ErrInvalidInput, Op: op,
			Err: errors.New("problem dimension must be greater than 0")}
	}
	stop := p.Stop.WithDefaults()
	line := p.Line.WithDefaults()
	if err := stop.Validate(op); err != nil {
		return nil, err
	}
	if err := line.Validate(op); err != nil {
		return nil, err
	}
	return &BFGS{n: p.N, obj: p.Object, grad: p.Grad,
		stop: stop, line: line, logger: p.Logger}, nil
}

// BFGS minimizes the objective with the quasi-Newton method of Broyden,
// Fletcher, Goldfarb and Shanno. An approximation 𝐇 of the inverse
// Hessian starts as the identity and is refreshed every iteration by the
// secant update built from the step 𝐬 = t·𝐩 and the gradient change 𝐲:
//
//	𝐇ₖ₊₁ = (𝐈 - 𝜌𝐬𝐲ᵀ)·𝐇ₖ·(𝐈 - 𝜌𝐲𝐬ᵀ) + 𝜌𝐬𝐬ᵀ,  𝜌 = 1/(𝐬ᵀ𝐲)
//
// The search direction is 𝐩 = -𝐇·∇𝒇 with the step length chosen by the
// shared backtracking line search. An update with 𝐬ᵀ𝐲 ≤ 0 would destroy
// the positive definiteness of 𝐇 and is skipped for that iteration.
type BFGS struct {
	n      int
	obj    Objective
	grad   Gradient
	stop   solve.Control
	line   solve.LineSearch
	logger *solve.Logger
}

// BFGSWorkspace contains the scratch space of the BFGS solver:
// the dense inverse Hessian and the iteration vectors.
type BFGSWorkspace struct {
	n int
	// inverse hessian approximation, row-major n×n
	h []float64
	// gradient, trial gradient and search direction
	g, gt, p []float64
	// secant pair and 𝐇·𝐲 product
	s, y, hy []float64
	// previous iterate and scalar function value
	xold, fv []float64
	// forward-difference scratch
	gradWork []float64
}

// Init allocates the workspace for the BFGS solver.
func (s *BFGS) Init() *BFGSWorkspace {
	n := s.n
	w := &BFGSWorkspace{n: n}
	w.h = make([]float64, n*n)
	w.g = make([]float64, n)
	w.gt = make([]float64, n)
	w.p = make([]float64, n)
	w.s = make([]float64, n)
	w.y = make([]float64, n)
	w.hy = make([]float64, n)
	w.xold = make([]float64, n)
	w.fv = make([]float64, 1)
	if s.grad == nil {
		w.gradWork = make([]float64, (&numdiff.Jacobian{N: n, M: 1}).WorkLen())
	}
	return w
}

// Solve runs the BFGS iteration from the initial guess x. The result
// holds the best iterate found even when an error is returned.
func (s *BFGS) Solve(x []float64, w *BFGSWorkspace) (*solve.Result, error) {

	if len(x) != s.n {
		panic("initial x dimension not match spec")
	}
	if w == nil || w.n != s.n {
		panic("workspace dimension not match spec")
	}

	n := s.n
	loc := slices.Clone(x)

	res := &solve.Result{X: loc}
	b := &res.Behavior

	fx := s.obj(loc)
	b.FuncEvals++
	var nerr error
	if nerr = s.gradient(loc, fx, w.g, w, b); nerr == nil {

		// 𝐇₀ = 𝐈
		for i := range w.h {
			w.h[i] = zero
		}
		for i := 0; i < n; i++ {
			w.h[i*n+i] = one
		}

		w.fv[0] = fx
		if maxAbs(w.fv) < s.stop.FcnTolerance {
			b.ConvergeOnFcn = true
		} else if maxAbs(w.g) < s.stop.GradTolerance {
			b.ConvergeOnGradient = true
		} else {
			fx, nerr = s.iterate(loc, fx, w, b)
		}
	}

	w.fv[0] = fx
	res.F = []float64{fx}
	res.OK = nerr == nil
	return res, nerr
}

func (s *BFGS) iterate(loc []float64, fx float64, w *BFGSWorkspace, b *solve.Behavior) (float64, error) {

	const op = "bfgs"
	n := s.n
	for {
		if b.FuncEvals >= s.stop.MaxEvals {
			return fx, &solve.Error{Kind: solve.ErrConvergence, Op: op,
				Err: errors.New("evaluation budget exhausted")}
		}
		b.Iterations++

		// 𝐩 = -𝐇·𝐠
		for i := 0; i < n; i++ {
			w.p[i] = -dot(w.h[i*n:(i+1)*n], w.g)
		}
		slope := dot(w.g, w.p)

		copy(w.xold, loc)
		t := one
		ft := fx
		if !s.line.Disable {
			phi := func(t float64) float64 {
				for i := 0; i < n; i++ {
					loc[i] = w.xold[i] + t*w.p[i]
				}
				return s.obj(loc)
			}
			st, sf, evals, serr := solve.Backtrack(phi, fx, slope, &s.line)
			b.FuncEvals += evals
			if serr != nil && (solve.KindOf(serr) != solve.ErrSpurious || st == zero) {
				// phi left loc at the last rejected trial: put the iterate
				// back so the result stays consistent with fx.
				copy(loc, w.xold)
				return fx, serr
			}
			t, ft = st, sf
		}
		for i := 0; i < n; i++ {
			loc[i] = w.xold[i] + t*w.p[i]
		}
		if s.line.Disable {
			ft = s.obj(loc)
			b.FuncEvals++
		}

		if err := s.gradient(loc, ft, w.gt, w, b); err != nil {
			return ft, err
		}

		// Secant pair 𝐬 = 𝐱ₖ₊₁ - 𝐱ₖ, 𝐲 = 𝐠ₖ₊₁ - 𝐠ₖ.
		for i := 0; i < n; i++ {
			w.s[i] = loc[i] - w.xold[i]
			w.y[i] = w.gt[i] - w.g[i]
		}
		if sy := dot(w.s, w.y); sy > zero {
			s.updateHessian(w, sy)
		}
		// A non-positive 𝐬ᵀ𝐲 would break positive definiteness: skip.

		copy(w.g, w.gt)
		fx = ft

		if s.logger.Enabled(solve.LogIter) {
			s.logger.Status(b, norm2(w.s), math.Abs(fx))
		}

		w.fv[0] = fx
		if solve.Converged(&s.stop, w.fv, w.xold, loc, w.g, b) {
			return fx, nil
		}
	}
}

// gradient evaluates ∇𝒇 at x into g, analytically when bound, otherwise
// by a forward difference reusing the known objective value fx.
func (s *BFGS) gradient(x []float64, fx float64, g []float64, w *BFGSWorkspace, b *solve.Behavior) error {
	const op = "bfgs"
	if s.grad != nil {
		s.grad(x, g)
		b.JacEvals++
		return nil
	}
	ja := numdiff.Jacobian{N: s.n, M: 1, Object: func(x, y []float64) { y[0] = s.obj(x) }}
	w.fv[0] = fx
	if err := ja.Diff(x, w.fv[:1], g, w.gradWork); err != nil {
		return &solve.Error{Kind: solve.ErrInvalidInput, Op: op,
			Err: errors.Wrap(err, "forward difference gradient")}
	}
	b.JacEvals++
	b.FuncEvals += s.n
	return nil
}

// updateHessian applies the inverse BFGS secant formula in its expanded
// rank-two form:
//
//	𝐇 += ((𝐬ᵀ𝐲 + 𝐲ᵀ𝐇𝐲)/(𝐬ᵀ𝐲)²)·𝐬𝐬ᵀ - (𝐇𝐲𝐬ᵀ + 𝐬(𝐇𝐲)ᵀ)/(𝐬ᵀ𝐲)
func (s *BFGS) updateHessian(w *BFGSWorkspace, sy float64) {
	n := s.n
	for i := 0; i < n; i++ {
		w.hy[i] = dot(w.h[i*n:(i+1)*n], w.y)
	}
	yhy := dot(w.y, w.hy)
	c := (sy + yhy) / (sy * sy)
	for i := 0; i < n; i++ {
		hi := w.h[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			hi[j] += c*w.s[i]*w.s[j] - (w.hy[i]*w.s[j]+w.s[i]*w.hy[j])/sy
		}
	}
}
