// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leastsq solves nonlinear least squares problems
// 𝚖𝚒𝚗 ‖𝒇(𝐱)‖² with m ≥ n by the Levenberg–Marquardt algorithm.
package leastsq

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/nonlin/solve"
)

const (
	zero = 0.0
	one  = 1.0
	ten  = 10.0
)

const (
	// Initial damping is scaled from the largest diagonal entry of 𝐉ᵀ𝐉.
	initDamping = 1.0e-3
	// Floor keeping the damped system positive definite near convergence.
	minDamping = 1.0e-12
	// Bounded number of damping inflations before a step is abandoned.
	maxRetries = 20
)

// Problem specifies a nonlinear least squares problem for the
// Levenberg–Marquardt solver.
type Problem struct {
	Fcn    *solve.Fcn    // Residual function and optional Jacobian, m ≥ n.
	Stop   solve.Control // Stop condition.
	Logger *solve.Logger // Optional status reporting.
}

// New validates the problem and creates a Levenberg–Marquardt solver.
func (p *Problem) New() (*Solver, error) {
	const op = "levenberg-marquardt"
	if !p.Fcn.Bound() {
		return nil, &solve.Error{Kind: solve.ErrInvalidOperation, Op: op,
			Err: errors.New("no function has been bound")}
	}
	if p.Fcn.M < p.Fcn.N {
		return nil, &solve.Error{Kind: solve.ErrInvalidInput, Op: op,
			Err: errors.New("least squares requires m ≥ n")}
	}
	stop := p.Stop.WithDefaults()
	if err := stop.Validate(op); err != nil {
		return nil, err
	}
	return &Solver{fcn: *p.Fcn, stop: stop, logger: p.Logger}, nil
}

// Solver minimizes ‖𝒇(𝐱)‖² by damped Gauss–Newton steps:
//
//	(𝐉ᵀ𝐉 + λ·𝚍𝚒𝚊𝚐(𝐉ᵀ𝐉))·𝚫𝐱 = -𝐉ᵀ𝒇
//
// The damping λ interpolates between Gauss–Newton (small λ, large step)
// and gradient descent (large λ, small step). A trial step that fails to
// reduce ‖𝒇‖² inflates λ tenfold and is retried; an accepted step
// deflates λ tenfold. Step acceptance is the globalization mechanism,
// so the residual norm never increases across accepted iterations and
// no separate line search exists.
type Solver struct {
	fcn    solve.Fcn
	stop   solve.Control
	logger *solve.Logger
}

// Workspace contains the scratch space of the solver: the Jacobian, the
// normal matrix and its damped copy, and the trial buffers. Repeated
// solves through one workspace allocate nothing beyond the Result.
type Workspace struct {
	n, m int
	// jacobian, row-major m×n
	jac []float64
	// normal matrix 𝐉ᵀ𝐉 and its damped copy
	nrm, dmp []float64
	// gradient 𝐉ᵀ𝒇, right-hand side and step
	grad, rhs, dx []float64
	// previous iterate, trial point and trial residual
	xold, xt, ft []float64
	// forward-difference scratch
	jacWork []float64
	chol    mat.Cholesky
}

// Init allocates the workspace for the solver.
func (s *Solver) Init() *Workspace {
	n, m := s.fcn.N, s.fcn.M
	w := &Workspace{n: n, m: m}
	w.jac = make([]float64, m*n)
	w.nrm = make([]float64, n*n)
	w.dmp = make([]float64, n*n)
	w.grad = make([]float64, n)
	w.rhs = make([]float64, n)
	w.dx = make([]float64, n)
	w.xold = make([]float64, n)
	w.xt = make([]float64, n)
	w.ft = make([]float64, m)
	if wl := s.fcn.JacWorkLen(); wl > 0 {
		w.jacWork = make([]float64, wl)
	}
	return w
}

// Solve runs the iteration from the initial guess x. The result holds
// the best iterate found even when an error is returned, so a caller can
// accept a near-converged point after budget exhaustion.
func (s *Solver) Solve(x []float64, w *Workspace) (*solve.Result, error) {

	const op = "levenberg-marquardt"
	if len(x) != s.fcn.N {
		panic("initial x dimension not match spec")
	}
	if w == nil || w.n != s.fcn.N || w.m != s.fcn.M {
		panic("workspace dimension not match spec")
	}

	n, m := w.n, w.m
	loc := slices.Clone(x)
	fv := make([]float64, m)

	res := &solve.Result{X: loc, F: fv}
	b := &res.Behavior

	s.fcn.Eval(loc, fv)
	b.FuncEvals++
	cost := dot(fv, fv)

	var nerr error
	if maxAbs(fv) < s.stop.FcnTolerance {
		b.ConvergeOnFcn = true
	} else if nerr = s.normalEquations(loc, fv, w, b); nerr == nil {

		lambda := initDamping * math.Max(maxDiag(w.nrm, n), one)

		for {
			if b.FuncEvals >= s.stop.MaxEvals {
				nerr = &solve.Error{Kind: solve.ErrConvergence, Op: op,
					Err: errors.New("evaluation budget exhausted")}
				break
			}
			b.Iterations++

			accepted := false
			costT := cost
			for try := 0; try < maxRetries; try++ {
				if !s.dampedStep(w, lambda) {
					lambda *= ten
					continue
				}
				for i := 0; i < n; i++ {
					w.xt[i] = loc[i] + w.dx[i]
				}
				s.fcn.Eval(w.xt, w.ft)
				b.FuncEvals++
				if costT = dot(w.ft, w.ft); costT <= cost {
					accepted = true
					lambda = math.Max(lambda/ten, minDamping)
					break
				}
				lambda *= ten
			}
			if !accepted {
				// A rejected step at a stagnant gradient is the optimum,
				// not divergence.
				if maxAbs(w.grad) < s.stop.GradTolerance {
					b.ConvergeOnGradient = true
					break
				}
				nerr = &solve.Error{Kind: solve.ErrDivergent, Op: op,
					Err: errors.New("no acceptable step after bounded damping inflation")}
				break
			}

			copy(w.xold, loc)
			copy(loc, w.xt)
			copy(fv, w.ft)
			cost = costT

			if nerr = s.normalEquations(loc, fv, w, b); nerr != nil {
				break
			}

			if s.logger.Enabled(solve.LogIter) {
				s.logger.Status(b, norm2(w.dx), math.Sqrt(cost))
			}

			if solve.Converged(&s.stop, fv, w.xold, loc, w.grad, b) {
				break
			}
		}
	}

	res.OK = nerr == nil
	return res, nerr
}

// normalEquations refreshes the Jacobian at loc and rebuilds the normal
// matrix 𝐉ᵀ𝐉 and the gradient 𝐉ᵀ𝒇.
func (s *Solver) normalEquations(loc, fv []float64, w *Workspace, b *solve.Behavior) error {
	n, m := w.n, w.m
	evals, err := s.fcn.Jacobian(loc, fv, w.jac, w.jacWork)
	if err != nil {
		return err
	}
	b.JacEvals++
	b.FuncEvals += evals

	for i := range w.nrm {
		w.nrm[i] = zero
	}
	for i := range w.grad {
		w.grad[i] = zero
	}
	for k := 0; k < m; k++ {
		row := w.jac[k*n : (k+1)*n]
		for i := 0; i < n; i++ {
			w.grad[i] += row[i] * fv[k]
			ri := w.nrm[i*n : (i+1)*n]
			for j := i; j < n; j++ {
				ri[j] += row[i] * row[j]
			}
		}
	}
	// Mirror the upper triangle.
	for i := 1; i < n; i++ {
		for j := 0; j < i; j++ {
			w.nrm[i*n+j] = w.nrm[j*n+i]
		}
	}
	return nil
}

// dampedStep solves (𝐉ᵀ𝐉 + λ·𝚍𝚒𝚊𝚐(𝐉ᵀ𝐉))·𝚫𝐱 = -𝐉ᵀ𝒇 into w.dx,
// reporting whether the damped matrix was positive definite.
func (s *Solver) dampedStep(w *Workspace, lambda float64) bool {
	n := w.n
	copy(w.dmp, w.nrm)
	for i := 0; i < n; i++ {
		d := w.nrm[i*n+i]
		if d == zero {
			d = one
		}
		w.dmp[i*n+i] += lambda * d
	}
	if !w.chol.Factorize(mat.NewSymDense(n, w.dmp)) {
		return false
	}
	for i := 0; i < n; i++ {
		w.rhs[i] = -w.grad[i]
	}
	err := w.chol.SolveVecTo(mat.NewVecDense(n, w.dx), mat.NewVecDense(n, w.rhs))
	return err == nil
}

func dot(a, b []float64) (d float64) {
	if len(a) != len(b) {
		panic("bound check error")
	}
	for i, v := range a {
		d += v * b[i]
	}
	return
}

func norm2(v []float64) float64 { return math.Sqrt(dot(v, v)) }

func maxAbs(v []float64) (m float64) {
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return
}

func maxDiag(a []float64, n int) (m float64) {
	for i := 0; i < n; i++ {
		if d := a[i*n+i]; d > m {
			m = d
		}
	}
	return
}
