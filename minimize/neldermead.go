// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package minimize provides unconstrained minimization of a scalar
// objective: derivative-free Nelder–Mead simplex search and the
// gradient-based BFGS quasi-Newton method.
package minimize

import (
	"math"
	"slices"
	"sort"

	"github.com/pkg/errors"

	"github.com/curioloop/nonlin/solve"
)

const (
	zero = 0.0
	half = 0.5
	one  = 1.0
	two  = 2.0
)

// Objective evaluates a scalar objective 𝒇(𝐱) : ℝⁿ → ℝ.
type Objective func(x []float64) float64

// Simplex perturbation applied to each coordinate of the initial guess.
const (
	simplexScale = 0.05
	simplexZero  = 0.00025
)

// NelderMeadProblem specifies an unconstrained minimization problem for
// the derivative-free Nelder–Mead solver.
type NelderMeadProblem struct {
	N      int           // The problem dimension.
	Object Objective     // Objective function.
	Stop   solve.Control // Stop condition; only MaxEvals and FcnTolerance apply.
	Logger *solve.Logger // Optional status reporting.
}

// New validates the problem and creates a Nelder–Mead solver.
func (p *NelderMeadProblem) New() (*NelderMead, error) {
	const op = "nelder-mead"
	if p.Object == nil {
		return nil, &solve.Error{Kind: solve.ErrInvalidOperation, Op: op,
			Err: errors.New("no function has been bound")}
	}
	if p.N <= 0 {
		return nil, &solve.Error{Kind: solve.ErrInvalidInput, Op: op,
			Err: errors.New("problem dimension must be greater than 0")}
	}
	stop := p.Stop.WithDefaults()
	if err := stop.Validate(op); err != nil {
		return nil, err
	}
	return &NelderMead{n: p.N, obj: p.Object, stop: stop, logger: p.Logger}, nil
}

// NelderMead minimizes the objective by evolving an n+1 vertex simplex:
// every iteration reflects the worst vertex through the centroid of the
// others, expanding a reflection that became the new best, contracting a
// rejected one, and shrinking the whole simplex toward the best vertex
// when even the contraction fails. No gradient, Jacobian or line search
// is involved; convergence is declared when the function-value spread of
// the simplex falls below the function tolerance.
type NelderMead struct {
	n      int
	obj    Objective
	stop   solve.Control
	logger *solve.Logger
}

// Simplex is the workspace of the Nelder–Mead solver: n+1 vertices with
// their function values plus the centroid and trial buffers.
type Simplex struct {
	n    int
	vert []float64 // (n+1)×n row-major vertex storage
	fval []float64 // n+1
	ord  []int     // vertex order, ascending by value
	cent []float64
	xt   []float64
	xr   []float64
}

func (sx *Simplex) vertex(i int) []float64 {
	return sx.vert[i*sx.n : (i+1)*sx.n]
}

// Init allocates the workspace for the Nelder–Mead solver.
func (s *NelderMead) Init() *Simplex {
	n := s.n
	return &Simplex{
		n:    n,
		vert: make([]float64, (n+1)*n),
		fval: make([]float64, n+1),
		ord:  make([]int, n+1),
		cent: make([]float64, n),
		xt:   make([]float64, n),
		xr:   make([]float64, n),
	}
}

// Solve runs the simplex search from the initial guess x. The result
// holds the best vertex found even when an error is returned.
func (s *NelderMead) Solve(x []float64, sx *Simplex) (*solve.Result, error) {

	const op = "nelder-mead"
	if len(x) != s.n {
		panic("initial x dimension not match spec")
	}
	if sx == nil || sx.n != s.n {
		panic("workspace dimension not match spec")
	}

	n := s.n
	b := &solve.Behavior{}

	// Build the initial simplex by perturbing each coordinate in turn.
	for i := 0; i <= n; i++ {
		v := sx.vertex(i)
		copy(v, x)
		if i > 0 {
			if v[i-1] != zero {
				v[i-1] *= one + simplexScale
			} else {
				v[i-1] = simplexZero
			}
		}
		sx.fval[i] = s.obj(v)
		b.FuncEvals++
		sx.ord[i] = i
	}

	var nerr error
	for {
		sort.Slice(sx.ord, func(a, c int) bool {
			return sx.fval[sx.ord[a]] < sx.fval[sx.ord[c]]
		})
		best, worst := sx.ord[0], sx.ord[n]
		spread := sx.fval[worst] - sx.fval[best]

		if s.logger.Enabled(solve.LogIter) {
			s.logger.Status(b, spread, math.Abs(sx.fval[best]))
		}

		if spread < s.stop.FcnTolerance {
			b.ConvergeOnFcn = true
			break
		}
		if b.FuncEvals >= s.stop.MaxEvals {
			nerr = &solve.Error{Kind: solve.ErrConvergence, Op: op,
				Err: errors.New("evaluation budget exhausted")}
			break
		}
		b.Iterations++

		// Centroid of every vertex but the worst.
		for j := 0; j < n; j++ {
			sx.cent[j] = zero
		}
		for _, i := range sx.ord[:n] {
			v := sx.vertex(i)
			for j := 0; j < n; j++ {
				sx.cent[j] += v[j]
			}
		}
		for j := 0; j < n; j++ {
			sx.cent[j] /= float64(n)
		}

		wv := sx.vertex(worst)
		fr := s.move(sx, wv, one) // reflection
		b.FuncEvals++

		switch {
		case fr < sx.fval[best]:
			// The reflection is the new best, try going further.
			copy(sx.xr, sx.xt)
			fe := s.move(sx, wv, two) // expansion
			b.FuncEvals++
			if fe < fr {
				copy(wv, sx.xt)
				sx.fval[worst] = fe
			} else {
				copy(wv, sx.xr)
				sx.fval[worst] = fr
			}
		case fr < sx.fval[sx.ord[n-1]]:
			// Better than the second worst, keep the reflection.
			copy(wv, sx.xt)
			sx.fval[worst] = fr
		default:
			fc := s.move(sx, wv, -half) // contraction toward the centroid
			b.FuncEvals++
			if fc < sx.fval[worst] {
				copy(wv, sx.xt)
				sx.fval[worst] = fc
			} else {
				// Shrink the whole simplex toward the best vertex.
				bv := sx.vertex(best)
				for _, i := range sx.ord[1:] {
					v := sx.vertex(i)
					for j := 0; j < n; j++ {
						v[j] = bv[j] + half*(v[j]-bv[j])
					}
					sx.fval[i] = s.obj(v)
					b.FuncEvals++
				}
			}
		}
	}

	best := sx.ord[0]
	res := &solve.Result{
		OK:       nerr == nil,
		X:        slices.Clone(sx.vertex(best)),
		F:        []float64{sx.fval[best]},
		Behavior: *b,
	}
	return res, nerr
}

// move places the trial vertex 𝐱ₜ = 𝐜 + 𝜃·(𝐜 - 𝐰) into sx.xt and
// evaluates it: 𝜃 = 1 reflects the worst vertex w through the centroid,
// 𝜃 = 2 expands past it, 𝜃 = -½ contracts between w and the centroid.
func (s *NelderMead) move(sx *Simplex, wv []float64, theta float64) float64 {
	for j := 0; j < sx.n; j++ {
		sx.xt[j] = sx.cent[j] + theta*(sx.cent[j]-wv[j])
	}
	return s.obj(sx.xt)
}
