// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"github.com/curioloop/nonlin/numdiff"
)

// VectorFunc evaluates a vector function 𝒇(𝐱) : ℝⁿ → ℝᵐ.
// The result is written into the m-vector f.
type VectorFunc func(x, f []float64)

// JacobianFunc evaluates the analytic Jacobian 𝒇′(𝐱) : ℝⁿ → ℝᵐˣⁿ.
// The result is written into jac in row-major order: jac[i*n+j] = ∂𝒇ᵢ/∂𝐱ⱼ.
type JacobianFunc func(x, jac []float64)

// ScalarFunc evaluates a scalar function ℝ → ℝ, used by the Brent solver.
type ScalarFunc func(x float64) float64

// Fcn binds a user-supplied vector function with an optional analytic
// Jacobian. The dimensions n and m are fixed at binding time; the solvers
// hold a non-owning reference for the duration of one solve call.
//
// When Jac is nil the Jacobian is approximated by forward differences,
// costing n extra function evaluations per computation (or n+1 when no
// base function value is available for reuse).
type Fcn struct {
	N, M int
	Eval VectorFunc
	Jac  JacobianFunc
}

// Bound reports whether a function has been attached.
func (f *Fcn) Bound() bool {
	return f != nil && f.Eval != nil
}

func (f *Fcn) validate(op string) error {
	switch {
	case !f.Bound():
		return errKind(ErrInvalidOperation, op, "no function has been bound")
	case f.N <= 0 || f.M <= 0:
		return errKind(ErrInvalidInput, op, "function dimensions must be greater than 0")
	}
	return nil
}

// Evaluate computes fv = 𝒇(𝐱) through the bound function.
func (f *Fcn) Evaluate(x, fv []float64) error {
	const op = "fcn"
	if err := f.validate(op); err != nil {
		return err
	}
	if len(x) != f.N || len(fv) != f.M {
		return errKind(ErrArraySize, op, "x or f dimensions do not match the bound function")
	}
	f.Eval(x, fv)
	return nil
}

// JacWorkLen reports the scratch length Jacobian needs.
// No computation is performed, so a caller can preallocate once per solve
// rather than per iteration. Zero when an analytic Jacobian is bound.
func (f *Fcn) JacWorkLen() int {
	if f.Jac != nil {
		return 0
	}
	return (&numdiff.Jacobian{N: f.N, M: f.M}).WorkLen()
}

// Jacobian computes the m×n row-major Jacobian at x into jac.
// The analytic callback is used when bound; otherwise the forward-difference
// approximation is applied, reusing the base value fv when non-nil.
// The returned count is the number of function evaluations consumed.
// Scratch space of at least JacWorkLen() floats may be supplied through
// work; when work is nil the internal scratch is used instead.
func (f *Fcn) Jacobian(x, fv, jac, work []float64) (evals int, err error) {
	const op = "fcn"
	if err = f.validate(op); err != nil {
		return
	}
	switch {
	case len(x) != f.N || len(jac) != f.M*f.N:
		return 0, errKind(ErrArraySize, op, "x or jac dimensions do not match the bound function")
	case fv != nil && len(fv) != f.M:
		return 0, errKind(ErrArraySize, op, "f dimensions do not match the bound function")
	case work != nil && len(work) < f.JacWorkLen():
		return 0, errKind(ErrArraySize, op, "insufficient jacobian work space")
	}

	if f.Jac != nil {
		f.Jac(x, jac)
		return 0, nil
	}

	ja := numdiff.Jacobian{N: f.N, M: f.M, Object: f.Eval}
	if e := ja.Diff(x, fv, jac, work); e != nil {
		return 0, wrapKind(ErrInvalidInput, op, e, "forward difference jacobian")
	}
	evals = f.N
	if fv == nil {
		evals++
	}
	return
}
