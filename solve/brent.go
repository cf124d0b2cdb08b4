// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import "math"

// BrentProblem specifies a one-dimensional root finding problem on a
// bracketing interval for Brent's method.
type BrentProblem struct {
	Fcn    ScalarFunc // Scalar function 𝒇(𝐱) : ℝ → ℝ.
	Stop   Control    // Stop condition; GradTolerance is unused.
	Logger *Logger    // Optional status reporting.
}

// New validates the problem and creates a Brent solver.
func (p *BrentProblem) New() (*BrentSolver, error) {
	const op = "brent"
	if p.Fcn == nil {
		return nil, errKind(ErrInvalidOperation, op, "no function has been bound")
	}
	stop := p.Stop.WithDefaults()
	if err := stop.Validate(op); err != nil {
		return nil, err
	}
	if stop.VarTolerance < epsilon {
		return nil, errKind(ErrToleranceTooSmall, op,
			"variable tolerance is finer than machine precision allows")
	}
	return &BrentSolver{fcn: p.Fcn, stop: stop, logger: p.Logger}, nil
}

// BrentSolver finds a root of a scalar function by the classical
// bracketing hybrid of bisection, secant and inverse quadratic
// interpolation. Interpolation is taken when it produces a sufficiently
// large step inside the bracket, bisection otherwise; the bracket is
// contracted every iteration so the sign-change invariant always holds.
//
// The solver keeps three abscissae: b is the best approximation so far,
// a the previous one, and c an earlier point such that f(b) and f(c)
// have opposite signs with |f(b)| ≤ |f(c)|.
type BrentSolver struct {
	fcn    ScalarFunc
	stop   Control
	logger *Logger
}

// Solve searches [x1,x2] for a root. The interval must bracket a sign
// change or the call fails with an invalid-input error. On evaluation
// budget exhaustion the best abscissa found is still returned.
func (s *BrentSolver) Solve(x1, x2 float64) (*Result, error) {

	const op = "brent"
	b := &Behavior{}
	final := func(x, fx float64) *Result {
		return &Result{X: []float64{x}, F: []float64{fx}, Behavior: *b}
	}

	a, bb := x1, x2
	fa := s.fcn(a)
	fb := s.fcn(bb)
	b.FuncEvals += 2

	if fa == zero {
		b.ConvergeOnFcn = true
		r := final(a, fa)
		r.OK = true
		return r, nil
	}
	if fb == zero {
		b.ConvergeOnFcn = true
		r := final(bb, fb)
		r.OK = true
		return r, nil
	}
	if math.Signbit(fa) == math.Signbit(fb) {
		return final(bb, fb), errKind(ErrInvalidInput, op, "interval does not bracket a sign change")
	}

	c, fc := a, fa
	for {
		b.Iterations++

		// Keep b the best approximation: |f(b)| ≤ |f(c)|.
		if math.Abs(fc) < math.Abs(fb) {
			a, bb, c = bb, c, bb
			fa, fb, fc = fb, fc, fb
		}

		tolAct := two*epsilon*math.Abs(bb) + half*s.stop.VarTolerance
		newStep := half * (c - bb)

		if s.logger.Enabled(LogIter) {
			s.logger.Status(b, math.Abs(newStep), math.Abs(fb))
		}

		if math.Abs(fb) < s.stop.FcnTolerance {
			b.ConvergeOnFcn = true
			break
		}
		if math.Abs(newStep) <= tolAct {
			b.ConvergeOnChange = true
			break
		}
		if b.FuncEvals >= s.stop.MaxEvals {
			r := final(bb, fb)
			return r, errKind(ErrConvergence, op, "evaluation budget exhausted")
		}

		prevStep := bb - a
		if math.Abs(prevStep) >= tolAct && math.Abs(fa) > math.Abs(fb) {
			// Interpolate: secant when only two points are distinct,
			// inverse quadratic when all three are.
			var p, q float64
			cb := c - bb
			if a == c {
				t1 := fb / fa
				p = cb * t1
				q = one - t1
			} else {
				q = fa / fc
				t1 := fb / fc
				t2 := fb / fa
				p = t2 * (cb*q*(q-t1) - (bb-a)*(t1-one))
				q = (q - one) * (t1 - one) * (t2 - one)
			}
			if p > zero {
				q = -q
			} else {
				p = -p
			}
			// Accept only a step that stays well inside the bracket and
			// shrinks faster than the previous one.
			if p < 0.75*cb*q-half*math.Abs(tolAct*q) && p < math.Abs(half*prevStep*q) {
				newStep = p / q
			}
		}

		if math.Abs(newStep) < tolAct {
			newStep = math.Copysign(tolAct, newStep)
		}

		a, fa = bb, fb
		bb += newStep
		fb = s.fcn(bb)
		b.FuncEvals++
		if fb == zero {
			b.ConvergeOnFcn = true
			break
		}
		if math.Signbit(fb) == math.Signbit(fc) {
			// Restore the sign-change invariant between b and c.
			c, fc = a, fa
		}
	}

	r := final(bb, fb)
	r.OK = true
	return r, nil
}
