package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)

// Jacobian estimates the derivatives of a vector function by the first order
// accuracy forward difference:
//
//	𝐉ᵢⱼ ≈ (𝒇ᵢ(𝐱 + 𝒉ⱼ𝐞ⱼ) - 𝒇ᵢ(𝐱)) / 𝒉ⱼ
//
// The per-column step is 𝒉ⱼ = 𝚜𝚒𝚐𝚗(𝐱ⱼ)·√𝜀·𝚖𝚊𝚡(1,|𝐱ⱼ|) unless RelStep is set.
// Each estimate costs n extra function evaluations, or n+1 when the base value
// 𝒇(𝐱) is not supplied by the caller.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type Jacobian struct {
	N, M int
	// Function of which to estimate the derivatives.
	// The argument x passed to this function is an n-vector.
	// The result is stored in an m-vector y.
	Object func(x, y []float64)
	// Relative step size used to compute the absolute step size as
	// h = RelStep * sign(x0) * abs(x0). Automatic selection when zero.
	RelStep float64
	// Whether to transpose the result: row-major m×n when false,
	// column-per-variable n×m when true.
	TransJac bool
	diffCtx
}

type diffCtx struct {
	f0, fx, step []float64
}

// WorkLen reports the scratch length Diff needs for the bound dimensions.
// No computation is performed. Callers supplying their own work slice can
// size it once and reuse it across calls.
func (ja *Jacobian) WorkLen() int {
	return 2*ja.M + ja.N
}

// Check validates the parameters and binds the scratch space.
// A nil work slice makes Diff allocate internally.
func (ja *Jacobian) Check(x0, diff, work []float64) (err error) {

	switch {
	case ja.N <= 0 || ja.M <= 0:
		err = errors.New("negative dimensions")
	case ja.Object == nil:
		err = errors.New("object function is required")
	case ja.N != len(x0):
		return errors.New("invalid x0 dimensions")
	case ja.N*ja.M != len(diff):
		return errors.New("invalid diff dimensions")
	case work != nil && len(work) < ja.WorkLen():
		return errors.New("insufficient work space")
	}
	if err != nil {
		return
	}

	n, m := ja.N, ja.M
	if work == nil {
		if len(ja.step) == n && len(ja.f0) == m {
			return
		}
		work = make([]float64, ja.WorkLen())
	}
	ja.f0 = work[:m]
	ja.fx = work[m : 2*m]
	ja.step = work[2*m : 2*m+n]
	return
}

// Diff calculates the forward-difference approximation of the Jacobian at x0.
// When f0 holds a previously computed 𝒇(𝐱₀) it is reused, saving one function
// evaluation. The content of x0 is perturbed during evaluation and restored
// before return.
func (ja *Jacobian) Diff(x0, f0, diff, work []float64) error {

	if err := ja.Check(x0, diff, work); err != nil {
		return err
	}
	if f0 != nil && len(f0) != ja.M {
		return errors.New("invalid f0 dimensions")
	}

	ja.absoluteStep(x0)

	base := ja.f0
	if f0 != nil {
		base = f0
	} else {
		ja.Object(x0, base)
	}

	fun, fx, h := ja.Object, ja.fx, ja.step
	n, m := ja.N, ja.M
	if len(h) != len(x0) || len(fx) != len(base) {
		panic("bound check error")
	}

	for i, s := range h {
		t := x0[i]
		x0[i] = t + s
		fun(x0, fx)
		d := 1.0 / s
		if !ja.TransJac {
			for j := range fx {
				diff[i+j*n] = (fx[j] - base[j]) * d
			}
		} else {
			c := diff[i*m : (i+1)*m]
			for j := range fx {
				c[j] = (fx[j] - base[j]) * d
			}
		}
		x0[i] = t
	}
	return nil
}

func (ja *Jacobian) absoluteStep(x0 []float64) {
	h := ja.step
	if len(h) != len(x0) {
		panic("bound check error")
	}

	rel := ja.RelStep
	if rel == 0 {
		for i, v := range x0 {
			h[i] = math.Copysign(sqrtEps, v) * math.Max(1.0, math.Abs(v))
		}
	} else {
		for i, v := range x0 {
			s := math.Copysign(rel, v) * math.Abs(v)
			if d := (v + s) - v; d == 0 {
				s = math.Copysign(sqrtEps, v) * math.Max(1.0, math.Abs(v))
			}
			h[i] = s
		}
	}
}
