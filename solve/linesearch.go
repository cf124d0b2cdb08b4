// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

// Backtrack selects a step length t along a descent direction by the
// backtracking Armijo rule. phi evaluates the objective at step t along
// the direction, f0 is phi(0) and slope the directional derivative
// ∇𝒇ᵀ𝐩 at t = 0, which must be negative.
//
// The search starts from t = 1 and accepts the first step satisfying the
// sufficient decrease condition phi(t) ≤ f0 + 𝛼·t·slope, multiplying t
// by the shrink factor on every rejection. When the trial budget runs out
// the best trial found is returned together with an ErrSpurious error;
// the calling solver decides whether to accept it or abort.
//
// The returned evals count is the number of phi evaluations performed.
func Backtrack(phi func(t float64) float64, f0, slope float64, ls *LineSearch) (t, ft float64, evals int, err error) {

	const op = "line search"
	if slope >= zero {
		// A search along a non-descent direction cannot decrease phi.
		return zero, f0, 0, errKind(ErrInvalidOperation, op, "positive directional derivative")
	}

	t = one
	bestT, bestF := zero, f0
	for evals < ls.MaxEvals {
		ft = phi(t)
		evals++
		if ft <= f0+ls.Alpha*t*slope {
			return
		}
		if ft < bestF {
			bestT, bestF = t, ft
		}
		t *= ls.Factor
	}

	t, ft = bestT, bestF
	if bestT == zero {
		err = errKind(ErrSpurious, op, "no trial step decreased the objective")
	} else {
		err = errKind(ErrSpurious, op, "sufficient decrease not reached within trial budget")
	}
	return
}
