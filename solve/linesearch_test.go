// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBacktrackAccept(t *testing.T) {

	// phi(t) = 1 - 2t + 2t², phi(0) = 1, phi'(0) = -2, minimum at t = ½.
	phi := func(t float64) float64 { return 1 - 2*t + 2*t*t }
	ls := LineSearch{}.WithDefaults()

	// t = 1 gives no decrease, the first backtrack to ½ is sufficient.
	st, sf, evals, err := Backtrack(phi, 1, -2, &ls)
	require.NoError(t, err)
	require.Equal(t, 0.5, st)
	require.Equal(t, phi(0.5), sf)
	require.Equal(t, 2, evals)
}

func TestBacktrackFullStep(t *testing.T) {

	// A strongly decreasing phi accepts the unit step immediately.
	phi := func(t float64) float64 { return 1 - t }
	ls := LineSearch{}.WithDefaults()

	st, _, evals, err := Backtrack(phi, 1, -1, &ls)
	require.NoError(t, err)
	require.Equal(t, 1.0, st)
	require.Equal(t, 1, evals)
}

func TestBacktrackNotDescent(t *testing.T) {

	phi := func(t float64) float64 { return 1 + t }
	ls := LineSearch{}.WithDefaults()

	_, _, evals, err := Backtrack(phi, 1, 1, &ls)
	require.Equal(t, ErrInvalidOperation, KindOf(err))
	require.Zero(t, evals)
}

func TestBacktrackStall(t *testing.T) {

	// phi never decreases although the declared slope promises it should:
	// the search exhausts its budget and reports a stall with no usable trial.
	phi := func(t float64) float64 { return 1 }
	ls := LineSearch{MaxEvals: 5}.WithDefaults()

	st, sf, evals, err := Backtrack(phi, 1, -1, &ls)
	require.Equal(t, ErrSpurious, KindOf(err))
	require.Equal(t, 0.0, st)
	require.Equal(t, 1.0, sf)
	require.Equal(t, 5, evals)

	// A partial decrease short of the Armijo bound returns the best trial.
	phi = func(t float64) float64 { return 1 - 1e-6*t }
	st, sf, evals, err = Backtrack(phi, 1, -1, &ls)
	require.Equal(t, ErrSpurious, KindOf(err))
	require.Equal(t, 1.0, st)
	require.Less(t, sf, 1.0)
	require.Equal(t, 5, evals)
}
