// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import "math"

const (
	zero = 0.0
	half = 0.5
	one  = 1.0
	two  = 2.0
)

var epsilon = math.Nextafter(1, 2) - 1

// Default stopping tolerances and budgets applied by New when the
// corresponding Control field is left at its zero value.
const (
	DefaultMaxEvals      = 100
	DefaultFcnTolerance  = 1.0e-8
	DefaultVarTolerance  = 1.0e-12
	DefaultGradTolerance = 1.0e-12
)

// Default line-search parameters applied when a LineSearch field is zero.
const (
	DefaultSearchEvals  = 20
	DefaultSearchAlpha  = 1.0e-4
	DefaultSearchFactor = 0.5
)
