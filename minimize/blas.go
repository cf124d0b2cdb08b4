// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minimize

import "math"

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
