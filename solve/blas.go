// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import "math"

// Unit-stride BLAS-1 style helpers for the hot vector loops,
// where wrapping the slices in matrix types would allocate per iteration.

// ddot computes the dot product of two vectors.
func ddot(n int, dx, dy []float64) (dot float64) {
	if n > len(dx) || n > len(dy) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dot += dx[i] * dy[i]
	}
	return
}

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, da float64, dx, dy []float64) {
	if n > len(dx) || n > len(dy) {
		panic("bound check error")
	}
	for i := 0; i < n; i++ {
		dy[i] += da * dx[i]
	}
}

// dcopy copies vector dx into dy.
func dcopy(n int, dx, dy []float64) {
	if n > len(dx) || n > len(dy) {
		panic("bound check error")
	}
	copy(dy[:n], dx[:n])
}

// dnrm2 computes the euclidean norm of a vector.
func dnrm2(n int, dx []float64) float64 {
	return math.Sqrt(ddot(n, dx, dx))
}

// dgemv computes y = A·x, or y = Aᵀ·x when trans is set,
// for a row-major m×n matrix A.
func dgemv(m, n int, a []float64, trans bool, x, y []float64) {
	if m*n > len(a) {
		panic("bound check error")
	}
	if !trans {
		if n > len(x) || m > len(y) {
			panic("bound check error")
		}
		for i := 0; i < m; i++ {
			y[i] = ddot(n, a[i*n:(i+1)*n], x)
		}
	} else {
		if m > len(x) || n > len(y) {
			panic("bound check error")
		}
		for j := 0; j < n; j++ {
			y[j] = zero
		}
		for i := 0; i < m; i++ {
			daxpy(n, x[i], a[i*n:(i+1)*n], y)
		}
	}
}

// maxAbs computes the infinity norm 𝚖𝚊𝚡|𝐯ᵢ|.
func maxAbs(v []float64) (m float64) {
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return
}

// maxAbsDiff computes the infinity norm of the difference 𝚖𝚊𝚡|𝐚ᵢ - 𝐛ᵢ|.
func maxAbsDiff(a, b []float64) (m float64) {
	if len(a) != len(b) {
		panic("bound check error")
	}
	for i, x := range a {
		if d := math.Abs(x - b[i]); d > m {
			m = d
		}
	}
	return
}
