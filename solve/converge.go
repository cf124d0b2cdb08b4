// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

// Converged applies the shared stopping tests in their fixed order,
// short-circuiting on the first that passes:
//
//  1. residual norm:    𝚖𝚊𝚡|𝒇ᵢ| < 𝚏𝚝𝚘𝚕
//  2. variable change:  𝚖𝚊𝚡|𝐱ₖ₊₁ - 𝐱ₖ| < 𝚡𝚝𝚘𝚕
//  3. gradient stagnation: 𝚖𝚊𝚡|𝐠ⱼ| < 𝚐𝚝𝚘𝚕
//
// The gradient test is skipped when g is nil (derivative-free solvers).
// On success exactly one converge flag is set on b. Every solver in this
// module runs this predicate once per iteration so the convergence
// semantics are identical across algorithms.
func Converged(c *Control, f, xOld, xNew, g []float64, b *Behavior) bool {
	switch {
	case maxAbs(f) < c.FcnTolerance:
		b.ConvergeOnFcn = true
	case maxAbsDiff(xNew, xOld) < c.VarTolerance:
		b.ConvergeOnChange = true
	case g != nil && maxAbs(g) < c.GradTolerance:
		b.ConvergeOnGradient = true
	default:
		return false
	}
	return true
}
