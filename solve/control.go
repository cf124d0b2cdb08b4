// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"fmt"
	"io"
	"os"
)

// Control specifies the stopping criteria shared by every solver.
// Zero-valued fields are replaced with the package defaults by New.
type Control struct {
	// The solve stops with a convergence failure when the total number
	// of function evaluations exceeds this limit.
	MaxEvals int
	// The iteration will stop when 𝚖𝚊𝚡|𝒇ᵢ| < 𝚏𝚝𝚘𝚕
	FcnTolerance float64
	// The iteration will stop when 𝚖𝚊𝚡|𝐱ₖ₊₁ - 𝐱ₖ| < 𝚡𝚝𝚘𝚕
	VarTolerance float64
	// The iteration will stop when 𝚖𝚊𝚡|∇(½‖𝒇‖²)ⱼ| < 𝚐𝚝𝚘𝚕
	// Only consulted by the gradient-using solvers.
	GradTolerance float64
}

func (c Control) WithDefaults() Control {
	if c.MaxEvals == 0 {
		c.MaxEvals = DefaultMaxEvals
	}
	if c.FcnTolerance == 0 {
		c.FcnTolerance = DefaultFcnTolerance
	}
	if c.VarTolerance == 0 {
		c.VarTolerance = DefaultVarTolerance
	}
	if c.GradTolerance == 0 {
		c.GradTolerance = DefaultGradTolerance
	}
	return c
}

func (c Control) Validate(op string) error {
	switch {
	case c.MaxEvals <= 0:
		return errKind(ErrInvalidInput, op, "max evaluations must be greater than 0")
	case c.FcnTolerance < zero:
		return errKind(ErrInvalidInput, op, "function tolerance must not be less than 0")
	case c.VarTolerance < zero:
		return errKind(ErrInvalidInput, op, "variable tolerance must not be less than 0")
	case c.GradTolerance < zero:
		return errKind(ErrInvalidInput, op, "gradient tolerance must not be less than 0")
	}
	return nil
}

// LineSearch specifies the options for the backtracking line search.
// Zero-valued fields are replaced with the package defaults by New.
type LineSearch struct {
	// The search gives up after this many trial evaluations.
	MaxEvals int
	// Sufficient decrease (Armijo) factor: a step t is accepted when
	// 𝒇(𝐱+t𝐩) ≤ 𝒇(𝐱) + 𝛼·t·∇𝒇ᵀ𝐩
	Alpha float64
	// Multiplicative shrink applied to t on every rejected trial.
	Factor float64
	// Disable skips the search entirely and takes the full step t = 1.
	// Kept as an escape hatch for poorly scaled problems where
	// backtracking does not improve robustness.
	Disable bool
}

func (ls LineSearch) WithDefaults() LineSearch {
	if ls.MaxEvals == 0 {
		ls.MaxEvals = DefaultSearchEvals
	}
	if ls.Alpha == 0 {
		ls.Alpha = DefaultSearchAlpha
	}
	if ls.Factor == 0 {
		ls.Factor = DefaultSearchFactor
	}
	return ls
}

func (ls LineSearch) Validate(op string) error {
	switch {
	case ls.MaxEvals <= 0:
		return errKind(ErrInvalidInput, op, "line search evaluations must be greater than 0")
	case ls.Alpha <= zero || ls.Alpha >= one:
		return errKind(ErrInvalidInput, op, "line search alpha must be in (0,1)")
	case ls.Factor <= zero || ls.Factor >= one:
		return errKind(ErrInvalidInput, op, "line search factor must be in (0,1)")
	}
	return nil
}

// Behavior accumulates the per-solve counters and records which stopping
// test ended the iteration. It is created fresh by every Solve call and
// returned inside the Result; at most one converge flag is set, and none
// are set when the solve failed.
type Behavior struct {
	Iterations int
	FuncEvals  int
	JacEvals   int
	// ConvergeOnFcn the residual norm test 𝚖𝚊𝚡|𝒇ᵢ| < 𝚏𝚝𝚘𝚕 passed.
	ConvergeOnFcn bool
	// ConvergeOnChange the variable change test 𝚖𝚊𝚡|𝚫𝐱ⱼ| < 𝚡𝚝𝚘𝚕 passed.
	ConvergeOnChange bool
	// ConvergeOnGradient the gradient stagnation test 𝚖𝚊𝚡|𝐠ⱼ| < 𝚐𝚝𝚘𝚕 passed.
	ConvergeOnGradient bool
}

// Result contains the final state of a solve.
// X and F are populated even when Solve also returns an error, so a
// caller can accept the best iterate of a non-converged run.
type Result struct {
	OK       bool      // Whether the solve converged.
	X        []float64 // Final point.
	F        []float64 // Final residual or function value.
	Behavior           // Iteration summary.
}

// LogLevel controls the frequency of logger output.
type LogLevel int

const (
	// LogNoop no output is generated.
	LogNoop LogLevel = 0
	// LogIter print one status line per iteration.
	LogIter LogLevel = 1
)

// Logger handles the optional per-iteration status reporting.
// Output is purely observational and never affects control flow.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
}

// Enabled reports whether messages at the given level are emitted.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && l.Level >= level && level > LogNoop
}

// Logf writes a formatted status message.
func (l *Logger) Logf(format string, a ...any) {
	w := l.Msg
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintf(w, format, a...)
}

// Status emits the standard per-iteration line: iteration index,
// evaluation counts, step norm and residual norm.
func (l *Logger) Status(b *Behavior, dxNorm, fNorm float64) {
	if l.Enabled(LogIter) {
		l.Logf("At iterate %5d  evals %5d  jac %3d  |dx|= %12.5e  |f|= %12.5e\n",
			b.Iterations, b.FuncEvals, b.JacEvals, dxNorm, fNorm)
	}
}
