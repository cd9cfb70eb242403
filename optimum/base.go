// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

const (
	zero = 0.0
	one  = 1.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

// Status is the final task status of an interior-point solve.
type Status int

const (
	// Running the solve has not terminated yet.
	Running Status = iota
	// Solved all residuals fell below their tolerances.
	Solved
	// ExceedMaxIter more than max iterations without meeting the tolerances.
	ExceedMaxIter
	// EvalFailure the evaluation panicked or produced non-finite values.
	EvalFailure
	// StepFailure the Newton direction could not be computed or the step length vanished.
	StepFailure
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Solved:
		return "solved"
	case ExceedMaxIter:
		return "exceed-max-iterations"
	case EvalFailure:
		return "evaluation-failure"
	case StepFailure:
		return "step-failure"
	}
	return "unknown"
}

// HessianMode selects the second-order information used in the KKT matrix.
type HessianMode int

const (
	// HessianExact uses the Hessian filled by the evaluation.
	HessianExact HessianMode = iota
	// HessianDiagonal keeps only the diagonal of the evaluated Hessian.
	HessianDiagonal
	// HessianBFGS ignores second derivatives and maintains a damped BFGS approximation.
	HessianBFGS
)

func (m HessianMode) String() string {
	switch m {
	case HessianExact:
		return "exact"
	case HessianDiagonal:
		return "diagonal"
	case HessianBFGS:
		return "bfgs"
	}
	return "unknown"
}

// ParseHessianMode maps "exact", "diagonal" or "bfgs" to a HessianMode.
func ParseHessianMode(s string) (HessianMode, bool) {
	for _, m := range []HessianMode{HessianExact, HessianDiagonal, HessianBFGS} {
		if m.String() == s {
			return m, true
		}
	}
	return HessianExact, false
}
