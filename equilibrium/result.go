// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"github.com/curioloop/equilibrium/optimum"
	"gonum.org/v1/gonum/mat"
)

// Method names the algorithm that produced a result.
type Method int

const (
	InteriorPoint Method = iota // Gibbs energy minimization by the interior-point method
	Simplex                     // Linear relaxation solved by the simplex method
)

func (m Method) String() string {
	switch m {
	case InteriorPoint:
		return "interior-point"
	case Simplex:
		return "simplex"
	}
	return "unknown"
}

// Sensitivity reports the outcome of the sensitivity computation.
type Sensitivity int

const (
	SensitivityNotRequested Sensitivity = iota // No derivative was requested
	SensitivityValid                           // Every requested derivative was computed
	SensitivitySingular                        // The KKT matrix is singular; failed derivatives are nil
	SensitivitySkipped                         // The solve did not converge
)

func (s Sensitivity) String() string {
	switch s {
	case SensitivityNotRequested:
		return "not-requested"
	case SensitivityValid:
		return "valid"
	case SensitivitySingular:
		return "singular"
	case SensitivitySkipped:
		return "skipped"
	}
	return "unknown"
}

// Statistics extends the optimizer statistics with equilibrium counters.
type Statistics struct {
	optimum.Statistics
	NumModelEvals int         // Number of thermodynamic model evaluations.
	Method        Method      // Algorithm that produced the amounts.
	Sensitivity   Sensitivity // Outcome of the sensitivity computation.
}

// Result is the outcome of an equilibrium calculation.
// It is owned by the caller and never modified by the solver afterwards.
type Result struct {
	N    []float64  // Species amounts in mol
	DnDT []float64  // ∂𝐧/∂𝐓 in mol/K, nil unless requested
	DnDP []float64  // ∂𝐧/∂𝐏 in mol/Pa, nil unless requested
	DnDB *mat.Dense // ∂𝐧/∂𝐛 as species × elements, nil unless requested

	Optimum optimum.Result // Raw optimizer result in scaled units
	Statistics
}
