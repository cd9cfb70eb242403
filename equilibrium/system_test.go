// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"math"
	"testing"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/thermo"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// dimer is the gas A(g), B(g) of the single element X with B = 2X.
func dimer(t *testing.T, g0B float64) (*chem.System, thermo.Model) {
	sys, err := chem.NewSystem(chem.Phase{Name: "gas", Kind: chem.IdealGas, Species: []chem.Species{
		{Name: "A", Elements: map[string]float64{"X": 1}},
		{Name: "B", Elements: map[string]float64{"X": 2}},
	}})
	require.NoError(t, err)
	model, err := thermo.NewModel(sys, []thermo.Standard{{}, {G0: g0B}})
	require.NoError(t, err)
	return sys, model
}

// dimerAmounts is the minimizer of the dimer gas at 𝐓ᵣ and 𝐏ᵣ with 𝐧_A + 2𝐧_B = b.
//   - 𝐱_A = a𝐭, 𝐱_B = β𝐭² with a = 1, β = 𝐞^(-𝐆°_B/𝐑𝐓) and a𝐭 + β𝐭² = 1
//   - 𝐧ₜ = b/(𝐱_A + 2𝐱_B)
func dimerAmounts(g0B, b float64) []float64 {
	beta := math.Exp(-g0B / (thermo.R * thermo.Tr))
	t := (-1 + math.Sqrt(1+4*beta)) / (2 * beta)
	xa, xb := t, beta*t*t
	total := b / (xa + 2*xb)
	return []float64{total * xa, total * xb}
}

// reactive is the gas A2 + B ⇌ A2B, optionally with a liquid solution of A2B and B.
func reactive(t *testing.T, h0 float64, liquid bool) (*chem.System, thermo.Model) {
	phases := []chem.Phase{{Name: "gas", Kind: chem.IdealGas, Species: []chem.Species{
		{Name: "A2", Elements: map[string]float64{"A": 2}},
		{Name: "B", Elements: map[string]float64{"B": 1}},
		{Name: "A2B", Elements: map[string]float64{"A": 2, "B": 1}},
	}}}
	data := []thermo.Standard{{}, {}, {G0: -3000, H0: h0}}
	if liquid {
		phases = append(phases, chem.Phase{Name: "liquid", Kind: chem.IdealSolution, Species: []chem.Species{
			{Name: "A2B(l)", Elements: map[string]float64{"A": 2, "B": 1}},
			{Name: "B(l)", Elements: map[string]float64{"B": 1}},
		}})
		data = append(data,
			thermo.Standard{G0: -3500, H0: h0 - 5000, V0: 5e-5},
			thermo.Standard{G0: 500, H0: -4000, V0: 3e-5},
		)
	}
	sys, err := chem.NewSystem(phases...)
	require.NoError(t, err)
	model, err := thermo.NewModel(sys, data)
	require.NoError(t, err)
	return sys, model
}

// brine is one kilogram of water with 0.1 mol of sodium chloride.
func brine(t *testing.T) (*chem.System, thermo.Model, *Problem) {
	sys, err := chem.NewSystem(chem.Phase{Name: "aqueous", Kind: chem.Aqueous, Species: []chem.Species{
		{Name: "H2O(l)", Elements: map[string]float64{"H": 2, "O": 1}},
		{Name: "H+", Elements: map[string]float64{"H": 1}, Charge: 1},
		{Name: "OH-", Elements: map[string]float64{"H": 1, "O": 1}, Charge: -1},
		{Name: "Na+", Elements: map[string]float64{"Na": 1}, Charge: 1},
		{Name: "Cl-", Elements: map[string]float64{"Cl": 1}, Charge: -1},
	}})
	require.NoError(t, err)
	model, err := thermo.NewModel(sys, []thermo.Standard{
		{G0: -237141, H0: -285830, V0: 1.807e-5},
		{},
		{G0: -157262, H0: -230015, V0: -4.18e-6},
		{G0: -261881, H0: -240340, V0: -1.21e-6},
		{G0: -131290, H0: -167080, V0: 1.733e-5},
	}, thermo.WithDebyeHuckel())
	require.NoError(t, err)

	problem := NewProblem(sys)
	require.NoError(t, problem.Add("H2O(l)", 1/thermo.WaterMolarMass))
	require.NoError(t, problem.Add("Na+", 0.1))
	require.NoError(t, problem.Add("Cl-", 0.1))
	return sys, model, problem
}

// massBalance asserts [𝐖; 𝐂]𝐧 = [𝐛; 𝐜].
func massBalance(t *testing.T, problem *Problem, n []float64, tol float64) {
	t.Helper()
	a, b := problem.Constraints()
	var r mat.VecDense
	r.MulVec(a, mat.NewVecDense(len(n), n))
	for j, v := range b {
		require.InDelta(t, v, r.AtVec(j), tol, "constraint %d", j)
	}
}
