// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"testing"

	"github.com/curioloop/equilibrium/optimum"
	"github.com/curioloop/equilibrium/thermo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproximate(t *testing.T) {

	sys, model := reactive(t, -20000, true)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	problem.SetTemperature(320)
	solver := NewSolver(model)

	state := NewState(sys)
	res, err := solver.Approximate(problem, state)
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, Simplex, res.Method)
	assert.Equal(t, optimum.Solved, res.Status)
	assert.Equal(t, 1, res.NumModelEvals)
	massBalance(t, problem, res.N, 1e-8)
	for _, v := range res.N {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	assert.Equal(t, res.N, state.Amounts())
	assert.Equal(t, 320.0, state.Temperature())
	assert.Nil(t, state.ElementPotentials())

	refined, err := solver.Solve(problem, state)
	require.NoError(t, err)
	require.True(t, refined.Converged, "status %v", refined.Status)
	massBalance(t, problem, refined.N, 1e-8)
}

func TestApproximateFailure(t *testing.T) {

	sys, model := dimer(t, -2000)
	solver := NewSolver(model)

	t.Run("infeasible", func(t *testing.T) {
		problem := NewProblem(sys)
		require.NoError(t, problem.SetElementAmounts([]float64{-1}))
		state := NewState(sys)
		require.NoError(t, state.SetAmounts([]float64{0.5, 0.25}))

		res, err := solver.Approximate(problem, state)
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.Equal(t, optimum.StepFailure, res.Status)
		assert.Nil(t, res.N)
		assert.Equal(t, []float64{0.5, 0.25}, state.Amounts())
	})

	t.Run("inconsistent", func(t *testing.T) {
		problem := NewProblem(sys)
		require.NoError(t, problem.SetElementAmounts([]float64{2}))
		require.NoError(t, problem.SetSpeciesAmount("A", 1))
		require.NoError(t, problem.SetSpeciesAmount("B", 0.7))

		state := NewState(sys)
		var res Result
		var err error
		require.NotPanics(t, func() {
			res, err = solver.Approximate(problem, state)
		})
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.True(t, state.Empty())
	})
}

func TestApproximateRedundant(t *testing.T) {

	// the three rows have rank two and agree with each other
	sys, model := dimer(t, -2000)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2}))
	require.NoError(t, problem.SetSpeciesAmount("A", 1))
	require.NoError(t, problem.SetSpeciesAmount("B", 0.5))

	res, err := NewSolver(model).Approximate(problem, NewState(sys))
	require.NoError(t, err)
	require.True(t, res.Converged, "status %v", res.Status)
	assert.InDeltaSlice(t, []float64{1, 0.5}, res.N, 1e-10)
}

func TestApproximateBrine(t *testing.T) {

	// the charge row is a combination of the element rows
	sys, model, problem := brine(t)
	solver := NewSolver(model)

	state := NewState(sys)
	res, err := solver.Approximate(problem, state)
	require.NoError(t, err)
	require.True(t, res.Converged, "status %v", res.Status)
	massBalance(t, problem, res.N, 1e-8)
	for i, v := range res.N {
		assert.Greater(t, v, 0.0, "species %d", i)
	}
	water, err := state.Amount("H2O(l)")
	require.NoError(t, err)
	assert.InDelta(t, 1/thermo.WaterMolarMass, water, 1e-6)

	opts := DefaultOptions()
	opts.Tolerance = 1e-10
	refined, err := solver.SolveWith(problem, state, opts)
	require.NoError(t, err)
	require.True(t, refined.Converged, "status %v", refined.Status)
	h, err := state.Amount("H+")
	require.NoError(t, err)
	assert.InDelta(t, 1.333e-7, h, 0.05e-7)
}

func TestApproximateSeed(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	solver := NewSolver(model)

	cold, err := solver.Solve(problem, NewState(sys))
	require.NoError(t, err)
	require.True(t, cold.Converged, "status %v", cold.Status)

	state := NewState(sys)
	approx, err := solver.Approximate(problem, state)
	require.NoError(t, err)
	require.True(t, approx.Converged)
	massBalance(t, problem, approx.N, 1e-8)
	// every species is seeded well inside the interior
	for i, v := range approx.N {
		assert.Greater(t, v, 1e-3, "species %d", i)
	}

	seeded, err := solver.Solve(problem, state)
	require.NoError(t, err)
	require.True(t, seeded.Converged, "status %v", seeded.Status)
	assert.LessOrEqual(t, seeded.NumIter, cold.NumIter)
	assert.InDeltaSlice(t, cold.N, seeded.N, 1e-6)
}

func TestProblemClone(t *testing.T) {
	sys, _ := reactive(t, 0, true)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1}))
	require.NoError(t, problem.SetPhaseAmount("liquid", 0.5))

	clone := problem.Clone()
	clone.SetTemperature(400)
	require.NoError(t, clone.SetElementAmount("A", 3))
	require.NoError(t, clone.SetPhaseAmount("liquid", 0.1))
	require.NoError(t, clone.SetSpeciesAmount("B", 0.2))

	assert.Equal(t, 298.15, problem.Temperature())
	assert.Equal(t, []float64{2, 1}, problem.ElementAmounts())
	assert.Equal(t, 3, problem.NumConstraints())
	_, rhs := problem.Constraints()
	assert.Equal(t, []float64{2, 1, 0.5}, rhs)
	assert.Equal(t, 4, clone.NumConstraints())
	assert.Same(t, sys, clone.System())
}
