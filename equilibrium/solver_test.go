// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"math"
	"testing"

	"github.com/curioloop/equilibrium/optimum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"
)

func TestDimerClosedForm(t *testing.T) {

	const g0B = -2000
	sys, model := dimer(t, g0B)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2}))

	opts := DefaultOptions()
	opts.Tolerance = 1e-10
	state := NewState(sys)
	res, err := NewSolver(model).SolveWith(problem, state, opts)
	require.NoError(t, err)

	require.True(t, res.Converged, "status %v", res.Status)
	assert.Equal(t, InteriorPoint, res.Method)
	assert.InDeltaSlice(t, dimerAmounts(g0B, 2), res.N, 1e-8)
	assert.InDelta(t, 2, res.N[0]+2*res.N[1], 1e-10)
	assert.Equal(t, res.NumEval, res.NumModelEvals)
	assert.Equal(t, SensitivityNotRequested, res.Sensitivity)
	assert.Nil(t, res.DnDT)
	assert.Nil(t, res.DnDP)
	assert.Nil(t, res.DnDB)

	assert.Equal(t, res.N, state.Amounts())
	assert.Equal(t, problem.Temperature(), state.Temperature())
	assert.Len(t, state.ElementPotentials(), 1)
}

func TestMassBalance(t *testing.T) {

	sys, model := reactive(t, -20000, true)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	problem.SetTemperature(400)
	problem.SetPressure(5e5)

	state := NewState(sys)
	res, err := NewSolver(model).Solve(problem, state)
	require.NoError(t, err)

	require.True(t, res.Converged, "status %v", res.Status)
	massBalance(t, problem, res.N, 1e-8)
	for i, v := range res.N {
		assert.GreaterOrEqual(t, v, -1e-8, "species %d", i)
	}
	assert.InDeltaSlice(t, []float64{2, 1.5}, state.ElementAmounts(), 1e-8)
}

func TestBrine(t *testing.T) {

	sys, model, problem := brine(t)
	opts := DefaultOptions()
	opts.Tolerance = 1e-10
	state := NewState(sys)
	res, err := NewSolver(model).SolveWith(problem, state, opts)
	require.NoError(t, err)

	require.True(t, res.Converged, "status %v", res.Status)
	massBalance(t, problem, res.N, 1e-8)

	h, err := state.Amount("H+")
	require.NoError(t, err)
	oh, err := state.Amount("OH-")
	require.NoError(t, err)
	assert.InDelta(t, h, oh, 1e-9)
	// √(𝐊𝐰·𝐚𝐰)/𝛄 with 𝛄 from the Debye-Hückel law at 𝐈 = 0.1
	assert.InDelta(t, 1.333e-7, h, 0.05e-7)
}

func TestIdempotentSolve(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))

	solver := NewSolver(model)
	state := NewState(sys)
	first, err := solver.Solve(problem, state)
	require.NoError(t, err)
	require.True(t, first.Converged)

	again, err := solver.Solve(problem, state)
	require.NoError(t, err)
	require.True(t, again.Converged)
	assert.LessOrEqual(t, again.NumIter, 2)
	assert.InDeltaSlice(t, first.N, again.N, 1e-8)
}

func TestResidualTail(t *testing.T) {

	sys, model := reactive(t, -20000, true)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))

	res, err := NewSolver(model).Solve(problem, NewState(sys))
	require.NoError(t, err)
	require.True(t, res.Converged)

	k := len(res.History)
	require.Equal(t, res.NumIter+1, k)
	require.GreaterOrEqual(t, k, 2)
	assert.LessOrEqual(t, res.History[k-1].Norm(), res.History[k-2].Norm())
}

func TestInfeasible(t *testing.T) {

	sys, model := dimer(t, -2000)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{-1}))

	opts := DefaultOptions()
	opts.MaxIterations = 50
	opts.Compute = Compute{DnDT: true, DnDP: true, DnDB: true}

	var res Result
	var err error
	require.NotPanics(t, func() {
		res, err = NewSolver(model).SolveWith(problem, NewState(sys), opts)
	})
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.NotEqual(t, optimum.Solved, res.Status)
	assert.Equal(t, SensitivitySkipped, res.Sensitivity)
	assert.Nil(t, res.DnDT)
	assert.Nil(t, res.Optimum.KKT)
}

// Finite differences of independent solves must agree with the sensitivities.
func TestDerivativeConsistency(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	b := []float64{2, 1.5}
	const T0, P0 = 350.0, 2e5

	solver := NewSolver(model)
	opts := DefaultOptions()
	opts.Tolerance = 1e-10

	solve := func(T, P float64, b []float64, c Compute) Result {
		problem := NewProblem(sys)
		require.NoError(t, problem.SetElementAmounts(b))
		problem.SetTemperature(T)
		problem.SetPressure(P)
		o := opts
		o.Compute = c
		res, err := solver.SolveWith(problem, NewState(sys), o)
		require.NoError(t, err)
		require.True(t, res.Converged, "status %v at T=%g P=%g", res.Status, T, P)
		return res
	}

	res := solve(T0, P0, b, Compute{DnDT: true, DnDP: true, DnDB: true})
	require.Equal(t, SensitivityValid, res.Sensitivity)
	require.Len(t, res.DnDT, 3)
	require.Len(t, res.DnDP, 3)
	require.NotNil(t, res.DnDB)

	check := func(want, got []float64, abs float64) {
		t.Helper()
		for i, w := range want {
			assert.InDelta(t, w, got[i], abs+1e-4*math.Abs(w), "species %d", i)
		}
	}
	central := func(hi, lo Result, h float64) []float64 {
		d := make([]float64, len(hi.N))
		for i := range d {
			d[i] = (hi.N[i] - lo.N[i]) / (2 * h)
		}
		return d
	}

	const dT = 0.01
	check(central(solve(T0+dT, P0, b, Compute{}), solve(T0-dT, P0, b, Compute{}), dT), res.DnDT, 1e-7)

	// first order agreement of a one-sided step
	step := solve(T0+1, P0, b, Compute{})
	for i := range step.N {
		assert.InDelta(t, step.N[i]-res.N[i], res.DnDT[i], 5e-2*math.Abs(res.DnDT[i])+1e-6, "species %d", i)
	}

	const dP = 100.0
	check(central(solve(T0, P0+dP, b, Compute{}), solve(T0, P0-dP, b, Compute{}), dP), res.DnDP, 1e-11)

	const db = 1e-4
	for j := range b {
		hi, lo := append([]float64(nil), b...), append([]float64(nil), b...)
		hi[j] += db
		lo[j] -= db
		check(central(solve(T0, P0, hi, Compute{}), solve(T0, P0, lo, Compute{}), db), mat.Col(nil, j, res.DnDB), 1e-5)
	}

	// derivatives preserve the element amounts: 𝐖∂𝐧/∂𝐓 = 0, 𝐖∂𝐧/∂𝐛 = 𝐈
	w := sys.FormulaMatrix()
	var v mat.VecDense
	v.MulVec(w, mat.NewVecDense(3, res.DnDT))
	assert.InDeltaSlice(t, []float64{0, 0}, v.RawVector().Data, 1e-10)
	var id mat.Dense
	id.Mul(w, res.DnDB)
	assert.True(t, mat.EqualApprox(&id, mat.NewDense(2, 2, []float64{1, 0, 0, 1}), 1e-10))
}

func TestComputeFlags(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	solver := NewSolver(model)

	opts := DefaultOptions()
	opts.Compute.DnDP = true
	res, err := solver.SolveWith(problem, NewState(sys), opts)
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, SensitivityValid, res.Sensitivity)
	assert.Nil(t, res.DnDT)
	assert.Len(t, res.DnDP, 3)
	assert.Nil(t, res.DnDB)

	opts.Compute = Compute{DnDB: true}
	res, err = solver.SolveWith(problem, NewState(sys), opts)
	require.NoError(t, err)
	assert.Nil(t, res.DnDT)
	assert.Nil(t, res.DnDP)
	r, c := res.DnDB.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
}

// Warm starts along a temperature path need fewer iterations than a single cold start.
func TestWarmPath(t *testing.T) {

	sys, model := reactive(t, -10, false)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	solver := NewSolver(model)

	opts := DefaultOptions()
	opts.Tolerance = 1e-6
	opts.Compute.DnDT = true

	setup := opts
	setup.Tolerance = 1e-10
	state := NewState(sys)
	problem.SetTemperature(298)
	res, err := solver.SolveWith(problem, state, setup)
	require.NoError(t, err)
	require.True(t, res.Converged)

	total := 0
	for T := 299; T <= 320; T++ {
		problem.SetTemperature(float64(T))
		res, err := solver.SolveWith(problem, state, opts)
		require.NoError(t, err)
		require.True(t, res.Converged, "status %v at %d K", res.Status, T)
		massBalance(t, problem, res.N, 1e-6)
		total += res.NumIter
	}

	cold, err := solver.SolveWith(problem, NewState(sys), opts)
	require.NoError(t, err)
	require.True(t, cold.Converged)
	assert.Less(t, total, cold.NumIter)
	assert.InDeltaSlice(t, cold.N, state.Amounts(), 1e-5)
}

func TestFixedAmounts(t *testing.T) {

	sys, model := reactive(t, -20000, true)
	solver := NewSolver(model)

	t.Run("species", func(t *testing.T) {
		problem := NewProblem(sys)
		require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
		require.NoError(t, problem.SetSpeciesAmount("A2B", 0.1))
		require.NoError(t, problem.SetSpeciesAmount("A2B", 0.3))
		require.Equal(t, 3, problem.NumConstraints())

		res, err := solver.Solve(problem, NewState(sys))
		require.NoError(t, err)
		require.True(t, res.Converged, "status %v", res.Status)
		assert.InDelta(t, 0.3, res.N[sys.IndexSpecies("A2B")], 1e-8)
		massBalance(t, problem, res.N, 1e-8)
	})

	t.Run("phase", func(t *testing.T) {
		problem := NewProblem(sys)
		require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
		require.NoError(t, problem.SetPhaseAmount("liquid", 0.4))

		state := NewState(sys)
		res, err := solver.Solve(problem, state)
		require.NoError(t, err)
		require.True(t, res.Converged, "status %v", res.Status)
		assert.InDelta(t, 0.4, state.PhaseAmounts()[sys.IndexPhase("liquid")], 1e-8)
	})

	t.Run("unknown", func(t *testing.T) {
		problem := NewProblem(sys)
		require.ErrorIs(t, problem.SetSpeciesAmount("C", 1), ErrUnknownName)
		require.ErrorIs(t, problem.SetPhaseAmount("solid", 1), ErrUnknownName)
		require.ErrorIs(t, problem.Add("C", 1), ErrUnknownName)
		require.ErrorIs(t, problem.SetElementAmount("C", 1), ErrUnknownName)
	})
}

func TestHessianModes(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2, 1.5}))
	solver := NewSolver(model)

	exact, err := solver.Solve(problem, NewState(sys))
	require.NoError(t, err)
	require.True(t, exact.Converged)

	opts := DefaultOptions()
	opts.Hessian = optimum.HessianDiagonal.String()
	diag, err := solver.SolveWith(problem, NewState(sys), opts)
	require.NoError(t, err)
	require.True(t, diag.Converged, "status %v", diag.Status)
	assert.InDeltaSlice(t, exact.N, diag.N, 1e-6)
}

func TestInvalidUse(t *testing.T) {

	sys, model := dimer(t, -2000)
	other, _ := dimer(t, -2000)
	solver := NewSolver(model)
	problem := NewProblem(sys)
	require.NoError(t, problem.SetElementAmounts([]float64{2}))

	_, err := solver.Solve(problem, NewState(other))
	require.ErrorIs(t, err, ErrInvalidProblem)
	_, err = solver.Solve(nil, NewState(sys))
	require.ErrorIs(t, err, ErrInvalidProblem)
	_, err = solver.Solve(problem, nil)
	require.ErrorIs(t, err, ErrInvalidProblem)
	_, err = NewSolver(nil).Solve(problem, NewState(sys))
	require.ErrorIs(t, err, ErrInvalidProblem)

	problem.SetTemperature(0)
	_, err = solver.Solve(problem, NewState(sys))
	require.ErrorIs(t, err, ErrInvalidProblem)
	_, err = solver.Approximate(problem, NewState(sys))
	require.ErrorIs(t, err, ErrInvalidProblem)
	problem.SetTemperature(300)
	problem.SetPressure(-1)
	_, err = solver.Solve(problem, NewState(sys))
	require.ErrorIs(t, err, ErrInvalidProblem)
	problem.SetPressure(1e5)

	for _, mutate := range []func(*Options){
		func(o *Options) { o.Hessian = "newton" },
		func(o *Options) { o.MaxIterations = 0 },
		func(o *Options) { o.Tolerance = -1 },
		func(o *Options) { o.Fraction = 1 },
		func(o *Options) { o.InitialBarrierParameter = 0 },
		func(o *Options) { o.Epsilon = math.NaN() },
	} {
		opts := DefaultOptions()
		mutate(&opts)
		_, err = solver.SolveWith(problem, NewState(sys), opts)
		require.ErrorIs(t, err, ErrInvalidProblem)
	}

	require.ErrorIs(t, problem.SetElementAmounts([]float64{1, 2}), ErrInvalidProblem)
	require.ErrorIs(t, problem.SetElementAmounts([]float64{math.Inf(1)}), ErrInvalidProblem)
}

// Independent states may be solved concurrently with one solver.
func TestConcurrentStates(t *testing.T) {

	sys, model := reactive(t, -20000, false)
	solver := NewSolver(model)
	pressures := []float64{1e5, 2e5, 5e5, 1e6}

	solve := func(P float64) ([]float64, error) {
		problem := NewProblem(sys)
		if err := problem.SetElementAmounts([]float64{2, 1.5}); err != nil {
			return nil, err
		}
		problem.SetPressure(P)
		res, err := solver.Solve(problem, NewState(sys))
		return res.N, err
	}

	got := make([][]float64, len(pressures))
	var g errgroup.Group
	for i, P := range pressures {
		g.Go(func() (err error) {
			got[i], err = solve(P)
			return
		})
	}
	require.NoError(t, g.Wait())

	for i, P := range pressures {
		want, err := solve(P)
		require.NoError(t, err)
		assert.Equal(t, want, got[i])
	}
	// higher pressure favours the side with fewer moles
	assert.Greater(t, got[3][2], got[0][2])
}
