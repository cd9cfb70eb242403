// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func aqueous() []Phase {
	return []Phase{
		{Name: "aqueous", Kind: Aqueous, Species: []Species{
			{Name: "H2O(l)", Elements: map[string]float64{"H": 2, "O": 1}},
			{Name: "H+", Elements: map[string]float64{"H": 1}, Charge: 1},
			{Name: "OH-", Elements: map[string]float64{"H": 1, "O": 1}, Charge: -1},
			{Name: "CO2(aq)", Elements: map[string]float64{"C": 1, "O": 2}},
		}},
		{Name: "gaseous", Kind: IdealGas, Species: []Species{
			{Name: "H2O(g)", Elements: map[string]float64{"H": 2, "O": 1}},
			{Name: "CO2(g)", Elements: map[string]float64{"C": 1, "O": 2}},
		}},
		{Name: "calcite", Kind: Pure, Species: []Species{
			{Name: "CaCO3(s)", Elements: map[string]float64{"Ca": 1, "C": 1, "O": 3}},
		}},
	}
}

func TestNewSystem(t *testing.T) {

	sys, err := NewSystem(aqueous()...)
	require.NoError(t, err)

	assert.Equal(t, 7, sys.NumSpecies())
	assert.Equal(t, 3, sys.NumPhases())
	assert.Equal(t, []string{"H", "O", "C", "Ca", Charge}, sys.ElementNames())
	assert.Equal(t, []string{"aqueous", "gaseous", "calcite"}, sys.PhaseNames())
	assert.Equal(t, "CO2(g)", sys.SpeciesNames()[5])

	assert.Equal(t, 3, sys.IndexSpecies("CO2(aq)"))
	assert.Equal(t, -1, sys.IndexSpecies("N2(g)"))
	assert.Equal(t, 3, sys.IndexElement("Ca"))
	assert.Equal(t, -1, sys.IndexElement("Na"))
	assert.Equal(t, 2, sys.IndexPhase("calcite"))
	assert.Equal(t, -1, sys.IndexPhase("liquid"))

	b, e := sys.PhaseRange(1)
	assert.Equal(t, 4, b)
	assert.Equal(t, 6, e)
	assert.Equal(t, 1, sys.PhaseOf(5))
	assert.Equal(t, 2, sys.PhaseOf(6))

	w := sys.FormulaMatrix()
	r, c := w.Dims()
	require.Equal(t, 5, r)
	require.Equal(t, 7, c)
	assert.Equal(t, []float64{0, 3, 1, 1, 0}, sys.Composition(6))
	assert.Equal(t, -1.0, w.At(sys.IndexElement(Charge), sys.IndexSpecies("OH-")))

	ph := sys.Phase(0)
	assert.Equal(t, Aqueous, ph.Kind)
	require.Len(t, ph.Species, 4)
	ph.Species[0].Elements["H"] = 100
	assert.Equal(t, 2.0, sys.Species(0).Elements["H"])
}

func TestAmounts(t *testing.T) {

	sys, err := NewSystem(aqueous()...)
	require.NoError(t, err)

	n := []float64{55, 1e-7, 1e-7, 0.1, 0.5, 0.2, 1}
	b := sys.ElementAmounts(n)

	var want mat.VecDense
	want.MulVec(sys.FormulaMatrix(), mat.NewVecDense(len(n), n))
	assert.InDeltaSlice(t, want.RawVector().Data, b, 1e-12)
	assert.InDelta(t, 0, b[sys.IndexElement(Charge)], 1e-20)
	assert.InDelta(t, 2*55+1e-7+1e-7+2*0.5, b[0], 1e-12)

	assert.InDeltaSlice(t, []float64{55.1000002, 0.7, 1}, sys.PhaseAmounts(n), 1e-12)
	assert.Panics(t, func() { sys.ElementAmounts(n[:3]) })
}

func TestUnchargedSystem(t *testing.T) {

	sys, err := NewSystem(Phase{Name: "gas", Kind: IdealGas, Species: []Species{
		{Name: "N2", Elements: map[string]float64{"N": 2}},
		{Name: "NO2", Elements: map[string]float64{"N": 1, "O": 2}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"N", "O"}, sys.ElementNames())
	assert.Equal(t, -1, sys.IndexElement(Charge))
}

func TestSystemErrors(t *testing.T) {

	h2 := Species{Name: "H2", Elements: map[string]float64{"H": 2}}
	h2o := Species{Name: "H2O", Elements: map[string]float64{"H": 2, "O": 1}}

	cases := []struct {
		name   string
		phases []Phase
		err    error
	}{
		{"empty system", nil, ErrEmptySystem},
		{"empty phase", []Phase{{Name: "gas", Kind: IdealGas}}, ErrEmptyPhase},
		{"duplicate species", []Phase{
			{Name: "gas", Kind: IdealGas, Species: []Species{h2}},
			{Name: "liquid", Kind: IdealSolution, Species: []Species{h2o, h2}},
		}, ErrDuplicateSpecies},
		{"duplicate phase", []Phase{
			{Name: "gas", Kind: IdealGas, Species: []Species{h2}},
			{Name: "gas", Kind: IdealGas, Species: []Species{h2o}},
		}, ErrDuplicatePhase},
		{"pure multiple", []Phase{{Name: "solid", Kind: Pure, Species: []Species{h2, h2o}}}, ErrPureMultiple},
		{"unnamed", []Phase{{Name: "gas", Kind: IdealGas, Species: []Species{{Elements: map[string]float64{"H": 2}}}}}, ErrInvalidSpecies},
		{"reserved", []Phase{{Name: "gas", Kind: IdealGas, Species: []Species{{Name: "X", Elements: map[string]float64{Charge: 1}}}}}, ErrInvalidSpecies},
		{"no element", []Phase{{Name: "gas", Kind: IdealGas, Species: []Species{{Name: "X"}}}}, ErrEmptySystem},
		{"kind", []Phase{{Name: "gas", Kind: Kind(9), Species: []Species{h2}}}, ErrInvalidSpecies},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewSystem(c.phases...)
			require.ErrorIs(t, err, c.err)
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Pure, IdealSolution, IdealGas, Aqueous} {
		got, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("regular")
	assert.False(t, ok)
}
