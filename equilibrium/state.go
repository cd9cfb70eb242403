// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"fmt"
	"slices"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/thermo"
	"gonum.org/v1/gonum/floats"
)

// State is the equilibrium state carried between calls: temperature, pressure,
// species amounts and the multipliers of the last solve.
//
// A State is not safe for concurrent use.
type State struct {
	sys  *chem.System
	t, p float64
	n    []float64
	y    []float64 // multipliers of the equality constraints, scaled by 1/𝐑𝐓
	z    []float64 // multipliers of the bounds 𝐧 ≥ 0, scaled by 1/𝐑𝐓
	path *tangent
}

// tangent is the derivative of the solution along temperature and pressure,
// recorded at (t, p) by the last solve that computed sensitivities.
type tangent struct {
	t, p       float64
	dndt, dndp []float64
	dydt, dydp []float64
	dzdt, dzdp []float64
}

// NewState returns an empty state at 298.15 K and 10⁵ Pa.
func NewState(sys *chem.System) *State {
	return &State{
		sys: sys,
		t:   thermo.Tr,
		p:   thermo.Pr,
		n:   make([]float64, sys.NumSpecies()),
	}
}

// System returns the chemical system of the state.
func (s *State) System() *chem.System { return s.sys }

// Temperature returns the temperature in K.
func (s *State) Temperature() float64 { return s.t }

// Pressure returns the pressure in Pa.
func (s *State) Pressure() float64 { return s.p }

// Amounts returns a copy of the species amounts.
func (s *State) Amounts() []float64 { return slices.Clone(s.n) }

// Amount returns the amount of the named species.
func (s *State) Amount(species string) (float64, error) {
	i := s.sys.IndexSpecies(species)
	if i < 0 {
		return 0, fmt.Errorf("%w: species %q", ErrUnknownName, species)
	}
	return s.n[i], nil
}

// SetAmounts replaces the species amounts and drops the multipliers of the last solve.
func (s *State) SetAmounts(n []float64) error {
	if len(n) != len(s.n) {
		return fmt.Errorf("%w: %d amounts for %d species", ErrInvalidProblem, len(n), len(s.n))
	}
	if !finite(n) {
		return fmt.Errorf("%w: amounts must be finite", ErrInvalidProblem)
	}
	copy(s.n, n)
	s.forget()
	return nil
}

// SetAmount sets the amount of the named species and drops the multipliers of the last solve.
func (s *State) SetAmount(species string, amount float64) error {
	i := s.sys.IndexSpecies(species)
	if i < 0 {
		return fmt.Errorf("%w: species %q", ErrUnknownName, species)
	}
	if !finite([]float64{amount}) {
		return fmt.Errorf("%w: amount must be finite", ErrInvalidProblem)
	}
	s.n[i] = amount
	s.forget()
	return nil
}

// ElementAmounts returns 𝐖𝐧.
func (s *State) ElementAmounts() []float64 { return s.sys.ElementAmounts(s.n) }

// PhaseAmounts returns the total amount of every phase.
func (s *State) PhaseAmounts() []float64 { return s.sys.PhaseAmounts(s.n) }

// ElementPotentials returns the element chemical potentials 𝛌 = -𝐑𝐓𝐲 in J/mol,
// one per element, or nil when the state has not been solved.
func (s *State) ElementPotentials() []float64 {
	e := s.sys.NumElements()
	if len(s.y) < e {
		return nil
	}
	l := slices.Clone(s.y[:e])
	floats.Scale(-thermo.R*s.t, l)
	return l
}

// Empty reports whether every species amount is zero.
func (s *State) Empty() bool {
	return !slices.ContainsFunc(s.n, func(v float64) bool { return v != 0 })
}

// Reset zeroes the amounts and drops the multipliers.
func (s *State) Reset() {
	floats.Scale(0, s.n)
	s.forget()
}

func (s *State) forget() {
	s.y, s.z, s.path = nil, nil, nil
}
