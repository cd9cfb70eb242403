// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/thermo"
	"gonum.org/v1/gonum/mat"
)

// Problem specifies an equilibrium calculation: temperature, pressure, element amounts
// and optional fixed species or phase amounts.
type Problem struct {
	sys  *chem.System
	t, p float64
	b    []float64
	fix  []constraint
}

// constraint fixes 𝐜ᵀ𝐧 = value.
type constraint struct {
	key   string
	row   []float64
	value float64
}

// NewProblem returns a problem at 298.15 K and 10⁵ Pa with zero element amounts.
func NewProblem(sys *chem.System) *Problem {
	return &Problem{
		sys: sys,
		t:   thermo.Tr,
		p:   thermo.Pr,
		b:   make([]float64, sys.NumElements()),
	}
}

// System returns the chemical system of the problem.
func (p *Problem) System() *chem.System { return p.sys }

// Clone returns an independent copy sharing only the system.
func (p *Problem) Clone() *Problem {
	q := *p
	q.b = slices.Clone(p.b)
	q.fix = slices.Clone(p.fix)
	return &q
}

// SetTemperature sets the temperature in K.
func (p *Problem) SetTemperature(T float64) { p.t = T }

// SetPressure sets the pressure in Pa.
func (p *Problem) SetPressure(P float64) { p.p = P }

// Temperature returns the temperature in K.
func (p *Problem) Temperature() float64 { return p.t }

// Pressure returns the pressure in Pa.
func (p *Problem) Pressure() float64 { return p.p }

// ElementAmounts returns a copy of the element amounts 𝐛.
func (p *Problem) ElementAmounts() []float64 { return slices.Clone(p.b) }

// SetElementAmounts replaces the element amounts.
// Amounts that no non-negative 𝐧 reproduces are accepted and reported by the solver as not converged.
func (p *Problem) SetElementAmounts(b []float64) error {
	if len(b) != p.sys.NumElements() {
		return fmt.Errorf("%w: %d element amounts for %d elements", ErrInvalidProblem, len(b), p.sys.NumElements())
	}
	if !finite(b) {
		return fmt.Errorf("%w: element amounts must be finite", ErrInvalidProblem)
	}
	copy(p.b, b)
	return nil
}

// SetElementAmount sets the amount of one element.
func (p *Problem) SetElementAmount(element string, amount float64) error {
	j := p.sys.IndexElement(element)
	if j < 0 {
		return fmt.Errorf("%w: element %q", ErrUnknownName, element)
	}
	if !finite([]float64{amount}) {
		return fmt.Errorf("%w: element amount must be finite", ErrInvalidProblem)
	}
	p.b[j] = amount
	return nil
}

// Add adds the elements of the given amount of a species to 𝐛.
func (p *Problem) Add(species string, amount float64) error {
	i := p.sys.IndexSpecies(species)
	if i < 0 {
		return fmt.Errorf("%w: species %q", ErrUnknownName, species)
	}
	if !finite([]float64{amount}) {
		return fmt.Errorf("%w: amount of %q must be finite", ErrInvalidProblem, species)
	}
	for j, w := range p.sys.Composition(i) {
		p.b[j] += w * amount
	}
	return nil
}

// SetSpeciesAmount fixes the amount of a species at equilibrium.
// Fixing the same species again replaces the previous value.
func (p *Problem) SetSpeciesAmount(species string, amount float64) error {
	i := p.sys.IndexSpecies(species)
	if i < 0 {
		return fmt.Errorf("%w: species %q", ErrUnknownName, species)
	}
	row := make([]float64, p.sys.NumSpecies())
	row[i] = 1
	return p.fixed("species:"+species, row, amount)
}

// SetPhaseAmount fixes the total amount of a phase at equilibrium.
// Fixing the same phase again replaces the previous value.
func (p *Problem) SetPhaseAmount(phase string, amount float64) error {
	k := p.sys.IndexPhase(phase)
	if k < 0 {
		return fmt.Errorf("%w: phase %q", ErrUnknownName, phase)
	}
	row := make([]float64, p.sys.NumSpecies())
	begin, end := p.sys.PhaseRange(k)
	for i := begin; i < end; i++ {
		row[i] = 1
	}
	return p.fixed("phase:"+phase, row, amount)
}

func (p *Problem) fixed(key string, row []float64, amount float64) error {
	if !finite([]float64{amount}) {
		return fmt.Errorf("%w: fixed amount must be finite", ErrInvalidProblem)
	}
	c := constraint{key: key, row: row, value: amount}
	if k := slices.IndexFunc(p.fix, func(c constraint) bool { return c.key == key }); k >= 0 {
		p.fix[k] = c
	} else {
		p.fix = append(p.fix, c)
	}
	return nil
}

// NumConstraints returns the number of equality constraints: one per element plus fixed amounts.
func (p *Problem) NumConstraints() int { return p.sys.NumElements() + len(p.fix) }

// Constraints returns [𝐖; 𝐂] and [𝐛; 𝐜].
func (p *Problem) Constraints() (*mat.Dense, []float64) {
	e, n := p.sys.NumElements(), p.sys.NumSpecies()
	a := mat.NewDense(e+len(p.fix), n, nil)
	a.Slice(0, e, 0, n).(*mat.Dense).Copy(p.sys.FormulaMatrix())
	rhs := make([]float64, 0, e+len(p.fix))
	rhs = append(rhs, p.b...)
	for k, c := range p.fix {
		a.SetRow(e+k, c.row)
		rhs = append(rhs, c.value)
	}
	return a, rhs
}

func (p *Problem) check() error {
	switch {
	case p.sys == nil:
		return fmt.Errorf("%w: problem has no system", ErrInvalidProblem)
	case !(p.t > 0) || math.IsInf(p.t, 0):
		return fmt.Errorf("%w: temperature %g K", ErrInvalidProblem, p.t)
	case !(p.p > 0) || math.IsInf(p.p, 0):
		return fmt.Errorf("%w: pressure %g Pa", ErrInvalidProblem, p.p)
	}
	return nil
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
