// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chem

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Charge is the name of the element row carrying electric charge.
const Charge = "Z"

// Kind selects how the activity of a species depends on the phase composition.
type Kind int

const (
	// Pure phase of a single species with unit activity.
	Pure Kind = iota
	// IdealSolution with activities equal to mole fractions.
	IdealSolution
	// IdealGas with activities equal to partial pressures over the reference pressure.
	IdealGas
	// Aqueous solution whose first species is the solvent water.
	Aqueous
)

var kindNames = [...]string{"pure", "ideal-solution", "ideal-gas", "aqueous"}

func (k Kind) String() string {
	if k >= Pure && k <= Aqueous {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return Pure, false
}

// Species is a chemical entity with its elemental composition.
type Species struct {
	Name     string
	Elements map[string]float64 // Stoichiometric coefficient per element
	Charge   float64            // Electric charge in elementary units
}

// Phase groups species sharing an activity model.
type Phase struct {
	Name    string
	Kind    Kind
	Species []Species
}

// System is the registry of elements, species and phases.
type System struct {
	species  []Species
	phases   []Phase
	elements []string
	phaseOf  []int
	begin    []int // first species of each phase, with a trailing sentinel
	w        *mat.Dense

	speciesIdx map[string]int
	elementIdx map[string]int
	phaseIdx   map[string]int
}

// NewSystem builds a system from its phases.
// Species keep the phase order, elements are ordered by first appearance
// and the charge element is appended last when any species is charged.
func NewSystem(phases ...Phase) (*System, error) {
	if len(phases) == 0 {
		return nil, ErrEmptySystem
	}

	s := &System{
		speciesIdx: make(map[string]int),
		elementIdx: make(map[string]int),
		phaseIdx:   make(map[string]int),
	}
	charged := false

	for p, ph := range phases {
		switch {
		case len(ph.Species) == 0:
			return nil, fmt.Errorf("%w: %q", ErrEmptyPhase, ph.Name)
		case ph.Kind == Pure && len(ph.Species) > 1:
			return nil, fmt.Errorf("%w: %q has %d species", ErrPureMultiple, ph.Name, len(ph.Species))
		case ph.Kind < Pure || ph.Kind > Aqueous:
			return nil, fmt.Errorf("%w: phase %q has unknown kind %v", ErrInvalidSpecies, ph.Name, ph.Kind)
		}
		if _, ok := s.phaseIdx[ph.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePhase, ph.Name)
		}
		s.phaseIdx[ph.Name] = p
		s.begin = append(s.begin, len(s.species))

		for _, sp := range ph.Species {
			if sp.Name == "" {
				return nil, fmt.Errorf("%w: unnamed species in phase %q", ErrInvalidSpecies, ph.Name)
			}
			if _, ok := s.speciesIdx[sp.Name]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateSpecies, sp.Name)
			}
			if !finite(sp.Charge) {
				return nil, fmt.Errorf("%w: %q has non-finite charge", ErrInvalidSpecies, sp.Name)
			}
			for _, e := range slices.Sorted(maps.Keys(sp.Elements)) {
				if e == Charge || e == "" {
					return nil, fmt.Errorf("%w: %q uses reserved element name %q", ErrInvalidSpecies, sp.Name, e)
				}
				if !finite(sp.Elements[e]) {
					return nil, fmt.Errorf("%w: %q has non-finite coefficient of %s", ErrInvalidSpecies, sp.Name, e)
				}
				if _, ok := s.elementIdx[e]; !ok {
					s.elementIdx[e] = len(s.elements)
					s.elements = append(s.elements, e)
				}
			}
			charged = charged || sp.Charge != 0
			s.speciesIdx[sp.Name] = len(s.species)
			s.species = append(s.species, cloneSpecies(sp))
			s.phaseOf = append(s.phaseOf, p)
		}
		s.phases = append(s.phases, Phase{Name: ph.Name, Kind: ph.Kind})
	}
	s.begin = append(s.begin, len(s.species))

	if charged {
		s.elementIdx[Charge] = len(s.elements)
		s.elements = append(s.elements, Charge)
	}
	if len(s.elements) == 0 {
		return nil, fmt.Errorf("%w: no element", ErrEmptySystem)
	}

	s.w = mat.NewDense(len(s.elements), len(s.species), nil)
	for i, sp := range s.species {
		for e, c := range sp.Elements {
			s.w.Set(s.elementIdx[e], i, c)
		}
		if charged {
			s.w.Set(s.elementIdx[Charge], i, sp.Charge)
		}
	}
	for p := range s.phases {
		s.phases[p].Species = s.species[s.begin[p]:s.begin[p+1]:s.begin[p+1]]
	}
	return s, nil
}

func cloneSpecies(sp Species) Species {
	sp.Elements = maps.Clone(sp.Elements)
	return sp
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NumSpecies returns the number of species.
func (s *System) NumSpecies() int { return len(s.species) }

// NumElements returns the number of elements, charge included.
func (s *System) NumElements() int { return len(s.elements) }

// NumPhases returns the number of phases.
func (s *System) NumPhases() int { return len(s.phases) }

// Species returns the i-th species.
func (s *System) Species(i int) Species { return cloneSpecies(s.species[i]) }

// Phase returns the p-th phase.
func (s *System) Phase(p int) Phase {
	ph := s.phases[p]
	ph.Species = slices.Clone(ph.Species)
	for i := range ph.Species {
		ph.Species[i] = cloneSpecies(ph.Species[i])
	}
	return ph
}

// Element returns the name of the j-th element.
func (s *System) Element(j int) string { return s.elements[j] }

// SpeciesNames returns the species names in registry order.
func (s *System) SpeciesNames() []string {
	names := make([]string, len(s.species))
	for i, sp := range s.species {
		names[i] = sp.Name
	}
	return names
}

// ElementNames returns the element names in registry order.
func (s *System) ElementNames() []string { return slices.Clone(s.elements) }

// PhaseNames returns the phase names in registry order.
func (s *System) PhaseNames() []string {
	names := make([]string, len(s.phases))
	for p, ph := range s.phases {
		names[p] = ph.Name
	}
	return names
}

// IndexSpecies returns the index of the named species, or -1.
func (s *System) IndexSpecies(name string) int { return index(s.speciesIdx, name) }

// IndexElement returns the index of the named element, or -1.
func (s *System) IndexElement(name string) int { return index(s.elementIdx, name) }

// IndexPhase returns the index of the named phase, or -1.
func (s *System) IndexPhase(name string) int { return index(s.phaseIdx, name) }

func index(m map[string]int, name string) int {
	if i, ok := m[name]; ok {
		return i
	}
	return -1
}

// PhaseRange returns the species of phase p as the half-open range [begin, end).
func (s *System) PhaseRange(p int) (begin, end int) {
	return s.begin[p], s.begin[p+1]
}

// PhaseOf returns the phase of the i-th species.
func (s *System) PhaseOf(i int) int { return s.phaseOf[i] }

// FormulaMatrix returns the elements × species matrix 𝐖. It must not be modified.
func (s *System) FormulaMatrix() mat.Matrix { return s.w }

// Composition returns the column of 𝐖 for the i-th species.
func (s *System) Composition(i int) []float64 {
	return mat.Col(nil, i, s.w)
}

// ElementAmounts returns 𝐛 = 𝐖𝐧.
func (s *System) ElementAmounts(n []float64) []float64 {
	if len(n) != len(s.species) {
		panic("species amounts dimension not match system")
	}
	b := make([]float64, len(s.elements))
	mat.NewVecDense(len(b), b).MulVec(s.w, mat.NewVecDense(len(n), n))
	return b
}

// PhaseAmounts returns the total amount of each phase.
func (s *System) PhaseAmounts(n []float64) []float64 {
	if len(n) != len(s.species) {
		panic("species amounts dimension not match system")
	}
	a := make([]float64, len(s.phases))
	for i, v := range n {
		a[s.phaseOf[i]] += v
	}
	return a
}
