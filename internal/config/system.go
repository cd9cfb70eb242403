// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/curioloop/equilibrium/thermo"
	"gopkg.in/yaml.v3"
)

// SpeciesFile describes one species and its standard data.
type SpeciesFile struct {
	Name            string             `yaml:"name"`
	Elements        map[string]float64 `yaml:"elements"`
	Charge          float64            `yaml:"charge"`
	thermo.Standard `yaml:",inline"`
}

// PhaseFile describes one phase.
type PhaseFile struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"`
	Species []SpeciesFile `yaml:"species"`
}

// SystemFile is the YAML layout of a system, its model and the initial problem.
//
//	temperature: 298.15      # K, defaults to 298.15
//	pressure: 1e5            # Pa, defaults to 1e5
//	debyeHuckel: true        # activity coefficients of aqueous solutes
//	phases:
//	  - name: aqueous
//	    kind: aqueous
//	    species:
//	      - {name: H2O(l), elements: {H: 2, O: 1}, g0: -237141}
//	amounts:                 # species whose composition is added to the element amounts
//	  H2O(l): 55.508
//	elements:                # element amounts added directly
//	  C: 0.1
//	fixSpecies:              # species held at a given amount
//	  CO2(g): 0.01
//	fixPhases:               # phases held at a given total amount
//	  gas: 1
type SystemFile struct {
	Temperature float64            `yaml:"temperature"`
	Pressure    float64            `yaml:"pressure"`
	DebyeHuckel bool               `yaml:"debyeHuckel"`
	Phases      []PhaseFile        `yaml:"phases"`
	Amounts     map[string]float64 `yaml:"amounts"`
	Elements    map[string]float64 `yaml:"elements"`
	FixSpecies  map[string]float64 `yaml:"fixSpecies"`
	FixPhases   map[string]float64 `yaml:"fixPhases"`
}

// Setup is a system together with its model and an equilibrium problem.
type Setup struct {
	System  *chem.System
	Model   thermo.Model
	Problem *equilibrium.Problem
}

// LoadSystemFile reads and builds the system file at path.
func LoadSystemFile(path string) (*Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	setup, err := ParseSystem(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return setup, nil
}

// ParseSystem builds a setup from the YAML content of a system file.
func ParseSystem(data []byte) (*Setup, error) {
	var f SystemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return f.Build()
}

// Build turns the file content into a system, a model and a problem.
func (f *SystemFile) Build() (*Setup, error) {
	var (
		phases []chem.Phase
		data   []thermo.Standard
	)
	for _, pf := range f.Phases {
		kind, ok := chem.ParseKind(pf.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: phase %q has unknown kind %q", ErrInvalidFile, pf.Name, pf.Kind)
		}
		phase := chem.Phase{Name: pf.Name, Kind: kind}
		for _, sf := range pf.Species {
			phase.Species = append(phase.Species, chem.Species{Name: sf.Name, Elements: sf.Elements, Charge: sf.Charge})
			data = append(data, sf.Standard)
		}
		phases = append(phases, phase)
	}

	sys, err := chem.NewSystem(phases...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	var opts []thermo.Option
	if f.DebyeHuckel {
		opts = append(opts, thermo.WithDebyeHuckel())
	}
	model, err := thermo.NewModel(sys, data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	problem := equilibrium.NewProblem(sys)
	if f.Temperature != 0 {
		problem.SetTemperature(f.Temperature)
	}
	if f.Pressure != 0 {
		problem.SetPressure(f.Pressure)
	}
	// sorted keys keep the summation order of the element amounts stable
	for _, name := range slices.Sorted(maps.Keys(f.Elements)) {
		b := problem.ElementAmounts()
		j := sys.IndexElement(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: unknown element %q", ErrInvalidFile, name)
		}
		if err := problem.SetElementAmount(name, b[j]+f.Elements[name]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(f.Amounts)) {
		if err := problem.Add(name, f.Amounts[name]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(f.FixSpecies)) {
		if err := problem.SetSpeciesAmount(name, f.FixSpecies[name]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(f.FixPhases)) {
		if err := problem.SetPhaseAmount(name, f.FixPhases[name]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
	}
	return &Setup{System: sys, Model: model, Problem: problem}, nil
}
