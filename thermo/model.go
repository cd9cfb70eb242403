// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thermo

import (
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/numdiff"
	"gonum.org/v1/gonum/mat"
)

const (
	R  = 8.31446261815324 // Universal gas constant in J/(mol·K)
	Tr = 298.15           // Reference temperature in K
	Pr = 1e5              // Reference pressure in Pa

	// WaterMolarMass in kg/mol converts solvent amount to solvent mass.
	WaterMolarMass = 0.018015
	// DebyeHuckelA is the Debye-Hückel limiting slope of water at 25 °C in (kg/mol)^½.
	DebyeHuckelA = 1.1724

	// floor keeps logarithms and reciprocals of vanishing amounts finite.
	floor = 1e-300
	zero  = 0.0
)

// Properties holds chemical potentials and their partial derivatives.
type Properties struct {
	U    []float64  // 𝛍
	DUDT []float64  // ∂𝛍/∂𝐓
	DUDP []float64  // ∂𝛍/∂𝐏
	DUDN *mat.Dense // ∂𝛍/∂𝐧
}

// NewProperties allocates properties for n species.
func NewProperties(n int) *Properties {
	return &Properties{
		U:    make([]float64, n),
		DUDT: make([]float64, n),
		DUDP: make([]float64, n),
		DUDN: mat.NewDense(n, n, nil),
	}
}

// Len returns the number of species.
func (p *Properties) Len() int { return len(p.U) }

// Gibbs returns the total Gibbs energy 𝐆 = 𝐧ᵀ𝛍.
func (p *Properties) Gibbs(n []float64) (g float64) {
	for i, v := range n {
		g += v * p.U[i]
	}
	return
}

// Model evaluates every field of p at temperature T, pressure P and species amounts n.
// A model must be safe for concurrent use and must not retain n or p.
type Model func(T, P float64, n []float64, p *Properties)

// Potentials evaluates chemical potentials only.
type Potentials func(T, P float64, n, u []float64)

// Standard holds the standard properties of a species at 𝐓ᵣ and 𝐏ᵣ.
type Standard struct {
	G0 float64 `yaml:"g0"` // Gibbs energy of formation in J/mol
	H0 float64 `yaml:"h0"` // Enthalpy of formation in J/mol
	V0 float64 `yaml:"v0"` // Molar volume in m³/mol
}

// Potential returns 𝛍° and its temperature and pressure derivatives.
func (s Standard) Potential(T, P float64) (u, dudt, dudp float64) {
	s0 := (s.H0 - s.G0) / Tr
	return s.H0 - T*s0 + s.V0*(P-Pr), -s0, s.V0
}

// Option configures a model built by NewModel.
type Option func(*ideal)

// WithDebyeHuckel corrects aqueous solutes with the extended Debye-Hückel law
//
//	𝚕𝚗𝛄ᵢ = -𝐀𝐳ᵢ²√𝐈/(1 + √𝐈),  𝐈 = ½∑𝐦ⱼ𝐳ⱼ²
func WithDebyeHuckel() Option {
	return func(m *ideal) { m.debye = true }
}

type ideal struct {
	sys    *chem.System
	data   []Standard
	kind   []chem.Kind // per phase
	charge []float64   // per species
	debye  bool
}

// NewModel builds the model of a system from the standard data of its species.
//   - pure : 𝚕𝚗𝐚ᵢ = 0
//   - ideal solution : 𝚕𝚗𝐚ᵢ = 𝚕𝚗𝐱ᵢ
//   - ideal gas : 𝚕𝚗𝐚ᵢ = 𝚕𝚗(𝐱ᵢ𝐏/𝐏ᵣ)
//   - aqueous : 𝚕𝚗𝐱ᵥ for the solvent (first species), 𝚕𝚗(𝐦ᵢ𝛄ᵢ) for solutes with molality 𝐦ᵢ = 𝐧ᵢ/(𝐧ᵥ𝐌ᵥ)
func NewModel(sys *chem.System, data []Standard, opts ...Option) (Model, error) {
	if len(data) != sys.NumSpecies() {
		return nil, fmt.Errorf("%w: %d entries for %d species", ErrDataSize, len(data), sys.NumSpecies())
	}
	for i, d := range data {
		for _, v := range []float64{d.G0, d.H0, d.V0} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: species %q", ErrInvalidData, sys.Species(i).Name)
			}
		}
	}
	m := &ideal{sys: sys, data: slices.Clone(data)}
	for k := 0; k < sys.NumPhases(); k++ {
		m.kind = append(m.kind, sys.Phase(k).Kind)
	}
	for i := 0; i < sys.NumSpecies(); i++ {
		m.charge = append(m.charge, sys.Species(i).Charge)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m.eval, nil
}

func (m *ideal) eval(T, P float64, n []float64, p *Properties) {
	sys := m.sys
	if len(n) != sys.NumSpecies() || p.Len() != len(n) {
		panic("species amounts dimension not match model")
	}
	p.DUDN.Zero()
	rt := R * T
	for i, d := range m.data {
		p.U[i], p.DUDT[i], p.DUDP[i] = d.Potential(T, P)
	}
	for k, kind := range m.kind {
		begin, end := sys.PhaseRange(k)
		switch kind {
		case chem.Pure:
		case chem.IdealSolution:
			m.mixing(T, begin, end, n, p, zero)
		case chem.IdealGas:
			m.mixing(T, begin, end, n, p, math.Log(P/Pr))
			for i := begin; i < end; i++ {
				p.DUDP[i] += rt / P
			}
		case chem.Aqueous:
			m.aqueous(T, begin, end, n, p)
		}
	}
}

// mixing adds 𝐑𝐓(𝚕𝚗𝐱ᵢ + c) and its derivatives for species in [begin, end).
//   - ∂𝚕𝚗𝐱ᵢ/∂𝐧ⱼ = 𝛅ᵢⱼ/𝐧ᵢ - 1/𝐧ₜ
func (m *ideal) mixing(T float64, begin, end int, n []float64, p *Properties, c float64) {
	rt := R * T
	total := zero
	for i := begin; i < end; i++ {
		total += n[i]
	}
	total = math.Max(total, floor)
	for i := begin; i < end; i++ {
		ni := math.Max(n[i], floor)
		lna := math.Log(ni/total) + c
		p.U[i] += rt * lna
		p.DUDT[i] += R * lna
		for j := begin; j < end; j++ {
			p.DUDN.Set(i, j, p.DUDN.At(i, j)-rt/total)
		}
		p.DUDN.Set(i, i, p.DUDN.At(i, i)+rt/ni)
	}
}

// aqueous adds the activity terms of an aqueous phase occupying [begin, end).
//   - solvent : ∂𝚕𝚗𝐱ᵥ/∂𝐧ⱼ = 𝛅ᵥⱼ/𝐧ᵥ - 1/𝐧ₜ
//   - solute : ∂𝚕𝚗𝐦ᵢ/∂𝐧ⱼ = 𝛅ᵢⱼ/𝐧ᵢ - 𝛅ᵥⱼ/𝐧ᵥ
func (m *ideal) aqueous(T float64, begin, end int, n []float64, p *Properties) {
	rt, w := R*T, begin
	total := zero
	for j := w; j < end; j++ {
		total += n[j]
	}
	total = math.Max(total, floor)
	nw := math.Max(n[w], floor)

	lnx := math.Log(nw / total)
	p.U[w] += rt * lnx
	p.DUDT[w] += R * lnx
	for j := w; j < end; j++ {
		p.DUDN.Set(w, j, p.DUDN.At(w, j)-rt/total)
	}
	p.DUDN.Set(w, w, p.DUDN.At(w, w)+rt/nw)

	for i := w + 1; i < end; i++ {
		ni := math.Max(n[i], floor)
		lnm := math.Log(ni / (nw * WaterMolarMass))
		p.U[i] += rt * lnm
		p.DUDT[i] += R * lnm
		p.DUDN.Set(i, i, p.DUDN.At(i, i)+rt/ni)
		p.DUDN.Set(i, w, p.DUDN.At(i, w)-rt/nw)
	}

	k := end - w
	if !m.debye || k < 2 {
		return
	}

	z := m.charge[w:end]
	lng := make([]float64, k)
	debyeHuckel(n[w:end], z, lng)
	for i := 1; i < k; i++ {
		p.U[w+i] += rt * lng[i]
		p.DUDT[w+i] += R * lng[i]
	}

	bounds := make([]numdiff.Bound, k)
	for i := range bounds {
		bounds[i] = numdiff.Bound{0, math.NaN()}
	}
	spec := numdiff.Spec{
		N: k, M: k,
		Func:   func(x, y []float64) { debyeHuckel(x, z, y) },
		Method: numdiff.Central,
		Bounds: bounds,
	}
	jac := mat.NewDense(k, k, nil)
	if err := spec.Jacobian(clampAmounts(n[w:end]), jac); err != nil {
		panic(err)
	}
	for i := 1; i < k; i++ {
		for j := 0; j < k; j++ {
			p.DUDN.Set(w+i, w+j, p.DUDN.At(w+i, w+j)+rt*jac.At(i, j))
		}
	}
}

// debyeHuckel writes 𝚕𝚗𝛄 of an aqueous phase with amounts x and charges z into lng.
// The solvent entry lng[0] is zero.
func debyeHuckel(x, z, lng []float64) {
	kg := math.Max(x[0], floor) * WaterMolarMass
	ionic := zero
	for i := 1; i < len(x); i++ {
		ionic += 0.5 * x[i] / kg * z[i] * z[i]
	}
	sqrtI := math.Sqrt(ionic)
	lng[0] = zero
	for i := 1; i < len(x); i++ {
		lng[i] = -DebyeHuckelA * z[i] * z[i] * sqrtI / (1 + sqrtI)
	}
}

func clampAmounts(n []float64) []float64 {
	x := slices.Clone(n)
	for i, v := range x {
		x[i] = math.Max(v, zero)
	}
	return x
}
