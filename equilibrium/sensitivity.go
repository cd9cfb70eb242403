// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"slices"

	"github.com/curioloop/equilibrium/optimum"
	"github.com/curioloop/equilibrium/thermo"
	"gonum.org/v1/gonum/mat"
)

// sensitivity differentiates the optimality conditions at the converged point
//
//	𝐠(𝐧,𝐩) + 𝐀ᵀ𝐲 - 𝐳 = 0,  𝐀𝐧 = 𝐛(𝐩),  𝐒𝐳 = 0
//
// with respect to a parameter 𝐩, where 𝐠 = 𝛍/𝐑𝐓. Eliminating ∂𝐳 = -𝐒⁻¹𝐙∂𝐧 gives
//
//	⎡ 𝐇 + 𝐒⁻¹𝐙  𝐀ᵀ ⎤⎡ ∂𝐧 ⎤   ⎡ -∂𝐠/∂𝐩 ⎤
//	⎣ 𝐀         0 ⎦⎣ ∂𝐲 ⎦ = ⎣  ∂𝐛/∂𝐩 ⎦
//
// whose matrix is the KKT factorization retained by the optimizer:
//   - temperature : ∂𝐠/∂𝐓 = (∂𝛍/∂𝐓)/𝐑𝐓 - 𝛍/𝐑𝐓²
//   - pressure : ∂𝐠/∂𝐏 = (∂𝛍/∂𝐏)/𝐑𝐓
//   - element 𝒋 : ∂𝐛/∂𝐛ⱼ = 𝐞ⱼ on the element rows and zero on fixed amount rows
type sensitivity struct {
	kkt   *optimum.Factorization
	props *thermo.Properties
	t     float64
	e     int // number of element rows

	dT, dP *direction
}

type direction struct {
	dn, dy, dz []float64
}

// compute solves one right-hand side per requested derivative and stores them in res.
func (s *sensitivity) compute(c Compute, res *Result) Sensitivity {
	if s.kkt == nil {
		return SensitivitySingular
	}
	status := SensitivityValid
	n, m := s.kkt.Dims()
	rt := thermo.R * s.t
	zero := make([]float64, m)

	solve := func(rx, ry []float64) *direction {
		dn, dy, dz, err := s.kkt.Solve(rx, ry)
		if err != nil {
			status = SensitivitySingular
			return nil
		}
		return &direction{dn, dy, dz}
	}

	if c.DnDT {
		rx := make([]float64, n)
		for i, u := range s.props.U {
			rx[i] = -(s.props.DUDT[i]/rt - u/(rt*s.t))
		}
		if s.dT = solve(rx, zero); s.dT != nil {
			res.DnDT = s.dT.dn
		}
	}

	if c.DnDP {
		rx := make([]float64, n)
		for i, v := range s.props.DUDP {
			rx[i] = -v / rt
		}
		if s.dP = solve(rx, zero); s.dP != nil {
			res.DnDP = s.dP.dn
		}
	}

	if c.DnDB {
		dndb := mat.NewDense(n, s.e, nil)
		rx := make([]float64, n)
		for j := 0; j < s.e; j++ {
			ry := make([]float64, m)
			ry[j] = 1
			d := solve(rx, ry)
			if d == nil {
				dndb = nil
				break
			}
			dndb.SetCol(j, d.dn)
		}
		res.DnDB = dndb
	}
	return status
}

// tangent returns the temperature and pressure directions as a warm start tangent,
// or nil when neither was computed.
func (s *sensitivity) tangent(p float64) *tangent {
	if s.dT == nil && s.dP == nil {
		return nil
	}
	t := &tangent{t: s.t, p: p}
	if d := s.dT; d != nil {
		t.dndt, t.dydt, t.dzdt = slices.Clone(d.dn), slices.Clone(d.dy), slices.Clone(d.dz)
	}
	if d := s.dP; d != nil {
		t.dndp, t.dydp, t.dzdp = slices.Clone(d.dn), slices.Clone(d.dy), slices.Clone(d.dz)
	}
	return t
}
