// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Factorization is the LU factorization of the reduced KKT matrix
//
//	𝐊 = ⎡ 𝐇 + 𝐒⁻¹𝐙   𝐀ᵀ ⎤
//	    ⎣ 𝐀        -𝛅𝐈 ⎦
//
// obtained from the Newton system of the interior-point iteration
//
//	⎡ 𝐇   𝐀ᵀ  -𝐈 ⎤⎡ 𝚫𝐱 ⎤   ⎡ 𝐫𝐱 ⎤
//	⎢ 𝐀   0    0 ⎥⎢ 𝚫𝐲 ⎥ = ⎢ 𝐫𝐲 ⎥
//	⎣ 𝐙   0    𝐒 ⎦⎣ 𝚫𝐳 ⎦   ⎣ 𝐫𝐳 ⎦
//
// by eliminating 𝚫𝐳 = 𝐒⁻¹(𝐫𝐳 - 𝐙𝚫𝐱).
//
// The x block is scaled symmetrically by 𝐃ᵢ = 1/√𝚖𝚊𝚡(1,|𝐊ᵢᵢ|) before factorization
// so that bound multipliers of vanishing variables do not dominate the condition estimate.
//
// A Factorization is read-only once built and can be shared by any number of solves.
type Factorization struct {
	n, m int
	k    *mat.Dense
	lu   mat.LU
	d    []float64 // x block scaling
	s, z []float64 // distance to bounds and bound multipliers
	ok   bool
}

// Factorize builds the factorization of the reduced KKT matrix
// for Hessian h (n×n), constraints a (m×n), distances to bounds s and bound multipliers z.
func Factorize(h, a mat.Matrix, s, z []float64, reg float64) *Factorization {
	n, _ := h.Dims()
	_, c := a.Dims()
	if c != n || len(s) != n || len(z) != n {
		panic("kkt dimension not match")
	}
	f := new(Factorization)
	f.factorize(h, a, s, z, reg, zero)
	return f
}

func (f *Factorization) factorize(h, a mat.Matrix, s, z []float64, reg, shift float64) {
	n, _ := h.Dims()
	m, _ := a.Dims()
	if f.k == nil || f.n != n || f.m != m {
		f.n, f.m = n, m
		f.k = mat.NewDense(n+m, n+m, nil)
		f.d = make([]float64, n)
		f.s = make([]float64, n)
		f.z = make([]float64, n)
	}
	copy(f.s, s)
	copy(f.z, z)

	k, d := f.k, f.d
	k.Zero()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, h.At(i, j))
		}
		kii := k.At(i, i) + z[i]/s[i] + shift // 𝐇ᵢᵢ + 𝐳ᵢ/𝐬ᵢ
		k.Set(i, i, kii)
		d[i] = one / math.Sqrt(math.Max(one, math.Abs(kii)))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k.Set(i, j, k.At(i, j)*d[i]*d[j])
		}
	}
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			v := a.At(r, c) * d[c]
			k.Set(n+r, c, v)
			k.Set(c, n+r, v)
		}
		k.Set(n+r, n+r, -reg)
	}

	f.lu.Factorize(k)
	cond := f.lu.Cond()
	f.ok = f.lu.Det() != zero && !math.IsNaN(cond) && !math.IsInf(cond, 0)
}

// Dims returns the number of variables and constraints of the factorized system.
func (f *Factorization) Dims() (n, m int) {
	return f.n, f.m
}

// Cond returns the condition number estimate of the scaled KKT matrix.
func (f *Factorization) Cond() float64 {
	if !f.ok {
		return math.Inf(1)
	}
	return f.lu.Cond()
}

// Solve solves 𝐊[𝚫𝐱; 𝚫𝐲] = [𝐫𝐱; 𝐫𝐲] with the retained factorization and returns 𝚫𝐳 = -𝐒⁻¹𝐙𝚫𝐱,
// the bound multiplier change that keeps 𝐒𝐳 stationary.
//
// The returned error wraps ErrSingularKKT when the matrix is singular or its condition
// estimate exceeds mat.ConditionTolerance, in which case the solution must not be trusted.
func (f *Factorization) Solve(rx, ry []float64) (dx, dy, dz []float64, err error) {
	if len(rx) != f.n || len(ry) != f.m {
		panic("right-hand side dimension not match factorization")
	}
	dx, dy = make([]float64, f.n), make([]float64, f.m)
	if err = f.solve(rx, ry, dx, dy, true); err != nil {
		return nil, nil, nil, err
	}
	dz = make([]float64, f.n)
	for i, v := range dx {
		dz[i] = -f.z[i] / f.s[i] * v
	}
	return
}

// solve writes the solution into dx and dy.
// Unless strict, near-singular warnings are ignored as long as the solution stays finite:
// interior-point iterations routinely run on badly conditioned but consistent systems.
func (f *Factorization) solve(rx, ry, dx, dy []float64, strict bool) error {
	if !f.ok {
		return fmt.Errorf("%w: zero pivot", ErrSingularKKT)
	}
	n, d := f.n, f.d
	rhs := mat.NewVecDense(n+f.m, nil)
	for i, v := range rx {
		rhs.SetVec(i, v*d[i])
	}
	for j, v := range ry {
		rhs.SetVec(n+j, v)
	}

	var sol mat.VecDense
	err := f.lu.SolveVecTo(&sol, false, rhs)
	var cond mat.Condition
	switch {
	case err == nil:
	case errors.As(err, &cond):
		if strict {
			return fmt.Errorf("%w: %v", ErrSingularKKT, err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrSingularKKT, err)
	}

	for i := range dx {
		dx[i] = sol.AtVec(i) * d[i]
	}
	for j := range dy {
		dy[j] = sol.AtVec(n + j)
	}
	if !finite(dx) || !finite(dy) {
		return fmt.Errorf("%w: non-finite solution", ErrSingularKKT)
	}
	return nil
}

// Distances returns copies of the bound distances and multipliers the matrix was built with.
func (f *Factorization) Distances() (s, z []float64) {
	return slices.Clone(f.s), slices.Clone(f.z)
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
