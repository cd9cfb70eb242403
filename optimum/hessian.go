// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// resetBFGS sets 𝐁 = 𝐈.
func resetBFGS(b *mat.Dense) {
	n, _ := b.Dims()
	b.Zero()
	for i := 0; i < n; i++ {
		b.Set(i, i, one)
	}
}

// updateBFGS applies Powell's damped BFGS update to the Hessian approximation 𝐁:
//   - 𝐁ᵏ⁺¹ = 𝐁ᵏ + 𝐪𝐪ᵀ/𝐪ᵀ𝐬 - 𝐁ᵏ𝐬𝐬ᵀ𝐁ᵏ/𝐬ᵀ𝐁ᵏ𝐬
//   - 𝐬 = 𝐱ᵏ⁺¹ - 𝐱ᵏ
//   - 𝐪 = 𝛉𝛈 + (1-𝛉)𝐁ᵏ𝐬
//   - 𝛈 = 𝜵𝒇(𝐱ᵏ⁺¹) - 𝜵𝒇(𝐱ᵏ)
//   - if 𝐬ᵀ𝛈 ≥ ⅕ 𝐬ᵀ𝐁ᵏ𝐬 : 𝛉 = 1
//   - otherwise : 𝛉 = ⅘ 𝐬ᵀ𝐁ᵏ𝐬 / (𝐬ᵀ𝐁ᵏ𝐬 - 𝐬ᵀ𝛈)
//
// The constraints are linear, so the gradient of the Lagrangian differs from 𝜵𝒇 by a constant
// and 𝛈 needs no multiplier terms. The damping keeps 𝐁 positive definite.
func updateBFGS(b *mat.Dense, x, x0, g, g0 []float64) {
	n := len(x)
	s := make([]float64, n)
	eta := make([]float64, n)
	floats.SubTo(s, x, x0)
	floats.SubTo(eta, g, g0)

	bs := mat.NewVecDense(n, nil)
	bs.MulVec(b, mat.NewVecDense(n, s)) // 𝐁ᵏ𝐬

	h1 := floats.Dot(s, eta)                 // 𝐬ᵀ𝛈
	h2 := floats.Dot(s, bs.RawVector().Data) // 𝐬ᵀ𝐁ᵏ𝐬
	h3 := 0.2 * h2
	if h1 < h3 {
		// 𝛉 =  ⅘ 𝐬ᵀ𝐁ᵏ𝐬 / (𝐬ᵀ𝐁ᵏ𝐬 - 𝐬ᵀ𝛈)
		theta := (h2 - h3) / (h2 - h1)
		h1 = h3
		floats.Scale(theta, eta)
		floats.AddScaled(eta, one-theta, bs.RawVector().Data) // 𝐪 = 𝛉𝛈 + (1-𝛉)𝐁ᵏ𝐬
	}

	if h1 == zero || h2 == zero {
		resetBFGS(b)
		return
	}

	q := mat.NewVecDense(n, eta)
	b.RankOne(b, one/h1, q, q)    // + 𝐪𝐪ᵀ/𝐪ᵀ𝐬
	b.RankOne(b, -one/h2, bs, bs) // - 𝐁ᵏ𝐬(𝐁ᵏ𝐬)ᵀ/𝐬ᵀ𝐁ᵏ𝐬
}
