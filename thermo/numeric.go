// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thermo

import (
	"math"
	"slices"

	"github.com/curioloop/equilibrium/numdiff"
)

// Numeric turns a potentials-only function of n species into a Model.
// Every derivative is estimated by central finite differences,
// one-sided near zero amounts so that fn never sees a negative amount.
func Numeric(n int, fn Potentials) Model {
	return func(T, P float64, x []float64, p *Properties) {
		if len(x) != n || p.Len() != n {
			panic("species amounts dimension not match model")
		}
		fn(T, P, x, p.U)

		x0 := slices.Clone(x)
		var bounds []numdiff.Bound
		if slices.IndexFunc(x0, func(v float64) bool { return v < 0 }) < 0 {
			bounds = make([]numdiff.Bound, n)
			for i := range bounds {
				bounds[i] = numdiff.Bound{0, math.NaN()}
			}
		}

		comp := numdiff.Spec{
			N: n, M: n,
			Func:   func(v, u []float64) { fn(T, P, v, u) },
			Method: numdiff.Central,
			Bounds: bounds,
		}
		temp := numdiff.Spec{
			M:      n,
			Func:   func(v, u []float64) { fn(v[0], P, x0, u) },
			Method: numdiff.Central,
		}
		pres := numdiff.Spec{
			M:      n,
			Func:   func(v, u []float64) { fn(T, v[0], x0, u) },
			Method: numdiff.Central,
		}

		for _, err := range []error{
			comp.Jacobian(x0, p.DUDN),
			temp.Derivative(T, p.DUDT),
			pres.Derivative(P, p.DUDP),
		} {
			if err != nil {
				panic(err)
			}
		}
	}
}
