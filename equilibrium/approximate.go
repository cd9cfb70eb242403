// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/optimum"
	"github.com/curioloop/equilibrium/thermo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// simplexTolerance is the zero threshold of the simplex method.
	simplexTolerance = 1e-10
	// rankTolerance is the relative norm below which a vector lies in the span of the previous ones.
	rankTolerance = 1e-10
	// liftScale scales the largest element amount into the smallest lifted species amount.
	liftScale = 1e-10
)

// Approximate estimates the equilibrium with the default options.
func (s *Solver) Approximate(problem *Problem, state *State) (Result, error) {
	return s.ApproximateWith(problem, state, s.opts)
}

// ApproximateWith estimates the equilibrium by the linear relaxation
//
//	minimize (𝛍/𝐑𝐓)ᵀ𝐧 subject to 𝐖𝐧 = 𝐛, 𝐂𝐧 = 𝐜 and 𝐧 ≥ 0
//
// with the potentials frozen at the amounts of state, or at 𝐧 = 1 for an empty state.
// Linearly dependent constraint rows, such as the charge balance of an electrolyte,
// are removed before the simplex method and checked for consistency afterwards.
//
// The optimal vertex is lifted into the interior: species outside the basis receive the amounts
// the reduced costs predict for their phase, never less than 10⁻¹⁰·‖𝐛‖∞, and the basic species
// absorb the difference so that the constraints still hold.
//
// On success the amounts are written into state together with the temperature and pressure.
// On failure state is left unchanged and the result reports Converged = false.
func (s *Solver) ApproximateWith(problem *Problem, state *State, opts Options) (Result, error) {
	if err := s.check(problem, state, opts); err != nil {
		return Result{}, err
	}
	start := time.Now()
	log := opts.logger().WithFields(logrus.Fields{"T": problem.t, "P": problem.p})

	n := problem.sys.NumSpecies()
	x0 := state.Amounts()
	if state.Empty() {
		floats.AddConst(1, x0)
	}
	for i, v := range x0 {
		if v < opts.Epsilon {
			x0[i] = opts.Epsilon
		}
	}
	props := thermo.NewProperties(n)
	s.model(problem.t, problem.p, x0, props)
	c := slices.Clone(props.U)
	floats.Scale(1/(thermo.R*problem.t), c)

	a, b := problem.Constraints()
	res := Result{Statistics: Statistics{Method: Simplex, NumModelEvals: 1}}
	res.NumEval = 1

	rows := independentRows(a)
	ar, br := mat.NewDense(len(rows), n, nil), make([]float64, len(rows))
	for k, j := range rows {
		ar.SetRow(k, a.RawRowView(j))
		br[k] = b[j]
	}
	if len(rows) < len(b) {
		log.WithField("dropped", len(b)-len(rows)).Debug("removed dependent constraints")
	}

	f, x, err := simplex(c, ar, br)
	if err == nil {
		err = balanced(a, b, x)
	}
	if err != nil {
		log.WithError(err).Debug("linear relaxation failed")
		res.Status = optimum.StepFailure
		res.Optimum = optimum.Result{Statistics: res.Statistics.Statistics}
		res.Elapsed = time.Since(start)
		return res, nil
	}

	floor := math.Max(opts.Epsilon, liftScale*floats.Norm(b, math.Inf(1)))
	x = lift(problem.sys, ar, br, c, x0, x, floor)

	res.N = x
	res.Status, res.Converged = optimum.Solved, true
	res.Optimum = optimum.Result{F: f, X: slices.Clone(x), G: c, Statistics: res.Statistics.Statistics}
	res.Elapsed = time.Since(start)

	state.t, state.p = problem.t, problem.p
	copy(state.n, x)
	state.forget()

	log.WithField("objective", f).Debug("linear relaxation finished")
	return res, nil
}

// simplex solves the linear program in standard form, turning shape violations
// that the simplex method rejects by panicking into errors.
func simplex(c []float64, a mat.Matrix, b []float64) (f float64, x []float64, err error) {
	m, n := a.Dims()
	if m > n {
		return 0, nil, fmt.Errorf("%d constraints exceed %d species", m, n)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex: %v", r)
		}
	}()
	return lp.Simplex(c, a, b, simplexTolerance, nil)
}

// balanced reports an error unless 𝐀𝐱 = 𝐛 holds for every row, including the dropped ones.
func balanced(a mat.Matrix, b, x []float64) error {
	var r mat.VecDense
	r.MulVec(a, mat.NewVecDense(len(x), x))
	tol := 1e-8 * math.Max(1, floats.Norm(b, math.Inf(1)))
	for j, v := range b {
		if math.Abs(r.AtVec(j)-v) > tol {
			return fmt.Errorf("constraint %d is inconsistent: %g != %g", j, r.AtVec(j), v)
		}
	}
	return nil
}

// span is an orthonormal basis built by modified Gram-Schmidt.
type span struct {
	q [][]float64
}

// add appends v to the basis unless it lies in the span already.
func (s *span) add(v []float64) bool {
	v = slices.Clone(v)
	norm := floats.Norm(v, 2)
	for _, q := range s.q {
		floats.AddScaled(v, -floats.Dot(q, v), q)
	}
	r := floats.Norm(v, 2)
	if !(r > rankTolerance*norm) {
		return false
	}
	floats.Scale(1/r, v)
	s.q = append(s.q, v)
	return true
}

// independentRows returns the indices of a maximal set of linearly independent rows, in order.
func independentRows(a *mat.Dense) []int {
	m, _ := a.Dims()
	var basis span
	rows := make([]int, 0, m)
	for j := 0; j < m; j++ {
		if basis.add(a.RawRowView(j)) {
			rows = append(rows, j)
		}
	}
	return rows
}

// completeBasis returns m linearly independent columns of a:
// the species present at the vertex x first, then the cheapest others.
func completeBasis(a *mat.Dense, c, x []float64) []int {
	m, n := a.Dims()
	tol := simplexTolerance * (1 + floats.Norm(x, math.Inf(1)))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int {
		pi, pj := x[i] > tol, x[j] > tol
		switch {
		case pi && !pj:
			return -1
		case pj && !pi:
			return 1
		case pi:
			return cmp.Compare(x[j], x[i])
		}
		return cmp.Compare(c[i], c[j])
	})

	var cols span
	basis := make([]int, 0, m)
	col := make([]float64, m)
	for _, i := range order {
		mat.Col(col, i, a)
		if cols.add(col) {
			basis = append(basis, i)
			if len(basis) == m {
				return basis
			}
		}
	}
	return nil
}

// lift moves the vertex x of the linear relaxation into the interior.
//
// With the dual 𝐲 of the basis 𝐁ᵀ𝐲 = 𝐜_B, a species outside the basis has the reduced cost
// 𝐝ᵢ = 𝐜ᵢ - 𝐚ᵢᵀ𝐲 ≥ 0, the amount by which its frozen potential exceeds the element potentials.
// For ideal mixing this predicts 𝐧ᵢ = 𝐧⁰ᵢ𝐞^(-𝐝ᵢ)𝐍ₚ/𝐍⁰ₚ where 𝐍ₚ and 𝐍⁰ₚ are the totals of its phase
// at the vertex and at the frozen amounts 𝐧⁰. Pure species and species of absent phases get the floor.
// The basic species are then solved from 𝐁𝐧_B = 𝐛 - 𝐍𝐧_N, shrinking the lifted amounts
// towards the floor while any basic amount would fall below half of it.
func lift(sys *chem.System, a *mat.Dense, b, c, x0, x []float64, floor float64) []float64 {
	m, n := a.Dims()
	clamp := func() []float64 {
		for i, v := range x {
			x[i] = math.Max(v, floor)
		}
		return x
	}

	basis := completeBasis(a, c, x)
	if basis == nil {
		return clamp()
	}
	bm := mat.NewDense(m, m, nil)
	cb := make([]float64, m)
	inBasis := make([]bool, n)
	for k, i := range basis {
		for r := 0; r < m; r++ {
			bm.Set(r, k, a.At(r, i))
		}
		cb[k] = c[i]
		inBasis[i] = true
	}
	var lu mat.LU
	lu.Factorize(bm)
	var y mat.VecDense
	if err := lu.SolveVecTo(&y, true, mat.NewVecDense(m, cb)); err != nil {
		return clamp()
	}

	total, total0 := make([]float64, sys.NumPhases()), make([]float64, sys.NumPhases())
	pure := make([]bool, sys.NumPhases())
	for i := range x {
		p := sys.PhaseOf(i)
		total[p] += x[i]
		total0[p] += x0[i]
	}
	for p := range pure {
		pure[p] = sys.Phase(p).Kind == chem.Pure
	}

	out := make([]float64, n)
	col := make([]float64, m)
	for i := range out {
		if inBasis[i] {
			continue
		}
		p, v := sys.PhaseOf(i), 0.0
		if !pure[p] && total[p] > 0 && total0[p] > 0 {
			mat.Col(col, i, a)
			d := c[i] - floats.Dot(col, y.RawVector().Data)
			v = x0[i] * math.Exp(-math.Max(d, 0)) * total[p] / total0[p]
		}
		out[i] = math.Max(v, floor)
	}

	rhs := mat.NewVecDense(m, nil)
	var xb mat.VecDense
	for attempt := 0; attempt < 8; attempt++ {
		for r := 0; r < m; r++ {
			v := b[r]
			for i, w := range out {
				if !inBasis[i] {
					v -= a.At(r, i) * w
				}
			}
			rhs.SetVec(r, v)
		}
		if err := lu.SolveVecTo(&xb, false, rhs); err != nil {
			return clamp()
		}
		if floats.Min(xb.RawVector().Data) >= floor/2 {
			for k, i := range basis {
				out[i] = xb.AtVec(k)
			}
			return out
		}
		for i, v := range out {
			if !inBasis[i] {
				out[i] = floor + (v-floor)/10
			}
		}
	}
	return clamp()
}
