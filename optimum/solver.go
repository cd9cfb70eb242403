// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type ipSpec struct {
	// the number of variables
	n int
	// the number of equality constraints
	m int
	// the constraint matrix 𝐀 and right-hand side 𝐛
	a *mat.Dense
	b []float64
	// the lower bounds 𝒍
	lower []float64

	object  Evaluation
	stop    Termination
	barrier Barrier
	hessian HessianMode
	reg     float64
	logger  logrus.FieldLogger
}

type ipIterate struct {
	f       float64
	x, g    []float64 // n
	y       []float64 // m
	z       []float64 // n
	res     Residual
	visited bool
}

type ipCtx struct {
	// iteration counter.
	iter int
	// evaluation counter.
	eval int
	// the current iterate.
	f float64
	x []float64 // n
	s []float64 // n : 𝐬 = 𝐱 - 𝒍
	y []float64 // m
	z []float64 // n
	g []float64 // n
	// the Hessian or its approximation.
	h *mat.Dense // n × n
	// dual and primal residuals.
	rd []float64 // n : 𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳
	rp []float64 // m : 𝐀𝐱 - 𝐛
	// Newton directions and right-hand sides.
	dx, dy, dz []float64
	rx, rc     []float64
	ry         []float64
	// the primal residual of a trial point.
	tr []float64 // m
	// primal and dual step lengths of the last step.
	alpha, alphaZ float64
	// barrier parameter, the one targeted by the last direction and the merit penalty.
	mu, target, nu float64
	// whether 𝒇, 𝜵𝒇 and 𝐇 were already evaluated at 𝐱 by the line search.
	fresh bool
	// the distances to the bounds before the step.
	s0 []float64
	// residual norms of the current iterate.
	last    Residual
	history []Residual
	// the best iterate visited.
	best ipIterate
	// the previous location for BFGS updates.
	x0, g0 []float64
	// the KKT factorization of the current iterate.
	kkt *Factorization
}

func (c *ipCtx) init(n, m int) {
	c.x, c.s, c.z, c.g = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	c.y = make([]float64, m)
	c.h = mat.NewDense(n, n, nil)
	c.rd, c.rp = make([]float64, n), make([]float64, m)
	c.dx, c.dy, c.dz = make([]float64, n), make([]float64, m), make([]float64, n)
	c.tr = make([]float64, m)
	c.rx, c.rc, c.ry = make([]float64, n), make([]float64, n), make([]float64, m)
	c.x0, c.g0 = make([]float64, n), make([]float64, n)
	c.s0 = make([]float64, n)
	c.best = ipIterate{
		x: make([]float64, n), g: make([]float64, n),
		y: make([]float64, m), z: make([]float64, n),
	}
}

// ipSolver solve the smooth problem with linear equality constraints and lower bounds
//
// minimize 𝒇(𝐱) subject to
//   - equality constrains: 𝐀𝐱 = 𝐛
//   - boundaries: 𝐱 ≥ 𝒍
//
// with a primal-dual interior-point method.
//
// # Optimality
//
// With multipliers 𝐲 for the equalities and 𝐳 ≥ 0 for the bounds, the perturbed KKT conditions are
//   - 𝜵𝒇(𝐱) + 𝐀ᵀ𝐲 - 𝐳 = 0
//   - 𝐀𝐱 - 𝐛 = 0
//   - 𝐒𝐳 = 𝛍𝐞  where 𝐒 = diag(𝐱 - 𝒍)
//
// and the solution of the problem is the limit 𝛍 → 0 along the central path.
//
// # Direction
//
// Newton's method applied to the conditions gives
//
//	⎡ 𝐇   𝐀ᵀ  -𝐈 ⎤⎡ 𝚫𝐱 ⎤     ⎡ 𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳 ⎤
//	⎢ 𝐀   0    0 ⎥⎢ 𝚫𝐲 ⎥ = - ⎢ 𝐀𝐱 - 𝐛       ⎥
//	⎣ 𝐙   0    𝐒 ⎦⎣ 𝚫𝐳 ⎦     ⎣ 𝐒𝐳 - 𝛍𝐞      ⎦
//
// which is reduced to the (n+m)×(n+m) system of Factorization.
//
// The barrier parameter follows a monotone schedule: once the barrier error
// 𝚖𝚊𝚡(‖𝐫𝐝‖∞, ‖𝐫𝐩‖∞, ‖𝐒𝐳 - 𝛍𝐞‖∞) drops below 𝛋ₑ𝛍 it is reduced to 𝚖𝚊𝚡(𝛍ₘᵢₙ, 𝚖𝚒𝚗(𝛋ᵤ𝛍, 𝛍^𝛉)).
// Variables that should vanish then stay close to 𝛍/𝐳ᵢ instead of collapsing onto the bound,
// which keeps the ratios inside a disappearing group of variables determined.
//
// # Step
//
// The fraction-to-the-boundary rule keeps the iterates strictly interior:
//   - 𝛂ₚ = 𝚖𝚒𝚗(1, 𝛕 · 𝚖𝚒𝚗{ -𝐬ᵢ/𝚫𝐱ᵢ : 𝚫𝐱ᵢ < 0 })
//   - 𝛂𝒹 = 𝚖𝚒𝚗(1, 𝛕 · 𝚖𝚒𝚗{ -𝐳ᵢ/𝚫𝐳ᵢ : 𝚫𝐳ᵢ < 0 })
//
// With exact second derivatives 𝛂ₚ is then backtracked until the merit function
//
//	𝛟(𝐱) = 𝒇(𝐱) - 𝛍∑𝚕𝚗𝐬ᵢ + 𝛎‖𝐀𝐱 - 𝐛‖₁,  𝛎 > ‖𝐲 + 𝚫𝐲‖∞
//
// satisfies the Armijo condition 𝛟(𝛂) ≤ 𝛟(0) + 𝛈𝛂𝛟′(0).
// 𝐱 and 𝐲 move by 𝛂ₚ and 𝐳 by 𝛂𝒹, after which 𝐳ᵢ is kept within [𝛍/(𝛋𝐬ᵢ), 𝛋𝛍/𝐬ᵢ].
//
// # Convergence Criteria
//
//   - feasibility : ‖𝐀𝐱 - 𝐛‖∞
//   - optimality : ‖𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳‖∞
//   - complementarity : ‖𝐒𝐳‖∞
//
// Convergence is tested before the KKT matrix is factorized, so a singular matrix at a converged
// iterate only leaves the result without a factorization.
// Failing to meet them within the iteration budget is reported through the status,
// together with the iterate of least residual.
//
// # Reference
//
// Jorge Nocedal, Stephen J. Wright: "Numerical Optimization", 2nd edition, Springer, 2006.
// Chapters 14 and 19.
//
// Andreas Wächter, Lorenz T. Biegler: "On the implementation of an interior-point filter line-search
// algorithm for large-scale nonlinear programming", Mathematical Programming 106, 2006.
type ipSolver struct {
	solver    *Solver
	workspace *Workspace
}

const (
	kappaE    = 10.0 // the barrier subproblem is solved once its error is below 𝛋ₑ𝛍
	kappaMu   = 0.2  // linear decrease 𝛋ᵤ of the barrier parameter
	thetaMu   = 1.5  // superlinear decrease 𝛉 of the barrier parameter
	kappaZ    = 1e10 // bound multipliers stay within a factor 𝛋 of 𝛍/𝐬ᵢ
	armijo    = 1e-4 // sufficient decrease 𝛈
	backtrack = 30
)

// muMin is the smallest barrier parameter, one tenth of the tightest tolerance.
func (spec *ipSpec) muMin() float64 {
	return math.Min(spec.stop.Feasibility, math.Min(spec.stop.Optimality, spec.stop.Complementarity)) / 10
}

func (ip *ipSolver) initCtx(g Guess) {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	ctx.iter, ctx.eval = 0, 0
	ctx.alpha, ctx.alphaZ = zero, zero
	ctx.nu, ctx.fresh = zero, false
	ctx.history = ctx.history[:0]
	ctx.f = math.NaN()
	ctx.last = Residual{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)}
	floats.Scale(zero, ctx.g)

	interior := spec.barrier.Interior
	for i, v := range g.X {
		s := v - spec.lower[i]
		if !(s > zero) {
			s = interior
		}
		ctx.s[i] = s
		ctx.x[i] = spec.lower[i] + s
	}
	if g.Y != nil {
		copy(ctx.y, g.Y)
	} else {
		floats.Scale(zero, ctx.y)
	}
	for i, s := range ctx.s {
		z := spec.barrier.Initial / s
		if g.Z != nil && g.Z[i] > zero {
			z = g.Z[i]
		}
		ctx.z[i] = z
	}

	// a warm start resumes from the complementarity it carries
	if g.Z != nil {
		ctx.mu = math.Max(spec.muMin(), floats.Dot(ctx.s, ctx.z)/float64(spec.n))
	} else {
		ctx.mu = math.Max(spec.muMin(), spec.barrier.Initial)
	}
	ctx.target = ctx.mu
	ip.remember()
}

// The main loop evaluates, checks and steps until one of the stop conditions holds.
func (ip *ipSolver) mainLoop() (mode Status) {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	for {
		if mode = ip.evaluate(); mode != Running {
			return
		}
		ip.residuals()
		if ip.converged() {
			ip.retain()
			return Solved
		}
		if ctx.iter >= spec.stop.MaxIterations {
			return ExceedMaxIter
		}
		ip.updateBarrier()
		if mode = ip.factorize(); mode != Running {
			return
		}
		if mode = ip.direction(); mode != Running {
			return
		}
		if mode = ip.step(); mode != Running {
			return
		}
		ctx.iter++
	}
}

func (ip *ipSolver) evaluate() Status {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx

	if ctx.fresh {
		ctx.fresh = false
	} else {
		var ok bool
		if ctx.f, ok = ip.call(ctx.x); !ok {
			return EvalFailure
		}
	}

	switch spec.hessian {
	case HessianExact:
		if !finite(ctx.h.RawMatrix().Data) {
			return EvalFailure
		}
	case HessianDiagonal:
		n := spec.n
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					ctx.h.Set(i, j, zero)
				}
			}
		}
		if !finite(ctx.h.RawMatrix().Data) {
			return EvalFailure
		}
	case HessianBFGS:
		if ctx.iter == 0 {
			resetBFGS(ctx.h)
		} else {
			updateBFGS(ctx.h, ctx.x, ctx.x0, ctx.g, ctx.g0)
		}
		copy(ctx.x0, ctx.x)
		copy(ctx.g0, ctx.g)
	}
	return Running
}

// call evaluates 𝒇 and 𝜵𝒇 at x, together with 𝐇 unless it is approximated by BFGS.
// It reports false when the objective panics or returns non-finite values.
func (ip *ipSolver) call(x []float64) (f float64, ok bool) {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx

	var h *mat.Dense
	if spec.hessian != HessianBFGS {
		h = ctx.h
		h.Zero()
	}

	defer func() {
		if r := recover(); r != nil {
			spec.logger.WithField("panic", r).Warn("objective evaluation panicked")
			f, ok = math.NaN(), false
		}
	}()
	f = spec.object(x, ctx.g, h)
	ctx.eval++
	ok = !math.IsNaN(f) && !math.IsInf(f, 0) && finite(ctx.g)
	return
}

func (ip *ipSolver) residuals() {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	n, m := spec.n, spec.m

	// 𝐫𝐝 = 𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳
	rd := mat.NewVecDense(n, ctx.rd)
	rd.MulVec(spec.a.T(), mat.NewVecDense(m, ctx.y))
	floats.Add(ctx.rd, ctx.g)
	floats.Sub(ctx.rd, ctx.z)

	// 𝐫𝐩 = 𝐀𝐱 - 𝐛
	rp := mat.NewVecDense(m, ctx.rp)
	rp.MulVec(spec.a, mat.NewVecDense(n, ctx.x))
	floats.Sub(ctx.rp, spec.b)

	comp := zero
	for i, s := range ctx.s {
		comp = math.Max(comp, s*ctx.z[i])
	}

	ctx.last = Residual{
		Feasibility:     floats.Norm(ctx.rp, math.Inf(1)),
		Optimality:      floats.Norm(ctx.rd, math.Inf(1)),
		Complementarity: comp,
		Mu:              floats.Dot(ctx.s, ctx.z) / float64(n),
	}
	ctx.history = append(ctx.history, ctx.last)

	if !ctx.best.visited || ctx.last.Norm() < ctx.best.res.Norm() {
		ip.remember()
	}

	spec.logger.WithFields(logrus.Fields{
		"iter":            ctx.iter,
		"feasibility":     ctx.last.Feasibility,
		"optimality":      ctx.last.Optimality,
		"complementarity": ctx.last.Complementarity,
		"mu":              ctx.last.Mu,
		"barrier":         ctx.mu,
		"alpha":           ctx.alpha,
	}).Trace("interior-point iterate")
}

// remember saves the current iterate as the best one visited.
func (ip *ipSolver) remember() {
	ctx := &ip.workspace.ipCtx
	b := &ctx.best
	b.f = ctx.f
	copy(b.x, ctx.x)
	copy(b.g, ctx.g)
	copy(b.y, ctx.y)
	copy(b.z, ctx.z)
	b.res = ctx.last
	b.visited = ctx.eval > 0
}

func (ip *ipSolver) converged() bool {
	stop, r := &ip.solver.stop, &ip.workspace.last
	return r.Feasibility <= stop.Feasibility &&
		r.Optimality <= stop.Optimality &&
		r.Complementarity <= stop.Complementarity
}

// updateBarrier decreases 𝛍 once the current barrier subproblem is solved to 𝛋ₑ𝛍.
func (ip *ipSolver) updateBarrier() {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	if spec.barrier.Sigma != zero {
		return
	}
	muMin := spec.muMin()
	if ctx.mu <= muMin {
		return
	}
	e := math.Max(ctx.last.Feasibility, ctx.last.Optimality)
	for i, s := range ctx.s {
		e = math.Max(e, math.Abs(s*ctx.z[i]-ctx.mu))
	}
	if e <= kappaE*ctx.mu {
		ctx.mu = math.Max(muMin, math.Min(kappaMu*ctx.mu, math.Pow(ctx.mu, thetaMu)))
	}
}

func (ip *ipSolver) factorize() Status {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	if ctx.kkt == nil {
		ctx.kkt = new(Factorization)
	}
	// Repair exact singularity of the x block by shifting its diagonal.
	shift := zero
	for retry := 0; retry <= 5; retry++ {
		ctx.kkt.factorize(ctx.h, spec.a, ctx.s, ctx.z, spec.reg, shift)
		if ctx.kkt.ok {
			return Running
		}
		if shift == zero {
			shift = 1e-8
		} else {
			shift *= 100
		}
		spec.logger.WithField("shift", shift).Debug("singular KKT matrix, shifting hessian diagonal")
	}
	return StepFailure
}

// retain factorizes the KKT matrix of the converged iterate without any shift.
// A singular matrix leaves the result without a factorization.
func (ip *ipSolver) retain() {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	if ctx.kkt == nil {
		ctx.kkt = new(Factorization)
	}
	ctx.kkt.factorize(ctx.h, spec.a, ctx.s, ctx.z, spec.reg, zero)
	if !ctx.kkt.ok {
		spec.logger.Debug("singular KKT matrix at the converged iterate")
		ctx.kkt = nil
	}
}

func (ip *ipSolver) direction() Status {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	s, z := ctx.s, ctx.z

	for j, r := range ctx.rp {
		ctx.ry[j] = -r // 𝐀𝚫𝐱 = -(𝐀𝐱 - 𝐛)
	}

	target := ctx.mu
	if sigma := spec.barrier.Sigma; sigma != zero {
		target = sigma * floats.Dot(s, z) / float64(spec.n)
	}
	ctx.target = target

	for i := range s {
		ctx.rc[i] = s[i]*z[i] - target        // 𝐫𝐜 = 𝐒𝐳 - 𝛍𝐞
		ctx.rx[i] = -ctx.rd[i] - ctx.rc[i]/s[i] // -𝐫𝐝 - 𝐒⁻¹𝐫𝐜
	}
	if err := ctx.kkt.solve(ctx.rx, ctx.ry, ctx.dx, ctx.dy, false); err != nil {
		spec.logger.WithError(err).Debug("newton direction failed")
		return StepFailure
	}
	for i, d := range ctx.dx {
		ctx.dz[i] = -(ctx.rc[i] + z[i]*d) / s[i]
	}
	if !finite(ctx.dz) {
		return StepFailure
	}
	return Running
}

func (ip *ipSolver) step() Status {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	tau := spec.barrier.Fraction

	ap := math.Min(one, tau*maxStep(ctx.s, ctx.dx))
	ad := math.Min(one, tau*maxStep(ctx.z, ctx.dz))
	if !(ap > eps*eps) || !(ad > eps*eps) {
		return StepFailure
	}

	copy(ctx.s0, ctx.s)
	if spec.hessian == HessianExact {
		ap = ip.lineSearch(ap)
	}
	ctx.alpha, ctx.alphaZ = ap, ad

	ip.moveTo(ap)
	floats.AddScaled(ctx.y, ap, ctx.dy)
	floats.AddScaled(ctx.z, ad, ctx.dz)
	for i, s := range ctx.s {
		z := math.Max(ctx.z[i], math.SmallestNonzeroFloat64)
		if spec.barrier.Sigma == zero {
			z = math.Max(ctx.mu/(kappaZ*s), math.Min(z, kappaZ*ctx.mu/s))
		}
		ctx.z[i] = z
	}
	return Running
}

// moveTo places the primal iterate at 𝐬₀ + 𝛂𝚫𝐱.
func (ip *ipSolver) moveTo(alpha float64) {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	for i, s := range ctx.s0 {
		ctx.s[i] = s + alpha*ctx.dx[i]
		ctx.x[i] = spec.lower[i] + ctx.s[i]
	}
}

// lineSearch halves the primal step until the merit function decreases sufficiently.
// On success the objective was last evaluated at the accepted point.
// Otherwise the full step is returned and the objective must be evaluated again.
func (ip *ipSolver) lineSearch(alpha float64) float64 {
	ctx := &ip.workspace.ipCtx
	mu, full := ctx.target, alpha

	yn := zero
	for j, y := range ctx.y {
		yn = math.Max(yn, math.Abs(y+ctx.dy[j]))
	}
	ctx.nu = math.Max(ctx.nu, yn+one)

	phi0 := ip.merit(ctx.f, mu)
	slope := -ctx.nu * floats.Norm(ctx.rp, 1)
	for i, d := range ctx.dx {
		slope += (ctx.g[i] - mu/ctx.s0[i]) * d
	}
	// rounding noise of the merit value itself
	noise := 10 * eps * math.Max(one, math.Abs(phi0))
	if !(slope < -noise) {
		return full
	}

	for k := 0; k < backtrack; k++ {
		ip.moveTo(alpha)
		if f, ok := ip.call(ctx.x); ok && ip.merit(f, mu) <= phi0+armijo*alpha*slope+noise {
			ctx.f, ctx.fresh = f, true
			return alpha
		}
		alpha /= 2
	}
	ip.solver.logger.WithField("alpha", full).Debug("line search failed, taking the full step")
	return full
}

// merit returns 𝒇 - 𝛍∑𝚕𝚗𝐬ᵢ + 𝛎‖𝐀𝐱 - 𝐛‖₁ at the current primal iterate.
func (ip *ipSolver) merit(f, mu float64) float64 {
	spec, ctx := &ip.solver.ipSpec, &ip.workspace.ipCtx
	phi := f
	for _, s := range ctx.s {
		phi -= mu * math.Log(s)
	}
	r := mat.NewVecDense(spec.m, ctx.tr)
	r.MulVec(spec.a, mat.NewVecDense(spec.n, ctx.x))
	floats.Sub(ctx.tr, spec.b)
	return phi + ctx.nu*floats.Norm(ctx.tr, 1)
}

// maxStep returns the largest 𝛂 with 𝐯 + 𝛂𝐝 ≥ 0, or +Inf when 𝐝 ≥ 0.
func maxStep(v, d []float64) float64 {
	alpha := math.Inf(1)
	for i, di := range d {
		if di < zero {
			alpha = math.Min(alpha, -v[i]/di)
		}
	}
	return alpha
}
