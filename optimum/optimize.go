// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

import (
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Evaluation evaluates the objective function, its gradient and its Hessian.
//   - 𝒇(𝐱) : ℝⁿ → ℝ
//   - 𝒇′(𝐱) : ℝⁿ → ℝⁿ written into g
//   - 𝒇″(𝐱) : ℝⁿ → ℝⁿˣⁿ written into h, which is nil when second derivatives are not needed
//
// The Hessian h is zeroed before every call.
type Evaluation func(x, g []float64, h *mat.Dense) (f float64)

// Termination specifies the stopping criteria for the interior-point iteration.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// Combined tolerance used for every residual below that is left zero.
	Tolerance float64
	// The iteration may stop when ‖𝐀𝐱 - 𝐛‖∞ ≤ Feasibility.
	Feasibility float64
	// The iteration may stop when ‖𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳‖∞ ≤ Optimality.
	Optimality float64
	// The iteration may stop when ‖𝐒𝐳‖∞ ≤ Complementarity where 𝐒 = diag(𝐱 - 𝒍).
	Complementarity float64
}

// Barrier specifies the barrier parameter schedule and the boundary rule.
type Barrier struct {
	// Initial barrier parameter 𝛍₀. Bound multipliers are started at 𝐳ᵢ = 𝛍₀/𝐬ᵢ
	// unless a warm start supplies them, in which case 𝛍 starts from 𝐬ᵀ𝐳/n.
	// It is never below a tenth of the tightest tolerance.
	Initial float64
	// Fraction-to-the-boundary factor 𝛕 ∈ (0,1): 𝐬 + 𝛂𝚫𝐬 ≥ (1-𝛕)𝐬.
	Fraction float64
	// Fixed centering parameter 𝛔 ∈ (0,1) targeting 𝐒𝐳 = 𝛔(𝐬ᵀ𝐳/n)𝐞 at every iteration.
	// Zero selects the monotone barrier schedule.
	Sigma float64
	// Distance to the bounds assigned to initial variables that are not strictly interior.
	Interior float64
}

// Problem specifies the problem
//
//	minimize 𝒇(𝐱) subject to 𝐀𝐱 = 𝐛 and 𝐱 ≥ 𝒍
type Problem struct {
	N              int                // The problem dimension
	Object         Evaluation         // Objective function 𝒇(𝐱) with gradient and Hessian
	A              mat.Matrix         // Equality constraint matrix (m × n)
	B              []float64          // Equality right-hand side (m)
	Lower          []float64          // Optional lower bounds, zero when nil
	Stop           Termination        // Stop condition
	Barrier        Barrier            // Barrier option
	Hessian        HessianMode        // Second-order information
	Regularization float64            // The 𝛅 in the (2,2) block -𝛅𝐈 of the KKT matrix
	Logger         logrus.FieldLogger // Optional iteration logger
}

// New creates a new interior-point solver for the given problem.
func (p *Problem) New() (solver *Solver, err error) {

	n, stop, bar := p.N, p.Stop, p.Barrier

	if bar.Initial == zero {
		bar.Initial = 1e-8
	}
	if bar.Fraction == zero {
		bar.Fraction = 0.99
	}
	if bar.Interior == zero {
		bar.Interior = 1e-16
	}
	if stop.Feasibility == zero {
		stop.Feasibility = stop.Tolerance
	}
	if stop.Optimality == zero {
		stop.Optimality = stop.Tolerance
	}
	if stop.Complementarity == zero {
		stop.Complementarity = stop.Tolerance
	}
	reg := p.Regularization
	if reg == zero {
		reg = 1e-14
	}

	var m, c int
	if p.A != nil {
		m, c = p.A.Dims()
	}

	switch {
	case n <= 0:
		err = fmt.Errorf("%w: problem dimension must greater than 0", ErrInvalidProblem)
	case p.Object == nil:
		err = fmt.Errorf("%w: objective function is required", ErrInvalidProblem)
	case p.A == nil:
		err = fmt.Errorf("%w: constraint matrix is required", ErrInvalidProblem)
	case c != n:
		err = fmt.Errorf("%w: constraint matrix has %d columns, want %d", ErrInvalidProblem, c, n)
	case len(p.B) != m:
		err = fmt.Errorf("%w: right-hand side size %d must equal to %d constraints", ErrInvalidProblem, len(p.B), m)
	case p.Lower != nil && len(p.Lower) != n:
		err = fmt.Errorf("%w: lower bound size must equal to n", ErrInvalidProblem)
	case stop.MaxIterations <= 0:
		err = fmt.Errorf("%w: max iteration must greater than 0", ErrInvalidProblem)
	case !(stop.Feasibility > zero) || !(stop.Optimality > zero) || !(stop.Complementarity > zero):
		err = fmt.Errorf("%w: tolerances must greater than 0", ErrInvalidProblem)
	case !(bar.Initial > zero):
		err = fmt.Errorf("%w: initial barrier parameter must greater than 0", ErrInvalidProblem)
	case !(bar.Fraction > zero && bar.Fraction < one):
		err = fmt.Errorf("%w: fraction to boundary must lie in (0,1)", ErrInvalidProblem)
	case bar.Sigma < zero || bar.Sigma >= one:
		err = fmt.Errorf("%w: centering parameter must lie in [0,1)", ErrInvalidProblem)
	case !(bar.Interior > zero):
		err = fmt.Errorf("%w: interior distance must greater than 0", ErrInvalidProblem)
	case reg < zero:
		err = fmt.Errorf("%w: regularization must not less than 0", ErrInvalidProblem)
	case p.Hessian < HessianExact || p.Hessian > HessianBFGS:
		err = fmt.Errorf("%w: unknown hessian mode %d", ErrInvalidProblem, p.Hessian)
	}
	if err != nil {
		return
	}

	for i, v := range p.B {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: right-hand side is not finite at %d", ErrInvalidProblem, i)
		}
	}

	lower := make([]float64, n)
	if p.Lower != nil {
		for i, l := range p.Lower {
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return nil, fmt.Errorf("%w: lower bound is not finite at %d", ErrInvalidProblem, i)
			}
		}
		copy(lower, p.Lower)
	}

	logger := p.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	solver = &Solver{
		ipSpec{
			n: n, m: m,
			a:       mat.DenseCopyOf(p.A),
			b:       slices.Clone(p.B),
			lower:   lower,
			object:  p.Object,
			stop:    stop,
			barrier: bar,
			hessian: p.Hessian,
			reg:     reg,
			logger:  logger,
		},
	}
	return
}

// Solver implemented using a primal-dual interior-point method.
type Solver struct {
	ipSpec
}

// Dims returns the number of variables and equality constraints.
func (o *Solver) Dims() (n, m int) {
	return o.n, o.m
}

// Workspace contains the state and context of the iteration.
// Given problem dimension n and m constraints,
// total work space is approximately float64[2×(n+m)² + n² + 20×n + 8×m].
type Workspace struct {
	n, m int
	ipCtx
}

// Guess is the starting point of a solve.
// Y and Z are optional and enable a warm start of the multipliers.
type Guess struct {
	X, Y, Z []float64
}

// Residual records the residual norms of one iterate.
type Residual struct {
	Feasibility     float64 // ‖𝐀𝐱 - 𝐛‖∞
	Optimality      float64 // ‖𝜵𝒇 + 𝐀ᵀ𝐲 - 𝐳‖∞
	Complementarity float64 // ‖𝐒𝐳‖∞
	Mu              float64 // 𝐬ᵀ𝐳/n
}

// Norm returns the largest of the three residual norms.
func (r Residual) Norm() float64 {
	return math.Max(r.Feasibility, math.Max(r.Optimality, r.Complementarity))
}

// Statistics contains a summary of the optimization process.
type Statistics struct {
	Status    Status        // Final task status after optimization.
	Converged bool          // Whether every residual met its tolerance.
	NumIter   int           // Number of Newton steps performed.
	NumEval   int           // Number of objective evaluations performed.
	Elapsed   time.Duration // Wall time spent in the solve.
	Residual                // Residual norms of the returned iterate.
	History   []Residual    // Residual norms of every visited iterate.
}

// Result contains the final result of the optimization process.
type Result struct {
	F          float64        // Final function value.
	X, G       []float64      // Final solution and gradient.
	Y          []float64      // Multipliers of the equality constraints.
	Z          []float64      // Multipliers of the lower bounds.
	KKT        *Factorization // KKT factorization at the converged iterate, nil when not converged or singular there.
	Statistics                // Optimization summary.
}

// Init allocate the workspace for the interior-point solver.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one solver.
func (o *Solver) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m = o.n, o.m
	w.init(o.n, o.m)
	return w
}

// Fit runs the optimization process from the guess g using workspace w.
func (o *Solver) Fit(g Guess, w *Workspace) *Result {

	if len(g.X) != o.n {
		panic("initial x dimension not match spec")
	}
	if g.Y != nil && len(g.Y) != o.m {
		panic("initial y dimension not match spec")
	}
	if g.Z != nil && len(g.Z) != o.n {
		panic("initial z dimension not match spec")
	}
	if w.n != o.n || w.m != o.m {
		panic("workspace dimension not match spec")
	}

	start := time.Now()
	solver := ipSolver{
		solver:    o,
		workspace: w,
	}
	solver.initCtx(g)
	res := solver.mainLoop()

	ctx := &w.ipCtx
	r := &Result{
		Statistics: Statistics{
			Status:    res,
			Converged: res == Solved,
			NumIter:   ctx.iter,
			NumEval:   ctx.eval,
			History:   slices.Clone(ctx.history),
		},
	}
	if r.Converged {
		r.F, r.X, r.G = ctx.f, slices.Clone(ctx.x), slices.Clone(ctx.g)
		r.Y, r.Z = slices.Clone(ctx.y), slices.Clone(ctx.z)
		r.Residual = ctx.last
		// hand the factorization over so the next solve cannot overwrite it
		r.KKT, ctx.kkt = ctx.kkt, nil
	} else {
		b := &ctx.best
		r.F, r.X, r.G = b.f, slices.Clone(b.x), slices.Clone(b.g)
		r.Y, r.Z = slices.Clone(b.y), slices.Clone(b.z)
		r.Residual = b.res
	}
	r.Elapsed = time.Since(start)

	o.logger.WithFields(logrus.Fields{
		"status":      res.String(),
		"iterations":  r.NumIter,
		"evaluations": r.NumEval,
		"residual":    r.Residual.Norm(),
	}).Debug("interior-point solve finished")
	return r
}
