// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"fmt"
	"slices"
	"time"

	"github.com/curioloop/equilibrium/optimum"
	"github.com/curioloop/equilibrium/thermo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solver computes equilibrium states with a thermodynamic model.
type Solver struct {
	model thermo.Model
	opts  Options
}

// NewSolver returns a solver using model and DefaultOptions.
func NewSolver(model thermo.Model) *Solver {
	return &Solver{model: model, opts: DefaultOptions()}
}

// SetOptions replaces the default options used by Approximate and Solve.
func (s *Solver) SetOptions(opts Options) { s.opts = opts }

// Options returns the default options.
func (s *Solver) Options() Options { return s.opts }

// Solve runs Gibbs energy minimization with the default options.
func (s *Solver) Solve(problem *Problem, state *State) (Result, error) {
	return s.SolveWith(problem, state, s.opts)
}

// SolveWith runs Gibbs energy minimization seeded from state and writes the amounts,
// multipliers, temperature and pressure back into state.
//
// The returned error reports misuse only. Infeasible element amounts and exhausted
// iteration budgets are reported by Result.Converged and Result.Status.
func (s *Solver) SolveWith(problem *Problem, state *State, opts Options) (Result, error) {
	if err := s.check(problem, state, opts); err != nil {
		return Result{}, err
	}
	start := time.Now()
	log := opts.logger().WithFields(logrus.Fields{"T": problem.t, "P": problem.p})
	hessian, _ := opts.hessian()

	g := newGibbs(s.model, problem)
	a, b := problem.Constraints()
	op := optimum.Problem{
		N:      problem.sys.NumSpecies(),
		Object: g.evaluate,
		A:      a,
		B:      b,
		Stop: optimum.Termination{
			MaxIterations: opts.MaxIterations,
			Tolerance:     opts.Tolerance,
		},
		Barrier: optimum.Barrier{
			Initial:  opts.InitialBarrierParameter,
			Fraction: opts.Fraction,
			Interior: opts.Epsilon,
		},
		Hessian: hessian,
		Logger:  log,
	}
	solver, err := op.New()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidProblem, err)
	}

	guess := state.guess(problem, opts.Epsilon)
	r := solver.Fit(guess, solver.Init())

	res := Result{
		N:       slices.Clone(r.X),
		Optimum: *r,
		Statistics: Statistics{
			Statistics: r.Statistics,
			Method:     InteriorPoint,
		},
	}

	state.t, state.p = problem.t, problem.p
	copy(state.n, r.X)
	state.y, state.z = slices.Clone(r.Y), slices.Clone(r.Z)
	state.path = nil

	switch {
	case !opts.Compute.Any():
		res.Sensitivity = SensitivityNotRequested
	case !r.Converged:
		res.Sensitivity = SensitivitySkipped
	default:
		// the last evaluation of the optimizer happened at the converged iterate
		sens := sensitivity{kkt: r.KKT, props: g.props, t: problem.t, e: problem.sys.NumElements()}
		res.Sensitivity = sens.compute(opts.Compute, &res)
		state.path = sens.tangent(problem.p)
		if res.Sensitivity == SensitivitySingular {
			log.Warn("singular KKT matrix, sensitivities left unset")
		}
	}

	res.NumModelEvals = g.evals
	res.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"converged":   res.Converged,
		"status":      res.Status.String(),
		"iterations":  res.NumIter,
		"sensitivity": res.Sensitivity.String(),
	}).Debug("equilibrium solve finished")
	return res, nil
}

func (s *Solver) check(problem *Problem, state *State, opts Options) error {
	switch {
	case s.model == nil:
		return fmt.Errorf("%w: solver has no model", ErrInvalidProblem)
	case problem == nil:
		return fmt.Errorf("%w: nil problem", ErrInvalidProblem)
	case state == nil:
		return fmt.Errorf("%w: nil state", ErrInvalidProblem)
	case problem.sys != state.sys:
		return fmt.Errorf("%w: problem and state belong to different systems", ErrInvalidProblem)
	}
	if err := problem.check(); err != nil {
		return err
	}
	return opts.Validate()
}

// guess seeds the optimizer from the state.
//   - empty state : 𝐧 = 1
//   - otherwise : the stored amounts lifted to eps, extrapolated along the recorded
//     tangent to the problem's temperature and pressure while the prediction stays positive
func (s *State) guess(problem *Problem, eps float64) optimum.Guess {
	n, m := len(s.n), problem.NumConstraints()
	if s.Empty() {
		x := make([]float64, n)
		floats.AddConst(1, x)
		return optimum.Guess{X: x}
	}

	g := optimum.Guess{X: slices.Clone(s.n)}
	if len(s.y) == m && len(s.z) == n {
		g.Y, g.Z = slices.Clone(s.y), slices.Clone(s.z)
	}
	if t := s.path; t != nil && g.Y != nil {
		t.predict(&g, problem.t-t.t, problem.p-t.p)
	}
	for i, v := range g.X {
		if v < eps {
			g.X[i] = eps
		}
	}
	return g
}

// predict moves the guess by the first-order change along temperature and pressure.
func (t *tangent) predict(g *optimum.Guess, dT, dP float64) {
	x, y, z := slices.Clone(g.X), slices.Clone(g.Y), slices.Clone(g.Z)
	if t.dndt != nil && dT != 0 {
		floats.AddScaled(x, dT, t.dndt)
		floats.AddScaled(y, dT, t.dydt)
		floats.AddScaled(z, dT, t.dzdt)
	}
	if t.dndp != nil && dP != 0 {
		floats.AddScaled(x, dP, t.dndp)
		floats.AddScaled(y, dP, t.dydp)
		floats.AddScaled(z, dP, t.dzdp)
	}
	if slices.ContainsFunc(x, func(v float64) bool { return !(v > 0) }) {
		return
	}
	for i, v := range z {
		if v > 0 {
			g.Z[i] = v
		}
	}
	g.X, g.Y = x, y
}

// gibbs is the scaled objective 𝐆/𝐑𝐓 with gradient 𝛍/𝐑𝐓 and Hessian (∂𝛍/∂𝐧)/𝐑𝐓.
type gibbs struct {
	model thermo.Model
	t, p  float64
	props *thermo.Properties
	evals int
}

func newGibbs(model thermo.Model, problem *Problem) *gibbs {
	return &gibbs{
		model: model,
		t:     problem.t,
		p:     problem.p,
		props: thermo.NewProperties(problem.sys.NumSpecies()),
	}
}

func (g *gibbs) evaluate(x, grad []float64, h *mat.Dense) (f float64) {
	g.model(g.t, g.p, x, g.props)
	g.evals++
	rt := thermo.R * g.t
	for i, u := range g.props.U {
		grad[i] = u / rt
		f += x[i] * grad[i]
	}
	if h != nil {
		h.Scale(1/rt, g.props.DUDN)
	}
	return
}
