// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import (
	"fmt"
	"io"

	"github.com/curioloop/equilibrium/optimum"
	"github.com/sirupsen/logrus"
)

// Compute selects the sensitivities computed after a converged solve.
type Compute struct {
	DnDT bool `mapstructure:"dndt" yaml:"dndt"` // ∂𝐧/∂𝐓
	DnDP bool `mapstructure:"dndp" yaml:"dndp"` // ∂𝐧/∂𝐏
	DnDB bool `mapstructure:"dndb" yaml:"dndb"` // ∂𝐧/∂𝐛
}

// Any reports whether any sensitivity is requested.
func (c Compute) Any() bool { return c.DnDT || c.DnDP || c.DnDB }

// Options tunes the equilibrium solver.
type Options struct {
	Compute Compute `mapstructure:"compute" yaml:"compute"`
	// Iteration budget of the interior-point method.
	MaxIterations int `mapstructure:"maxIterations" yaml:"maxIterations"`
	// Tolerance of feasibility, optimality and complementarity residuals scaled by 1/𝐑𝐓.
	Tolerance float64 `mapstructure:"tolerance" yaml:"tolerance"`
	// Initial barrier parameter 𝛍₀.
	InitialBarrierParameter float64 `mapstructure:"initialBarrierParameter" yaml:"initialBarrierParameter"`
	// Fraction-to-the-boundary factor.
	Fraction float64 `mapstructure:"fraction" yaml:"fraction"`
	// Second-order information: exact, diagonal or bfgs.
	Hessian string `mapstructure:"hessian" yaml:"hessian"`
	// Smallest amount a warm start or an approximation assigns to a species.
	Epsilon float64 `mapstructure:"epsilon" yaml:"epsilon"`
	// Logger receives solver progress. Nil discards it.
	Logger logrus.FieldLogger `mapstructure:"-" yaml:"-"`
}

// DefaultOptions returns the default solver options.
func DefaultOptions() Options {
	return Options{
		MaxIterations:           200,
		Tolerance:               1e-8,
		InitialBarrierParameter: 1e-8,
		Fraction:                0.99,
		Hessian:                 optimum.HessianExact.String(),
		Epsilon:                 1e-16,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	_, err := o.hessian()
	switch {
	case err != nil:
		return err
	case o.MaxIterations <= 0:
		return fmt.Errorf("%w: maxIterations must be positive", ErrInvalidProblem)
	case !(o.Tolerance > 0):
		return fmt.Errorf("%w: tolerance must be positive", ErrInvalidProblem)
	case !(o.InitialBarrierParameter > 0):
		return fmt.Errorf("%w: initialBarrierParameter must be positive", ErrInvalidProblem)
	case !(o.Fraction > 0 && o.Fraction < 1):
		return fmt.Errorf("%w: fraction must lie in (0,1)", ErrInvalidProblem)
	case !(o.Epsilon > 0):
		return fmt.Errorf("%w: epsilon must be positive", ErrInvalidProblem)
	}
	return nil
}

func (o Options) hessian() (optimum.HessianMode, error) {
	if o.Hessian == "" {
		return optimum.HessianExact, nil
	}
	mode, ok := optimum.ParseHessianMode(o.Hessian)
	if !ok {
		return mode, fmt.Errorf("%w: unknown hessian %q", ErrInvalidProblem, o.Hessian)
	}
	return mode, nil
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
