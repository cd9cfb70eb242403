package numdiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Bound is the closed range [lower, upper] of one variable. NaN means unbounded.
type Bound [2]float64

// Spec estimates the Jacobian of a vector function 𝐟 : ℝⁿ → ℝᵐ by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type Spec struct {
	N, M int
	// Function of which to estimate the derivatives.
	// The argument x is an n-vector and the result is written into the m-vector y.
	// The function must not retain x.
	Func func(x, y []float64)
	// Finite difference method to use.
	Method Method
	// Optional bounds of the independent variables.
	// Steps are adjusted so that the function is never evaluated outside.
	Bounds []Bound
	// Relative step size. The absolute step is h = RelStep·sign(x)·|x|.
	// Zero selects h = ε·sign(x)·max(1,|x|) with ε chosen by the method.
	RelStep float64
	// Absolute step size, possibly adjusted to fit into the bounds.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
}

// step is the finite difference step of one variable.
type step struct {
	h       float64
	oneSide bool
}

func (s *Spec) check(x0 []float64, jac *mat.Dense) error {
	switch {
	case s.N <= 0 || s.M <= 0:
		return fmt.Errorf("%w: dimensions must be positive", ErrInvalidSpec)
	case s.Method != Forward && s.Method != Central:
		return fmt.Errorf("%w: unknown method %v", ErrInvalidSpec, s.Method)
	case s.Func == nil:
		return fmt.Errorf("%w: function is required", ErrInvalidSpec)
	case len(x0) != s.N:
		return fmt.Errorf("%w: x0 has %d elements, want %d", ErrInvalidSpec, len(x0), s.N)
	}
	if r, c := jac.Dims(); r != s.M || c != s.N {
		return fmt.Errorf("%w: jacobian is %d×%d, want %d×%d", ErrInvalidSpec, r, c, s.M, s.N)
	}
	if s.Bounds == nil {
		return nil
	}
	if len(s.Bounds) != s.N {
		return fmt.Errorf("%w: %d bounds for %d variables", ErrInvalidSpec, len(s.Bounds), s.N)
	}
	for i := range s.Bounds {
		l, u := s.bound(i)
		if l > u {
			return fmt.Errorf("%w: bound %d is empty", ErrInvalidSpec, i)
		}
		if x0[i] < l || x0[i] > u {
			return fmt.Errorf("%w: x0[%d]=%g not in [%g,%g]", ErrOutOfBounds, i, x0[i], l, u)
		}
	}
	return nil
}

func (s *Spec) bound(i int) (l, u float64) {
	l, u = s.Bounds[i][0], s.Bounds[i][1]
	if math.IsNaN(l) {
		l = math.Inf(-1)
	}
	if math.IsNaN(u) {
		u = math.Inf(1)
	}
	return
}

// Jacobian writes the m×n matrix 𝐉ᵢⱼ = ∂𝐟ᵢ/∂𝐱ⱼ evaluated at x0 into jac.
// x0 is restored before Jacobian returns.
func (s *Spec) Jacobian(x0 []float64, jac *mat.Dense) error {
	if err := s.check(x0, jac); err != nil {
		return err
	}
	steps := make([]step, s.N)
	for i, v := range x0 {
		steps[i] = s.adjust(i, v, s.absolute(v))
	}
	if s.Method == Central {
		s.central(x0, steps, jac)
	} else {
		s.forward(x0, steps, jac)
	}
	return nil
}

// Derivative returns d𝐟/dt of a function of one variable evaluated at t.
func (s *Spec) Derivative(t float64, d []float64) error {
	if len(d) != s.M {
		return fmt.Errorf("%w: derivative has %d elements, want %d", ErrInvalidSpec, len(d), s.M)
	}
	spec := *s
	spec.N = 1
	return spec.Jacobian([]float64{t}, mat.NewDense(s.M, 1, d))
}

func (s *Spec) absolute(x float64) float64 {
	eps := sqrtEps
	if s.Method == Central {
		eps = cubeEps
	}
	auto := math.Copysign(eps, x) * math.Max(1.0, math.Abs(x))
	if s.AbsStep == 0 && s.RelStep == 0 {
		return auto
	}
	h := s.AbsStep
	if h == 0 {
		h = math.Copysign(s.RelStep, x) * math.Abs(x)
	}
	if (x+h)-x == 0 {
		return auto
	}
	return h
}

// adjust fits the step of variable i into its bounds.
func (s *Spec) adjust(i int, x, h float64) step {
	if s.Method == Central {
		h = math.Abs(h)
	}
	if s.Bounds == nil {
		return step{h: h}
	}
	l, u := s.bound(i)
	if math.IsInf(l, -1) && math.IsInf(u, 1) {
		return step{h: h}
	}
	ld, ud := x-l, u-x

	if s.Method == Forward {
		violated := x+h < l || x+h > u
		fitting := math.Abs(h) < math.Max(ld, ud)
		switch {
		case violated && fitting:
			h = -h
		case !fitting && ud >= ld:
			h = ud
		case !fitting:
			h = -ld
		}
		return step{h: h}
	}

	st := step{h: h}
	central := ld >= h && ud >= h
	if !central {
		if ud >= ld {
			st = step{h: math.Min(h, 0.5*ud), oneSide: true}
		} else {
			st = step{h: -math.Min(h, 0.5*ld), oneSide: true}
		}
		if near := math.Min(ud, ld); math.Abs(st.h) <= near {
			st = step{h: near}
		}
	}
	return st
}

func (s *Spec) forward(x0 []float64, steps []step, jac *mat.Dense) {
	f0, f1 := make([]float64, s.M), make([]float64, s.M)
	s.Func(x0, f0)
	for i, st := range steps {
		x := x0[i]
		x0[i] = x + st.h
		s.Func(x0, f1)
		x0[i] = x
		for j := range f0 {
			jac.Set(j, i, (f1[j]-f0[j])/st.h)
		}
	}
}

func (s *Spec) central(x0 []float64, steps []step, jac *mat.Dense) {
	f0, f1, f2 := make([]float64, s.M), make([]float64, s.M), make([]float64, s.M)
	s.Func(x0, f0)
	for i, st := range steps {
		x, d := x0[i], 1.0/(2*st.h)
		if st.oneSide {
			x0[i] = x + st.h
			s.Func(x0, f1)
			x0[i] = x + 2*st.h
			s.Func(x0, f2)
			for j := range f0 {
				jac.Set(j, i, (4*f1[j]-3*f0[j]-f2[j])*d)
			}
		} else {
			x0[i] = x - st.h
			s.Func(x0, f1)
			x0[i] = x + st.h
			s.Func(x0, f2)
			for j := range f0 {
				jac.Set(j, i, (f2[j]-f1[j])*d)
			}
		}
		x0[i] = x
	}
}
