// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chem

import "errors"

var (
	// ErrEmptySystem is returned when a system has no phase.
	ErrEmptySystem = errors.New("chem: empty system")
	// ErrEmptyPhase is returned when a phase has no species.
	ErrEmptyPhase = errors.New("chem: empty phase")
	// ErrDuplicateSpecies is returned when two species share a name.
	ErrDuplicateSpecies = errors.New("chem: duplicate species")
	// ErrDuplicatePhase is returned when two phases share a name.
	ErrDuplicatePhase = errors.New("chem: duplicate phase")
	// ErrPureMultiple is returned when a pure phase holds more than one species.
	ErrPureMultiple = errors.New("chem: pure phase with multiple species")
	// ErrInvalidSpecies is returned for unnamed species or non-finite coefficients.
	ErrInvalidSpecies = errors.New("chem: invalid species")
)
