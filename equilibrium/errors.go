// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package equilibrium

import "errors"

var (
	// ErrInvalidProblem is returned when a problem, state or option violates the calling contract.
	ErrInvalidProblem = errors.New("equilibrium: invalid problem")
	// ErrUnknownName is returned when a species, element or phase name is not in the system.
	ErrUnknownName = errors.New("equilibrium: unknown name")
)
