// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimum

import "errors"

var (
	// ErrInvalidProblem indicates a malformed optimization problem.
	ErrInvalidProblem = errors.New("optimum: invalid problem")
	// ErrSingularKKT indicates the KKT matrix is singular or too ill-conditioned to solve.
	ErrSingularKKT = errors.New("optimum: singular KKT matrix")
)
