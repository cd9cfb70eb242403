// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thermo

import "errors"

var (
	// ErrDataSize is returned when the standard data does not cover every species.
	ErrDataSize = errors.New("thermo: standard data size not match system")
	// ErrInvalidData is returned for non-finite standard data.
	ErrInvalidData = errors.New("thermo: invalid standard data")
)
