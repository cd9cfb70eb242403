// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidFile reports a system file that cannot be turned into a problem.
	ErrInvalidFile = errors.New("config: invalid system file")
	// ErrLogLevel reports an unknown log level name.
	ErrLogLevel = errors.New("config: unknown log level")
)
