// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command equilibrate computes chemical equilibrium states of systems described in YAML files.
//
//	equilibrate solve system.yaml --dndt
//	equilibrate path system.yaml --from 298.15 --to 373.15 --step 5 --png path.png
//	equilibrate sweep system.yaml --pressures 1e5,5e5,1e6 --from 300 --to 400 --step 10
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
