// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chem describes a multiphase chemical system: its elements, species and phases,
// and the formula matrix 𝐖 mapping species amounts 𝐧 to element amounts 𝐛 = 𝐖𝐧.
//
// A System is immutable once built and may be shared by any number of goroutines.
package chem
