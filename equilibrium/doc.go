// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package equilibrium computes chemical equilibrium by Gibbs energy minimization
//
//	minimize 𝐆(𝐧)/𝐑𝐓 = ∑𝐧ᵢ𝛍ᵢ/𝐑𝐓 subject to 𝐖𝐧 = 𝐛, 𝐂𝐧 = 𝐜 and 𝐧 ≥ 0
//
// where 𝐖 is the formula matrix of the system and 𝐂𝐧 = 𝐜 collects fixed species and phase amounts.
//
// A Solver is stateless apart from its default options and may be shared.
// A State carries the amounts and multipliers between calls and enables warm starts
// along temperature or pressure paths; it belongs to one goroutine at a time.
//
// Sensitivities ∂𝐧/∂𝐓, ∂𝐧/∂𝐏 and ∂𝐧/∂𝐛 follow from the implicit function theorem
// applied to the optimality conditions, solved with the KKT factorization retained by the optimizer.
package equilibrium
