// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package thermo evaluates chemical potentials and their derivatives.
//
// The chemical potential of species 𝒊 is
//
//	𝛍ᵢ(𝐓,𝐏,𝐧) = 𝛍°ᵢ(𝐓,𝐏) + 𝐑𝐓 𝚕𝚗𝐚ᵢ(𝐓,𝐏,𝐧)
//
// with the standard potential
//
//	𝛍°ᵢ = 𝐇°ᵢ - 𝐓𝐒°ᵢ + 𝐕°ᵢ(𝐏 - 𝐏ᵣ),  𝐒°ᵢ = (𝐇°ᵢ - 𝐆°ᵢ)/𝐓ᵣ
//
// built from data at the reference state 𝐓ᵣ = 298.15 K, 𝐏ᵣ = 10⁵ Pa, and an activity 𝐚ᵢ
// chosen by the kind of the phase holding the species. All quantities are SI: J/mol, K, Pa.
package thermo
