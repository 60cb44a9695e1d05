// Package ir provides the shared vocabulary of the validation language.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Operation names are a closed enumeration (Op); dispatch on them is an
//     exhaustive switch, never a string-keyed lookup
//   - Step lines are immutable; translation always produces new lines
//   - Rule order is significant: rules are matched first-match, in row order
package ir
