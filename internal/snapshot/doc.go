// Package snapshot provides the canonical value model for document history.
//
// A live document is converted once, at the boundary, into a Value tree made
// of Null, Bool, Number, String, Object and Array. Everything downstream
// (diffing, hashing, persistence, reconstruction) works on that tree only.
//
// Key design constraints:
//   - Value is sealed: only the six types in this package implement it
//   - A nil Value means "absent", which is distinct from Null
//   - Object keys iterate in RFC 8785 order (UTF-16 code units)
//   - Numbers keep their canonical decimal text, so integers beyond 2^53
//     survive a round trip unchanged
//   - Values are treated as immutable once built; Canonicalize and Clone
//     return trees that share nothing with their input
//
// This package imports nothing internal.
package snapshot
