// Package delta computes, applies and inverts path-addressed patches
// between two snapshot values.
//
// A Patch is an ordered list of Changes. Each Change names an RFC 6901 JSON
// Pointer, the value expected there before the change, and the value left
// there after it. A nil value means the location is absent, which is how
// additions and removals are told apart from writes of null.
//
// Diff trades granularity for robustness: objects are walked key by key,
// but arrays are never edit-scripted. Equal-length arrays produce one
// replace per differing index; anything else produces one replace of the
// whole array.
//
// Apply is pure: it never mutates its input and it verifies every Change's
// expected value before writing. A mismatch means the patch does not belong
// to the state it is applied to, and is reported as ErrPatchMismatch.
package delta
