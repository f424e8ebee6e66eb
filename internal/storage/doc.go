// Package storage persists the list of delivered identities.
//
// Two drivers are available:
//   - "file": a human-readable JSON array of strings, rewritten in full on
//     every append
//   - "sqlite": one row per identity, insertion order preserved
//
// Stores assume a single writer; concurrent processes sharing the same
// path are not supported.
package storage
