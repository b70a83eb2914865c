// Package fingerprint computes content fingerprints for pooled bitmaps.
//
// A fingerprint is the lowercase hex digest of a deterministic PNG encoding of
// an image normalized to non-premultiplied RGBA, so pixel-identical images
// share a fingerprint regardless of the container they were decoded from.
// Raw files are hashed by streaming their bytes. md5, sha256, and blake3 are
// supported side by side so pools can be migrated between algorithms.
package fingerprint
