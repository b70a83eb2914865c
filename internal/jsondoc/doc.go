// Package jsondoc owns whole-file JSON documents that are read-modify-written
// on every mutation.
//
// A Store serializes writers twice: an in-process RWMutex and an exclusive
// flock on "<file>.lock" so separate atelier processes cannot interleave
// updates. Each update re-reads the file inside the locked section, so a
// mutation always applies to the latest saved state. Readers only take the
// in-process read lock; writes land through a temp file and rename, so a
// reader sees either the previous or the next complete document.
package jsondoc
