// Package main hosts the atelier CLI entrypoint and command graph.
//
// The Cobra-based command tree imports layered documents, inspects and
// curates pooled assets, edits the character and library indexes, runs the
// hash migration, and checks the data directory. It centralizes
// configuration resolution, data directory locking, and logging setup so
// subcommands only wire flags to the internal packages.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
