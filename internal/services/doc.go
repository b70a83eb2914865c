// Package services defines shared utilities consumed by the asset pipeline
// packages and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, document names, and character
//     names for logging and tracing.
//   - Structured error markers plus the Wrap helper, and Code which maps a
//     failure onto the stable error code reported to operators.
//
// Use these helpers when wiring new pipeline logic so error classification and
// observability stay uniform across the pool, the stores, and the indexes.
package services
