// Package hashmigrate rewrites every fingerprint produced by one algorithm
// into the fingerprint of the same pool file under another.
//
// A run scans the pool for files named by the old algorithm, rehashes their
// bytes, renames asset files and thumbnails, replaces the old strings in
// both JSON indexes and reconciles the asset table. Every stage is
// idempotent so an interrupted run is finished by running it again; when a
// journal path is configured the pair mapping survives a crash between the
// rename stage and the index stages.
//
// Callers must hold the data directory lock exclusively for the duration of
// a non-dry run.
package hashmigrate
