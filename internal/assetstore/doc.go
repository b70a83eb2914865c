// Package assetstore persists canonical asset records in SQLite.
//
// An asset is keyed by its content fingerprint. Records are created by
// decomposition, moved between the active and trashed states by curation,
// and removed only by purge, which cascades to the asset's version history.
// Every mutation runs in a single transaction and is retried with backoff
// when the database is busy.
package assetstore
