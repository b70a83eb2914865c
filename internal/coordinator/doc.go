// Package coordinator keeps the asset store, the content pool, and the two
// JSON indexes consistent for lifecycle operations that span them.
//
// Purge cascades in a fixed order: pool file, thumbnail, character refs,
// library refs, and finally the database row. Each step is a no-op when its
// target is already gone, so a cascade interrupted midway is completed by
// running purge again; keeping the row until last is what lets the retry
// find the asset still trashed.
package coordinator
