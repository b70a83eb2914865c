// Package ingest turns uploaded layered documents into pooled assets.
//
// Each document is decomposed leaf by leaf. Every extracted leaf is written
// to the asset pool, recorded in the asset store, and the finished
// decomposition is merged into the character index under the document's
// character name. Batches run on a bounded worker pool; one document's
// failure never affects another's outcome.
package ingest
