// Package decompose walks a layered document and turns every leaf layer into
// a canvas-sized, fingerprinted bitmap.
//
// The walk is sequential per document. Every visited node is forced visible
// for the duration of its visit and its original flag is restored on return,
// including when an extractor panics or the context is cancelled. Each
// extracted leaf is handed to a Sink, which persists it before the walk moves
// on, so a cancelled decomposition leaves only fully committed assets behind.
//
// The returned Result is a value the caller merges into the character index;
// the walk itself never touches shared state.
package decompose
