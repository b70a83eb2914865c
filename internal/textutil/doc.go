// Package textutil provides name handling shared by the decomposer and the
// indexes: layer and group name sanitization and character name extraction
// from uploaded document file names.
//
// All names are normalized to Unicode NFC so a name typed on one platform and
// uploaded from another (macOS file names arrive decomposed) resolves to the
// same character and the same group.
package textutil
