// Package layertree models layered image documents as a tree of groups and
// pixel-bearing leaves, independent of the file format they were read from.
//
// Open reads Photoshop (.psd) and OpenRaster (.ora) documents. Every node
// exposes a mutable visibility flag because isolating a leaf's pixels honours
// the visibility of the leaf and all of its ancestors. Leaves offer two pixel
// accessors: Composite applies layer opacity and visibility, Raw returns the
// stored channel data untouched.
package layertree
