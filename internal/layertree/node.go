package layertree

import "image"

// Node is one entry of a document's layer tree.
type Node interface {
	Name() string
	IsGroup() bool
	Children() []Node
	Visible() bool
	SetVisible(bool)
	// Bounds is the node's rectangle in document canvas coordinates.
	Bounds() image.Rectangle
	// Composite renders the leaf in isolation. Hidden leaves, or leaves under
	// a hidden group, render fully transparent.
	Composite() (image.Image, error)
	// Raw returns the leaf's stored pixels without opacity or visibility.
	Raw() (image.Image, error)
}

// Document is a decoded layered image.
type Document struct {
	Name   string
	Width  int
	Height int
	Layers []Node
}

// Canvas returns the document rectangle anchored at the origin.
func (d *Document) Canvas() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// Walk visits every node depth-first in document order.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		if n.IsGroup() {
			Walk(n.Children(), fn)
		}
	}
}
