package layertree

import (
	"errors"
	"image"
)

// ErrNoPixels reports a leaf without any pixel source.
var ErrNoPixels = errors.New("layer has no pixel data")

// Group is an in-memory container node.
type Group struct {
	Label  string
	Hidden bool
	Items  []Node
	parent *Group
}

// NewGroup builds a group and adopts the given children.
func NewGroup(name string, children ...Node) *Group {
	g := &Group{Label: name, Items: children}
	for _, child := range children {
		switch c := child.(type) {
		case *Group:
			c.parent = g
		case *Layer:
			c.parent = g
		}
	}
	return g
}

func (g *Group) Name() string      { return g.Label }
func (g *Group) IsGroup() bool     { return true }
func (g *Group) Children() []Node  { return g.Items }
func (g *Group) Visible() bool     { return !g.Hidden }
func (g *Group) SetVisible(v bool) { g.Hidden = !v }

func (g *Group) Composite() (image.Image, error) {
	return nil, errors.New("group has no pixels of its own")
}

func (g *Group) Raw() (image.Image, error) { return g.Composite() }

func (g *Group) Bounds() image.Rectangle {
	var r image.Rectangle
	for _, child := range g.Items {
		r = r.Union(child.Bounds())
	}
	return r
}

func (g *Group) effectiveVisible() bool {
	for cur := g; cur != nil; cur = cur.parent {
		if cur.Hidden {
			return false
		}
	}
	return true
}

// Layer is an in-memory pixel leaf. Pixels come from Image, or from Source
// when Image is nil; Source lets readers defer decoding until extraction.
type Layer struct {
	Label   string
	Hidden  bool
	Rect    image.Rectangle
	Opacity uint8
	Image   image.Image
	Source  func() (image.Image, error)
	parent  *Group
}

// NewLayer builds a fully opaque visible leaf whose pixels sit at rect.
func NewLayer(name string, rect image.Rectangle, img image.Image) *Layer {
	return &Layer{Label: name, Rect: rect, Opacity: opaque, Image: img}
}

func (l *Layer) Name() string            { return l.Label }
func (l *Layer) IsGroup() bool           { return false }
func (l *Layer) Children() []Node        { return nil }
func (l *Layer) Visible() bool           { return !l.Hidden }
func (l *Layer) SetVisible(v bool)       { l.Hidden = !v }
func (l *Layer) Bounds() image.Rectangle { return l.Rect }

func (l *Layer) Composite() (image.Image, error) {
	img, err := l.pixels()
	if err != nil {
		return nil, err
	}
	visible := !l.Hidden && (l.parent == nil || l.parent.effectiveVisible())
	return isolate(img, l.Opacity, visible), nil
}

func (l *Layer) Raw() (image.Image, error) {
	return l.pixels()
}

func (l *Layer) pixels() (image.Image, error) {
	if l.Image != nil {
		return l.Image, nil
	}
	if l.Source == nil {
		return nil, ErrNoPixels
	}
	img, err := l.Source()
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoPixels
	}
	return img, nil
}
