package layertree

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/oov/psd"
)

// psd layer flag bit set when the layer is hidden.
const psdHiddenFlag = 0x02

type psdNode struct {
	layer    *psd.Layer
	parent   *psdNode
	children []Node
}

// ReadPSD decodes a Photoshop document. The merged preview image is skipped;
// only per-layer pixels are read.
func ReadPSD(r io.Reader, name string) (doc *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("decode psd: %v", rec)
		}
	}()
	img, _, err := psd.Decode(r, &psd.DecodeOptions{SkipMergedImage: true})
	if err != nil {
		return nil, fmt.Errorf("decode psd: %w", err)
	}
	rect := img.Config.Rect
	if rect.Empty() {
		return nil, errors.New("decode psd: empty canvas")
	}
	return &Document{
		Name:   name,
		Width:  rect.Dx(),
		Height: rect.Dy(),
		Layers: wrapPSDLayers(img.Layer, nil),
	}, nil
}

func wrapPSDLayers(layers []psd.Layer, parent *psdNode) []Node {
	nodes := make([]Node, 0, len(layers))
	for i := range layers {
		n := &psdNode{layer: &layers[i], parent: parent}
		if n.layer.Folder() {
			n.children = wrapPSDLayers(n.layer.Layer, n)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func (n *psdNode) Name() string     { return n.layer.Name }
func (n *psdNode) IsGroup() bool    { return n.layer.Folder() }
func (n *psdNode) Children() []Node { return n.children }
func (n *psdNode) Visible() bool    { return n.layer.Visible() }

func (n *psdNode) SetVisible(v bool) {
	if v {
		n.layer.Flags &^= psdHiddenFlag
	} else {
		n.layer.Flags |= psdHiddenFlag
	}
}

func (n *psdNode) Bounds() image.Rectangle {
	if !n.IsGroup() {
		return n.layer.Rect
	}
	var r image.Rectangle
	for _, child := range n.children {
		r = r.Union(child.Bounds())
	}
	return r
}

func (n *psdNode) Composite() (image.Image, error) {
	img, err := n.Raw()
	if err != nil {
		return nil, err
	}
	visible := true
	for cur := n; cur != nil; cur = cur.parent {
		if !cur.layer.Visible() {
			visible = false
			break
		}
	}
	return isolate(img, n.layer.Opacity, visible), nil
}

func (n *psdNode) Raw() (image.Image, error) {
	if n.IsGroup() {
		return nil, errors.New("group has no pixels of its own")
	}
	if !n.layer.HasImage() || n.layer.Picker == nil {
		return nil, ErrNoPixels
	}
	return n.layer.Picker, nil
}
