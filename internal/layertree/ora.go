package layertree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

const oraMimetype = "image/openraster"

type oraImage struct {
	XMLName xml.Name `xml:"image"`
	Width   int      `xml:"w,attr"`
	Height  int      `xml:"h,attr"`
	Stack   oraStack `xml:"stack"`
}

type oraStack struct {
	Name       string       `xml:"name,attr"`
	Visibility string       `xml:"visibility,attr"`
	Entries    []oraElement `xml:",any"`
}

// oraElement holds either a nested stack or a layer; stack.xml interleaves
// both and their relative order is the paint order.
type oraElement struct {
	XMLName    xml.Name
	Name       string       `xml:"name,attr"`
	Src        string       `xml:"src,attr"`
	X          int          `xml:"x,attr"`
	Y          int          `xml:"y,attr"`
	Opacity    *float64     `xml:"opacity,attr"`
	Visibility string       `xml:"visibility,attr"`
	Entries    []oraElement `xml:",any"`
}

// ReadORA decodes an OpenRaster document held in memory. Layer PNGs are
// decoded lazily so one damaged layer does not prevent opening the document.
func ReadORA(data []byte, name string) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open ora archive: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[path.Clean(f.Name)] = f
	}
	if mt, ok := files["mimetype"]; ok {
		raw, err := readZipFile(mt)
		if err != nil {
			return nil, fmt.Errorf("read ora mimetype: %w", err)
		}
		if strings.TrimSpace(string(raw)) != oraMimetype {
			return nil, fmt.Errorf("unexpected ora mimetype %q", strings.TrimSpace(string(raw)))
		}
	}
	stackFile, ok := files["stack.xml"]
	if !ok {
		return nil, errors.New("ora archive has no stack.xml")
	}
	raw, err := readZipFile(stackFile)
	if err != nil {
		return nil, fmt.Errorf("read stack.xml: %w", err)
	}
	var doc oraImage
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse stack.xml: %w", err)
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, fmt.Errorf("invalid ora canvas %dx%d", doc.Width, doc.Height)
	}
	return &Document{
		Name:   name,
		Width:  doc.Width,
		Height: doc.Height,
		Layers: buildORANodes(doc.Stack.Entries, files, image.Rect(0, 0, doc.Width, doc.Height)),
	}, nil
}

// buildORANodes converts stack entries to nodes. stack.xml lists the topmost
// entry first; nodes are returned bottom first to match PSD ordering.
func buildORANodes(entries []oraElement, files map[string]*zip.File, canvas image.Rectangle) []Node {
	nodes := make([]Node, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		hidden := strings.EqualFold(entry.Visibility, "hidden")
		switch entry.XMLName.Local {
		case "stack":
			g := NewGroup(entry.Name, buildORANodes(entry.Entries, files, canvas)...)
			g.Hidden = hidden
			nodes = append(nodes, g)
		case "layer":
			nodes = append(nodes, newORALayer(entry, hidden, files, canvas))
		}
	}
	return nodes
}

func newORALayer(entry oraElement, hidden bool, files map[string]*zip.File, canvas image.Rectangle) *Layer {
	layer := &Layer{
		Label:   entry.Name,
		Hidden:  hidden,
		Opacity: oraOpacity(entry.Opacity),
		Rect:    canvas,
	}
	file, ok := files[path.Clean(entry.Src)]
	if !ok {
		layer.Source = func() (image.Image, error) {
			return nil, fmt.Errorf("layer source %q missing from archive", entry.Src)
		}
		return layer
	}
	// Size comes from the PNG header so zero-area layers are known without
	// decoding pixels. An unreadable header keeps the canvas rectangle and
	// surfaces the failure at extraction time.
	if cfg, err := decodeZipPNGConfig(file); err == nil {
		layer.Rect = image.Rect(entry.X, entry.Y, entry.X+cfg.Width, entry.Y+cfg.Height)
	}
	origin := image.Pt(entry.X, entry.Y)
	layer.Source = func() (image.Image, error) {
		img, err := decodeZipPNG(file)
		if err != nil {
			return nil, err
		}
		return offsetImage{Image: img, offset: origin.Sub(img.Bounds().Min)}, nil
	}
	return layer
}

func oraOpacity(value *float64) uint8 {
	if value == nil {
		return opaque
	}
	v := math.Max(0, math.Min(1, *value))
	return uint8(math.Round(v * float64(opaque)))
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeZipPNG(f *zip.File) (image.Image, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := png.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return img, nil
}

func decodeZipPNGConfig(f *zip.File) (image.Config, error) {
	rc, err := f.Open()
	if err != nil {
		return image.Config{}, err
	}
	defer rc.Close()
	return png.DecodeConfig(rc)
}

// offsetImage translates an image so its bounds sit at the layer position
// on the document canvas.
type offsetImage struct {
	image.Image
	offset image.Point
}

func (o offsetImage) Bounds() image.Rectangle {
	return o.Image.Bounds().Add(o.offset)
}

func (o offsetImage) At(x, y int) color.Color {
	return o.Image.At(x-o.offset.X, y-o.offset.Y)
}
