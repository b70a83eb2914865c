package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

// Photoshop layer record constants used by the fixture writer.
const (
	psdFlagHidden   = 0x02
	psdFlagModern   = 0x08
	psdOpenFolder   = 1
	psdGroupDivider = 3
	psdDividerName  = "</Layer group>"
)

type psdRecord struct {
	name    string
	rect    image.Rectangle
	flags   byte
	section int
	planes  [4][]byte // R, G, B, alpha
}

// BuildPSD encodes the entry tree as an 8-bit RGB Photoshop document with
// uncompressed channels. Entries are topmost first, as for BuildORA; each
// leaf is placed at X, Y with its image's own size.
func BuildPSD(t testing.TB, width, height int, entries ...ORAEntry) []byte {
	t.Helper()

	var records []psdRecord
	var emit func([]ORAEntry)
	emit = func(list []ORAEntry) {
		// Photoshop stores layers bottom first.
		for i := len(list) - 1; i >= 0; i-- {
			e := list[i]
			flags := byte(psdFlagModern)
			if e.Hidden {
				flags |= psdFlagHidden
			}
			if e.Group {
				records = append(records, psdRecord{name: psdDividerName, flags: psdFlagModern | psdFlagHidden, section: psdGroupDivider})
				emit(e.Children)
				records = append(records, psdRecord{name: e.Name, flags: flags, section: psdOpenFolder})
				continue
			}
			if e.Image == nil {
				t.Fatalf("psd layer %s has no image", e.Name)
			}
			records = append(records, psdLeaf(e, flags))
		}
	}
	emit(entries)

	var layers bytes.Buffer
	put(&layers, uint16(len(records)))
	for _, rec := range records {
		writePSDRecord(t, &layers, rec)
	}
	for _, rec := range records {
		for _, plane := range rec.planes {
			put(&layers, uint16(0)) // raw
			layers.Write(plane)
		}
	}
	if layers.Len()%2 != 0 {
		layers.WriteByte(0)
	}

	var out bytes.Buffer
	out.WriteString("8BPS")
	put(&out, uint16(1))
	out.Write(make([]byte, 6))
	put(&out, uint16(3))
	put(&out, uint32(height))
	put(&out, uint32(width))
	put(&out, uint16(8))
	put(&out, uint16(3)) // RGB
	put(&out, uint32(0)) // color mode data
	put(&out, uint32(0)) // image resources

	put(&out, uint32(4+layers.Len()+4))
	put(&out, uint32(layers.Len()))
	out.Write(layers.Bytes())
	put(&out, uint32(0)) // global layer mask

	put(&out, uint16(0))
	out.Write(make([]byte, 3*width*height))
	return out.Bytes()
}

// WritePSD builds a Photoshop document and writes it under dir with the given
// file name, returning the full path.
func WritePSD(t testing.TB, dir, name string, width, height int, entries ...ORAEntry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, BuildPSD(t, width, height, entries...))
	return path
}

func psdLeaf(e ORAEntry, flags byte) psdRecord {
	src := e.Image.Bounds()
	rec := psdRecord{
		name:  e.Name,
		rect:  image.Rect(e.X, e.Y, e.X+src.Dx(), e.Y+src.Dy()),
		flags: flags,
	}
	n := src.Dx() * src.Dy()
	for i := range rec.planes {
		rec.planes[i] = make([]byte, 0, n)
	}
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			c := color.NRGBAModel.Convert(e.Image.At(x, y)).(color.NRGBA)
			rec.planes[0] = append(rec.planes[0], c.R)
			rec.planes[1] = append(rec.planes[1], c.G)
			rec.planes[2] = append(rec.planes[2], c.B)
			rec.planes[3] = append(rec.planes[3], c.A)
		}
	}
	return rec
}

func writePSDRecord(t testing.TB, buf *bytes.Buffer, rec psdRecord) {
	t.Helper()

	for _, v := range []int{rec.rect.Min.Y, rec.rect.Min.X, rec.rect.Max.Y, rec.rect.Max.X} {
		put(buf, int32(v))
	}
	put(buf, uint16(len(rec.planes)))
	for i, id := range []int16{0, 1, 2, -1} {
		put(buf, id)
		put(buf, uint32(2+len(rec.planes[i])))
	}

	blend := "norm"
	if rec.section != 0 {
		blend = "pass"
	}
	buf.WriteString("8BIM")
	buf.WriteString(blend)
	buf.Write([]byte{255, 0, rec.flags, 0})

	var extra bytes.Buffer
	put(&extra, uint32(0)) // layer mask
	put(&extra, uint32(0)) // blending ranges
	if len(rec.name) > 255 {
		t.Fatalf("psd layer name too long: %q", rec.name)
	}
	extra.WriteByte(byte(len(rec.name)))
	extra.WriteString(rec.name)
	if gap := (1 + len(rec.name)) % 4; gap != 0 {
		extra.Write(make([]byte, 4-gap))
	}
	if rec.section != 0 {
		extra.WriteString("8BIMlsct")
		put(&extra, uint32(12))
		put(&extra, uint32(rec.section))
		extra.WriteString("8BIM")
		extra.WriteString(blend)
	}
	put(buf, uint32(extra.Len()))
	buf.Write(extra.Bytes())
}

func put(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.BigEndian, v)
}
