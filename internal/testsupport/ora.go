package testsupport

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ORAEntry describes one stack.xml element. Entries with Group set become
// nested stacks; the rest become PNG layers. Lists are topmost first, as in
// stack.xml.
type ORAEntry struct {
	Name     string
	Group    bool
	Hidden   bool
	X, Y     int
	Image    image.Image
	RawPNG   []byte
	Children []ORAEntry
}

// BuildORA assembles an OpenRaster archive in memory.
func BuildORA(t testing.TB, width, height int, entries ...ORAEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	write("mimetype", []byte("image/openraster"))

	var stack strings.Builder
	fmt.Fprintf(&stack, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+`<image w="%d" h="%d"><stack>`, width, height)
	counter := 0
	var emit func([]ORAEntry)
	emit = func(list []ORAEntry) {
		for _, e := range list {
			vis := "visible"
			if e.Hidden {
				vis = "hidden"
			}
			if e.Group {
				fmt.Fprintf(&stack, `<stack name="%s" visibility="%s">`, e.Name, vis)
				emit(e.Children)
				stack.WriteString(`</stack>`)
				continue
			}
			counter++
			src := fmt.Sprintf("data/layer%d.png", counter)
			data := e.RawPNG
			if data == nil && e.Image != nil {
				var img bytes.Buffer
				if err := png.Encode(&img, e.Image); err != nil {
					t.Fatalf("encode layer %s: %v", e.Name, err)
				}
				data = img.Bytes()
			}
			write(src, data)
			fmt.Fprintf(&stack, `<layer name="%s" src="%s" x="%d" y="%d" visibility="%s"/>`, e.Name, src, e.X, e.Y, vis)
		}
	}
	emit(entries)
	stack.WriteString(`</stack></image>`)
	write("stack.xml", []byte(stack.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteORA builds an OpenRaster archive and writes it under dir with the
// given file name, returning the full path.
func WriteORA(t testing.TB, dir, name string, width, height int, entries ...ORAEntry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, BuildORA(t, width, height, entries...))
	return path
}
