package layertree_test

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"atelier/internal/layertree"
	"atelier/internal/services"
	"atelier/internal/testsupport"
)

func TestCompositeHiddenParentIsTransparent(t *testing.T) {
	leaf := layertree.NewLayer("eye", image.Rect(0, 0, 2, 2), testsupport.Solid(2, 2, testsupport.Red))
	group := layertree.NewGroup("Face", leaf)
	group.SetVisible(false)

	img, err := leaf.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("expected transparent pixel under hidden group, alpha=%d", a)
	}

	group.SetVisible(true)
	img, err = leaf.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	got := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
	if got != testsupport.Red {
		t.Fatalf("expected red pixel, got %+v", got)
	}
}

func TestRawIgnoresVisibility(t *testing.T) {
	leaf := layertree.NewLayer("line", image.Rect(0, 0, 1, 1), testsupport.Solid(1, 1, testsupport.Blue))
	leaf.SetVisible(false)
	img, err := leaf.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a == 0 {
		t.Fatal("raw pixels should not depend on visibility")
	}
}

func TestLayerWithoutPixels(t *testing.T) {
	leaf := &layertree.Layer{Label: "empty", Rect: image.Rect(0, 0, 1, 1)}
	if _, err := leaf.Composite(); !errors.Is(err, layertree.ErrNoPixels) {
		t.Fatalf("expected ErrNoPixels, got %v", err)
	}
}

func TestWalkVisitsDepthFirst(t *testing.T) {
	a := layertree.NewLayer("a", image.Rect(0, 0, 1, 1), nil)
	b := layertree.NewLayer("b", image.Rect(0, 0, 1, 1), nil)
	c := layertree.NewLayer("c", image.Rect(0, 0, 1, 1), nil)
	tree := []layertree.Node{layertree.NewGroup("g", a, layertree.NewGroup("inner", b)), c}

	var names []string
	layertree.Walk(tree, func(n layertree.Node) { names = append(names, n.Name()) })
	want := []string{"g", "a", "inner", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("walk order = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("walk order = %v, want %v", names, want)
		}
	}
}

func TestDecodeORA(t *testing.T) {
	data := testsupport.BuildORA(t, 8, 6,
		testsupport.ORAEntry{Name: "Hair", Group: true, Hidden: true, Children: []testsupport.ORAEntry{
			{Name: "fringe", X: 2, Y: 1, Image: testsupport.Solid(3, 2, testsupport.Green)},
		}},
		testsupport.ORAEntry{Name: "body", Image: testsupport.Solid(8, 6, testsupport.Red)},
	)

	doc, err := layertree.Decode(data, "hero.ora")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Width != 8 || doc.Height != 6 {
		t.Fatalf("canvas = %dx%d, want 8x6", doc.Width, doc.Height)
	}
	if len(doc.Layers) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(doc.Layers))
	}
	// stack.xml is topmost first; nodes come back bottom first.
	if doc.Layers[0].Name() != "body" || doc.Layers[1].Name() != "Hair" {
		t.Fatalf("unexpected order %q, %q", doc.Layers[0].Name(), doc.Layers[1].Name())
	}
	hair := doc.Layers[1]
	if !hair.IsGroup() || hair.Visible() {
		t.Fatal("Hair should be a hidden group")
	}
	fringe := hair.Children()[0]
	if got := fringe.Bounds(); got != image.Rect(2, 1, 5, 3) {
		t.Fatalf("fringe bounds = %v", got)
	}

	img, err := fringe.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if _, _, _, a := img.At(3, 2).RGBA(); a != 0 {
		t.Fatal("fringe under hidden group should composite transparent")
	}
	hair.SetVisible(true)
	img, err = fringe.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if img.Bounds() != image.Rect(2, 1, 5, 3) {
		t.Fatalf("composite bounds = %v", img.Bounds())
	}
	if got := color.NRGBAModel.Convert(img.At(3, 2)).(color.NRGBA); got != testsupport.Green {
		t.Fatalf("expected green, got %+v", got)
	}
}

func TestDecodeORABrokenLayerFailsLazily(t *testing.T) {
	data := testsupport.BuildORA(t, 4, 4,
		testsupport.ORAEntry{Name: "broken", RawPNG: []byte("not a png")},
	)
	doc, err := layertree.Decode(data, "broken.ora")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	leaf := doc.Layers[0]
	if leaf.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Fatalf("unreadable header should fall back to canvas, got %v", leaf.Bounds())
	}
	if _, err := leaf.Composite(); err == nil {
		t.Fatal("expected composite error for damaged layer")
	}
}

func TestDecodeRejectsUnsupportedExtension(t *testing.T) {
	_, err := layertree.Decode([]byte("x"), "sketch.kra")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeCorruptDocument(t *testing.T) {
	for _, name := range []string{"bad.psd", "bad.ora"} {
		_, err := layertree.Decode([]byte("garbage bytes"), name)
		if !errors.Is(err, services.ErrCorrupt) {
			t.Fatalf("%s: expected corrupt error, got %v", name, err)
		}
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := layertree.Open(filepath.Join(t.TempDir(), "missing.psd"))
	if !errors.Is(err, services.ErrIOFailure) {
		t.Fatalf("expected io failure, got %v", err)
	}
}

func TestDecodePSD(t *testing.T) {
	data := testsupport.BuildPSD(t, 32, 24,
		testsupport.ORAEntry{Name: "Accessories", Group: true, Hidden: true, Children: []testsupport.ORAEntry{
			{Name: "earring", Hidden: true, X: 9, Y: 5, Image: testsupport.Solid(4, 3, testsupport.Green)},
		}},
		testsupport.ORAEntry{Name: "body", Image: testsupport.Solid(32, 24, testsupport.Red)},
	)

	doc, err := layertree.Decode(data, "hero.psd")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Width != 32 || doc.Height != 24 {
		t.Fatalf("canvas = %dx%d, want 32x24", doc.Width, doc.Height)
	}
	if len(doc.Layers) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(doc.Layers))
	}
	if doc.Layers[0].Name() != "body" || doc.Layers[1].Name() != "Accessories" {
		t.Fatalf("unexpected order %q, %q", doc.Layers[0].Name(), doc.Layers[1].Name())
	}
	group := doc.Layers[1]
	if !group.IsGroup() || group.Visible() {
		t.Fatal("Accessories should be a hidden group")
	}
	if len(group.Children()) != 1 {
		t.Fatalf("expected one child in Accessories, got %d", len(group.Children()))
	}
	earring := group.Children()[0]
	if earring.IsGroup() || earring.Visible() || earring.Name() != "earring" {
		t.Fatalf("earring should be a hidden leaf, got %q group=%v visible=%v", earring.Name(), earring.IsGroup(), earring.Visible())
	}
	want := image.Rect(9, 5, 13, 8)
	if earring.Bounds() != want || group.Bounds() != want {
		t.Fatalf("bounds leaf=%v group=%v, want %v", earring.Bounds(), group.Bounds(), want)
	}

	raw, err := earring.Raw()
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}
	if got := color.NRGBAModel.Convert(raw.At(10, 6)).(color.NRGBA); got != testsupport.Green {
		t.Fatalf("raw pixel = %+v, want green", got)
	}

	earring.SetVisible(true)
	img, err := earring.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if _, _, _, a := img.At(10, 6).RGBA(); a != 0 {
		t.Fatal("leaf under hidden group should composite transparent")
	}
	group.SetVisible(true)
	img, err = earring.Composite()
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if got := color.NRGBAModel.Convert(img.At(12, 7)).(color.NRGBA); got != testsupport.Green {
		t.Fatalf("expected green once visible, got %+v", got)
	}

	group.SetVisible(false)
	earring.SetVisible(false)
	if group.Visible() || earring.Visible() {
		t.Fatal("hidden flag should round-trip through SetVisible")
	}
}
