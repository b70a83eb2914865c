package fingerprint

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
)

// chunkSize bounds memory used when streaming file bytes.
const chunkSize = 64 * 1024

// encoder settings are part of the fingerprint definition; changing them
// changes every image fingerprint.
var encoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Hasher computes fingerprints with a fixed algorithm.
type Hasher struct {
	alg Algorithm
}

// New returns a hasher for alg. Unknown algorithms fall back to sha256.
func New(alg Algorithm) *Hasher {
	if _, ok := patterns[alg]; !ok {
		alg = SHA256
	}
	return &Hasher{alg: alg}
}

// Algorithm returns the digest the hasher uses.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// HashImage fingerprints the logical pixel content of img.
func (h *Hasher) HashImage(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("hash image: nil image")
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return "", fmt.Errorf("hash image: %w", err)
	}
	return h.HashBytes(buf.Bytes()), nil
}

// HashBytes fingerprints an in-memory byte slice.
func (h *Hasher) HashBytes(data []byte) string {
	digest := h.alg.newHash()
	_, _ = digest.Write(data)
	return hex.EncodeToString(digest.Sum(nil))
}

// HashReader fingerprints everything read from r in bounded chunks.
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	digest := h.alg.newHash()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(digest, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashFile fingerprints the raw bytes of the file at path.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fp, err := h.HashReader(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return fp, nil
}

// Normalized converts img to non-premultiplied RGBA anchored at the origin.
// Images already in that form are returned as-is.
func Normalized(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG writes the canonical PNG encoding of img used for fingerprinting
// and for pool files.
func EncodePNG(w io.Writer, img image.Image) error {
	return encoder.Encode(w, Normalized(img))
}
