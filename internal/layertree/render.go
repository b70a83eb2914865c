package layertree

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// opaque is the alpha of a fully opaque layer.
const opaque uint8 = 255

// isolate renders src with the given layer opacity. A hidden layer yields a
// transparent image of the same bounds.
func isolate(src image.Image, alpha uint8, visible bool) image.Image {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	if !visible || alpha == 0 {
		return dst
	}
	if alpha == opaque {
		draw.Draw(dst, b, src, b.Min, draw.Src)
		return dst
	}
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, b, src, b.Min, mask, image.Point{}, draw.Over)
	return dst
}
