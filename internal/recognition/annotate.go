package recognition

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/kozaktomas/facegate/internal/vision"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	boxLineWidth   = 3
	labelBarHeight = 18
)

var boxColor = color.RGBA{0, 200, 0, 255}

// annotate draws a labeled bounding box for every face and re-encodes the
// frame as JPEG.
func annotate(img image.Image, faces []vision.Face, labels []string) ([]byte, error) {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for i, face := range faces {
		if len(face.BBox) != 4 {
			continue
		}
		x1 := int(face.BBox[0])
		y1 := int(face.BBox[1])
		x2 := int(face.BBox[2])
		y2 := int(face.BBox[3])

		drawRect(dst, x1, y1, x2, y2, boxLineWidth, boxColor)

		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		if label != "" {
			drawLabel(dst, x1, y1, x2, label)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}

// drawRect draws a rectangle outline with the given line width.
func drawRect(dst *image.RGBA, x1, y1, x2, y2, lineWidth int, c color.RGBA) {
	for w := range lineWidth {
		drawHLine(dst, x1, x2, y1+w, c)
		drawHLine(dst, x1, x2, y2-w, c)
		drawVLine(dst, y1, y2, x1+w, c)
		drawVLine(dst, y1, y2, x2-w, c)
	}
}

// fillRect fills a solid rectangle, clipped to the image bounds.
func fillRect(dst *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	for y := y1; y <= y2; y++ {
		drawHLine(dst, x1, x2, y, c)
	}
}

// drawLabel renders the identity name on a solid bar above the bounding box,
// or below its top edge when the box touches the frame top.
func drawLabel(dst *image.RGBA, x1, y1, x2 int, label string) {
	barTop := y1 - labelBarHeight
	barBottom := y1 - 1
	if barTop < 0 {
		barTop = y1
		barBottom = y1 + labelBarHeight - 1
	}

	fillRect(dst, x1, barTop, x2, barBottom, boxColor)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot: fixed.Point26_6{
			X: fixed.I(x1 + 4),
			Y: fixed.I(barBottom - 4),
		},
	}
	d.DrawString(label)
}
