package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Caption layout constants, in pixels. Spacing is multiplied by the scale
// factor, margin is not.
const (
	stampMargin      = 16
	stampLineSpacing = 4
)

// Built-in bitmap face. Latin letters and digits render correctly;
// anything outside its coverage falls back to a placeholder glyph.
// Documented limitation, not a bug.
var stampFace = basicfont.Face7x13

// StampCaption burns the given text lines onto the bottom-left of a JPEG
// and returns the re-encoded bytes. The fixed bitmap face is enlarged by
// replicating each lit pixel into a scale x scale block, trading crisp
// typography for zero font-file dependencies. Text is solid opaque white
// with no outline or background layer.
//
// The block's bottom edge sits stampMargin pixels above the image's bottom
// edge; if the block is taller than the image allows, the start y clamps to
// the margin and the block may overflow past the top.
func StampCaption(jpegData []byte, lines []string, scale int) ([]byte, error) {
	if scale < 1 {
		scale = 1
	}

	img, err := imaging.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	dst := imaging.Clone(img)
	stampNRGBA(dst, lines, scale)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode stamped image: %w", err)
	}

	return buf.Bytes(), nil
}

// stampNRGBA composites the caption block onto dst in place.
func stampNRGBA(dst *image.NRGBA, lines []string, scale int) {
	lineHeight := stampFace.Height * scale
	advance := lineHeight + stampLineSpacing*scale

	totalHeight := len(lines) * advance
	height := dst.Bounds().Dy()

	y := height - stampMargin - totalHeight
	if y < stampMargin {
		y = stampMargin
	}

	for _, line := range lines {
		drawScaledLine(dst, line, stampMargin, y, scale)
		y += advance
	}
}

// drawScaledLine renders one line at 1x with the bitmap face, then
// replicates every lit pixel into a scale x scale white block at the
// target offset.
func drawScaledLine(dst *image.NRGBA, line string, x, y, scale int) {
	if line == "" {
		return
	}

	w := font.MeasureString(stampFace, line).Ceil()
	h := stampFace.Height
	if w <= 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Alpha{A: 0xff}),
		Face: stampFace,
		Dot:  fixed.P(0, stampFace.Ascent),
	}
	d.DrawString(line)

	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	bounds := dst.Bounds()

	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			if mask.AlphaAt(px, py).A == 0 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					tx := x + px*scale + dx
					ty := y + py*scale + dy
					if tx < bounds.Min.X || tx >= bounds.Max.X || ty < bounds.Min.Y || ty >= bounds.Max.Y {
						continue
					}
					dst.SetNRGBA(tx, ty, white)
				}
			}
		}
	}
}
