package utils

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	_ "golang.org/x/image/webp"
)

// JPEGQuality is the fixed encode quality used everywhere an image is
// re-saved along the pipeline.
const JPEGQuality = 95

// EnsureJPEG guarantees the working image is JPEG-encoded. Input that is
// already JPEG is returned byte-identical with converted=false. Anything else
// (PNG, GIF, WebP, HEIC) is decoded, forced to a 3-channel color model and
// re-encoded at the fixed quality.
func EnsureJPEG(data []byte) (out []byte, converted bool, err error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && format == "jpeg" {
		return data, false, nil
	}

	var img image.Image
	if err == nil {
		img, _, err = image.Decode(bytes.NewReader(data))
	} else if isHeifLike(data) {
		img, err = decodeHeic(data)
	}
	if err != nil || img == nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	// imaging.Clone yields NRGBA; JPEG encoding drops the alpha channel,
	// which matches the forced 3-channel conversion.
	if err := imaging.Encode(&buf, imaging.Clone(img), imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, false, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	return buf.Bytes(), true, nil
}

// CanonicalName forces the canonical .jpg extension onto a file name.
func CanonicalName(name string) string {
	ext := filepath.Ext(name)
	if ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	return name + ".jpg"
}

// Checks for the ISO BMFF "ftyp" box that opens HEIC/HEIF containers.
func isHeifLike(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := strings.ToLower(string(data[8:12]))
	return strings.HasPrefix(brand, "hei") || strings.HasPrefix(brand, "mif") || strings.HasPrefix(brand, "msf")
}

// Decodes HEIC data and applies any EXIF orientation baked into it.
func decodeHeic(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC: %w", err)
	}
	return applyOrientation(img, data), nil
}

// Reads EXIF orientation and applies correct transformations to the image.
func applyOrientation(img image.Image, input []byte) image.Image {
	x, err := exif.Decode(bytes.NewReader(input))
	if err != nil {
		return img
	}

	orientTag, err := x.Get(exif.Orientation)
	if err != nil {
		return img
	}

	orient, err := orientTag.Int(0)
	if err != nil {
		return img
	}

	// EXIF orientation values: 1=normal, 2=flip-h, 3=180, 4=flip-v, 5=transpose, 6=270, 7=transverse, 8=90
	switch orient {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		if orient != 1 {
			log.Printf("[Image] Unknown orientation value: %d", orient)
		}
		return img
	}
}
