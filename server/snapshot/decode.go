package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/png"

	"github.com/bmharper/cimg/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var jpegMagic = []byte{0xff, 0xd8, 0xff}

// Decode a still image into 3 channel RGB.
// JPEG goes through libjpeg-turbo. Everything else goes through the Go image decoders.
func Decode(raw []byte) (*cimg.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("Image is empty")
	}
	if bytes.HasPrefix(raw, jpegMagic) {
		img, err := cimg.Decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("Failed to decode JPEG: %w", err)
		}
		return toRGB(img), nil
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("Failed to decode image: %w", err)
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	img := cimg.WrapImageStrided(b.Dx(), b.Dy(), cimg.PixelFormatRGBA, rgba.Pix, rgba.Stride)
	if img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("Decoded %v image has no pixels", format)
	}
	return img.ToRGB(), nil
}

func toRGB(img *cimg.Image) *cimg.Image {
	if img.NChan() == 3 && img.Format == cimg.PixelFormatRGB {
		return img
	}
	return img.ToRGB()
}
