package nn

import (
	"github.com/bmharper/cimg/v2"
)

// ResizeTransform maps coordinates in the NN input image back to the original image.
// The NN image is the original image scaled by (ScaleX, ScaleY) and then offset by (OffsetX, OffsetY).
type ResizeTransform struct {
	OffsetX int
	OffsetY int
	ScaleX  float32
	ScaleY  float32
}

func IdentityResizeTransform() ResizeTransform {
	return ResizeTransform{
		ScaleX: 1,
		ScaleY: 1,
	}
}

// Transform a rectangle from NN space back into original image space
func (t ResizeTransform) ApplyBackwardRect(r Rect) Rect {
	x1 := float32(r.X-t.OffsetX) / t.ScaleX
	y1 := float32(r.Y-t.OffsetY) / t.ScaleY
	x2 := float32(r.X2()-t.OffsetX) / t.ScaleX
	y2 := float32(r.Y2()-t.OffsetY) / t.ScaleY
	return Rect{
		X:      int(x1 + 0.5),
		Y:      int(y1 + 0.5),
		Width:  int(x2+0.5) - int(x1+0.5),
		Height: int(y2+0.5) - int(y1+0.5),
	}
}

// Transform all object boxes from NN space back into original image space
func (t ResizeTransform) ApplyBackward(objects []ObjectDetection) {
	for i := range objects {
		objects[i].Box = t.ApplyBackwardRect(objects[i].Box)
	}
}

// Letterbox scales 'img' so that it fits inside nnWidth x nnHeight, preserving aspect ratio,
// and centers it on a gray canvas (114,114,114), which is the padding that YOLO models are trained with.
// The returned transform maps NN coordinates back to 'img' coordinates.
func Letterbox(img ImageCrop, nnWidth, nnHeight int) (*cimg.Image, ResizeTransform) {
	const padValue = 114
	xform := IdentityResizeTransform()

	src := cimg.WrapImageStrided(img.CropWidth, img.CropHeight, cimg.PixelFormatRGB, img.Pixels[(img.CropY*img.ImageWidth+img.CropX)*img.NChan:], img.Stride())
	dst := cimg.NewImage(nnWidth, nnHeight, cimg.PixelFormatRGB)
	for i := range dst.Pixels {
		dst.Pixels[i] = padValue
	}

	scale := min(float32(nnWidth)/float32(img.CropWidth), float32(nnHeight)/float32(img.CropHeight))
	scaledWidth := min(nnWidth, int(float32(img.CropWidth)*scale+0.5))
	scaledHeight := min(nnHeight, int(float32(img.CropHeight)*scale+0.5))
	offsetX := (nnWidth - scaledWidth) / 2
	offsetY := (nnHeight - scaledHeight) / 2
	xform.ScaleX = scale
	xform.ScaleY = scale
	xform.OffsetX = offsetX
	xform.OffsetY = offsetY

	window := dst.Pixels[(offsetY*nnWidth+offsetX)*3:]
	if scaledWidth == img.CropWidth && scaledHeight == img.CropHeight {
		dstWrap := cimg.WrapImageStrided(scaledWidth, scaledHeight, cimg.PixelFormatRGB, window, dst.Stride)
		dstWrap.CopyImageRect(src, 0, 0, scaledWidth, scaledHeight, 0, 0)
		return dst, xform
	}

	resizeParams := cimg.ResizeParams{CheapSRGBFilter: true}
	if scale < 1 {
		// We use box filter for downsampling, in case we have a massive ratio
		resizeParams.Filter = cimg.ResizeFilterBox
	} else {
		// Triangle is bilinear on upsampling
		resizeParams.Filter = cimg.ResizeFilterTriangle
	}
	dstWrap := cimg.WrapImageStrided(scaledWidth, scaledHeight, cimg.PixelFormatRGB, window, dst.Stride)
	cimg.Resize(src, dstWrap, &resizeParams)
	return dst, xform
}
