package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResizeTransform(t *testing.T) {
	xform := ResizeTransform{OffsetX: 0, OffsetY: 16, ScaleX: 0.5, ScaleY: 0.5}
	r := xform.ApplyBackwardRect(Rect{X: 10, Y: 26, Width: 20, Height: 10})
	require.Equal(t, Rect{X: 20, Y: 20, Width: 40, Height: 20}, r)

	objects := []ObjectDetection{{Box: Rect{X: 0, Y: 16, Width: 2, Height: 2}}}
	xform.ApplyBackward(objects)
	require.Equal(t, Rect{X: 0, Y: 0, Width: 4, Height: 4}, objects[0].Box)

	id := IdentityResizeTransform()
	require.Equal(t, Rect{X: 3, Y: 4, Width: 5, Height: 6}, id.ApplyBackwardRect(Rect{X: 3, Y: 4, Width: 5, Height: 6}))
}

func TestLetterbox(t *testing.T) {
	width, height := 200, 100
	pixels := make([]byte, width*height*3)
	for i := range pixels {
		pixels[i] = 200
	}
	nnImg, xform := Letterbox(WholeImage(3, pixels, width, height), 64, 64)
	require.Equal(t, 64, nnImg.Width)
	require.Equal(t, 64, nnImg.Height)
	require.Equal(t, 0, xform.OffsetX)
	require.Equal(t, 16, xform.OffsetY)
	require.InDelta(t, 0.32, xform.ScaleX, 0.0001)

	// Top rows are padding
	require.Equal(t, byte(114), nnImg.Pixels[0])
	// Center is image content
	center := (32*nnImg.Width + 32) * 3
	require.InDelta(t, 200, int(nnImg.Pixels[center]), 2)

	// Image that already matches the NN size is copied verbatim
	same := make([]byte, 64*64*3)
	same[0] = 7
	nnImg, xform = Letterbox(WholeImage(3, same, 64, 64), 64, 64)
	require.Equal(t, IdentityResizeTransform(), xform)
	require.Equal(t, byte(7), nnImg.Pixels[0])
}
