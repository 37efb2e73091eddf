package types

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filledFrame(w, h int, v byte) Frame {
	data := make([]byte, w*h*BytesPerPixel)
	for i := range data {
		data[i] = v
	}
	return Frame{Width: w, Height: h, Data: data}
}

func pixel(f Frame, x, y int) []byte {
	i := (y*f.Width + x) * BytesPerPixel
	return f.Data[i : i+BytesPerPixel]
}

func TestFrameFit_PadsTopLeftWithBlack(t *testing.T) {
	src := filledFrame(288, 288, 200)

	out := src.Fit(300, 300)

	require.True(t, out.Valid())
	assert.Equal(t, []byte{200, 200, 200}, pixel(out, 0, 0))
	assert.Equal(t, []byte{200, 200, 200}, pixel(out, 287, 287))
	assert.Equal(t, []byte{0, 0, 0}, pixel(out, 288, 0), "right padding must be black")
	assert.Equal(t, []byte{0, 0, 0}, pixel(out, 0, 288), "bottom padding must be black")
	assert.Equal(t, []byte{0, 0, 0}, pixel(out, 299, 299))
}

func TestFrameFit_CropsBottomRight(t *testing.T) {
	src := filledFrame(4, 3, 0)
	// mark the pixel that must survive and the one that must be cropped
	copy(pixel(src, 1, 1), []byte{1, 2, 3})
	copy(pixel(src, 3, 2), []byte{9, 9, 9})

	out := src.Fit(2, 2)

	require.True(t, out.Valid())
	assert.Equal(t, []byte{1, 2, 3}, pixel(out, 1, 1))
	for _, b := range out.Data {
		assert.NotEqual(t, byte(9), b)
	}
}

func TestFrameFit_KeepsMetadataAndDoesNotAlias(t *testing.T) {
	src := filledFrame(2, 2, 7)
	src.Seq = 42
	src.TraceID = "trace"

	out := src.Fit(2, 2)
	out.Data[0] = 0

	assert.Equal(t, uint64(42), out.Seq)
	assert.Equal(t, "trace", out.TraceID)
	assert.Equal(t, byte(7), src.Data[0])
}

func TestFrameValid(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  bool
	}{
		{"complete", filledFrame(3, 2, 0), true},
		{"short data", Frame{Width: 3, Height: 2, Data: make([]byte, 5)}, false},
		{"zero size", Frame{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frame.Valid())
		})
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	f := FromImage(img)

	require.True(t, f.Valid())
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, f.Data)

	nrgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	nrgba.Set(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, []byte{1, 2, 3}, FromImage(nrgba).Data)
}
