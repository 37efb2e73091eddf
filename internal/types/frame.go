package types

import (
	"image"
	"time"
)

// BytesPerPixel is the size of one RGB24 pixel.
const BytesPerPixel = 3

// Frame represents a single camera frame
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame was captured
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains the frame data (RGB24, row-major, no padding)
	Data []byte
	// Source identifies the camera backend (gst, file, synthetic)
	Source string
	// TraceID is a unique identifier used to correlate logs of one cycle
	TraceID string
}

// Valid reports whether Data holds exactly Width*Height RGB24 pixels.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) == f.Width*f.Height*BytesPerPixel
}

// Fit returns a copy of the frame padded or cropped to width x height.
//
// The source is aligned to the top-left corner: rows and columns beyond the
// source are zero (black), rows and columns beyond the target are dropped.
// Pixels are never resampled.
func (f Frame) Fit(width, height int) Frame {
	out := f
	out.Width = width
	out.Height = height
	out.Data = make([]byte, width*height*BytesPerPixel)

	cols := min(width, f.Width)
	rows := min(height, f.Height)
	rowBytes := cols * BytesPerPixel
	for y := 0; y < rows; y++ {
		src := f.Data[y*f.Width*BytesPerPixel:]
		dst := out.Data[y*width*BytesPerPixel:]
		copy(dst[:rowBytes], src[:rowBytes])
	}

	return out
}

// FromImage converts any image into an RGB24 frame of the same size.
// Alpha is dropped.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*BytesPerPixel)

	if rgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			row := rgba.Pix[y*rgba.Stride:]
			for x := 0; x < w; x++ {
				i := (y*w + x) * BytesPerPixel
				copy(data[i:i+BytesPerPixel], row[x*4:x*4+BytesPerPixel])
			}
		}
	} else {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := (y*w + x) * BytesPerPixel
				data[i] = byte(r >> 8)
				data[i+1] = byte(g >> 8)
				data[i+2] = byte(bl >> 8)
			}
		}
	}

	return Frame{
		Width:  w,
		Height: h,
		Data:   data,
	}
}
