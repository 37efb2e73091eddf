package camera

import (
	"fmt"

	"github.com/enriquegit/edge-person-detector/internal/types"
)

// packRows removes per-row padding from an RGB24 buffer. GStreamer aligns
// each row to 4 bytes, so widths whose row size is not a multiple of 4
// arrive with trailing bytes on every row.
func packRows(data []byte, width, height int) ([]byte, error) {
	rowBytes := width * types.BytesPerPixel
	if len(data) == rowBytes*height {
		return data, nil
	}
	if height == 0 || len(data)%height != 0 {
		return nil, fmt.Errorf("buffer of %d bytes does not hold %d rows", len(data), height)
	}

	stride := len(data) / height
	if stride < rowBytes {
		return nil, fmt.Errorf("stride %d shorter than row %d", stride, rowBytes)
	}

	packed := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		copy(packed[y*rowBytes:(y+1)*rowBytes], data[y*stride:y*stride+rowBytes])
	}
	return packed, nil
}
