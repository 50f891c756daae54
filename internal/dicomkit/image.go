package dicomkit

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"gonum.org/v1/gonum/floats"
)

// frame is a single native grayscale image with its display attributes.
type frame struct {
	rows          int
	cols          int
	bitsAllocated int
	samples       int
	signed        bool
	photometric   string
	slope         float64
	intercept     float64
	center        *float64
	width         *float64
	data          []byte
}

// values returns the rescaled samples in row-major order.
func (f *frame) values() ([]float64, error) {
	if f.rows <= 0 || f.cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnsupportedImage, f.rows, f.cols)
	}
	if f.samples != 1 {
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrUnsupportedImage, f.samples)
	}

	n := f.rows * f.cols
	out := make([]float64, n)
	switch f.bitsAllocated {
	case 8:
		if len(f.data) < n {
			return nil, fmt.Errorf("%w: pixel data too short", ErrUnsupportedImage)
		}
		for i := range out {
			if f.signed {
				out[i] = float64(int8(f.data[i]))
			} else {
				out[i] = float64(f.data[i])
			}
		}
	case 16:
		if len(f.data) < 2*n {
			return nil, fmt.Errorf("%w: pixel data too short", ErrUnsupportedImage)
		}
		for i := range out {
			raw := binary.LittleEndian.Uint16(f.data[2*i:])
			if f.signed {
				out[i] = float64(int16(raw))
			} else {
				out[i] = float64(raw)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %d bits allocated", ErrUnsupportedImage, f.bitsAllocated)
	}

	if f.slope != 1 || f.intercept != 0 {
		floats.Scale(f.slope, out)
		floats.AddConst(f.intercept, out)
	}
	return out, nil
}

// window returns the intensity range mapped onto 0..255.
func (f *frame) window(values []float64) (lo, hi float64) {
	if f.center != nil && f.width != nil && *f.width > 0 {
		return *f.center - *f.width/2, *f.center + *f.width/2
	}
	return floats.Min(values), floats.Max(values)
}

func (f *frame) grayscale() (*image.Gray, error) {
	values, err := f.values()
	if err != nil {
		return nil, err
	}
	lo, hi := f.window(values)

	img := image.NewGray(image.Rect(0, 0, f.cols, f.rows))
	for i, v := range values {
		var level uint8
		if hi > lo {
			scaled := (v - lo) / (hi - lo) * 255
			switch {
			case scaled <= 0:
				level = 0
			case scaled >= 255:
				level = 255
			default:
				level = uint8(scaled + 0.5)
			}
		}
		if f.photometric == "MONOCHROME1" {
			level = 255 - level
		}
		img.Pix[i] = level
	}
	return img, nil
}

// writeBMP encodes img to a temp file next to output and renames it into place.
func writeBMP(output string, img image.Image) error {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating preview directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preview-*.bmp")
	if err != nil {
		return fmt.Errorf("creating preview: %w", err)
	}
	tmpPath := tmp.Name()

	if err := bmp.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encoding preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing preview: %w", err)
	}
	if err := os.Rename(tmpPath, output); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming preview: %w", err)
	}
	return nil
}
