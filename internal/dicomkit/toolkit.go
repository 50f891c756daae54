// Package dicomkit validates, decodes and extracts metadata from DICOM slice
// files.
package dicomkit

import (
	"context"
	"errors"
)

// Toolkit is the slice capability consumed by the slice index.
type Toolkit interface {
	// IsValid reports whether path is a readable Part 10 file carrying an image.
	IsValid(ctx context.Context, path string) bool
	// DecodeToFile renders the slice as an 8-bit grayscale BMP at output and
	// returns the path written.
	DecodeToFile(ctx context.Context, path, output string) (string, error)
	// ExtractMetadata returns the known tags keyed by attribute keyword.
	ExtractMetadata(ctx context.Context, path string) (map[string]any, error)
}

// Factory builds a Toolkit. The slice index calls it once per listing.
type Factory func() (Toolkit, error)

var (
	// ErrNoPixelData is returned when a file carries no (7FE0,0010) element.
	ErrNoPixelData = errors.New("no pixel data")
	// ErrEncapsulated is returned for compressed pixel data.
	ErrEncapsulated = errors.New("encapsulated pixel data is not supported")
	// ErrUnsupportedImage is returned for layouts the decoder does not handle.
	ErrUnsupportedImage = errors.New("unsupported image layout")
)

// NewFactory returns a Factory producing the go-dicom-parser backed toolkit.
func NewFactory() Factory {
	return func() (Toolkit, error) {
		return NewParser(), nil
	}
}
