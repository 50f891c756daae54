// Package presentation renders CLI and API output.
package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// Format writes v as indented JSON
func (f *Formatter) Format(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatDatasets formats a list of datasets as JSON
func (f *Formatter) FormatDatasets(datasets []DatasetDTO) error {
	return f.Format(datasets)
}

// FormatSlices formats a slice listing as JSON
func (f *Formatter) FormatSlices(slices SlicesDTO) error {
	return f.Format(slices)
}
