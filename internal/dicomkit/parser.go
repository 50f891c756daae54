package dicomkit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
)

// Parser implements Toolkit on go-dicom-parser. It holds no state and is safe
// for concurrent use.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// errStop ends a walk early without reporting an error.
var errStop = errors.New("stop")

// walk streams the elements of path into visit until EOF, an error, or errStop.
func (p *Parser) walk(ctx context.Context, path string, visit func(*dicom.DataElement) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(path) //nolint:gosec // G304: slice paths come from the dataset cache
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	iter, err := dicom.NewDataElementIterator(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	for {
		elem, err := iter.NextElement()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		if err := visit(elem); err != nil {
			if errors.Is(err, errStop) {
				return nil
			}
			return err
		}
	}
}

// IsValid implements Toolkit.
func (p *Parser) IsValid(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	hasPixels := false
	err = p.walk(ctx, path, func(elem *dicom.DataElement) error {
		if elem.Tag == tagPixelData {
			hasPixels = true
			return errStop
		}
		return nil
	})
	return err == nil && hasPixels
}

// ExtractMetadata implements Toolkit. Values that are empty or fail to parse
// are left out of the map.
func (p *Parser) ExtractMetadata(ctx context.Context, path string) (map[string]any, error) {
	raw := make(map[string]any)
	err := p.walk(ctx, path, func(elem *dicom.DataElement) error {
		if elem.Tag >= tagPixelData {
			return errStop
		}
		field, ok := metadataTags[elem.Tag]
		if !ok {
			return nil
		}
		text, ok := firstString(elem)
		if !ok {
			return nil
		}
		switch field.kind {
		case kindString:
			raw[field.key] = text
		case kindDecimal:
			if v, err := strconv.ParseFloat(text, 64); err == nil {
				raw[field.key] = v
			}
		case kindInteger:
			if v, err := strconv.ParseInt(text, 10, 32); err == nil {
				raw[field.key] = int32(v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeToFile implements Toolkit.
func (p *Parser) DecodeToFile(ctx context.Context, path, output string) (string, error) {
	fr, err := p.readFrame(ctx, path)
	if err != nil {
		return "", err
	}
	img, err := fr.grayscale()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if err := writeBMP(output, img); err != nil {
		return "", err
	}
	return output, nil
}

func (p *Parser) readFrame(ctx context.Context, path string) (*frame, error) {
	fr := &frame{slope: 1, samples: 1}
	found := false

	err := p.walk(ctx, path, func(elem *dicom.DataElement) error {
		switch elem.Tag {
		case tagRows:
			fr.rows = firstUint16(elem)
		case tagColumns:
			fr.cols = firstUint16(elem)
		case tagBitsAllocated:
			fr.bitsAllocated = firstUint16(elem)
		case tagSamplesPerPixel:
			fr.samples = firstUint16(elem)
		case tagPixelRepresentation:
			fr.signed = firstUint16(elem) == 1
		case tagPhotometric:
			fr.photometric, _ = firstString(elem)
		case tagRescaleSlope:
			if v, ok := firstFloat(elem); ok {
				fr.slope = v
			}
		case tagRescaleIntercept:
			if v, ok := firstFloat(elem); ok {
				fr.intercept = v
			}
		case tagWindowCenter:
			if v, ok := firstFloat(elem); ok {
				fr.center = &v
			}
		case tagWindowWidth:
			if v, ok := firstFloat(elem); ok {
				fr.width = &v
			}
		case tagPixelData:
			data, err := readPixelData(elem)
			if err != nil {
				return err
			}
			fr.data = data
			found = true
			return errStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), ErrNoPixelData)
	}
	return fr, nil
}

// bulkIterator is the part of dicom.BulkDataIterator the decoder needs.
type bulkIterator interface {
	Next() (*dicom.BulkDataReader, error)
}

func readPixelData(elem *dicom.DataElement) ([]byte, error) {
	if elem.ValueLength == undefinedLength {
		return nil, ErrEncapsulated
	}
	switch v := elem.ValueField.(type) {
	case []byte:
		return v, nil
	case bulkIterator:
		r, err := v.Next()
		if err != nil {
			return nil, fmt.Errorf("reading pixel data: %w", err)
		}
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("%w: pixel data held as %T", ErrUnsupportedImage, elem.ValueField)
	}
}

func firstString(elem *dicom.DataElement) (string, bool) {
	values, ok := elem.ValueField.([]string)
	if !ok || len(values) == 0 {
		return "", false
	}
	s := strings.TrimSpace(values[0])
	return s, s != ""
}

func firstFloat(elem *dicom.DataElement) (float64, bool) {
	s, ok := firstString(elem)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func firstUint16(elem *dicom.DataElement) int {
	values, ok := elem.ValueField.([]uint16)
	if !ok || len(values) == 0 {
		return 0
	}
	return int(values[0])
}
