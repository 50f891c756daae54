// Package testutil builds synthetic DICOM slice files for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// ExplicitVRLittleEndian is the transfer syntax every built file declares.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

const ctImageStorage = "1.2.840.10008.5.1.4.1.1.2"

const undefinedLength = 0xFFFFFFFF

// Builder accumulates slices and writes them into a directory.
type Builder struct {
	t      *testing.T
	dir    string
	slices []sliceData
	extra  map[string][]byte
}

// NewBuilder creates a builder writing into dir.
func NewBuilder(t *testing.T, dir string) *Builder {
	t.Helper()
	return &Builder{t: t, dir: dir, extra: map[string][]byte{}}
}

// WithSlice adds a slice file with optional configuration.
func (b *Builder) WithSlice(name string, opts ...SliceOption) *Builder {
	s := defaultSlice(name)
	for _, opt := range opts {
		opt(&s)
	}
	b.slices = append(b.slices, s)
	return b
}

// WithFile adds a non-DICOM file.
func (b *Builder) WithFile(name string, content []byte) *Builder {
	b.extra[name] = content
	return b
}

// Build writes all files and returns the directory.
func (b *Builder) Build() string {
	b.t.Helper()
	require.NoError(b.t, os.MkdirAll(b.dir, 0o750))
	for _, s := range b.slices {
		data := s.raw
		if data == nil {
			data = encode(s)
		}
		require.NoError(b.t, os.WriteFile(filepath.Join(b.dir, s.name), data, 0o600))
	}
	for name, content := range b.extra {
		require.NoError(b.t, os.WriteFile(filepath.Join(b.dir, name), content, 0o600))
	}
	return b.dir
}

// WriteSlice writes a single slice file and returns its path.
func WriteSlice(t *testing.T, dir, name string, opts ...SliceOption) string {
	t.Helper()
	NewBuilder(t, dir).WithSlice(name, opts...).Build()
	return filepath.Join(dir, name)
}

// SliceBytes returns the encoded file for a slice without writing it.
func SliceBytes(name string, opts ...SliceOption) []byte {
	s := defaultSlice(name)
	for _, opt := range opts {
		opt(&s)
	}
	return encode(s)
}

// encode renders a slice as a Part 10 file in Explicit VR Little Endian.
func encode(s sliceData) []byte {
	var meta bytes.Buffer
	writeElement(&meta, 0x00020001, "OB", []byte{0x00, 0x01})
	writeElement(&meta, 0x00020002, "UI", padUID(ctImageStorage))
	writeElement(&meta, 0x00020003, "UI", padUID("2.25."+uidSuffix(s.name)))
	writeElement(&meta, 0x00020010, "UI", padUID(ExplicitVRLittleEndian))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(meta.Len()))
	writeElement(&out, 0x00020000, "UL", groupLength)
	out.Write(meta.Bytes())

	elements := map[uint32]func(){}
	for tag, tv := range s.text {
		tag, tv := tag, tv
		elements[tag] = func() { writeElement(&out, tag, tv.vr, padText(tv.value)) }
	}
	if !s.noPixels {
		samples := uint16(1)
		representation := uint16(0)
		if s.signed {
			representation = 1
		}
		elements[TagSamplesPerPixel] = func() { writeElement(&out, TagSamplesPerPixel, "US", u16(samples)) }
		if _, ok := s.text[TagPhotometric]; !ok {
			elements[TagPhotometric] = func() { writeElement(&out, TagPhotometric, "CS", padText("MONOCHROME2")) }
		}
		elements[TagRows] = func() { writeElement(&out, TagRows, "US", u16(s.rows)) }
		elements[TagColumns] = func() { writeElement(&out, TagColumns, "US", u16(s.cols)) }
		elements[TagBitsAllocated] = func() { writeElement(&out, TagBitsAllocated, "US", u16(s.bitsAlloc)) }
		elements[TagBitsStored] = func() { writeElement(&out, TagBitsStored, "US", u16(s.bitsAlloc)) }
		elements[TagPixelRepresentation] = func() { writeElement(&out, TagPixelRepresentation, "US", u16(representation)) }
	}

	// Data set elements must appear in ascending tag order.
	tags := make([]uint32, 0, len(elements))
	for tag := range elements {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, tag := range tags {
		elements[tag]()
	}

	if !s.noPixels {
		writePixelData(&out, s)
	}
	return out.Bytes()
}

func writePixelData(out *bytes.Buffer, s sliceData) {
	var pixels []byte
	vr := "OW"
	if s.bitsAlloc == 8 {
		vr = "OB"
		pixels = make([]byte, len(s.pixels))
		for i, p := range s.pixels {
			pixels[i] = byte(p)
		}
		if len(pixels)%2 != 0 {
			pixels = append(pixels, 0)
		}
	} else {
		pixels = make([]byte, 2*len(s.pixels))
		for i, p := range s.pixels {
			binary.LittleEndian.PutUint16(pixels[2*i:], p)
		}
	}

	if !s.encapsulated {
		writeElement(out, TagPixelData, vr, pixels)
		return
	}

	writeHeader(out, TagPixelData, "OB", undefinedLength)
	writeItem(out, 0xFFFEE000, nil)    // empty basic offset table
	writeItem(out, 0xFFFEE000, pixels) // single fragment
	writeItem(out, 0xFFFEE0DD, nil)    // sequence delimiter
}

func writeElement(out *bytes.Buffer, tag uint32, vr string, value []byte) {
	writeHeader(out, tag, vr, uint32(len(value)))
	out.Write(value)
}

func writeHeader(out *bytes.Buffer, tag uint32, vr string, length uint32) {
	out.Write(u16(uint16(tag >> 16)))
	out.Write(u16(uint16(tag)))
	out.WriteString(vr)
	switch vr {
	case "OB", "OD", "OF", "OL", "OW", "SQ", "UC", "UR", "UT", "UN":
		out.Write([]byte{0, 0})
		out.Write(u32(length))
	default:
		out.Write(u16(uint16(length)))
	}
}

func writeItem(out *bytes.Buffer, tag uint32, value []byte) {
	out.Write(u16(uint16(tag >> 16)))
	out.Write(u16(uint16(tag)))
	out.Write(u32(uint32(len(value))))
	out.Write(value)
}

func padText(s string) []byte {
	if len(s)%2 != 0 {
		s += " "
	}
	return []byte(s)
}

func padUID(s string) []byte {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, 0)
	}
	return b
}

func uidSuffix(name string) string {
	var n uint64
	for _, c := range []byte(name) {
		n = n*31 + uint64(c)
	}
	return strconv.FormatUint(n, 10)
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
