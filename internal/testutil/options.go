package testutil

import "strconv"

// Standard tags written by the builder. Values are (group<<16 | element).
const (
	TagPatientName         uint32 = 0x00100010
	TagPatientID           uint32 = 0x00100020
	TagPatientSex          uint32 = 0x00100040
	TagPatientAge          uint32 = 0x00101010
	TagStudyDate           uint32 = 0x00080020
	TagStudyTime           uint32 = 0x00080030
	TagModality            uint32 = 0x00080060
	TagManufacturer        uint32 = 0x00080070
	TagStudyDescription    uint32 = 0x00081030
	TagSliceThickness      uint32 = 0x00180050
	TagConvolutionKernel   uint32 = 0x00181210
	TagSeriesNumber        uint32 = 0x00200011
	TagInstanceNumber      uint32 = 0x00200013
	TagImagesInAcquisition uint32 = 0x00201002
	TagSamplesPerPixel     uint32 = 0x00280002
	TagPhotometric         uint32 = 0x00280004
	TagRows                uint32 = 0x00280010
	TagColumns             uint32 = 0x00280011
	TagBitsAllocated       uint32 = 0x00280100
	TagBitsStored          uint32 = 0x00280101
	TagPixelRepresentation uint32 = 0x00280103
	TagWindowCenter        uint32 = 0x00281050
	TagWindowWidth         uint32 = 0x00281051
	TagRescaleIntercept    uint32 = 0x00281052
	TagRescaleSlope        uint32 = 0x00281053
	TagPixelData           uint32 = 0x7FE00010
)

// sliceData holds everything needed to encode one slice file.
type sliceData struct {
	name         string
	text         map[uint32]textValue
	rows         uint16
	cols         uint16
	bitsAlloc    uint16
	signed       bool
	pixels       []uint16
	noPixels     bool
	encapsulated bool
	raw          []byte
}

type textValue struct {
	vr    string
	value string
}

// defaultSlice returns a 4x4 16-bit CT slice with a gradient.
func defaultSlice(name string) sliceData {
	pixels := make([]uint16, 16)
	for i := range pixels {
		pixels[i] = uint16(i * 100)
	}
	return sliceData{
		name: name,
		text: map[uint32]textValue{
			TagModality: {"CS", "CT"},
		},
		rows:      4,
		cols:      4,
		bitsAlloc: 16,
		pixels:    pixels,
	}
}

// SliceOption configures a slice.
type SliceOption func(*sliceData)

// Text sets an arbitrary textual element.
func Text(tag uint32, vr, value string) SliceOption {
	return func(s *sliceData) { s.text[tag] = textValue{vr, value} }
}

// PatientName sets (0010,0010).
func PatientName(name string) SliceOption { return Text(TagPatientName, "PN", name) }

// PatientID sets (0010,0020).
func PatientID(id string) SliceOption { return Text(TagPatientID, "LO", id) }

// Modality sets (0008,0060).
func Modality(m string) SliceOption { return Text(TagModality, "CS", m) }

// Study sets the study date, time and description.
func Study(date, tm, description string) SliceOption {
	return func(s *sliceData) {
		s.text[TagStudyDate] = textValue{"DA", date}
		s.text[TagStudyTime] = textValue{"TM", tm}
		s.text[TagStudyDescription] = textValue{"LO", description}
	}
}

// SliceThickness sets (0018,0050).
func SliceThickness(mm float64) SliceOption {
	return Text(TagSliceThickness, "DS", strconv.FormatFloat(mm, 'f', -1, 64))
}

// Series sets the series and instance numbers.
func Series(series, instance int) SliceOption {
	return func(s *sliceData) {
		s.text[TagSeriesNumber] = textValue{"IS", strconv.Itoa(series)}
		s.text[TagInstanceNumber] = textValue{"IS", strconv.Itoa(instance)}
	}
}

// Window sets window center and width.
func Window(center, width float64) SliceOption {
	return func(s *sliceData) {
		s.text[TagWindowCenter] = textValue{"DS", strconv.FormatFloat(center, 'f', -1, 64)}
		s.text[TagWindowWidth] = textValue{"DS", strconv.FormatFloat(width, 'f', -1, 64)}
	}
}

// Rescale sets slope and intercept.
func Rescale(slope, intercept float64) SliceOption {
	return func(s *sliceData) {
		s.text[TagRescaleSlope] = textValue{"DS", strconv.FormatFloat(slope, 'f', -1, 64)}
		s.text[TagRescaleIntercept] = textValue{"DS", strconv.FormatFloat(intercept, 'f', -1, 64)}
	}
}

// Pixels replaces the image with rows x cols 16-bit samples.
func Pixels(rows, cols uint16, values []uint16) SliceOption {
	return func(s *sliceData) {
		s.rows, s.cols, s.pixels, s.bitsAlloc = rows, cols, values, 16
	}
}

// EightBit stores the pixels as 8-bit samples.
func EightBit() SliceOption {
	return func(s *sliceData) { s.bitsAlloc = 8 }
}

// Signed marks the pixel representation as two's complement.
func Signed() SliceOption {
	return func(s *sliceData) { s.signed = true }
}

// NoPixelData omits (7FE0,0010).
func NoPixelData() SliceOption {
	return func(s *sliceData) { s.noPixels = true }
}

// Encapsulated writes pixel data with undefined length, as compressed
// transfer syntaxes do.
func Encapsulated() SliceOption {
	return func(s *sliceData) { s.encapsulated = true }
}

// Raw writes the given bytes verbatim instead of a DICOM file.
func Raw(b []byte) SliceOption {
	return func(s *sliceData) { s.raw = b }
}
