package domain

import (
	"strings"
	"time"
)

// Raw tag keys produced by the slice toolkit's metadata extraction.
const (
	KeyPatientName         = "PatientName"
	KeyPatientID           = "PatientID"
	KeyPatientSex          = "PatientSex"
	KeyPatientAge          = "PatientAge"
	KeyModality            = "Modality"
	KeyManufacturer        = "Manufacturer"
	KeySliceThickness      = "SliceThickness"
	KeyConvolutionKernel   = "ConvolutionKernel"
	KeySeriesNumber        = "SeriesNumber"
	KeyInstanceNumber      = "InstanceNumber"
	KeyImagesInAcquisition = "ImagesInAcquisition"
	KeyStudyDate           = "StudyDate"
	KeyStudyTime           = "StudyTime"
	KeyStudyDescription    = "StudyDescription"
)

// StudyDateTimeLayout parses "<StudyDate> <StudyTime[:9]>", e.g. "20240101 172922.520".
// The fractional second is read even though the layout does not name it, so
// one to three fraction digits are accepted.
const StudyDateTimeLayout = "20060102 150405"

// studyTimePrefix is how many characters of StudyTime are parsed.
const studyTimePrefix = 9

// Metadata is the typed view of a slice's tags. Every field is optional.
type Metadata struct {
	PatientName         *string    `json:"patient_name,omitempty"`
	PatientID           *string    `json:"patient_id,omitempty"`
	PatientSex          *string    `json:"patient_sex,omitempty"`
	PatientAge          *string    `json:"patient_age,omitempty"`
	Modality            *string    `json:"modality,omitempty"`
	Manufacturer        *string    `json:"manufacturer,omitempty"`
	ConvolutionKernel   *string    `json:"convolution_kernel,omitempty"`
	SliceThickness      *float64   `json:"slice_thickness,omitempty"`
	SeriesNumber        *int32     `json:"series_number,omitempty"`
	InstanceNumber      *int32     `json:"instance_number,omitempty"`
	ImagesInAcquisition *int32     `json:"images_in_acquisition,omitempty"`
	StudyDateTime       *time.Time `json:"study_date_time,omitempty"`
	StudyArea           *string    `json:"study_area,omitempty"`
	StudyProcedure      *string    `json:"study_procedure,omitempty"`
}

// Project maps a raw tag dictionary into Metadata. A missing key or a value
// of the wrong type leaves the field nil.
func Project(raw map[string]any) Metadata {
	m := Metadata{
		PatientName:         lookup[string](raw, KeyPatientName),
		PatientID:           lookup[string](raw, KeyPatientID),
		PatientSex:          lookup[string](raw, KeyPatientSex),
		PatientAge:          lookup[string](raw, KeyPatientAge),
		Modality:            lookup[string](raw, KeyModality),
		Manufacturer:        lookup[string](raw, KeyManufacturer),
		ConvolutionKernel:   lookup[string](raw, KeyConvolutionKernel),
		SliceThickness:      lookup[float64](raw, KeySliceThickness),
		SeriesNumber:        lookup[int32](raw, KeySeriesNumber),
		InstanceNumber:      lookup[int32](raw, KeyInstanceNumber),
		ImagesInAcquisition: lookup[int32](raw, KeyImagesInAcquisition),
	}

	m.StudyDateTime = combineStudyDateTime(
		lookup[string](raw, KeyStudyDate),
		lookup[string](raw, KeyStudyTime),
	)

	if desc := lookup[string](raw, KeyStudyDescription); desc != nil {
		m.StudyArea, m.StudyProcedure = SplitStudyDescription(*desc)
	}

	return m
}

// SplitStudyDescription splits "Area^Procedure" on '^', dropping empty parts.
func SplitStudyDescription(desc string) (area, procedure *string) {
	parts := strings.FieldsFunc(desc, func(r rune) bool { return r == '^' })
	if len(parts) > 0 {
		area = &parts[0]
	}
	if len(parts) > 1 {
		procedure = &parts[1]
	}
	return area, procedure
}

func combineStudyDateTime(date, tm *string) *time.Time {
	if date == nil || tm == nil {
		return nil
	}
	t := *tm
	if !strings.Contains(t, ".") {
		return nil
	}
	if len(t) > studyTimePrefix {
		t = t[:studyTimePrefix]
	}
	parsed, err := time.ParseInLocation(StudyDateTimeLayout, *date+" "+t, time.UTC)
	if err != nil {
		return nil
	}
	return &parsed
}

func lookup[T any](raw map[string]any, key string) *T {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	typed, ok := v.(T)
	if !ok {
		return nil
	}
	return &typed
}
