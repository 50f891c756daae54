package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func ptr[T any](v T) *T { return &v }

func TestProject_FullRecord(t *testing.T) {
	raw := map[string]any{
		KeyPatientName:         "Doe^Jane",
		KeyPatientID:           "P-001",
		KeyPatientSex:          "F",
		KeyPatientAge:          "042Y",
		KeyModality:            "CT",
		KeyManufacturer:        "ACME",
		KeyConvolutionKernel:   "B30f",
		KeySliceThickness:      1.25,
		KeySeriesNumber:        int32(3),
		KeyInstanceNumber:      int32(17),
		KeyImagesInAcquisition: int32(220),
		KeyStudyDate:           "20240101",
		KeyStudyTime:           "172922.520",
		KeyStudyDescription:    "Abdomen^Routine_Abdomen",
	}

	got := Project(raw)

	want := Metadata{
		PatientName:         ptr("Doe^Jane"),
		PatientID:           ptr("P-001"),
		PatientSex:          ptr("F"),
		PatientAge:          ptr("042Y"),
		Modality:            ptr("CT"),
		Manufacturer:        ptr("ACME"),
		ConvolutionKernel:   ptr("B30f"),
		SliceThickness:      ptr(1.25),
		SeriesNumber:        ptr(int32(3)),
		InstanceNumber:      ptr(int32(17)),
		ImagesInAcquisition: ptr(int32(220)),
		StudyDateTime:       ptr(time.Date(2024, 1, 1, 17, 29, 22, 520_000_000, time.UTC)),
		StudyArea:           ptr("Abdomen"),
		StudyProcedure:      ptr("Routine_Abdomen"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Project() mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_StudyTimeTruncatedToMilliseconds(t *testing.T) {
	got := Project(map[string]any{
		KeyStudyDate: "20240101",
		KeyStudyTime: "172922.520123",
	})

	require.NotNil(t, got.StudyDateTime)
	require.Equal(t, time.Date(2024, 1, 1, 17, 29, 22, 520_000_000, time.UTC), *got.StudyDateTime)
}

func TestProject_MissingFieldsAreAbsent(t *testing.T) {
	got := Project(map[string]any{})
	require.Equal(t, Metadata{}, got)
}

func TestProject_WrongTypesAreAbsent(t *testing.T) {
	got := Project(map[string]any{
		KeyPatientName:    42,
		KeySliceThickness: "1.25",
		KeySeriesNumber:   3, // int, not int32
		KeyStudyDate:      20240101,
		KeyStudyTime:      "172922.520",
	})

	require.Nil(t, got.PatientName)
	require.Nil(t, got.SliceThickness)
	require.Nil(t, got.SeriesNumber)
	require.Nil(t, got.StudyDateTime, "date-time needs both parts as strings")
}

func TestProject_UnparsableDateTimeLeavesOtherFields(t *testing.T) {
	got := Project(map[string]any{
		KeyModality:  "MR",
		KeyStudyDate: "2024-01-01",
		KeyStudyTime: "172922.520",
	})

	require.Nil(t, got.StudyDateTime)
	require.NotNil(t, got.Modality)
	require.Equal(t, "MR", *got.Modality)
}

func TestProject_ShortFractionsPadToMilliseconds(t *testing.T) {
	tests := []struct {
		name string
		time string
		want time.Time
	}{
		{name: "three digits", time: "172922.520", want: time.Date(2024, 1, 1, 17, 29, 22, 520_000_000, time.UTC)},
		{name: "two digits", time: "172922.52", want: time.Date(2024, 1, 1, 17, 29, 22, 520_000_000, time.UTC)},
		{name: "one digit", time: "172922.5", want: time.Date(2024, 1, 1, 17, 29, 22, 500_000_000, time.UTC)},
		{name: "digits past the prefix dropped", time: "000000.999999", want: time.Date(2024, 1, 1, 0, 0, 0, 990_000_000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(map[string]any{KeyStudyDate: "20240101", KeyStudyTime: tt.time})
			require.NotNil(t, got.StudyDateTime)
			require.Equal(t, tt.want, *got.StudyDateTime)
		})
	}
}

func TestProject_TimeWithoutFractionIsAbsent(t *testing.T) {
	got := Project(map[string]any{
		KeyStudyDate: "20240101",
		KeyStudyTime: "172922",
	})
	require.Nil(t, got.StudyDateTime)
}

func TestSplitStudyDescription(t *testing.T) {
	tests := []struct {
		name      string
		desc      string
		area      *string
		procedure *string
	}{
		{name: "area and procedure", desc: "Abdomen^Routine_Abdomen", area: ptr("Abdomen"), procedure: ptr("Routine_Abdomen")},
		{name: "area only", desc: "Chest", area: ptr("Chest")},
		{name: "leading caret", desc: "^Head", area: ptr("Head")},
		{name: "extra components ignored", desc: "Abdomen^Routine^Contrast", area: ptr("Abdomen"), procedure: ptr("Routine")},
		{name: "empty", desc: ""},
		{name: "only carets", desc: "^^"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			area, procedure := SplitStudyDescription(tt.desc)
			require.Equal(t, tt.area, area)
			require.Equal(t, tt.procedure, procedure)
		})
	}
}

// TestProject_DescriptionRoundTrip checks that joining two caret-free
// components and projecting them gives the components back.
func TestProject_DescriptionRoundTrip(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		area := rapid.StringMatching(`[A-Za-z0-9_ ]{1,16}`).Draw(r, "area")
		procedure := rapid.StringMatching(`[A-Za-z0-9_ ]{1,16}`).Draw(r, "procedure")

		got := Project(map[string]any{KeyStudyDescription: area + "^" + procedure})

		require.NotNil(r, got.StudyArea)
		require.NotNil(r, got.StudyProcedure)
		require.Equal(r, area, *got.StudyArea)
		require.Equal(r, procedure, *got.StudyProcedure)
	})
}

// TestProject_NeverPanics feeds arbitrary strings into every field.
func TestProject_NeverPanics(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		raw := map[string]any{
			KeyStudyDate:        rapid.String().Draw(r, "date"),
			KeyStudyTime:        rapid.String().Draw(r, "time"),
			KeyStudyDescription: rapid.String().Draw(r, "desc"),
		}
		got := Project(raw)
		if got.StudyArea != nil {
			require.False(r, strings.Contains(*got.StudyArea, "^"))
		}
	})
}

func TestResult_States(t *testing.T) {
	var zero Result[int]
	require.False(t, zero.Computed())
	require.Equal(t, NotComputed, zero.State())

	ok := Success(7)
	v, err := ok.Get()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, Succeeded, ok.State())

	failed := Failure[int](ErrInvalidFile)
	_, err = failed.Get()
	require.ErrorIs(t, err, ErrInvalidFile)
	require.True(t, failed.Computed())
}
