package testutil

// WithCTSeries adds one slice per name, numbered in the given order, all
// sharing the same patient and study.
func (b *Builder) WithCTSeries(names ...string) *Builder {
	for i, name := range names {
		b.WithSlice(name,
			PatientName("Doe^Jane"),
			PatientID("P-001"),
			Study("20240101", "172922.520", "Abdomen^Routine_Abdomen"),
			SliceThickness(1.25),
			Series(3, i+1),
		)
	}
	return b
}

// WithJunk adds files that are not valid slices.
func (b *Builder) WithJunk() *Builder {
	return b.
		WithFile("README.txt", []byte("not a slice")).
		WithFile(".DS_Store", []byte{0, 0, 0, 1}).
		WithSlice("truncated", Raw(make([]byte, 100)))
}
