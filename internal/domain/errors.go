// Package domain holds the types shared by every dcmcache component: dataset
// identities, slice metadata and the error taxonomy.
package domain

import "errors"

// ===========================================================================
// Cache Errors
// ===========================================================================

// ErrNoCacheDirectory is returned when the cache root cannot be located or created.
var ErrNoCacheDirectory = errors.New("unable to locate or create the cache directory")

// ErrDatasetNotFound is returned when an operation names a dataset that is not live.
var ErrDatasetNotFound = errors.New("dataset not found")

// ===========================================================================
// Slice Errors
// ===========================================================================

// ErrToolkitInitFailed is returned when the slice toolkit cannot be initialized.
var ErrToolkitInitFailed = errors.New("slice toolkit failed to initialize")

// ErrFileNotFound is returned when a slice's source file cannot be located.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidFile is returned when a slice cannot be decoded or its metadata extracted.
var ErrInvalidFile = errors.New("invalid dicom file")

// ErrInvalidImage is returned when a decoded preview cannot be read back as an image.
var ErrInvalidImage = errors.New("invalid image")

// ===========================================================================
// Reconstruction Errors
// ===========================================================================

// ErrReconstructionFailed is returned when isosurface extraction produces no mesh.
var ErrReconstructionFailed = errors.New("volumetric reconstruction failed")

// ErrConversionFailed is returned when the intermediate mesh cannot be converted.
var ErrConversionFailed = errors.New("mesh conversion failed")

// ===========================================================================
// Entity Errors
// ===========================================================================

// ErrEntityNotFound is returned when no attached entity exists for a dataset.
var ErrEntityNotFound = errors.New("entity not found")

// ErrEntityAlreadyExists is returned when an entity is pending or attached for a dataset.
var ErrEntityAlreadyExists = errors.New("entity already exists")

// ErrStaleAttach is returned when an attach completes for an entry that was
// purged or replaced while the reconstruction was running.
var ErrStaleAttach = errors.New("attach result discarded")
