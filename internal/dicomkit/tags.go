package dicomkit

import (
	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"

	"github.com/zjrosen/dcmcache/internal/domain"
)

const (
	tagStudyDate           dicom.DataElementTag = 0x00080020
	tagStudyTime           dicom.DataElementTag = 0x00080030
	tagModality            dicom.DataElementTag = 0x00080060
	tagManufacturer        dicom.DataElementTag = 0x00080070
	tagStudyDescription    dicom.DataElementTag = 0x00081030
	tagPatientName         dicom.DataElementTag = 0x00100010
	tagPatientID           dicom.DataElementTag = 0x00100020
	tagPatientSex          dicom.DataElementTag = 0x00100040
	tagPatientAge          dicom.DataElementTag = 0x00101010
	tagSliceThickness      dicom.DataElementTag = 0x00180050
	tagConvolutionKernel   dicom.DataElementTag = 0x00181210
	tagSeriesNumber        dicom.DataElementTag = 0x00200011
	tagInstanceNumber      dicom.DataElementTag = 0x00200013
	tagImagesInAcquisition dicom.DataElementTag = 0x00201002
	tagSamplesPerPixel     dicom.DataElementTag = 0x00280002
	tagPhotometric         dicom.DataElementTag = 0x00280004
	tagRows                dicom.DataElementTag = 0x00280010
	tagColumns             dicom.DataElementTag = 0x00280011
	tagBitsAllocated       dicom.DataElementTag = 0x00280100
	tagPixelRepresentation dicom.DataElementTag = 0x00280103
	tagWindowCenter        dicom.DataElementTag = 0x00281050
	tagWindowWidth         dicom.DataElementTag = 0x00281051
	tagRescaleIntercept    dicom.DataElementTag = 0x00281052
	tagRescaleSlope        dicom.DataElementTag = 0x00281053
	tagPixelData           dicom.DataElementTag = 0x7FE00010
)

// undefinedLength marks encapsulated pixel data.
const undefinedLength = 0xFFFFFFFF

type valueKind int

const (
	kindString valueKind = iota
	kindDecimal
	kindInteger
)

type metadataField struct {
	key  string
	kind valueKind
}

// metadataTags maps the extracted tags to their metadata keys.
var metadataTags = map[dicom.DataElementTag]metadataField{
	tagPatientName:         {domain.KeyPatientName, kindString},
	tagPatientID:           {domain.KeyPatientID, kindString},
	tagPatientSex:          {domain.KeyPatientSex, kindString},
	tagPatientAge:          {domain.KeyPatientAge, kindString},
	tagModality:            {domain.KeyModality, kindString},
	tagManufacturer:        {domain.KeyManufacturer, kindString},
	tagConvolutionKernel:   {domain.KeyConvolutionKernel, kindString},
	tagStudyDate:           {domain.KeyStudyDate, kindString},
	tagStudyTime:           {domain.KeyStudyTime, kindString},
	tagStudyDescription:    {domain.KeyStudyDescription, kindString},
	tagSliceThickness:      {domain.KeySliceThickness, kindDecimal},
	tagSeriesNumber:        {domain.KeySeriesNumber, kindInteger},
	tagInstanceNumber:      {domain.KeyInstanceNumber, kindInteger},
	tagImagesInAcquisition: {domain.KeyImagesInAcquisition, kindInteger},
}
