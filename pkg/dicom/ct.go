package dicom

import (
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
)

// CTImage is one single-frame slice of a CT or MR source series, the
// images that segmentations and reports point back to
type CTImage struct {
	Patient          *module.PatientModule
	Study            *module.GeneralStudyModule
	Series           *module.GeneralSeriesModule
	Equipment        *module.GeneralEquipmentModule
	SOPCommon        *module.SOPCommonModule
	FrameOfReference *module.FrameOfReferenceModule
	ImagePlane       *module.ImagePlaneModule
	Pixel            *module.ImagePixelModule
	Image            *module.CTImageModule

	PixelData *PixelData
	// Codec compresses the frame on write; nil writes native pixels
	Codec Codec
}

// NewCTImage returns a signed 16 bit slice in a new study, series and
// frame of reference
func NewCTImage() *CTImage {
	now := time.Now()
	sop := module.NewSOPCommonModule()
	sop.SOPClassUID = CTImageStorageUID
	sop.SOPInstanceUID = NewUID()
	return &CTImage{
		Patient: &module.PatientModule{},
		Study: &module.GeneralStudyModule{
			StudyInstanceUID: NewUID(),
			StudyDate:        module.NewDate(now),
			StudyTime:        module.NewTime(now),
		},
		Series: &module.GeneralSeriesModule{
			Modality:          "CT",
			SeriesInstanceUID: NewUID(),
			SeriesDate:        module.NewDate(now),
			SeriesTime:        module.NewTime(now),
		},
		Equipment:        &module.GeneralEquipmentModule{},
		SOPCommon:        &sop,
		FrameOfReference: &module.FrameOfReferenceModule{FrameOfReferenceUID: NewUID()},
		ImagePlane:       module.NewImagePlaneModule(),
		Pixel:            module.NewImagePixelModule(0, 0, 16, true),
		Image:            module.NewCTImageModule(),
	}
}

// GetDataset assembles the instance. An MR modality switches the SOP
// class to MR Image Storage.
func (ct *CTImage) GetDataset() (*Dataset, error) {
	if ct.Series.Modality == "MR" && ct.SOPCommon.SOPClassUID == CTImageStorageUID {
		ct.SOPCommon.SOPClassUID = MRImageStorageUID
	}
	ts := string(transfer.ExplicitVRLittleEndian)
	if ct.Codec != nil {
		ts = ct.Codec.TransferSyntaxUID()
	}
	opts := []Option{WithFileMeta(ct.SOPCommon.SOPClassUID, ct.SOPCommon.SOPInstanceUID, ts)}
	for _, m := range [][]module.IODElement{
		ct.Patient.ToTags(),
		ct.Study.ToTags(),
		ct.Series.ToTags(),
		ct.Equipment.ToTags(),
		ct.SOPCommon.ToTags(),
		ct.FrameOfReference.ToTags(),
		ct.ImagePlane.ToTags(),
		ct.Pixel.ToTags(),
		ct.Image.ToTags(),
	} {
		opts = append(opts, WithModule(m))
	}
	opts = append(opts,
		WithElement(tag.ContentDate, ct.Series.SeriesDate.String()),
		WithElement(tag.ContentTime, ct.Series.SeriesTime.String()))

	switch {
	case ct.PixelData == nil:
	case ct.Codec != nil && !ct.PixelData.IsEncapsulated:
		opts = append(opts, WithPixelData(int(ct.Pixel.Rows), int(ct.Pixel.Columns), int(ct.Pixel.BitsAllocated), ct.PixelData.Flat(), ct.Codec))
	default:
		opts = append(opts, WithRawPixelData(ct.PixelData))
	}
	return NewDataset(opts...)
}

func (ct *CTImage) WriteTo(w io.Writer) (int64, error) {
	ds, err := ct.GetDataset()
	if err != nil {
		return 0, err
	}
	return Write(w, ds)
}

// Write writes the slice to path
func (ct *CTImage) Write(path string) (int64, error) {
	slog.Debug("writing image", slog.String("path", path), slog.String("sop", ct.SOPCommon.SOPInstanceUID))
	ds, err := ct.GetDataset()
	if err != nil {
		return 0, err
	}
	return WriteFile(path, ds)
}

// SetPixelData stores one native frame of stored words
func (ct *CTImage) SetPixelData(rows, cols int, data []uint16) {
	ct.Pixel.Rows, ct.Pixel.Columns = uint16(rows), uint16(cols)
	frame := make([]uint16, rows*cols)
	copy(frame, data)
	ct.PixelData = &PixelData{Frames: []Frame{{Data: frame}}}
}

// SetHU stores Hounsfield units through the inverse of the rescale
func (ct *CTImage) SetHU(rows, cols int, hu []float32) {
	slope := ct.Image.RescaleSlope
	if slope == 0 {
		slope = 1
	}
	words := make([]uint16, len(hu))
	for i, v := range hu {
		words[i] = uint16(int16(math.Round((float64(v) - ct.Image.RescaleIntercept) / slope)))
	}
	ct.SetPixelData(rows, cols, words)
}
