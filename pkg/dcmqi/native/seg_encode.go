package native

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/terminology"
)

// algorithm types
var algorithmTypes = []string{"MANUAL", "SEMIAUTOMATIC", "AUTOMATIC"}

var codeSegmentation = module.NewCode("113076", "DCM", "Segmentation")

// ValidateSegment checks terminology and algorithm identification of one
// segment descriptor
func ValidateSegment(s descriptor.Segment) error {
	if !terminology.Valid(s.SegmentedPropertyCategoryCodeSequence.Module()) ||
		!terminology.Valid(s.SegmentedPropertyTypeCodeSequence.Module()) {
		return errs.ErrInvalidTerminology
	}
	if !slices.Contains(algorithmTypes, s.SegmentAlgorithmType) {
		return fmt.Errorf("%w: %q", errs.ErrInvalidAlgorithmType, s.SegmentAlgorithmType)
	}
	if s.SegmentAlgorithmType != "MANUAL" && s.SegmentAlgorithmName == "" {
		return errs.ErrMissingAlgorithmName
	}
	return nil
}

// EncodeSEG implements itkimage2segimage: label NRRDs plus a SEG descriptor
// over a source image series become one BINARY DICOM Segmentation
func EncodeSEG(ctx context.Context, params dcmqi.Params) error {
	if err := requireParams(params, dcmqi.DICOMDirectory, dcmqi.SegImageFiles, dcmqi.MetaDataFileName, dcmqi.OutputSEGFileName); err != nil {
		return err
	}
	var meta descriptor.SEG
	if err := descriptor.ReadFile(params[dcmqi.MetaDataFileName], &meta); err != nil {
		return err
	}
	files := strings.Split(params[dcmqi.SegImageFiles], ",")
	if len(files) != len(meta.SegmentAttributes) {
		return &errs.MismatchError{Files: len(files), Descriptors: len(meta.SegmentAttributes)}
	}
	if err := meta.SeriesAttributes.Validate(); err != nil {
		return err
	}

	vol, grid, src, err := sourceVolume(params[dcmqi.DICOMDirectory])
	if err != nil {
		return fmt.Errorf("loading source series: %w", err)
	}
	srcClass := src.Text(tag.SOPClassUID)
	plane := vol.Width * vol.Height

	var (
		segments []*dicom.Dataset
		frames   [][]uint8
		perFrame []*dicom.Dataset
		number   int
	)
	for fi, path := range files {
		img, err := nrrd.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return err
		}
		lookup, err := lookupOnto(img.Grid(), grid)
		if err != nil {
			return err
		}
		for _, sd := range meta.SegmentAttributes[fi] {
			number++
			if err := ValidateSegment(sd); err != nil {
				return &errs.SegmentError{SegmentID: segmentName(sd, number), Err: err}
			}
			mask := make([]uint8, grid.Len())
			for v, from := range lookup {
				if from >= 0 && int(img.Data[from]) == sd.LabelID {
					mask[v] = 1
				}
			}
			segments = append(segments, segmentItem(number, sd))
			for k := 0; k < vol.Depth; k++ {
				slice := mask[k*plane : (k+1)*plane]
				if !slices.Contains(slice, 1) {
					continue
				}
				frames = append(frames, slice)
				perFrame = append(perFrame, frameItem(vol, srcClass, k, number))
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if len(frames) == 0 {
		return errs.ErrNoNonEmptySegmentsFound
	}

	now := time.Now()
	seriesNumber, _ := strconv.Atoi(meta.SeriesNumber)
	instanceNumber, _ := strconv.Atoi(meta.InstanceNumber)
	sop := module.NewSOPCommonModule()
	sop.SOPClassUID = dicom.SegmentationStorageUID
	sop.SOPInstanceUID = dicom.NewUID()
	series := module.GeneralSeriesModule{
		Modality:          "SEG",
		SeriesInstanceUID: dicom.NewUID(),
		SeriesNumber:      seriesNumber,
		SeriesDate:        module.NewDate(now),
		SeriesTime:        module.NewTime(now),
		SeriesDescription: meta.SeriesDescription,
	}
	label := meta.ContentLabel
	if label == "" {
		label = "SEGMENTATION"
	}
	derived := module.DerivedImageModule{
		ImageType:          []string{"DERIVED", "PRIMARY"},
		InstanceNumber:     instanceNumber,
		ContentLabel:       label,
		ContentDescription: meta.ContentDescription,
		ContentCreatorName: meta.ContentCreatorName,
		ContentDate:        module.NewDate(now),
		ContentTime:        module.NewTime(now),
		NumberOfFrames:     len(frames),
	}
	equipment := module.GeneralEquipmentModule{
		Manufacturer:      Manufacturer,
		ManufacturerModel: dcmqi.ITKToSegImage,
		DeviceSerial:      "1",
		SoftwareVersions:  SoftwareVersions,
	}
	trial := module.ClinicalTrialSeriesModule{
		CoordinatingCenterName: meta.ClinicalTrialCoordinatingCenterName,
		SeriesID:               meta.ClinicalTrialSeriesID,
		TimePointID:            meta.ClinicalTrialTimePointID,
	}
	refs := dicom.NewSequenceBuilder(tag.ReferencedInstanceSequence)
	for _, uid := range vol.InstanceUIDs {
		refs.AddItem(
			dicom.WithElement(tag.ReferencedSOPClassUID, srcClass),
			dicom.WithElement(tag.ReferencedSOPInstanceUID, uid),
		)
	}
	referenced, err := refs.Build()
	if err != nil {
		return err
	}

	ds, err := dicom.NewDataset(
		dicom.WithFileMeta(sop.SOPClassUID, sop.SOPInstanceUID, string(dicom.ExplicitVRLittleEndian)),
		dicom.WithCopied(src, dicom.PatientStudyTags...),
		dicom.WithModule(series.ToTags()),
		dicom.WithElement(tag.FrameOfReferenceUID, vol.FrameOfReferenceUID),
		dicom.WithElement(tag.PositionReferenceIndicator, ""),
		dicom.WithModule(equipment.ToTags()),
		dicom.WithModule(sop.ToTags()),
		dicom.WithModule(derived.ToTags()),
		dicom.WithModule(module.NewImagePixelModule(uint16(vol.Height), uint16(vol.Width), 1, false).ToTags()),
		dicom.WithElement(tag.SegmentationType, "BINARY"),
		dicom.WithModule(trial.ToTags()),
		dicom.WithSequence(tag.DimensionOrganizationSequence, dicom.MustDataset(
			dicom.WithElement(tag.DimensionOrganizationUID, dicom.NewUID()),
		)),
		dicom.WithSequence(tag.ReferencedSeriesSequence, dicom.MustDataset(
			dicom.WithElement(tag.SeriesInstanceUID, vol.SeriesInstanceUID),
			referenced,
		)),
		dicom.WithSequence(tag.SegmentSequence, segments...),
		dicom.WithSequence(tag.SharedFunctionalGroupsSequence, sharedFunctionalGroups(vol, dicom.GetSliceThickness(src))),
		dicom.WithSequence(tag.PerFrameFunctionalGroupsSequence, perFrame...),
		dicom.WithBitPackedFrames(frames),
	)
	if err != nil {
		return err
	}
	if _, err := dicom.WriteFile(params[dcmqi.OutputSEGFileName], ds); err != nil {
		return err
	}
	slog.InfoContext(ctx, "wrote segmentation",
		slog.String("path", params[dcmqi.OutputSEGFileName]),
		slog.Int("segments", len(segments)),
		slog.Int("frames", len(frames)))
	return nil
}

func segmentName(sd descriptor.Segment, number int) string {
	if sd.SegmentLabel != "" {
		return sd.SegmentLabel
	}
	return fmt.Sprintf("Segment %d", number)
}

// lookupOnto maps every voxel of dst to a voxel of src, or -1
func lookupOnto(src, dst geom.Grid) ([]int, error) {
	if src.Equal(dst, 1e-4) {
		out := make([]int, dst.Len())
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	return geom.NearestIndices(src, dst)
}

func codeWithModifier(c *descriptor.Code, modTag tag.Tag, mod *descriptor.Code) *dicom.Dataset {
	ds := dicom.CodeDataset(c.Module())
	if mod != nil && terminology.Valid(mod.Module()) {
		ds.Elements[modTag] = &dicom.Element{Tag: modTag, VR: "SQ", Value: []*dicom.Dataset{dicom.CodeDataset(mod.Module())}}
	}
	return ds
}

func segmentItem(number int, sd descriptor.Segment) *dicom.Dataset {
	lab := RGBToCIELab(sd.RGB())
	opts := []dicom.Option{
		dicom.WithElement(tag.SegmentNumber, uint16(number)),
		dicom.WithElement(tag.SegmentLabel, segmentName(sd, number)),
		dicom.WithElement(tag.SegmentAlgorithmType, sd.SegmentAlgorithmType),
		dicom.WithSequence(tag.SegmentedPropertyCategoryCodeSequence, dicom.CodeDataset(sd.SegmentedPropertyCategoryCodeSequence.Module())),
		dicom.WithSequence(tag.SegmentedPropertyTypeCodeSequence,
			codeWithModifier(sd.SegmentedPropertyTypeCodeSequence, tag.SegmentedPropertyTypeModifierCodeSequence, sd.SegmentedPropertyTypeModifierCodeSequence)),
		dicom.WithElement(tag.RecommendedDisplayCIELabValue, lab[:]),
	}
	if sd.SegmentDescription != "" {
		opts = append(opts, dicom.WithElement(tag.SegmentDescription, sd.SegmentDescription))
	}
	if sd.SegmentAlgorithmName != "" {
		opts = append(opts, dicom.WithElement(tag.SegmentAlgorithmName, sd.SegmentAlgorithmName))
	}
	if sd.AnatomicRegionSequence != nil && terminology.Valid(sd.AnatomicRegionSequence.Module()) {
		opts = append(opts, dicom.WithSequence(tag.AnatomicRegionSequence,
			codeWithModifier(sd.AnatomicRegionSequence, tag.AnatomicRegionModifierSequence, sd.AnatomicRegionModifierSequence)))
	}
	if sd.TrackingIdentifier != "" {
		opts = append(opts, dicom.WithElement(tag.TrackingID, sd.TrackingIdentifier))
	}
	if sd.TrackingUniqueIdentifier != "" {
		opts = append(opts, dicom.WithElement(tag.TrackingUID, sd.TrackingUniqueIdentifier))
	}
	return dicom.MustDataset(opts...)
}

func frameItem(vol *dicom.Volume, srcClass string, k, number int) *dicom.Dataset {
	source := dicom.MustDataset(
		dicom.WithElement(tag.ReferencedSOPClassUID, srcClass),
		dicom.WithElement(tag.ReferencedSOPInstanceUID, vol.InstanceUIDs[k]),
	)
	return dicom.MustDataset(
		dicom.WithSequence(tag.DerivationImageSequence, dicom.MustDataset(
			dicom.WithSequence(tag.SourceImageSequence, source),
			dicom.WithSequence(tag.DerivationCodeSequence, dicom.CodeDataset(codeSegmentation)),
		)),
		dicom.WithSequence(tag.FrameContentSequence, dicom.MustDataset(
			dicom.WithElement(tag.DimensionIndexValues, []int{number, k + 1}),
		)),
		dicom.WithSequence(tag.PlanePositionSequence, dicom.MustDataset(
			dicom.WithElement(tag.ImagePositionPatient, slicePosition(vol, k)),
		)),
		dicom.WithSequence(tag.SegmentIdentificationSequence, dicom.MustDataset(
			dicom.WithElement(tag.ReferencedSegmentNumber, uint16(number)),
		)),
	)
}
