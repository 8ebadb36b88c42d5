package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
)

// MetaFileName is the descriptor written next to the label files
const MetaFileName = "meta.json"

// LabelFileName names the label file of a segment
func LabelFileName(labelID int) string {
	return strconv.Itoa(labelID) + ".nrrd"
}

// DecodeSEG implements segimage2itkimage: one label NRRD per segment,
// named by its segment number, plus meta.json
func DecodeSEG(ctx context.Context, params dcmqi.Params) error {
	if err := requireParams(params, dcmqi.InputSEGFileName, dcmqi.OutputDirName); err != nil {
		return err
	}
	ds, err := dicom.ReadFile(params[dcmqi.InputSEGFileName])
	if err != nil {
		return err
	}
	if !dicom.IsSegmentation(ds) {
		return fmt.Errorf("%s is not a segmentation", params[dcmqi.InputSEGFileName])
	}
	geo, err := multiFrameGeometry(ds)
	if err != nil {
		return err
	}
	frames, err := dicom.DecodeFrames(ds)
	if err != nil {
		return err
	}
	perFrame := ds.Items(tag.PerFrameFunctionalGroupsSequence)
	shared := ds.Item(tag.SharedFunctionalGroupsSequence)

	items := ds.Items(tag.SegmentSequence)
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := items[i].Int(tag.SegmentNumber)
		b, _ := items[j].Int(tag.SegmentNumber)
		return a < b
	})
	labels := map[int][]float32{}
	for _, item := range items {
		number, _ := item.Int(tag.SegmentNumber)
		labels[number] = make([]float32, geo.Grid.Len())
	}

	plane := geo.Grid.Dims[0] * geo.Grid.Dims[1]
	for f, frame := range frames {
		ident := functional(shared, perFrame[f], tag.SegmentIdentificationSequence)
		if ident == nil {
			return fmt.Errorf("frame %d has no segment identification", f+1)
		}
		number, _ := ident.Int(tag.ReferencedSegmentNumber)
		label, ok := labels[number]
		if !ok {
			return fmt.Errorf("frame %d references unknown segment %d", f+1, number)
		}
		offset := geo.Slice[f] * plane
		for i, v := range frame {
			if v != 0 {
				label[offset+i] = float32(number)
			}
		}
	}

	out := params[dcmqi.OutputDirName]
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	meta := descriptor.SEG{
		SeriesAttributes:   seriesAttributes(ds),
		ContentLabel:       ds.Text(tag.ContentLabel),
		ContentDescription: ds.Text(tag.ContentDescription),
	}
	for _, item := range items {
		number, _ := item.Int(tag.SegmentNumber)
		typ := nrrd.Uint8
		if number > 255 {
			typ = nrrd.Uint16
		}
		if err := nrrd.WriteFile(filepath.Join(out, LabelFileName(number)), nrrd.FromGrid(geo.Grid, typ, labels[number]), true); err != nil {
			return err
		}
		meta.SegmentAttributes = append(meta.SegmentAttributes, []descriptor.Segment{segmentDescriptor(item, number)})
	}
	if err := descriptor.WriteFile(filepath.Join(out, MetaFileName), &meta); err != nil {
		return err
	}
	slog.InfoContext(ctx, "decoded segmentation", slog.String("dir", out), slog.Int("segments", len(items)))
	return nil
}

func seriesAttributes(ds *dicom.Dataset) descriptor.SeriesAttributes {
	return descriptor.SeriesAttributes{
		ContentCreatorName:                  ds.Text(tag.ContentCreatorName),
		ClinicalTrialSeriesID:               ds.Text(tag.ClinicalTrialSeriesID),
		ClinicalTrialTimePointID:            ds.Text(tag.ClinicalTrialTimePointID),
		ClinicalTrialCoordinatingCenterName: ds.Text(tag.ClinicalTrialCoordinatingCenterName),
		SeriesDescription:                   ds.Text(tag.SeriesDescription),
		SeriesNumber:                        ds.Text(tag.SeriesNumber),
		InstanceNumber:                      ds.Text(tag.InstanceNumber),
	}
}

func codeOf(item *dicom.Dataset) *descriptor.Code {
	if item == nil {
		return nil
	}
	return descriptor.FromCode(dicom.ParseCode(item))
}

// nested reads a modifier from inside its parent code item, or from the
// segment item itself
func nested(item, parent *dicom.Dataset, t tag.Tag) *descriptor.Code {
	if parent != nil {
		if mod := parent.Item(t); mod != nil {
			return codeOf(mod)
		}
	}
	return codeOf(item.Item(t))
}

func segmentDescriptor(item *dicom.Dataset, number int) descriptor.Segment {
	typ := item.Item(tag.SegmentedPropertyTypeCodeSequence)
	region := item.Item(tag.AnatomicRegionSequence)
	sd := descriptor.Segment{
		LabelID:                  number,
		SegmentLabel:             item.Text(tag.SegmentLabel),
		SegmentDescription:       item.Text(tag.SegmentDescription),
		SegmentAlgorithmType:     item.Text(tag.SegmentAlgorithmType),
		SegmentAlgorithmName:     item.Text(tag.SegmentAlgorithmName),
		TrackingIdentifier:       item.Text(tag.TrackingID),
		TrackingUniqueIdentifier: item.Text(tag.TrackingUID),

		SegmentedPropertyCategoryCodeSequence:     codeOf(item.Item(tag.SegmentedPropertyCategoryCodeSequence)),
		SegmentedPropertyTypeCodeSequence:         codeOf(typ),
		SegmentedPropertyTypeModifierCodeSequence: nested(item, typ, tag.SegmentedPropertyTypeModifierCodeSequence),
		AnatomicRegionSequence:                    codeOf(region),
		AnatomicRegionModifierSequence:            nested(item, region, tag.AnatomicRegionModifierSequence),
	}
	if elem := item.Get(tag.RecommendedDisplayCIELabValue); elem != nil {
		if lab, ok := elem.Ints(); ok && len(lab) == 3 {
			rgb := CIELabToRGB([3]uint16{uint16(lab[0]), uint16(lab[1]), uint16(lab[2])})
			sd.RecommendedDisplayRGBValue = descriptor.RGBValue(rgb)
		}
	}
	return sd
}
