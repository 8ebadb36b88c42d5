package seg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/provenance"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/terminology"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// DefaultSeriesDescription names written SEG series
const DefaultSeriesDescription = "Segmentation"

// WriteOptions control a SEG write
type WriteOptions struct {
	Attributes descriptor.SeriesAttributes
	// SkipEmpty drops empty segments instead of failing
	SkipEmpty bool
}

// Written describes a SEG on disk
type Written struct {
	Path              string
	SOPInstanceUID    string
	SeriesInstanceUID string
	// Segments are the non-empty segments in SEG segment number order
	Segments []*scene.Segment
}

// Partition splits the segments of s into those with and without voxels,
// deriving a labelmap first when s holds only surfaces
func Partition(s *scene.Segmentation) (nonEmpty, empty []*scene.Segment, err error) {
	if !s.HasRepresentation(scene.BinaryLabelmap) {
		if err := s.CreateRepresentation(scene.BinaryLabelmap); err != nil {
			return nil, nil, err
		}
	}
	for _, seg := range s.Segments() {
		if seg.VoxelCount() > 0 {
			nonEmpty = append(nonEmpty, seg)
		} else {
			empty = append(empty, seg)
		}
	}
	return nonEmpty, empty, nil
}

// SeriesAttributes completes attrs for a series derived from vol: the
// creator name in DICOM form and a series number 100 above the source
func SeriesAttributes(attrs descriptor.SeriesAttributes, vol *scene.ScalarVolume, env *plugin.Env, description string) descriptor.SeriesAttributes {
	attrs.ContentCreatorName = descriptor.DICOMPersonName(attrs.ContentCreatorName)
	if attrs.SeriesNumber == "" {
		n, ok := 0, false
		if env.DB != nil {
			if series, found := env.DB.Series(vol.Attribute(scene.AttrSeriesInstanceUID)); found {
				n, ok = series.SeriesNumber, true
			}
		}
		attrs.SeriesNumber = descriptor.DerivedSeriesNumber(n, ok)
	}
	if attrs.InstanceNumber == "" {
		attrs.InstanceNumber = "1"
	}
	if attrs.SeriesDescription == "" {
		attrs.SeriesDescription = description
	}
	return attrs
}

// SegmentDescriptor builds the segmentAttributes entry of one segment
func SegmentDescriptor(s *scene.Segment) (descriptor.Segment, error) {
	fail := func(err error) (descriptor.Segment, error) {
		return descriptor.Segment{}, &errs.SegmentError{SegmentID: s.Name, Err: err}
	}
	raw, _ := s.Tag(scene.TagTerminologyEntry)
	entry, err := terminology.Parse(raw)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", errs.ErrInvalidTerminology, err))
	}
	if err := entry.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", errs.ErrInvalidTerminology, err))
	}
	algType, _ := s.Tag(scene.TagAlgorithmType)
	if !provenance.ValidType(algType) {
		return fail(fmt.Errorf("%w: %q", errs.ErrInvalidAlgorithmType, algType))
	}
	algName, _ := s.Tag(scene.TagAlgorithmName)
	if algType != provenance.Manual && algName == "" {
		return fail(errs.ErrMissingAlgorithmName)
	}
	codes := entry.DICOMCodes()
	sd := descriptor.Segment{
		LabelID:                    1,
		SegmentLabel:               s.Name,
		SegmentDescription:         entry.Category.Meaning,
		SegmentAlgorithmType:       algType,
		SegmentAlgorithmName:       algName,
		RecommendedDisplayRGBValue: descriptor.RGBValue(s.Color),

		SegmentedPropertyCategoryCodeSequence:     descriptor.FromCodePtr(codes.Category),
		SegmentedPropertyTypeCodeSequence:         descriptor.FromCodePtr(codes.Type),
		SegmentedPropertyTypeModifierCodeSequence: descriptor.FromCodePtr(codes.TypeModifier),
		AnatomicRegionSequence:                    descriptor.FromCodePtr(codes.Region),
		AnatomicRegionModifierSequence:            descriptor.FromCodePtr(codes.RegionModifier),
	}
	if uid, ok := s.Tag(scene.TagTrackingUID); ok {
		sd.TrackingUniqueIdentifier = uid
		sd.TrackingIdentifier = s.Name
	}
	return sd, nil
}

// Write encodes the non-empty segments of s over the source volume vol into
// a SEG at out. Empty segments fail the write unless SkipEmpty is set.
func Write(ctx context.Context, env *plugin.Env, s *scene.Segmentation, vol *scene.ScalarVolume, out string, opts WriteOptions) (*Written, error) {
	nonEmpty, empty, err := Partition(s)
	if err != nil {
		return nil, err
	}
	if len(empty) > 0 && !opts.SkipEmpty {
		ids := make([]string, len(empty))
		for i, seg := range empty {
			ids[i] = seg.ID
		}
		return nil, &errs.EmptySegmentsError{SegmentIDs: ids}
	}
	if len(nonEmpty) == 0 {
		return nil, errs.ErrNoNonEmptySegmentsFound
	}

	meta := descriptor.SEG{SeriesAttributes: SeriesAttributes(opts.Attributes, vol, env, DefaultSeriesDescription)}
	if err := meta.SeriesAttributes.Validate(); err != nil {
		return nil, err
	}
	for _, seg := range nonEmpty {
		sd, err := SegmentDescriptor(seg)
		if err != nil {
			return nil, err
		}
		meta.SegmentAttributes = append(meta.SegmentAttributes, []descriptor.Segment{sd})
	}

	dir, release, err := util.TempDir(env.TempDir, "segwrite-*")
	if err != nil {
		return nil, err
	}
	defer release()

	var labels []string
	for i, seg := range nonEmpty {
		data := make([]float32, len(seg.Mask))
		for v, m := range seg.Mask {
			if m != 0 {
				data[v] = 1
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("segment%d.nrrd", i+1))
		if err := nrrd.WriteFile(path, nrrd.FromGrid(s.Grid, nrrd.Uint8, data), true); err != nil {
			return nil, err
		}
		labels = append(labels, path)
	}
	metaPath := filepath.Join(dir, "seg.json")
	if err := descriptor.WriteFile(metaPath, &meta); err != nil {
		return nil, err
	}

	sourceDir := filepath.Join(dir, "dicom")
	if _, err := CopySourceFiles(env, vol, sourceDir); err != nil {
		return nil, err
	}

	err = env.Run(ctx, dcmqi.ITKToSegImage, dcmqi.Params{
		dcmqi.DICOMDirectory:    sourceDir,
		dcmqi.SegImageFiles:     strings.Join(labels, ","),
		dcmqi.MetaDataFileName:  metaPath,
		dcmqi.OutputSEGFileName: out,
	})
	if err != nil {
		return nil, err
	}
	if err := fileExists(out); err != nil {
		return nil, err
	}
	ds, err := dicom.ReadFile(out, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "wrote segmentation", slog.String("path", out), slog.Int("segments", len(nonEmpty)), slog.Int("skipped", len(empty)))
	return &Written{
		Path:              out,
		SOPInstanceUID:    ds.Text(tag.SOPInstanceUID),
		SeriesInstanceUID: ds.Text(tag.SeriesInstanceUID),
		Segments:          nonEmpty,
	}, nil
}

// CopySourceFiles copies the files of the instances behind vol into dir
// and returns the copied file names in instance order
func CopySourceFiles(env *plugin.Env, vol *scene.ScalarVolume, dir string) ([]string, error) {
	uids := vol.InstanceUIDs()
	if len(uids) == 0 {
		return nil, fmt.Errorf("volume %q has no source instances", vol.Name)
	}
	if env.DB == nil {
		return nil, errs.ErrReferencedSeriesNotInDatabase
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	names := make([]string, len(uids))
	for i, uid := range uids {
		src := env.DB.FileForInstance(uid)
		if src == "" {
			return nil, fmt.Errorf("instance %s: %w", uid, errs.ErrReferencedSeriesNotInDatabase)
		}
		names[i] = fmt.Sprintf("%05d.dcm", i)
		if err := CopyFile(src, filepath.Join(dir, names[i])); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// CopyFile copies src to dst
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return errors.Join(err, out.Close())
}
