package sr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/seg"
	"github.com/jpfielding/qreport.go/pkg/stats"
	"github.com/jpfielding/qreport.go/pkg/terminology"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// WriteOptions control a measurement report write
type WriteOptions struct {
	Attributes descriptor.SeriesAttributes
	// Reader is the person observer, the content creator when empty
	Reader          string
	Verified        bool
	Partial         bool
	ActivitySession string
	TimePoint       string
	// VisibleOnly restricts statistics to visible segments
	VisibleOnly bool
}

// Written describes a report on disk
type Written struct {
	Path              string
	SOPInstanceUID    string
	SeriesInstanceUID string
	Report            *descriptor.SR
}

// Report builds the measurement report descriptor for the segments of a
// written SEG: one measurement per segment in SEG order, with the coded
// statistics of the segment over vol
func Report(s *scene.Segmentation, vol *scene.ScalarVolume, written *seg.Written, attrs descriptor.SeriesAttributes, opts WriteOptions) (*descriptor.SR, error) {
	res, err := stats.Compute(s, vol, opts.VisibleOnly)
	if err != nil {
		return nil, err
	}
	reader := opts.Reader
	if reader == "" {
		reader = attrs.ContentCreatorName
	}
	meta := &descriptor.SR{
		SeriesAttributes: attrs,
		CompositeContext: []string{filepath.Base(written.Path)},
		ObserverContext: &descriptor.ObserverContext{
			ObserverType:       "PERSON",
			PersonObserverName: descriptor.DICOMPersonName(reader),
		},
		VerificationFlag: "UNVERIFIED",
		CompletionFlag:   "COMPLETE",
		ActivitySession:  opts.ActivitySession,
		TimePoint:        opts.TimePoint,
	}
	if opts.Verified {
		meta.VerificationFlag = "VERIFIED"
	}
	if opts.Partial {
		meta.CompletionFlag = "PARTIAL"
	}
	source := vol.Attribute(scene.AttrSeriesInstanceUID)
	for i, segment := range written.Segments {
		m, err := measurement(segment, i+1, res)
		if err != nil {
			return nil, err
		}
		m.SourceSeriesForImageSegmentation = source
		m.SegmentationSOPInstanceUID = written.SOPInstanceUID
		meta.Measurements = append(meta.Measurements, m)
	}
	return meta, nil
}

func measurement(s *scene.Segment, number int, res *stats.Result) (descriptor.Measurement, error) {
	raw, _ := s.Tag(scene.TagTerminologyEntry)
	entry, err := terminology.Parse(raw)
	if err != nil {
		return descriptor.Measurement{}, &errs.SegmentError{SegmentID: s.Name, Err: fmt.Errorf("%w: %v", errs.ErrInvalidTerminology, err)}
	}
	codes := entry.DICOMCodes()
	uid, _ := s.Tag(scene.TagTrackingUID)
	m := descriptor.Measurement{
		TrackingIdentifier:       s.Name,
		TrackingUniqueIdentifier: uid,
		ReferencedSegment:        number,
		Finding:                  descriptor.FromCodePtr(codes.Type),
		FindingSite:              descriptor.FromCodePtr(codes.Region),
		MeasurementItems:         []descriptor.MeasurementItem{},
	}
	st, ok := res.Segment(s.ID)
	if !ok || st.Empty() {
		return m, nil
	}
	for _, sm := range st.Measurements {
		if !sm.Coded() {
			continue
		}
		item := descriptor.MeasurementItem{
			Value:    sm.FormatValue(),
			Quantity: descriptor.FromCode(sm.Quantity),
			Units:    descriptor.FromCode(sm.Units),
		}
		if !sm.Derivation.IsZero() {
			item.Derivation = descriptor.FromCode(sm.Derivation)
		}
		m.MeasurementItems = append(m.MeasurementItems, item)
	}
	return m, nil
}

// Write encodes a measurement report over the SEG in written and its
// source volume vol to out
func Write(ctx context.Context, env *plugin.Env, s *scene.Segmentation, vol *scene.ScalarVolume, written *seg.Written, out string, opts WriteOptions) (*Written, error) {
	attrs := opts.Attributes
	attrs.SeriesDescription = DefaultName
	attrs = seg.SeriesAttributes(attrs, vol, env, DefaultName)
	meta, err := Report(s, vol, written, attrs, opts)
	if err != nil {
		return nil, err
	}

	dir, release, err := util.TempDir(env.TempDir, "tid1500write-*")
	if err != nil {
		return nil, err
	}
	defer release()

	compositeDir := filepath.Join(dir, "composite")
	if err := os.MkdirAll(compositeDir, 0755); err != nil {
		return nil, err
	}
	if err := seg.CopyFile(written.Path, filepath.Join(compositeDir, meta.CompositeContext[0])); err != nil {
		return nil, err
	}
	libraryDir := filepath.Join(dir, "library")
	meta.ImageLibrary, err = seg.CopySourceFiles(env, vol, libraryDir)
	if err != nil {
		return nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	metaPath := filepath.Join(dir, "sr.json")
	if err := descriptor.WriteFile(metaPath, meta); err != nil {
		return nil, err
	}

	err = env.Run(ctx, dcmqi.TID1500Writer, dcmqi.Params{
		dcmqi.MetaDataFileName:        metaPath,
		dcmqi.CompositeContextDataDir: compositeDir,
		dcmqi.ImageLibraryDataDir:     libraryDir,
		dcmqi.OutputFileName:          out,
	})
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		return nil, fmt.Errorf("expected output %s was not written", out)
	}
	ds, err := dicom.ReadFile(out, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "wrote measurement report", slog.String("path", out), slog.Int("measurements", len(meta.Measurements)))
	return &Written{
		Path:              out,
		SOPInstanceUID:    ds.Text(tag.SOPInstanceUID),
		SeriesInstanceUID: ds.Text(tag.SeriesInstanceUID),
		Report:            meta,
	}, nil
}

// ExportOptions control Export
type ExportOptions struct {
	SEG seg.WriteOptions
	SR  WriteOptions
}

// Export writes s as a SEG and a measurement report over it into dir.
// Segments without a tracking UID get a new one first so SEG and report
// agree.
func Export(ctx context.Context, env *plugin.Env, s *scene.Segmentation, vol *scene.ScalarVolume, dir string, opts ExportOptions) (*seg.Written, *Written, error) {
	for _, segment := range s.Segments() {
		if _, ok := segment.Tag(scene.TagTrackingUID); !ok {
			segment.SetTag(scene.TagTrackingUID, dicom.NewUID())
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, err
	}
	segWritten, err := seg.Write(ctx, env, s, vol, filepath.Join(dir, "segmentation.dcm"), opts.SEG)
	if err != nil {
		return nil, nil, err
	}
	srOpts := opts.SR
	if srOpts.Attributes == (descriptor.SeriesAttributes{}) {
		srOpts.Attributes = opts.SEG.Attributes
	}
	srWritten, err := Write(ctx, env, s, vol, segWritten, filepath.Join(dir, "measurements.dcm"), srOpts)
	if err != nil {
		return segWritten, nil, err
	}
	return segWritten, srWritten, nil
}
