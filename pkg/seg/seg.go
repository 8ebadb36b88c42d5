// Package seg reads DICOM Segmentation objects into scene segmentations and
// writes segmentations back out through the segimage tools.
package seg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/resolve"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/terminology"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// PluginName identifies SEG loadables
const PluginName = "DICOMSegmentation"

// Confidence of a SEG loadable
const Confidence = 0.95

// Plugin examines and loads DICOM SEG files
type Plugin struct {
	Env *plugin.Env
}

// New returns a SEG plugin over env
func New(env *plugin.Env) *Plugin {
	return &Plugin{Env: env}
}

func (p *Plugin) Name() string { return PluginName }

// Examine offers one loadable per SEG file
func (p *Plugin) Examine(ctx context.Context, fileLists [][]string) ([]*plugin.Loadable, error) {
	var out []*plugin.Loadable
	for _, files := range fileLists {
		for _, f := range files {
			ds, err := dicom.ReadFile(f, dicom.SkipPixelData())
			if err != nil {
				slog.DebugContext(ctx, "not a DICOM file", slog.String("path", f), slog.Any("error", err))
				continue
			}
			if !dicom.IsSegmentation(ds) {
				continue
			}
			name := ds.Text(tag.SeriesDescription)
			if name == "" {
				name = "Segmentation"
			}
			l := &plugin.Loadable{
				Plugin:       PluginName,
				Name:         name,
				Tooltip:      name,
				Files:        []string{f},
				Confidence:   Confidence,
				Selected:     true,
				InstanceUIDs: []string{ds.Text(tag.SOPInstanceUID)},
			}
			attachReferences(l, resolve.SeriesReferencedBy(ds, p.Env.DB))
			out = append(out, l)
		}
	}
	return out, nil
}

func attachReferences(l *plugin.Loadable, refs resolve.References) {
	l.ReferencedSeriesUID = refs.ReferencedSeriesUID
	l.ReferencedInstanceUIDs = refs.ReferencedInstanceUIDs
	l.ReferencedSegmentations = refs.Segmentations
	l.ReferencedRWVMs = refs.RWVMs
	l.ReferencedOthers = refs.Others
}

// Load adds the segmentation of l to the scene
func (p *Plugin) Load(ctx context.Context, l *plugin.Loadable) error {
	_, err := p.LoadSegmentation(ctx, l)
	return err
}

// LoadSegmentation decodes the SEG file of l into a new scene segmentation
// with one segment per encoded label, ordered by label
func (p *Plugin) LoadSegmentation(ctx context.Context, l *plugin.Loadable) (*scene.Segmentation, error) {
	if len(l.Files) == 0 {
		return nil, fmt.Errorf("loadable %q has no files", l.Name)
	}
	file := l.Files[0]
	ds, err := dicom.ReadFile(file, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	if l.ReferencedSeriesUID == "" && l.ReferencedInstanceUIDs == nil {
		attachReferences(l, resolve.SeriesReferencedBy(ds, p.Env.DB))
	}

	dir, release, err := util.TempDir(p.Env.TempDir, "seg-*")
	if err != nil {
		return nil, err
	}
	defer release()

	err = p.Env.Run(ctx, dcmqi.SegImageToITK, dcmqi.Params{
		dcmqi.InputSEGFileName: file,
		dcmqi.OutputDirName:    dir,
	})
	if err != nil {
		return nil, err
	}
	meta, err := ReadMeta(dir)
	if err != nil {
		return nil, err
	}
	segs := meta.Segments()
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].LabelID < segs[j].LabelID })

	segmentation := scene.NewSegmentation(l.Name, geom.Grid{}, scene.BinaryLabelmap)
	for _, sd := range segs {
		img, err := nrrd.ReadFile(filepath.Join(dir, strconv.Itoa(sd.LabelID)+".nrrd"))
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", sd.LabelID, err)
		}
		lm := &scene.LabelMap{Base: scene.Base{Name: sd.SegmentLabel}, Grid: img.Grid(), Data: make([]uint8, len(img.Data))}
		for i, v := range img.Data {
			if v != 0 {
				lm.Data[i] = 1
			}
		}
		if _, err := segmentation.ImportLabelMap(lm, SegmentFromDescriptor(sd)); err != nil {
			return nil, &errs.SegmentError{SegmentID: sd.SegmentLabel, Err: err}
		}
	}
	if err := segmentation.CreateRepresentation(scene.ClosedSurface); err != nil {
		return nil, err
	}

	segmentation.SetAttribute(scene.AttrSeriesInstanceUID, ds.Text(tag.SeriesInstanceUID))
	segmentation.SetAttribute(scene.AttrStudyInstanceUID, ds.Text(tag.StudyInstanceUID))
	segmentation.SetAttribute(scene.AttrModality, "SEG")
	segmentation.SetAttribute(scene.AttrReferencedInstanceUIDs, strings.Join(l.ReferencedInstanceUIDs, " "))

	parent := p.referenceGeometry(ctx, segmentation, l)
	if parent != nil {
		p.Env.Scene.AddChild(parent, segmentation)
	} else {
		p.Env.Scene.Add(segmentation)
	}
	slog.InfoContext(ctx, "loaded segmentation", slog.String("name", l.Name), slog.Int("segments", segmentation.Len()))
	return segmentation, nil
}

// ReadMeta parses the meta.json in dir and checks it lists one segment
// block per label file on disk
func ReadMeta(dir string) (*descriptor.SEG, error) {
	var meta descriptor.SEG
	if err := descriptor.ReadFile(filepath.Join(dir, "meta.json"), &meta); err != nil {
		return nil, err
	}
	labels, err := filepath.Glob(filepath.Join(dir, "*.nrrd"))
	if err != nil {
		return nil, err
	}
	if len(labels) != len(meta.SegmentAttributes) {
		return nil, &errs.MismatchError{Files: len(labels), Descriptors: len(meta.SegmentAttributes)}
	}
	return &meta, nil
}

// SegmentFromDescriptor builds a segment with color, terminology and
// algorithm tags from one meta.json entry
func SegmentFromDescriptor(sd descriptor.Segment) *scene.Segment {
	name := sd.SegmentLabel
	if name == "" {
		name = "Segment_" + strconv.Itoa(sd.LabelID)
	}
	s := scene.NewSegment(name, sd.RGB())
	entry := terminology.FromCodes(
		sd.SegmentedPropertyCategoryCodeSequence.ModulePtr(),
		sd.SegmentedPropertyTypeCodeSequence.ModulePtr(),
		sd.SegmentedPropertyTypeModifierCodeSequence.ModulePtr(),
		sd.AnatomicRegionSequence.ModulePtr(),
		sd.AnatomicRegionModifierSequence.ModulePtr(),
	)
	s.SetTag(scene.TagTerminologyEntry, entry.String())
	if sd.SegmentAlgorithmType != "" {
		s.SetTag(scene.TagAlgorithmType, sd.SegmentAlgorithmType)
	}
	if sd.SegmentAlgorithmName != "" {
		s.SetTag(scene.TagAlgorithmName, sd.SegmentAlgorithmName)
	}
	if sd.TrackingUniqueIdentifier != "" {
		s.SetTag(scene.TagTrackingUID, sd.TrackingUniqueIdentifier)
	}
	return s
}

// referenceGeometry sets the segmentation's reference grid from the
// referenced series and returns the volume to parent it under. A volume
// already scaled by a real world value mapping is preferred.
func (p *Plugin) referenceGeometry(ctx context.Context, s *scene.Segmentation, l *plugin.Loadable) scene.Node {
	if l.ReferencedSeriesUID == "" {
		return nil
	}
	var match *scene.ScalarVolume
	for _, v := range scene.NodesOf[*scene.ScalarVolume](p.Env.Scene) {
		if v.Attribute(scene.AttrSeriesInstanceUID) != l.ReferencedSeriesUID {
			continue
		}
		if match == nil || v.Attribute(scene.AttrRWVMInstanceUID) != "" {
			match = v
		}
	}
	if match != nil {
		g := match.Grid
		s.ReferenceGeometry = &g
		return match
	}
	if p.Env.DB == nil {
		return nil
	}
	files := p.Env.DB.FilesForSeries(l.ReferencedSeriesUID)
	if len(files) == 0 {
		slog.WarnContext(ctx, "referenced series not in database", slog.String("series", l.ReferencedSeriesUID))
		return nil
	}
	vol, err := dicom.LoadSeriesFiles(files)
	if err != nil {
		slog.WarnContext(ctx, "loading referenced series", slog.String("series", l.ReferencedSeriesUID), slog.Any("error", err))
		return nil
	}
	g := scene.VolumeFromDICOM("", vol).Grid
	s.ReferenceGeometry = &g
	return nil
}

// CanExport reports whether n is a segmentation whose referenced
// instances are all in db
func CanExport(n scene.Node, db dicomdb.Database) bool {
	s, ok := n.(*scene.Segmentation)
	if !ok || db == nil {
		return false
	}
	uids := strings.Fields(s.Attribute(scene.AttrReferencedInstanceUIDs))
	if len(uids) == 0 {
		return false
	}
	for _, uid := range uids {
		if _, ok := db.Instance(uid); !ok {
			return false
		}
	}
	return true
}

func fileExists(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("expected output %s: %w", path, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("expected output %s is empty", path)
	}
	return nil
}
