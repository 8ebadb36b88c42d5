// Package m3d loads DICOM Encapsulated 3D Manufacturing Model instances
// carrying STL payloads as closed surface segmentations.
package m3d

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/stl"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// PluginName identifies M3D loadables
const PluginName = "DICOMM3D"

// Confidence of an M3D loadable
const Confidence = 0.95

// SegmentName names the single segment of a loaded model
const SegmentName = "Segment 1"

// STLFileName is the payload file written under the load's temp dir
const STLFileName = "temp.STL"

// MIMEType of an encapsulated STL
const MIMEType = "model/stl"

// Plugin examines and loads M3D files
type Plugin struct {
	Env *plugin.Env
}

// New returns an M3D plugin over env
func New(env *plugin.Env) *Plugin {
	return &Plugin{Env: env}
}

func (p *Plugin) Name() string { return PluginName }

// Examine offers one loadable per M3D file
func (p *Plugin) Examine(ctx context.Context, fileLists [][]string) ([]*plugin.Loadable, error) {
	var out []*plugin.Loadable
	for _, files := range fileLists {
		for _, f := range files {
			ds, err := dicom.ReadFile(f, dicom.SkipPixelData())
			if err != nil {
				slog.DebugContext(ctx, "not a DICOM file", slog.String("path", f), slog.Any("error", err))
				continue
			}
			if !dicom.IsM3D(ds) {
				continue
			}
			name := ds.Text(tag.SeriesDescription)
			if name == "" {
				name = "Model"
			}
			out = append(out, &plugin.Loadable{
				Plugin:       PluginName,
				Name:         name,
				Tooltip:      name,
				Files:        []string{f},
				Confidence:   Confidence,
				Selected:     true,
				InstanceUIDs: []string{ds.Text(tag.SOPInstanceUID)},
			})
		}
	}
	return out, nil
}

func (p *Plugin) Load(ctx context.Context, l *plugin.Loadable) error {
	_, err := p.LoadSegmentation(ctx, l)
	return err
}

// Payload returns the encapsulated document of ds cut to its declared
// length, which drops the pad byte of an odd length payload
func Payload(ds *dicom.Dataset) ([]byte, error) {
	doc := ds.Bytes(tag.EncapsulatedDocument)
	if doc == nil {
		return nil, fmt.Errorf("no encapsulated document")
	}
	n, ok := ds.Int(tag.EncapsulatedDocumentLength)
	if !ok {
		return doc, nil
	}
	if n > len(doc) {
		return nil, fmt.Errorf("encapsulated document length %d exceeds payload of %d bytes", n, len(doc))
	}
	return doc[:n], nil
}

// WriteSTL writes the payload of ds to dir/temp.STL
func WriteSTL(ds *dicom.Dataset, dir string) (string, error) {
	doc, err := Payload(ds)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, STLFileName)
	if err := os.WriteFile(path, doc, 0644); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("expected output %s: %w", path, err)
	}
	return path, nil
}

// LoadSegmentation decodes the model of l into a closed surface
// segmentation with a derived labelmap
func (p *Plugin) LoadSegmentation(ctx context.Context, l *plugin.Loadable) (*scene.Segmentation, error) {
	if len(l.Files) == 0 {
		return nil, fmt.Errorf("loadable %q has no files", l.Name)
	}
	ds, err := dicom.ReadFile(l.Files[0])
	if err != nil {
		return nil, err
	}
	dir, release, err := util.TempDir(p.Env.TempDir, "m3d-*")
	if err != nil {
		return nil, err
	}
	defer release()

	path, err := WriteSTL(ds, dir)
	if err != nil {
		return nil, err
	}
	mesh, err := stl.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// payload vertices are patient LPS
	for i := range mesh.Triangles {
		t := &mesh.Triangles[i]
		for _, v := range []*[3]float32{&t.Vertex1, &t.Vertex2, &t.Vertex3} {
			v[0], v[1] = -v[0], -v[1]
		}
		t.ComputeNormal()
	}
	model := &scene.Model{Base: scene.Base{Name: l.Name}, Mesh: mesh}

	s := scene.NewSegmentation(l.Name, geom.Grid{}, scene.ClosedSurface)
	if _, err := s.ImportModel(model, scene.NewSegment(SegmentName, [3]float64{0.5, 0.68, 0.5})); err != nil {
		return nil, err
	}
	if err := s.CreateRepresentation(scene.BinaryLabelmap); err != nil {
		return nil, err
	}
	s.SetAttribute(scene.AttrSeriesInstanceUID, ds.Text(tag.SeriesInstanceUID))
	s.SetAttribute(scene.AttrStudyInstanceUID, ds.Text(tag.StudyInstanceUID))
	s.SetAttribute(scene.AttrModality, "M3D")
	p.Env.Scene.Add(s)
	slog.InfoContext(ctx, "loaded model", slog.String("name", l.Name), slog.Int("triangles", len(mesh.Triangles)))
	return s, nil
}

// Dataset wraps an STL payload in an Encapsulated STL instance sharing the
// patient and study of src
func Dataset(src *dicom.Dataset, payload []byte, description string) (*dicom.Dataset, error) {
	sop := dicom.NewUID()
	now := time.Now()
	doc := &module.EncapsulatedDocumentModule{
		InstanceNumber: 1,
		ContentDate:    module.NewDate(now),
		ContentTime:    module.NewTime(now),
		DocumentTitle:  description,
		MIMEType:       MIMEType,
		Document:       payload,
	}
	return dicom.NewDataset(
		dicom.WithFileMeta(dicom.EncapsulatedSTLStorageUID, sop, string(dicom.ExplicitVRLittleEndian)),
		dicom.WithCopied(src, dicom.PatientStudyTags...),
		dicom.WithElement(tag.SOPClassUID, dicom.EncapsulatedSTLStorageUID),
		dicom.WithElement(tag.SOPInstanceUID, sop),
		dicom.WithElement(tag.Modality, "M3D"),
		dicom.WithElement(tag.SeriesInstanceUID, dicom.NewUID()),
		dicom.WithElement(tag.SeriesNumber, "1"),
		dicom.WithElement(tag.SeriesDescription, description),
		dicom.WithElement(tag.FrameOfReferenceUID, src.Text(tag.FrameOfReferenceUID)),
		dicom.WithModule(doc.ToTags()),
	)
}
