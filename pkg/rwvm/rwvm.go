// Package rwvm applies a Real World Value Mapping instance to the scalar
// volume of the series it references.
package rwvm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/scene"
)

// Attributes set on scaled volumes
const (
	AttrUnits    = "DICOM.RWV.units"
	AttrLUTLabel = "DICOM.RWV.lutLabel"
)

// Mapping is the linear map of one RWVM instance
type Mapping struct {
	SOPInstanceUID string
	Slope          float64
	Intercept      float64
	LUTLabel       string
	Units          module.Code
	// ReferencedInstanceUIDs are the images the mapping applies to
	ReferencedInstanceUIDs []string
}

// Read extracts the first mapping of an RWVM dataset
func Read(ds *dicom.Dataset) (*Mapping, error) {
	if !dicom.IsRealWorldValueMapping(ds) {
		return nil, fmt.Errorf("%s is not a real world value mapping", ds.Text(tag.SOPClassUID))
	}
	ref := ds.Item(tag.ReferencedImageRealWorldValueMappingSequence)
	if ref == nil {
		return nil, &errs.AttributeError{Key: "ReferencedImageRealWorldValueMappingSequence"}
	}
	item := ref.Item(tag.RealWorldValueMappingSequence)
	if item == nil {
		return nil, &errs.AttributeError{Key: "RealWorldValueMappingSequence"}
	}
	m := &Mapping{
		SOPInstanceUID: ds.Text(tag.SOPInstanceUID),
		Slope:          1,
		LUTLabel:       item.Text(tag.LUTLabel),
		Units:          dicom.ParseCode(item.Item(tag.MeasurementUnitsCodeSequence)),
	}
	if v := item.Floats(tag.RealWorldValueSlope); len(v) > 0 {
		m.Slope = v[0]
	}
	if v := item.Floats(tag.RealWorldValueIntercept); len(v) > 0 {
		m.Intercept = v[0]
	}
	for _, img := range ref.Items(tag.ReferencedImageSequence) {
		m.ReferencedInstanceUIDs = append(m.ReferencedInstanceUIDs, img.Text(tag.ReferencedSOPInstanceUID))
	}
	return m, nil
}

// ReferencesSeries reports whether any referenced image is in series
func (m *Mapping) ReferencesSeries(db dicomdb.Database, series string) bool {
	return slices.ContainsFunc(m.ReferencedInstanceUIDs, func(uid string) bool {
		inst, ok := db.Instance(uid)
		return ok && inst.SeriesInstanceUID == series
	})
}

// Apply scales vol in place and records the mapping on it
func (m *Mapping) Apply(vol *scene.ScalarVolume) {
	for i, v := range vol.Data {
		vol.Data[i] = float32(float64(v)*m.Slope + m.Intercept)
	}
	vol.SetAttribute(scene.AttrRWVMInstanceUID, m.SOPInstanceUID)
	vol.SetAttribute(AttrUnits, m.Units.Value)
	vol.SetAttribute(AttrLUTLabel, m.LUTLabel)
}

// LoadScaled loads series from the database, applies the mapping in file
// and adds the volume to the scene. The mapping must reference series.
func LoadScaled(ctx context.Context, env *plugin.Env, file, series string) (*scene.ScalarVolume, error) {
	ds, err := dicom.ReadFile(file, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	m, err := Read(ds)
	if err != nil {
		return nil, err
	}
	if !m.ReferencesSeries(env.DB, series) {
		return nil, fmt.Errorf("mapping %s does not reference series %s", m.SOPInstanceUID, series)
	}
	files := env.DB.FilesForSeries(series)
	if len(files) == 0 {
		return nil, fmt.Errorf("series %s: %w", series, errs.ErrReferencedSeriesNotInDatabase)
	}
	v, err := dicom.LoadSeriesFiles(files)
	if err != nil {
		return nil, err
	}
	name := m.LUTLabel
	if name == "" {
		name = "Scaled volume"
	}
	vol := scene.VolumeFromDICOM(name, v)
	m.Apply(vol)
	env.Scene.Add(vol)
	slog.InfoContext(ctx, "applied real world value mapping",
		slog.String("series", series), slog.Float64("slope", m.Slope), slog.Float64("intercept", m.Intercept))
	return vol, nil
}

// Dataset encodes m as an RWVM instance over the images in refs, copying
// patient and study from the first
func Dataset(m *Mapping, refs []*dicom.Dataset) (*dicom.Dataset, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("mapping references no images")
	}
	if m.SOPInstanceUID == "" {
		m.SOPInstanceUID = dicom.NewUID()
	}
	m.ReferencedInstanceUIDs = m.ReferencedInstanceUIDs[:0]
	images := make([]*dicom.Dataset, len(refs))
	for i, r := range refs {
		m.ReferencedInstanceUIDs = append(m.ReferencedInstanceUIDs, r.Text(tag.SOPInstanceUID))
		images[i] = dicom.MustDataset(
			dicom.WithElement(tag.ReferencedSOPClassUID, r.Text(tag.SOPClassUID)),
			dicom.WithElement(tag.ReferencedSOPInstanceUID, r.Text(tag.SOPInstanceUID)),
		)
	}
	mapping := dicom.MustDataset(
		dicom.WithElement(tag.LUTLabel, m.LUTLabel),
		dicom.WithElement(tag.RealWorldValueSlope, []float64{m.Slope}),
		dicom.WithElement(tag.RealWorldValueIntercept, []float64{m.Intercept}),
		dicom.WithSequence(tag.MeasurementUnitsCodeSequence, dicom.CodeDataset(m.Units)),
	)
	return dicom.NewDataset(
		dicom.WithFileMeta(dicom.RealWorldValueMappingUID, m.SOPInstanceUID, string(dicom.ExplicitVRLittleEndian)),
		dicom.WithCopied(refs[0], dicom.PatientStudyTags...),
		dicom.WithElement(tag.SOPClassUID, dicom.RealWorldValueMappingUID),
		dicom.WithElement(tag.SOPInstanceUID, m.SOPInstanceUID),
		dicom.WithElement(tag.Modality, "RWV"),
		dicom.WithElement(tag.SeriesInstanceUID, dicom.NewUID()),
		dicom.WithSequence(tag.ReferencedImageRealWorldValueMappingSequence, dicom.MustDataset(
			dicom.WithSequence(tag.RealWorldValueMappingSequence, mapping),
			dicom.WithSequence(tag.ReferencedImageSequence, images...),
		)),
	)
}
