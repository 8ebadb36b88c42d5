package sr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpfielding/qreport.go/pkg/dcmqi/native"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
)

// PlanarReport writes annotations as a Comprehensive 3D SR measurement
// report
type PlanarReport struct {
	SeriesDescription string
	SeriesNumber      int
	// Source is any image instance of the study, used for patient and
	// study attributes when no 2D annotation references an image
	Source      string
	Annotations []Annotation
}

// Write encodes the report to path. Referenced images must be in db.
func (r *PlanarReport) Write(ctx context.Context, db dicomdb.Database, path string) (*Written, error) {
	if len(r.Annotations) == 0 {
		return nil, fmt.Errorf("planar report has no annotations")
	}
	var library []dicomdb.Instance
	seen := map[string]bool{}
	for _, a := range r.Annotations {
		if a.Kind == Point3D || seen[a.ReferencedSOPInstanceUID] {
			continue
		}
		inst, ok := db.Instance(a.ReferencedSOPInstanceUID)
		if !ok {
			return nil, fmt.Errorf("annotation %q: instance %s: %w", a.TrackingIdentifier, a.ReferencedSOPInstanceUID, errs.ErrReferencedSeriesNotInDatabase)
		}
		seen[inst.SOPInstanceUID] = true
		library = append(library, inst)
	}
	source := r.Source
	if source == "" && len(library) > 0 {
		source = library[0].SOPInstanceUID
	}
	file := db.FileForInstance(source)
	if file == "" {
		return nil, fmt.Errorf("source instance %q: %w", source, errs.ErrReferencedSeriesNotInDatabase)
	}
	src, err := dicom.ReadFile(file, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}

	doc := dicom.NewStructuredReport(dicom.Comprehensive3DSRUID)
	doc.Series.SeriesNumber = r.SeriesNumber
	doc.Series.SeriesDescription = r.SeriesDescription
	if doc.Series.SeriesDescription == "" {
		doc.Series.SeriesDescription = DefaultName
	}
	doc.Equipment.Manufacturer = native.Manufacturer
	doc.Equipment.SoftwareVersions = native.SoftwareVersions

	root := dicom.Container("", dicom.CodeImagingMeasurementReport)
	root.TemplateID = dicom.TID1500TemplateID
	root.Add(
		dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeLanguage, dicom.CodeEnglish),
		dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeProcedureReported, dicom.CodeImagingProcedure),
	)
	group := dicom.Container(dicom.RelContains, dicom.CodeImageLibraryGroup)
	for _, inst := range library {
		group.Add(dicom.ImageItem(dicom.RelContains, module.Code{}, dicom.SOPReference{
			ClassUID:    inst.SOPClassUID,
			InstanceUID: inst.SOPInstanceUID,
		}))
		doc.Evidence = append(doc.Evidence, dicom.EvidenceReference{
			StudyInstanceUID:  inst.StudyInstanceUID,
			SeriesInstanceUID: inst.SeriesInstanceUID,
			SOPClassUID:       inst.SOPClassUID,
			SOPInstanceUID:    inst.SOPInstanceUID,
		})
	}
	root.Add(dicom.Container(dicom.RelContains, dicom.CodeImageLibrary, group))
	measurements := dicom.Container(dicom.RelContains, dicom.CodeImagingMeasurements)
	for _, a := range r.Annotations {
		if a.Kind != Point3D && a.ReferencedSOPClassUID == "" {
			inst, _ := db.Instance(a.ReferencedSOPInstanceUID)
			a.ReferencedSOPClassUID = inst.SOPClassUID
		}
		measurements.Add(annotationGroup(a))
	}
	doc.Root = root.Add(measurements)

	ds, err := doc.GetDataset()
	if err != nil {
		return nil, err
	}
	if err := dicom.WithCopied(src, dicom.PatientStudyTags...)(ds); err != nil {
		return nil, err
	}
	if _, err := dicom.WriteFile(path, ds); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "wrote planar report", slog.String("path", path), slog.Int("annotations", len(r.Annotations)))
	return &Written{
		Path:              path,
		SOPInstanceUID:    ds.Text(tag.SOPInstanceUID),
		SeriesInstanceUID: ds.Text(tag.SeriesInstanceUID),
	}, nil
}

func annotationGroup(a Annotation) *dicom.ContentItem {
	uid := a.TrackingUID
	if uid == "" {
		uid = dicom.NewUID()
	}
	g := dicom.Container(dicom.RelContains, dicom.CodeMeasurementGroup)
	g.TemplateID = dicom.TID1410TemplateID
	g.Add(
		dicom.TextItem(dicom.RelHasObsContext, dicom.CodeTrackingIdentifier, a.TrackingIdentifier),
		dicom.UIDRefItem(dicom.RelHasObsContext, dicom.CodeTrackingUID, uid),
	)
	if !a.FindingType.IsZero() {
		g.Add(dicom.CodeItem(dicom.RelContains, dicom.CodeFinding, a.FindingType))
	}
	for _, site := range a.FindingSites {
		g.Add(dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeFindingSite, site))
	}

	if a.Kind == Point3D {
		return g.Add(&dicom.ContentItem{
			RelationshipType:    dicom.RelContains,
			ValueType:           dicom.ValueSCoord3D,
			ConceptName:         dicom.CodeImageRegion,
			GraphicType:         "POINT",
			GraphicData:         []float32{float32(a.Point[0]), float32(a.Point[1]), float32(a.Point[2])},
			FrameOfReferenceUID: a.FrameOfReferenceUID,
		})
	}
	if a.Kind == BoundingBox {
		g.Add(dicom.CodeItem(dicom.RelContains, dicom.CodeGeometricPurpose, dicom.CodeBoundedBy))
	}
	data := make([]float32, 0, 2*len(a.Pixels))
	for _, p := range a.Pixels {
		data = append(data, float32(p[0]), float32(p[1]))
	}
	region := &dicom.ContentItem{
		RelationshipType: dicom.RelContains,
		ValueType:        dicom.ValueSCoord,
		ConceptName:      dicom.CodeImageRegion,
		GraphicType:      "POLYLINE",
		GraphicData:      data,
	}
	region.Add(dicom.ImageItem(dicom.RelSelectedFrom, module.Code{}, dicom.SOPReference{
		ClassUID:    a.ReferencedSOPClassUID,
		InstanceUID: a.ReferencedSOPInstanceUID,
	}))
	return g.Add(region)
}
