package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/errs"
)

// WriteTID1500 implements tid1500writer: an Enhanced SR measurement report
// whose measurement groups point at segments of the composite context SEG
func WriteTID1500(ctx context.Context, params dcmqi.Params) error {
	if err := requireParams(params, dcmqi.MetaDataFileName, dcmqi.CompositeContextDataDir, dcmqi.ImageLibraryDataDir, dcmqi.OutputFileName); err != nil {
		return err
	}
	var meta descriptor.SR
	if err := descriptor.ReadFile(params[dcmqi.MetaDataFileName], &meta); err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	var composite []*dicom.Dataset
	for _, name := range meta.CompositeContext {
		ds, err := dicom.ReadFile(filepath.Join(params[dcmqi.CompositeContextDataDir], name), dicom.SkipPixelData())
		if err != nil {
			return fmt.Errorf("reading composite context: %w", err)
		}
		composite = append(composite, ds)
	}
	var library []*dicom.Dataset
	for _, name := range meta.ImageLibrary {
		ds, err := dicom.ReadFile(filepath.Join(params[dcmqi.ImageLibraryDataDir], name), dicom.SkipPixelData())
		if err != nil {
			return fmt.Errorf("reading image library: %w", err)
		}
		library = append(library, ds)
	}

	sr := dicom.NewStructuredReport(dicom.EnhancedSRStorageUID)
	sr.Series.SeriesNumber, _ = strconv.Atoi(meta.SeriesNumber)
	sr.Series.SeriesDescription = meta.SeriesDescription
	sr.Document.InstanceNumber, _ = strconv.Atoi(meta.InstanceNumber)
	sr.Document.CompletionFlag = meta.CompletionFlag
	sr.Document.VerificationFlag = meta.VerificationFlag
	sr.Trial.CoordinatingCenterName = meta.ClinicalTrialCoordinatingCenterName
	sr.Trial.SeriesID = meta.ClinicalTrialSeriesID
	sr.Trial.TimePointID = meta.ClinicalTrialTimePointID
	sr.Equipment.Manufacturer = Manufacturer
	sr.Equipment.SoftwareVersions = SoftwareVersions

	root, err := reportContent(&meta, library)
	if err != nil {
		return err
	}
	sr.Root = root
	for _, ds := range append(slices.Clone(composite), library...) {
		sr.Evidence = append(sr.Evidence, dicom.EvidenceReference{
			StudyInstanceUID:  ds.Text(tag.StudyInstanceUID),
			SeriesInstanceUID: ds.Text(tag.SeriesInstanceUID),
			SOPClassUID:       ds.Text(tag.SOPClassUID),
			SOPInstanceUID:    ds.Text(tag.SOPInstanceUID),
		})
	}

	ds, err := sr.GetDataset()
	if err != nil {
		return err
	}
	src := composite[0]
	if len(library) > 0 {
		src = library[0]
	}
	if err := dicom.WithCopied(src, dicom.PatientStudyTags...)(ds); err != nil {
		return err
	}
	if _, err := dicom.WriteFile(params[dcmqi.OutputFileName], ds); err != nil {
		return err
	}
	slog.InfoContext(ctx, "wrote measurement report",
		slog.String("path", params[dcmqi.OutputFileName]),
		slog.Int("measurements", len(meta.Measurements)))
	return nil
}

func reportContent(meta *descriptor.SR, library []*dicom.Dataset) (*dicom.ContentItem, error) {
	root := dicom.Container("", dicom.CodeImagingMeasurementReport)
	root.TemplateID = dicom.TID1500TemplateID
	root.Add(dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeLanguage, dicom.CodeEnglish))
	if obs := meta.ObserverContext; obs != nil {
		root.Add(dicom.CodeItem(dicom.RelHasObsContext, dicom.CodeObserverType, dicom.CodePerson))
		if obs.PersonObserverName != "" {
			root.Add(dicom.PNameItem(dicom.RelHasObsContext, dicom.CodePersonObserverName, obs.PersonObserverName))
		}
	}
	root.Add(dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeProcedureReported, dicom.CodeImagingProcedure))

	group := dicom.Container(dicom.RelContains, dicom.CodeImageLibraryGroup)
	for _, ds := range library {
		group.Add(dicom.ImageItem(dicom.RelContains, module.Code{}, dicom.SOPReference{
			ClassUID:    ds.Text(tag.SOPClassUID),
			InstanceUID: ds.Text(tag.SOPInstanceUID),
		}))
	}
	root.Add(dicom.Container(dicom.RelContains, dicom.CodeImageLibrary, group))

	measurements := dicom.Container(dicom.RelContains, dicom.CodeImagingMeasurements)
	for i, m := range meta.Measurements {
		g, err := measurementGroup(meta, m)
		if err != nil {
			return nil, fmt.Errorf("measurement %d: %w", i+1, err)
		}
		measurements.Add(g)
	}
	return root.Add(measurements), nil
}

func measurementGroup(meta *descriptor.SR, m descriptor.Measurement) (*dicom.ContentItem, error) {
	if m.Finding == nil {
		return nil, &errs.AttributeError{Key: "Finding"}
	}
	if m.SegmentationSOPInstanceUID == "" {
		return nil, &errs.AttributeError{Key: "segmentationSOPInstanceUID"}
	}
	uid := m.TrackingUniqueIdentifier
	if uid == "" {
		uid = dicom.NewUID()
	}
	g := dicom.Container(dicom.RelContains, dicom.CodeMeasurementGroup)
	g.TemplateID = dicom.TID1411TemplateID
	g.Add(
		dicom.TextItem(dicom.RelHasObsContext, dicom.CodeTrackingIdentifier, m.TrackingIdentifier),
		dicom.UIDRefItem(dicom.RelHasObsContext, dicom.CodeTrackingUID, uid),
	)
	if meta.ActivitySession != "" {
		g.Add(dicom.TextItem(dicom.RelHasObsContext, dicom.CodeActivitySession, meta.ActivitySession))
	}
	if meta.TimePoint != "" {
		g.Add(dicom.TextItem(dicom.RelHasObsContext, dicom.CodeTimePoint, meta.TimePoint))
	}
	g.Add(dicom.CodeItem(dicom.RelContains, dicom.CodeFinding, m.Finding.Module()))
	if m.FindingSite != nil {
		g.Add(dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeFindingSite, m.FindingSite.Module()))
	}
	g.Add(dicom.ImageItem(dicom.RelContains, dicom.CodeReferencedSegment, dicom.SOPReference{
		ClassUID:      dicom.SegmentationStorageUID,
		InstanceUID:   m.SegmentationSOPInstanceUID,
		SegmentNumber: m.ReferencedSegment,
	}))
	if m.SourceSeriesForImageSegmentation != "" {
		g.Add(dicom.UIDRefItem(dicom.RelContains, dicom.CodeSourceSeries, m.SourceSeriesForImageSegmentation))
	}
	for _, item := range m.MeasurementItems {
		if item.Quantity == nil || item.Units == nil {
			return nil, &errs.AttributeError{Key: "measurementItems"}
		}
		num := dicom.NumItem(dicom.RelContains, item.Quantity.Module(), item.Value, item.Units.Module())
		if item.Derivation != nil {
			num.Add(dicom.CodeItem(dicom.RelHasConceptMod, dicom.CodeDerivation, item.Derivation.Module()))
		}
		g.Add(num)
	}
	return g, nil
}

// ReadTID1500 implements tid1500reader: the segmentation measurement groups
// of a TID 1500 report as an SR descriptor
func ReadTID1500(ctx context.Context, params dcmqi.Params) error {
	if err := requireParams(params, dcmqi.InputSRFileName, dcmqi.MetaDataFileName); err != nil {
		return err
	}
	ds, err := dicom.ReadFile(params[dcmqi.InputSRFileName])
	if err != nil {
		return err
	}
	if !dicom.IsStructuredReport(ds) || dicom.TemplateIdentifier(ds) != dicom.TID1500TemplateID {
		return fmt.Errorf("%s is not a TID 1500 measurement report", params[dcmqi.InputSRFileName])
	}
	meta := MeasurementReport(ds)
	if err := os.MkdirAll(filepath.Dir(params[dcmqi.MetaDataFileName]), 0755); err != nil {
		return err
	}
	if err := descriptor.WriteFile(params[dcmqi.MetaDataFileName], meta); err != nil {
		return err
	}
	slog.InfoContext(ctx, "read measurement report", slog.Int("measurements", len(meta.Measurements)))
	return nil
}

// MeasurementReport extracts the series attributes and segmentation
// measurement groups of a TID 1500 dataset. Composite context and image
// library list SOP Instance UIDs.
func MeasurementReport(ds *dicom.Dataset) *descriptor.SR {
	meta := &descriptor.SR{
		SeriesAttributes: seriesAttributes(ds),
		VerificationFlag: ds.Text(tag.VerificationFlag),
		CompletionFlag:   ds.Text(tag.CompletionFlag),
	}
	for _, ev := range dicom.ParseEvidence(ds) {
		if ev.SOPClassUID == dicom.SegmentationStorageUID {
			meta.CompositeContext = append(meta.CompositeContext, ev.SOPInstanceUID)
		} else {
			meta.ImageLibrary = append(meta.ImageLibrary, ev.SOPInstanceUID)
		}
	}
	root := dicom.ParseContentItem(ds)
	if obs := root.First(dicom.CodePersonObserverName); obs != nil {
		meta.ObserverContext = &descriptor.ObserverContext{ObserverType: "PERSON", PersonObserverName: obs.Text}
	}
	measurements := root.First(dicom.CodeImagingMeasurements)
	if measurements == nil {
		return meta
	}
	for _, g := range measurements.Find(dicom.CodeMeasurementGroup) {
		ref := g.First(dicom.CodeReferencedSegment)
		if ref == nil || ref.Reference == nil {
			continue
		}
		m := descriptor.Measurement{
			ReferencedSegment:          ref.Reference.SegmentNumber,
			SegmentationSOPInstanceUID: ref.Reference.InstanceUID,
		}
		for _, ch := range g.Children {
			switch {
			case ch.ConceptName.Equal(dicom.CodeTrackingIdentifier):
				m.TrackingIdentifier = ch.Text
			case ch.ConceptName.Equal(dicom.CodeTrackingUID):
				m.TrackingUniqueIdentifier = ch.Text
			case ch.ConceptName.Equal(dicom.CodeSourceSeries):
				m.SourceSeriesForImageSegmentation = ch.Text
			case ch.ConceptName.Equal(dicom.CodeFinding):
				m.Finding = descriptor.FromCode(ch.Code)
			case ch.ConceptName.Equal(dicom.CodeFindingSite):
				m.FindingSite = descriptor.FromCode(ch.Code)
			case ch.ConceptName.Equal(dicom.CodeTimePoint):
				meta.TimePoint = ch.Text
			case ch.ConceptName.Equal(dicom.CodeActivitySession):
				meta.ActivitySession = ch.Text
			case ch.ValueType == dicom.ValueNum:
				item := descriptor.MeasurementItem{
					Value:    ch.Value,
					Quantity: descriptor.FromCode(ch.ConceptName),
					Units:    descriptor.FromCode(ch.Units),
				}
				if d := ch.First(dicom.CodeDerivation); d != nil {
					item.Derivation = descriptor.FromCode(d.Code)
				}
				m.MeasurementItems = append(m.MeasurementItems, item)
			}
		}
		meta.Measurements = append(meta.Measurements, m)
	}
	return meta
}
