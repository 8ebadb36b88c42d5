package dicom

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
	"github.com/jpfielding/qreport.go/pkg/dicom/vr"
)

// SR value types
const (
	ValueContainer = "CONTAINER"
	ValueCode      = "CODE"
	ValueText      = "TEXT"
	ValueNum       = "NUM"
	ValueUIDRef    = "UIDREF"
	ValueImage     = "IMAGE"
	ValueComposite = "COMPOSITE"
	ValuePName     = "PNAME"
	ValueSCoord    = "SCOORD"
	ValueSCoord3D  = "SCOORD3D"
)

// SR relationship types
const (
	RelContains       = "CONTAINS"
	RelHasObsContext  = "HAS OBS CONTEXT"
	RelHasConceptMod  = "HAS CONCEPT MOD"
	RelHasProperties  = "HAS PROPERTIES"
	RelInferredFrom   = "INFERRED FROM"
	RelSelectedFrom   = "SELECTED FROM"
	RelHasAcqContext  = "HAS ACQ CONTEXT"
	RelHasAnnotations = "HAS ANNOTATIONS"
)

// SOPReference points at an instance, optionally at frames or a segment
type SOPReference struct {
	ClassUID      string
	InstanceUID   string
	Frames        []int
	SegmentNumber int
}

// ContentItem is one node of an SR content tree
type ContentItem struct {
	RelationshipType string
	ValueType        string
	ConceptName      module.Code

	Code  module.Code // CODE
	Text  string      // TEXT, UIDREF, PNAME
	Value string      // NUM, as written (DS)
	Units module.Code // NUM

	Reference *SOPReference // IMAGE, COMPOSITE

	GraphicType         string    // SCOORD, SCOORD3D
	GraphicData         []float32 // SCOORD, SCOORD3D
	FrameOfReferenceUID string    // SCOORD3D

	ContinuityOfContent string // CONTAINER
	TemplateID          string // CONTAINER, root only

	Children []*ContentItem
}

// Add appends children and returns the receiver
func (c *ContentItem) Add(children ...*ContentItem) *ContentItem {
	c.Children = append(c.Children, children...)
	return c
}

// Find returns direct children with the given concept name
func (c *ContentItem) Find(concept module.Code) []*ContentItem {
	var out []*ContentItem
	for _, ch := range c.Children {
		if ch.ConceptName.Equal(concept) {
			out = append(out, ch)
		}
	}
	return out
}

// First returns the first direct child with the concept name, or nil
func (c *ContentItem) First(concept module.Code) *ContentItem {
	if found := c.Find(concept); len(found) > 0 {
		return found[0]
	}
	return nil
}

// Walk visits c and every descendant depth first
func (c *ContentItem) Walk(fn func(item *ContentItem)) {
	fn(c)
	for _, ch := range c.Children {
		ch.Walk(fn)
	}
}

// Container creates a CONTAINER item
func Container(rel string, concept module.Code, children ...*ContentItem) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueContainer, ConceptName: concept, ContinuityOfContent: "SEPARATE", Children: children}
}

// CodeItem creates a CODE item
func CodeItem(rel string, concept, value module.Code) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueCode, ConceptName: concept, Code: value}
}

// TextItem creates a TEXT item
func TextItem(rel string, concept module.Code, text string) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueText, ConceptName: concept, Text: text}
}

// UIDRefItem creates a UIDREF item
func UIDRefItem(rel string, concept module.Code, uid string) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueUIDRef, ConceptName: concept, Text: uid}
}

// PNameItem creates a PNAME item
func PNameItem(rel string, concept module.Code, name string) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValuePName, ConceptName: concept, Text: name}
}

// NumItem creates a NUM item
func NumItem(rel string, concept module.Code, value string, units module.Code) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueNum, ConceptName: concept, Value: value, Units: units}
}

// ImageItem creates an IMAGE item
func ImageItem(rel string, concept module.Code, ref SOPReference) *ContentItem {
	return &ContentItem{RelationshipType: rel, ValueType: ValueImage, ConceptName: concept, Reference: &ref}
}

// ToDataset encodes the item (and its subtree) as a sequence item. The
// root document omits the relationship type.
func (c *ContentItem) ToDataset() *Dataset {
	ds := &Dataset{Elements: map[Tag]*Element{}}
	set := func(t Tag, v interface{}) {
		ds.Elements[t] = &Element{Tag: t, VR: string(t.VR()), Value: v}
	}
	if c.RelationshipType != "" {
		set(tag.RelationshipType, c.RelationshipType)
	}
	set(tag.ValueType, c.ValueType)
	if !c.ConceptName.IsZero() {
		ds.Elements[tag.ConceptNameCodeSequence] = codeSequence(tag.ConceptNameCodeSequence, c.ConceptName)
	}

	switch c.ValueType {
	case ValueContainer:
		cont := c.ContinuityOfContent
		if cont == "" {
			cont = "SEPARATE"
		}
		set(tag.ContinuityOfContent, cont)
		if c.TemplateID != "" {
			tmpl := MustDataset(
				WithElement(tag.MappingResource, "DCMR"),
				WithElement(tag.TemplateIdentifier, c.TemplateID),
			)
			ds.Elements[tag.ContentTemplateSequence] = &Element{Tag: tag.ContentTemplateSequence, VR: "SQ", Value: []*Dataset{tmpl}}
		}
	case ValueCode:
		ds.Elements[tag.ConceptCodeSequence] = codeSequence(tag.ConceptCodeSequence, c.Code)
	case ValueText:
		set(tag.TextValue, c.Text)
	case ValueUIDRef:
		set(tag.UID, c.Text)
	case ValuePName:
		set(tag.PersonName, c.Text)
	case ValueNum:
		mv := &Dataset{Elements: map[Tag]*Element{}}
		mv.Elements[tag.NumericValue] = &Element{Tag: tag.NumericValue, VR: "DS", Value: c.Value}
		mv.Elements[tag.MeasurementUnitsCodeSequence] = codeSequence(tag.MeasurementUnitsCodeSequence, c.Units)
		ds.Elements[tag.MeasuredValueSequence] = &Element{Tag: tag.MeasuredValueSequence, VR: "SQ", Value: []*Dataset{mv}}
	case ValueImage, ValueComposite:
		if c.Reference != nil {
			ds.Elements[tag.ReferencedSOPSequence] = &Element{Tag: tag.ReferencedSOPSequence, VR: "SQ", Value: []*Dataset{c.Reference.toDataset()}}
		}
	case ValueSCoord, ValueSCoord3D:
		set(tag.GraphicType, c.GraphicType)
		ds.Elements[tag.GraphicData] = &Element{Tag: tag.GraphicData, VR: "FL", Value: c.GraphicData}
		if c.ValueType == ValueSCoord3D {
			set(tag.ReferencedFrameOfReferenceUID, c.FrameOfReferenceUID)
		}
	}

	if len(c.Children) > 0 {
		items := make([]*Dataset, len(c.Children))
		for i, ch := range c.Children {
			items[i] = ch.ToDataset()
		}
		ds.Elements[tag.ContentSequence] = &Element{Tag: tag.ContentSequence, VR: "SQ", Value: items}
	}
	return ds
}

func (r *SOPReference) toDataset() *Dataset {
	ds := MustDataset(
		WithElement(tag.ReferencedSOPClassUID, r.ClassUID),
		WithElement(tag.ReferencedSOPInstanceUID, r.InstanceUID),
	)
	if len(r.Frames) > 0 {
		ds.Elements[tag.ReferencedFrameNumber] = &Element{Tag: tag.ReferencedFrameNumber, VR: "IS", Value: r.Frames}
	}
	if r.SegmentNumber > 0 {
		ds.Elements[tag.ReferencedSegmentNumber] = &Element{Tag: tag.ReferencedSegmentNumber, VR: "US", Value: uint16(r.SegmentNumber)}
	}
	return ds
}

// ParseContentItem decodes an SR content item and its subtree
func ParseContentItem(ds *Dataset) *ContentItem {
	c := &ContentItem{
		RelationshipType:    ds.Text(tag.RelationshipType),
		ValueType:           ds.Text(tag.ValueType),
		ConceptName:         ParseCode(ds.Item(tag.ConceptNameCodeSequence)),
		ContinuityOfContent: ds.Text(tag.ContinuityOfContent),
	}
	if tmpl := ds.Item(tag.ContentTemplateSequence); tmpl != nil {
		c.TemplateID = tmpl.Text(tag.TemplateIdentifier)
	}
	switch c.ValueType {
	case ValueCode:
		c.Code = ParseCode(ds.Item(tag.ConceptCodeSequence))
	case ValueText:
		c.Text = ds.Text(tag.TextValue)
	case ValueUIDRef:
		c.Text = ds.Text(tag.UID)
	case ValuePName:
		c.Text = ds.Text(tag.PersonName)
	case ValueNum:
		if mv := ds.Item(tag.MeasuredValueSequence); mv != nil {
			c.Value = mv.Text(tag.NumericValue)
			c.Units = ParseCode(mv.Item(tag.MeasurementUnitsCodeSequence))
		}
	case ValueImage, ValueComposite:
		if ref := ds.Item(tag.ReferencedSOPSequence); ref != nil {
			r := &SOPReference{
				ClassUID:    ref.Text(tag.ReferencedSOPClassUID),
				InstanceUID: ref.Text(tag.ReferencedSOPInstanceUID),
			}
			if elem := ref.Get(tag.ReferencedFrameNumber); elem != nil {
				r.Frames, _ = elem.Ints()
			}
			r.SegmentNumber, _ = ref.Int(tag.ReferencedSegmentNumber)
			c.Reference = r
		}
	case ValueSCoord, ValueSCoord3D:
		c.GraphicType = ds.Text(tag.GraphicType)
		for _, f := range ds.Floats(tag.GraphicData) {
			c.GraphicData = append(c.GraphicData, float32(f))
		}
		c.FrameOfReferenceUID = ds.Text(tag.ReferencedFrameOfReferenceUID)
	}
	for _, item := range ds.Items(tag.ContentSequence) {
		c.Children = append(c.Children, ParseContentItem(item))
	}
	return c
}

// ParseCode reads a Code Sequence Macro item; nil yields the zero Code
func ParseCode(ds *Dataset) module.Code {
	if ds == nil {
		return module.Code{}
	}
	return module.Code{
		Value:   ds.Text(tag.CodeValue),
		Scheme:  ds.Text(tag.CodingSchemeDesignator),
		Meaning: ds.Text(tag.CodeMeaning),
	}
}

// CodeDataset encodes a Code Sequence Macro item
func CodeDataset(c module.Code) *Dataset {
	return MustDataset(WithModule(c.ToTags()))
}

func codeSequence(t Tag, c module.Code) *Element {
	return &Element{Tag: t, VR: "SQ", Value: []*Dataset{CodeDataset(c)}}
}

// EvidenceReference is one instance listed in the evidence sequence
type EvidenceReference struct {
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPClassUID       string
	SOPInstanceUID    string
}

// StructuredReport is an SR document IOD (Enhanced, Comprehensive or
// Comprehensive 3D SR)
type StructuredReport struct {
	Patient   *module.PatientModule
	Study     *module.GeneralStudyModule
	Series    *module.GeneralSeriesModule
	Equipment *module.GeneralEquipmentModule
	SOPCommon *module.SOPCommonModule
	Document  *module.SRDocumentGeneralModule
	Trial     *module.ClinicalTrialSeriesModule

	// Instances the content refers to, grouped by study and series on write
	Evidence []EvidenceReference

	Root *ContentItem
}

// NewStructuredReport creates an SR of the given SOP class
func NewStructuredReport(sopClassUID string) *StructuredReport {
	t := time.Now()
	sop := module.NewSOPCommonModule()
	sop.SOPClassUID = sopClassUID
	sop.SOPInstanceUID = NewUID()
	return &StructuredReport{
		Patient:   &module.PatientModule{},
		Study:     &module.GeneralStudyModule{},
		Series:    &module.GeneralSeriesModule{Modality: "SR", SeriesInstanceUID: NewUID()},
		Equipment: &module.GeneralEquipmentModule{},
		SOPCommon: &sop,
		Document: &module.SRDocumentGeneralModule{
			InstanceNumber:   1,
			CompletionFlag:   "COMPLETE",
			VerificationFlag: "UNVERIFIED",
			ContentDate:      module.NewDate(t),
			ContentTime:      module.NewTime(t),
		},
		Trial: &module.ClinicalTrialSeriesModule{},
	}
}

// GetDataset builds and returns the Dataset
func (sr *StructuredReport) GetDataset() (*Dataset, error) {
	if sr.Root == nil {
		return nil, fmt.Errorf("structured report has no content")
	}
	opts := []Option{
		WithFileMeta(sr.SOPCommon.SOPClassUID, sr.SOPCommon.SOPInstanceUID, string(transfer.ExplicitVRLittleEndian)),
		WithModule(sr.Patient.ToTags()),
		WithModule(sr.Study.ToTags()),
		WithModule(sr.Series.ToTags()),
		WithModule(sr.Equipment.ToTags()),
		WithModule(sr.SOPCommon.ToTags()),
		WithModule(sr.Document.ToTags()),
		WithModule(sr.Trial.ToTags()),
	}
	if len(sr.Evidence) > 0 {
		opts = append(opts, WithSequence(tag.CurrentRequestedProcedureEvidenceSequence, evidenceSequence(sr.Evidence)...))
	}

	ds, err := NewDataset(opts...)
	if err != nil {
		return nil, err
	}
	// the root content item's attributes live at the top level
	for t, elem := range sr.Root.ToDataset().Elements {
		ds.Elements[t] = elem
	}
	return ds, nil
}

// evidenceSequence groups references by study then series, preserving first-seen order
func evidenceSequence(refs []EvidenceReference) []*Dataset {
	type series struct {
		uid  string
		sops []*Dataset
	}
	type study struct {
		uid    string
		series []*series
	}
	var studies []*study
	for _, r := range refs {
		var st *study
		for _, s := range studies {
			if s.uid == r.StudyInstanceUID {
				st = s
			}
		}
		if st == nil {
			st = &study{uid: r.StudyInstanceUID}
			studies = append(studies, st)
		}
		var se *series
		for _, s := range st.series {
			if s.uid == r.SeriesInstanceUID {
				se = s
			}
		}
		if se == nil {
			se = &series{uid: r.SeriesInstanceUID}
			st.series = append(st.series, se)
		}
		se.sops = append(se.sops, MustDataset(
			WithElement(tag.ReferencedSOPClassUID, r.SOPClassUID),
			WithElement(tag.ReferencedSOPInstanceUID, r.SOPInstanceUID),
		))
	}

	out := make([]*Dataset, 0, len(studies))
	for _, st := range studies {
		seriesItems := make([]*Dataset, 0, len(st.series))
		for _, se := range st.series {
			seriesItems = append(seriesItems, MustDataset(
				WithElement(tag.SeriesInstanceUID, se.uid),
				WithSequence(tag.ReferencedSOPSequence, se.sops...),
			))
		}
		out = append(out, MustDataset(
			WithElement(tag.StudyInstanceUID, st.uid),
			WithSequence(tag.ReferencedSeriesSequence, seriesItems...),
		))
	}
	return out
}

// ParseEvidence flattens CurrentRequestedProcedureEvidenceSequence
func ParseEvidence(ds *Dataset) []EvidenceReference {
	var out []EvidenceReference
	for _, st := range ds.Items(tag.CurrentRequestedProcedureEvidenceSequence) {
		for _, se := range st.Items(tag.ReferencedSeriesSequence) {
			for _, sop := range se.Items(tag.ReferencedSOPSequence) {
				out = append(out, EvidenceReference{
					StudyInstanceUID:  st.Text(tag.StudyInstanceUID),
					SeriesInstanceUID: se.Text(tag.SeriesInstanceUID),
					SOPClassUID:       sop.Text(tag.ReferencedSOPClassUID),
					SOPInstanceUID:    sop.Text(tag.ReferencedSOPInstanceUID),
				})
			}
		}
	}
	return out
}

// TemplateIdentifier returns the root template of an SR dataset
func TemplateIdentifier(ds *Dataset) string {
	if tmpl := ds.Item(tag.ContentTemplateSequence); tmpl != nil {
		return tmpl.Text(tag.TemplateIdentifier)
	}
	return ""
}

// WriteTo writes the SR to any io.Writer
func (sr *StructuredReport) WriteTo(w io.Writer) (int64, error) {
	ds, err := sr.GetDataset()
	if err != nil {
		return 0, err
	}
	return Write(w, ds)
}

// Write writes the SR to a file
func (sr *StructuredReport) Write(path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return sr.WriteTo(f)
}

// FormatNumeric renders a measurement value as a Decimal String
func FormatNumeric(v float64) string {
	return vr.FormatDS(v)
}
