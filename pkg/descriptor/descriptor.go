// Package descriptor defines the JSON documents exchanged with the SEG and
// TID 1500 encoders and decoders.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/errs"
)

// Code is a coded triplet in descriptor JSON
type Code struct {
	CodeValue              string `json:"CodeValue"`
	CodingSchemeDesignator string `json:"CodingSchemeDesignator"`
	CodeMeaning            string `json:"CodeMeaning"`
}

// FromCode converts a module code
func FromCode(c module.Code) *Code {
	return &Code{CodeValue: c.Value, CodingSchemeDesignator: c.Scheme, CodeMeaning: c.Meaning}
}

// FromCodePtr converts an optional module code
func FromCodePtr(c *module.Code) *Code {
	if c == nil {
		return nil
	}
	return FromCode(*c)
}

// Module returns the module code, the zero Code for nil
func (c *Code) Module() module.Code {
	if c == nil {
		return module.Code{}
	}
	return module.NewCode(c.CodeValue, c.CodingSchemeDesignator, c.CodeMeaning)
}

// ModulePtr returns the module code or nil
func (c *Code) ModulePtr() *module.Code {
	if c == nil {
		return nil
	}
	m := c.Module()
	return &m
}

// SeriesAttributes are shared by the SEG and SR descriptors
type SeriesAttributes struct {
	ContentCreatorName                  string `json:"ContentCreatorName"`
	ClinicalTrialSeriesID               string `json:"ClinicalTrialSeriesID"`
	ClinicalTrialTimePointID            string `json:"ClinicalTrialTimePointID"`
	ClinicalTrialCoordinatingCenterName string `json:"ClinicalTrialCoordinatingCenterName"`
	SeriesDescription                   string `json:"SeriesDescription"`
	SeriesNumber                        string `json:"SeriesNumber"`
	InstanceNumber                      string `json:"InstanceNumber"`
}

// Validate fails with an AttributeError for the first absent key
func (a SeriesAttributes) Validate() error {
	for _, kv := range [][2]string{
		{"ContentCreatorName", a.ContentCreatorName},
		{"ClinicalTrialSeriesID", a.ClinicalTrialSeriesID},
		{"ClinicalTrialTimePointID", a.ClinicalTrialTimePointID},
		{"ClinicalTrialCoordinatingCenterName", a.ClinicalTrialCoordinatingCenterName},
		{"SeriesNumber", a.SeriesNumber},
		{"InstanceNumber", a.InstanceNumber},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			return &errs.AttributeError{Key: kv[0]}
		}
	}
	return nil
}

// DICOMPersonName turns "First Last" into "Last^First". Names already in
// DICOM form are returned unchanged.
func DICOMPersonName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "^") {
		return name
	}
	parts := strings.Fields(name)
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "^")
}

// DerivedSeriesNumber numbers a derived series 100 above its source, or 100
// when the source number is unknown
func DerivedSeriesNumber(source int, ok bool) string {
	if !ok {
		return "100"
	}
	return strconv.Itoa(source + 100)
}

// Segment is one entry of segmentAttributes
type Segment struct {
	LabelID                    int    `json:"labelID"`
	SegmentLabel               string `json:"SegmentLabel,omitempty"`
	SegmentDescription         string `json:"SegmentDescription,omitempty"`
	SegmentAlgorithmType       string `json:"SegmentAlgorithmType,omitempty"`
	SegmentAlgorithmName       string `json:"SegmentAlgorithmName,omitempty"`
	TrackingIdentifier         string `json:"TrackingIdentifier,omitempty"`
	TrackingUniqueIdentifier   string `json:"TrackingUniqueIdentifier,omitempty"`
	RecommendedDisplayRGBValue []int  `json:"recommendedDisplayRGBValue,omitempty"`

	SegmentedPropertyCategoryCodeSequence     *Code `json:"SegmentedPropertyCategoryCodeSequence,omitempty"`
	SegmentedPropertyTypeCodeSequence         *Code `json:"SegmentedPropertyTypeCodeSequence,omitempty"`
	SegmentedPropertyTypeModifierCodeSequence *Code `json:"SegmentedPropertyTypeModifierCodeSequence,omitempty"`
	AnatomicRegionSequence                    *Code `json:"AnatomicRegionSequence,omitempty"`
	AnatomicRegionModifierSequence            *Code `json:"AnatomicRegionModifierSequence,omitempty"`
}

// RGB returns the display color in [0,1], black when absent
func (s Segment) RGB() [3]float64 {
	var c [3]float64
	if len(s.RecommendedDisplayRGBValue) < 3 {
		return c
	}
	for i := range c {
		c[i] = float64(s.RecommendedDisplayRGBValue[i]) / 255
	}
	return c
}

// RGBValue scales a [0,1] color to 0..255
func RGBValue(c [3]float64) []int {
	out := make([]int, 3)
	for i, v := range c {
		out[i] = int(v*255 + 0.5)
		out[i] = min(max(out[i], 0), 255)
	}
	return out
}

// SEG is the itkimage2segimage metadata and the meta.json written by
// segimage2itkimage
type SEG struct {
	SeriesAttributes
	ContentLabel       string `json:"ContentLabel,omitempty"`
	ContentDescription string `json:"ContentDescription,omitempty"`
	// one inner list per label file
	SegmentAttributes [][]Segment `json:"segmentAttributes"`
}

// Segments flattens segmentAttributes
func (d *SEG) Segments() []Segment {
	var out []Segment
	for _, list := range d.SegmentAttributes {
		out = append(out, list...)
	}
	return out
}

// ObserverContext names the person reporting
type ObserverContext struct {
	ObserverType       string `json:"ObserverType"`
	PersonObserverName string `json:"PersonObserverName,omitempty"`
}

// MeasurementItem is one numeric value of a measurement group
type MeasurementItem struct {
	Value      string `json:"value"`
	Quantity   *Code  `json:"quantity,omitempty"`
	Units      *Code  `json:"units"`
	Derivation *Code  `json:"derivationModifier,omitempty"`
}

// Name labels the item "<quantity or derivation meaning> [<units>]"
func (m MeasurementItem) Name() string {
	meaning := m.Quantity.Module().Meaning
	if d := m.Derivation.Module().Meaning; d != "" {
		meaning = d
	}
	return fmt.Sprintf("%s [%s]", meaning, m.Units.Module().Value)
}

// Measurement is one TID 1411 measurement group
type Measurement struct {
	TrackingIdentifier               string            `json:"TrackingIdentifier"`
	TrackingUniqueIdentifier         string            `json:"TrackingUniqueIdentifier,omitempty"`
	ReferencedSegment                int               `json:"ReferencedSegment"`
	SourceSeriesForImageSegmentation string            `json:"SourceSeriesForImageSegmentation,omitempty"`
	SegmentationSOPInstanceUID       string            `json:"segmentationSOPInstanceUID,omitempty"`
	Finding                          *Code             `json:"Finding,omitempty"`
	FindingSite                      *Code             `json:"FindingSite,omitempty"`
	MeasurementItems                 []MeasurementItem `json:"measurementItems"`
}

// SR is the tid1500writer metadata and the tid1500reader output
type SR struct {
	SeriesAttributes
	CompositeContext []string         `json:"compositeContext"`
	ImageLibrary     []string         `json:"imageLibrary"`
	ObserverContext  *ObserverContext `json:"observerContext,omitempty"`
	VerificationFlag string           `json:"VerificationFlag,omitempty"`
	CompletionFlag   string           `json:"CompletionFlag,omitempty"`
	ActivitySession  string           `json:"activitySession,omitempty"`
	TimePoint        string           `json:"timePoint,omitempty"`
	Measurements     []Measurement    `json:"Measurements"`
}

// Validate checks the series attributes and the SR flags
func (d *SR) Validate() error {
	if err := d.SeriesAttributes.Validate(); err != nil {
		return err
	}
	switch d.VerificationFlag {
	case "VERIFIED", "UNVERIFIED":
	default:
		return &errs.AttributeError{Key: "VerificationFlag"}
	}
	switch d.CompletionFlag {
	case "COMPLETE", "PARTIAL":
	default:
		return &errs.AttributeError{Key: "CompletionFlag"}
	}
	if len(d.CompositeContext) == 0 {
		return &errs.AttributeError{Key: "compositeContext"}
	}
	return nil
}

// WriteFile writes v as indented JSON
func WriteFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// ReadFile decodes the JSON document at path into v
func ReadFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
