package dicom

import (
	"fmt"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// AttributeType is the PS3.3 attribute requirement type
type AttributeType int

const (
	Type1 AttributeType = iota + 1
	Type1C
	Type2
	Type2C
	Type3
)

func (t AttributeType) String() string {
	switch t {
	case Type1:
		return "Type 1"
	case Type1C:
		return "Type 1C"
	case Type2:
		return "Type 2"
	case Type2C:
		return "Type 2C"
	case Type3:
		return "Type 3"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ValidationError is one unmet requirement. Type 1 and 1C failures are
// critical; Type 2 and 2C ones are reported as warnings.
type ValidationError struct {
	Tag        tag.Tag
	Type       AttributeType
	Message    string
	IsCritical bool
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s %s: %s", e.Tag, e.Tag.LookupName(), e.Type, e.Message)
}

type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid reports the absence of critical errors
func (r ValidationResult) IsValid() bool {
	for _, err := range r.Errors {
		if err.IsCritical {
			return false
		}
	}
	return true
}

func (r ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

func (r ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

// IODRequirement is one row of a requirement table. Condition gates the
// 1C and 2C types.
type IODRequirement struct {
	Tag       tag.Tag
	Type      AttributeType
	Condition func(*Dataset) bool
}

// ValidateDataset checks ds against reqs
func ValidateDataset(ds *Dataset, reqs []IODRequirement) ValidationResult {
	var res ValidationResult
	for _, req := range reqs {
		if req.Type == Type3 {
			continue
		}
		if (req.Type == Type1C || req.Type == Type2C) && (req.Condition == nil || !req.Condition(ds)) {
			continue
		}
		elem := ds.Get(req.Tag)
		fail := ValidationError{Tag: req.Tag, Type: req.Type}
		switch req.Type {
		case Type1, Type1C:
			fail.IsCritical = true
			switch {
			case elem == nil:
				fail.Message = "missing"
			case isEmpty(elem):
				fail.Message = "empty"
			default:
				continue
			}
			res.Errors = append(res.Errors, fail)
		case Type2, Type2C:
			if elem == nil {
				fail.Message = "missing, may be empty"
				res.Warnings = append(res.Warnings, fail)
			}
		}
	}
	return res
}

func isEmpty(elem *Element) bool {
	switch v := elem.Value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case []uint16:
		return len(v) == 0
	case []float32:
		return len(v) == 0
	case []*Dataset:
		return len(v) == 0
	}
	return false
}

func requirements(groups ...[]IODRequirement) []IODRequirement {
	var out []IODRequirement
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func absent(t tag.Tag) func(*Dataset) bool {
	return func(ds *Dataset) bool { return !HasElement(ds, t) }
}

// module requirement tables
var (
	PatientModuleRequirements = []IODRequirement{
		{Tag: tag.PatientName, Type: Type2},
		{Tag: tag.PatientID, Type: Type2},
	}
	GeneralStudyModuleRequirements = []IODRequirement{
		{Tag: tag.StudyInstanceUID, Type: Type1},
		{Tag: tag.StudyDate, Type: Type2},
		{Tag: tag.StudyTime, Type: Type2},
	}
	GeneralSeriesModuleRequirements = []IODRequirement{
		{Tag: tag.Modality, Type: Type1},
		{Tag: tag.SeriesInstanceUID, Type: Type1},
		{Tag: tag.SeriesNumber, Type: Type2},
	}
	SOPCommonModuleRequirements = []IODRequirement{
		{Tag: tag.SOPClassUID, Type: Type1},
		{Tag: tag.SOPInstanceUID, Type: Type1},
	}
	ImagePixelModuleRequirements = []IODRequirement{
		{Tag: tag.SamplesPerPixel, Type: Type1},
		{Tag: tag.PhotometricInterpretation, Type: Type1},
		{Tag: tag.Rows, Type: Type1},
		{Tag: tag.Columns, Type: Type1},
		{Tag: tag.BitsAllocated, Type: Type1},
		{Tag: tag.BitsStored, Type: Type1},
		{Tag: tag.HighBit, Type: Type1},
		{Tag: tag.PixelRepresentation, Type: Type1},
		{Tag: tag.PixelData, Type: Type1},
	}
	// MultiFrameRequirements are shared by SEG and PM
	MultiFrameRequirements = []IODRequirement{
		{Tag: tag.FrameOfReferenceUID, Type: Type1},
		{Tag: tag.NumberOfFrames, Type: Type1},
		{Tag: tag.SharedFunctionalGroupsSequence, Type: Type1},
		{Tag: tag.PerFrameFunctionalGroupsSequence, Type: Type1},
		{Tag: tag.ContentLabel, Type: Type1},
		{Tag: tag.ContentCreatorName, Type: Type2},
	}
)

var commonRequirements = requirements(
	PatientModuleRequirements,
	GeneralStudyModuleRequirements,
	GeneralSeriesModuleRequirements,
	SOPCommonModuleRequirements,
)

// IOD requirement tables
var (
	CTImageRequirements = requirements(commonRequirements, ImagePixelModuleRequirements, []IODRequirement{
		{Tag: tag.FrameOfReferenceUID, Type: Type1},
		{Tag: tag.ImagePositionPatient, Type: Type1},
		{Tag: tag.ImageOrientationPatient, Type: Type1},
		{Tag: tag.PixelSpacing, Type: Type1},
		{Tag: tag.RescaleIntercept, Type: Type1},
		{Tag: tag.RescaleSlope, Type: Type1},
	})
	SegmentationRequirements = requirements(commonRequirements, MultiFrameRequirements, []IODRequirement{
		{Tag: tag.Rows, Type: Type1},
		{Tag: tag.Columns, Type: Type1},
		{Tag: tag.BitsAllocated, Type: Type1},
		{Tag: tag.PixelData, Type: Type1},
		{Tag: tag.SegmentationType, Type: Type1},
		{Tag: tag.SegmentSequence, Type: Type1},
		{Tag: tag.ReferencedSeriesSequence, Type: Type1C, Condition: absent(tag.SourceImageSequence)},
	})
	StructuredReportRequirements = requirements(commonRequirements, []IODRequirement{
		{Tag: tag.CompletionFlag, Type: Type1},
		{Tag: tag.VerificationFlag, Type: Type1},
		{Tag: tag.ValueType, Type: Type1},
		{Tag: tag.ConceptNameCodeSequence, Type: Type1},
		{Tag: tag.ContinuityOfContent, Type: Type1},
		{Tag: tag.ContentSequence, Type: Type1},
		{Tag: tag.CurrentRequestedProcedureEvidenceSequence, Type: Type1C, Condition: func(ds *Dataset) bool {
			return HasElement(ds, tag.ContentSequence)
		}},
	})
	ParametricMapRequirements = requirements(commonRequirements, MultiFrameRequirements, []IODRequirement{
		{Tag: tag.Rows, Type: Type1},
		{Tag: tag.Columns, Type: Type1},
		{Tag: tag.BitsAllocated, Type: Type1},
		{Tag: tag.FloatPixelData, Type: Type1C, Condition: absent(tag.PixelData)},
		{Tag: tag.PixelData, Type: Type1C, Condition: absent(tag.FloatPixelData)},
	})
	M3DRequirements = requirements(commonRequirements, []IODRequirement{
		{Tag: tag.FrameOfReferenceUID, Type: Type1},
		{Tag: tag.EncapsulatedDocument, Type: Type1},
		{Tag: tag.MIMETypeOfEncapsulatedDocument, Type: Type1},
		{Tag: tag.EncapsulatedDocumentLength, Type: Type1},
		{Tag: tag.DocumentTitle, Type: Type2},
	})
)

func ValidateCT(ds *Dataset) ValidationResult { return ValidateDataset(ds, CTImageRequirements) }

func ValidateSegmentation(ds *Dataset) ValidationResult {
	return ValidateDataset(ds, SegmentationRequirements)
}

func ValidateStructuredReport(ds *Dataset) ValidationResult {
	return ValidateDataset(ds, StructuredReportRequirements)
}

func ValidateParametricMap(ds *Dataset) ValidationResult {
	return ValidateDataset(ds, ParametricMapRequirements)
}

func ValidateM3D(ds *Dataset) ValidationResult { return ValidateDataset(ds, M3DRequirements) }

// Validate picks the requirement table from the SOP class
func Validate(ds *Dataset) ValidationResult {
	switch ds.Text(tag.SOPClassUID) {
	case SegmentationStorageUID:
		return ValidateSegmentation(ds)
	case EnhancedSRStorageUID, ComprehensiveSRStorageUID, Comprehensive3DSRUID:
		return ValidateStructuredReport(ds)
	case ParametricMapStorageUID:
		return ValidateParametricMap(ds)
	case EncapsulatedSTLStorageUID:
		return ValidateM3D(ds)
	case CTImageStorageUID:
		return ValidateCT(ds)
	}
	return ValidateDataset(ds, commonRequirements)
}
