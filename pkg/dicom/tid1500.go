package dicom

import "github.com/jpfielding/qreport.go/pkg/dicom/module"

// TID1500TemplateID identifies the Measurement Report root template
const TID1500TemplateID = "1500"

// Concept names and values of TID 1500 measurement reports and their
// measurement groups (TID 1410, 1411, 1501)
var (
	CodeImagingMeasurementReport = module.NewCode("126000", "DCM", "Imaging Measurement Report")
	CodeLanguage                 = module.NewCode("121049", "DCM", "Language of Content Item and Descendants")
	CodeEnglish                  = module.NewCode("eng", "RFC5646", "English")
	CodeObserverType             = module.NewCode("121005", "DCM", "Observer Type")
	CodePerson                   = module.NewCode("121006", "DCM", "Person")
	CodePersonObserverName       = module.NewCode("121008", "DCM", "Person Observer Name")
	CodeProcedureReported        = module.NewCode("121058", "DCM", "Procedure reported")
	CodeImagingProcedure         = module.NewCode("363679005", "SCT", "Imaging procedure")
	CodeImageLibrary             = module.NewCode("111028", "DCM", "Image Library")
	CodeImageLibraryGroup        = module.NewCode("126200", "DCM", "Image Library Group")
	CodeImagingMeasurements      = module.NewCode("126010", "DCM", "Imaging Measurements")
	CodeMeasurementGroup         = module.NewCode("125007", "DCM", "Measurement Group")
	CodeTrackingIdentifier       = module.NewCode("112039", "DCM", "Tracking Identifier")
	CodeTrackingUID              = module.NewCode("112040", "DCM", "Tracking Unique Identifier")
	CodeFinding                  = module.NewCode("121071", "DCM", "Finding")
	CodeFindingSite              = module.NewCode("363698007", "SCT", "Finding Site")
	CodeReferencedSegment        = module.NewCode("121191", "DCM", "Referenced Segment")
	CodeSourceSeries             = module.NewCode("121232", "DCM", "Source series for segmentation")
	CodeTimePoint                = module.NewCode("C2348792", "UMLS", "Time Point")
	CodeActivitySession          = module.NewCode("C67447", "NCIt", "Activity Session")
	CodeDerivation               = module.NewCode("121401", "DCM", "Derivation")
	CodeImageRegion              = module.NewCode("111030", "DCM", "Image Region")
	CodeGeometricPurpose         = module.NewCode("130400", "DCM", "Geometric purpose of region")
	CodeBoundedBy                = module.NewCode("75958009", "SCT", "Bounded by")
	CodeCenter                   = module.NewCode("C0205099", "UMLS", "Center")
	CodeLength                   = module.NewCode("G-D7FE", "SRT", "Length")
	CodeQualitativeEvaluations   = module.NewCode("C0034375", "UMLS", "Qualitative Evaluations")
)

// SR template identifiers of measurement groups
const (
	TID1410TemplateID = "1410"
	TID1411TemplateID = "1411"
)
