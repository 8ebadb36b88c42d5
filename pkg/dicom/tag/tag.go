// Package tag defines the DICOM tags used by segmentation, structured report,
// parametric map and M3D objects, plus the image attributes they reference.
package tag

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// Equals compares two tags
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsGroup0002 returns true if this tag is in the File Meta Information group
func (t Tag) IsGroup0002() bool {
	return t.Group == 0x0002
}

// Less orders tags the way they are written to a stream.
func (t Tag) Less(other Tag) bool {
	if t.Group != other.Group {
		return t.Group < other.Group
	}
	return t.Element < other.Element
}

// File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
)

// SOP Common Module
var (
	SpecificCharacterSet = Tag{0x0008, 0x0005}
	InstanceCreationDate = Tag{0x0008, 0x0012}
	InstanceCreationTime = Tag{0x0008, 0x0013}
	SOPClassUID          = Tag{0x0008, 0x0016}
	SOPInstanceUID       = Tag{0x0008, 0x0018}
)

// Patient Module
var (
	PatientName      = Tag{0x0010, 0x0010}
	PatientID        = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}
	PatientSex       = Tag{0x0010, 0x0040}
)

// General Study Module
var (
	StudyDate              = Tag{0x0008, 0x0020}
	StudyTime              = Tag{0x0008, 0x0030}
	AccessionNumber        = Tag{0x0008, 0x0050}
	ReferringPhysicianName = Tag{0x0008, 0x0090}
	StudyDescription       = Tag{0x0008, 0x1030}
	StudyInstanceUID       = Tag{0x0020, 0x000D}
	StudyID                = Tag{0x0020, 0x0010}
)

// General Series Module
var (
	SeriesDate        = Tag{0x0008, 0x0021}
	SeriesTime        = Tag{0x0008, 0x0031}
	Modality          = Tag{0x0008, 0x0060}
	SeriesDescription = Tag{0x0008, 0x103E}
	SeriesInstanceUID = Tag{0x0020, 0x000E}
	SeriesNumber      = Tag{0x0020, 0x0011}
	InstanceNumber    = Tag{0x0020, 0x0013}
)

// General Equipment Module
var (
	Manufacturer          = Tag{0x0008, 0x0070}
	InstitutionName       = Tag{0x0008, 0x0080}
	StationName           = Tag{0x0008, 0x1010}
	ManufacturerModelName = Tag{0x0008, 0x1090}
	DeviceSerialNumber    = Tag{0x0018, 0x1000}
	SoftwareVersions      = Tag{0x0018, 0x1020}
)

// Clinical Trial Series Module
var (
	ClinicalTrialTimePointID            = Tag{0x0012, 0x0050}
	ClinicalTrialCoordinatingCenterName = Tag{0x0012, 0x0060}
	ClinicalTrialSeriesID               = Tag{0x0012, 0x0071}
)

// Frame of Reference and Image Plane
var (
	FrameOfReferenceUID        = Tag{0x0020, 0x0052}
	PositionReferenceIndicator = Tag{0x0020, 0x1040}
	ImagePositionPatient       = Tag{0x0020, 0x0032}
	ImageOrientationPatient    = Tag{0x0020, 0x0037}
	SliceLocation              = Tag{0x0020, 0x1041}
	SliceThickness             = Tag{0x0018, 0x0050}
	SpacingBetweenSlices       = Tag{0x0018, 0x0088}
	PixelSpacing               = Tag{0x0028, 0x0030}
)

// Image Pixel Module
var (
	ImageType                 = Tag{0x0008, 0x0008}
	ContentDate               = Tag{0x0008, 0x0023}
	ContentTime               = Tag{0x0008, 0x0033}
	SamplesPerPixel           = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	NumberOfFrames            = Tag{0x0028, 0x0008}
	Rows                      = Tag{0x0028, 0x0010}
	Columns                   = Tag{0x0028, 0x0011}
	BitsAllocated             = Tag{0x0028, 0x0100}
	BitsStored                = Tag{0x0028, 0x0101}
	HighBit                   = Tag{0x0028, 0x0102}
	PixelRepresentation       = Tag{0x0028, 0x0103}
	WindowCenter              = Tag{0x0028, 0x1050}
	WindowWidth               = Tag{0x0028, 0x1051}
	RescaleIntercept          = Tag{0x0028, 0x1052}
	RescaleSlope              = Tag{0x0028, 0x1053}
	RescaleType               = Tag{0x0028, 0x1054}
	LossyImageCompression     = Tag{0x0028, 0x2110}
	BurnedInAnnotation        = Tag{0x0028, 0x0301}
	PresentationLUTShape      = Tag{0x2050, 0x0020}
	ContentQualification      = Tag{0x0018, 0x9004}
	LUTExplanation            = Tag{0x0028, 0x3003}
	FloatPixelData            = Tag{0x7FE0, 0x0008}
	PixelData                 = Tag{0x7FE0, 0x0010}
)

// Code Sequence Macro
var (
	CodeValue              = Tag{0x0008, 0x0100}
	CodingSchemeDesignator = Tag{0x0008, 0x0102}
	CodingSchemeVersion    = Tag{0x0008, 0x0103}
	CodeMeaning            = Tag{0x0008, 0x0104}
	MappingResource        = Tag{0x0008, 0x0105}
)

// References between instances
var (
	ReferencedSeriesSequence      = Tag{0x0008, 0x1115}
	ReferencedImageSequence       = Tag{0x0008, 0x1140}
	ReferencedInstanceSequence    = Tag{0x0008, 0x114A}
	ReferencedSOPClassUID         = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID      = Tag{0x0008, 0x1155}
	ReferencedFrameNumber         = Tag{0x0008, 0x1160}
	ReferencedSOPSequence         = Tag{0x0008, 0x1199}
	SourceImageSequence           = Tag{0x0008, 0x2112}
	DerivationImageSequence       = Tag{0x0008, 0x9124}
	DerivationCodeSequence        = Tag{0x0008, 0x9215}
	ReferencedFrameOfReferenceUID = Tag{0x3006, 0x0024}
)

// Multi-frame Functional Groups
var (
	SharedFunctionalGroupsSequence   = Tag{0x5200, 0x9229}
	PerFrameFunctionalGroupsSequence = Tag{0x5200, 0x9230}
	PixelMeasuresSequence            = Tag{0x0028, 0x9110}
	PlanePositionSequence            = Tag{0x0020, 0x9113}
	PlaneOrientationSequence         = Tag{0x0020, 0x9116}
	PixelValueTransformationSequence = Tag{0x0028, 0x9145}
	FrameContentSequence             = Tag{0x0020, 0x9111}
	DimensionIndexValues             = Tag{0x0020, 0x9157}
	DimensionOrganizationUID         = Tag{0x0020, 0x9164}
	DimensionOrganizationSequence    = Tag{0x0020, 0x9221}
	ContentLabel                     = Tag{0x0070, 0x0080}
	ContentDescription               = Tag{0x0070, 0x0081}
	ContentCreatorName               = Tag{0x0070, 0x0084}
)

// Segmentation Image Module
var (
	SegmentationType                          = Tag{0x0062, 0x0001}
	SegmentSequence                           = Tag{0x0062, 0x0002}
	SegmentedPropertyCategoryCodeSequence     = Tag{0x0062, 0x0003}
	SegmentNumber                             = Tag{0x0062, 0x0004}
	SegmentLabel                              = Tag{0x0062, 0x0005}
	SegmentDescription                        = Tag{0x0062, 0x0006}
	SegmentAlgorithmType                      = Tag{0x0062, 0x0008}
	SegmentAlgorithmName                      = Tag{0x0062, 0x0009}
	SegmentIdentificationSequence             = Tag{0x0062, 0x000A}
	ReferencedSegmentNumber                   = Tag{0x0062, 0x000B}
	RecommendedDisplayCIELabValue             = Tag{0x0062, 0x000D}
	SegmentedPropertyTypeCodeSequence         = Tag{0x0062, 0x000F}
	SegmentedPropertyTypeModifierCodeSequence = Tag{0x0062, 0x0011}
	SegmentsOverlap                           = Tag{0x0062, 0x0013}
	TrackingID                                = Tag{0x0062, 0x0020}
	TrackingUID                               = Tag{0x0062, 0x0021}
	AnatomicRegionSequence                    = Tag{0x0008, 0x2218}
	AnatomicRegionModifierSequence            = Tag{0x0008, 0x2220}
)

// SR Document General and Content modules
var (
	RelationshipType                          = Tag{0x0040, 0xA010}
	ValueType                                 = Tag{0x0040, 0xA040}
	ConceptNameCodeSequence                   = Tag{0x0040, 0xA043}
	ContinuityOfContent                       = Tag{0x0040, 0xA050}
	VerifyingObserverSequence                 = Tag{0x0040, 0xA073}
	VerifyingObserverName                     = Tag{0x0040, 0xA075}
	VerifyingOrganization                     = Tag{0x0040, 0xA027}
	VerificationDateTime                      = Tag{0x0040, 0xA030}
	DateTime                                  = Tag{0x0040, 0xA120}
	PersonName                                = Tag{0x0040, 0xA123}
	UID                                       = Tag{0x0040, 0xA124}
	TextValue                                 = Tag{0x0040, 0xA160}
	ConceptCodeSequence                       = Tag{0x0040, 0xA168}
	MeasuredValueSequence                     = Tag{0x0040, 0xA300}
	NumericValue                              = Tag{0x0040, 0xA30A}
	MeasurementUnitsCodeSequence              = Tag{0x0040, 0x08EA}
	CurrentRequestedProcedureEvidenceSequence = Tag{0x0040, 0xA375}
	CompletionFlag                            = Tag{0x0040, 0xA491}
	VerificationFlag                          = Tag{0x0040, 0xA493}
	ContentTemplateSequence                   = Tag{0x0040, 0xA504}
	ContentSequence                           = Tag{0x0040, 0xA730}
	TemplateIdentifier                        = Tag{0x0040, 0xDB00}
	GraphicData                               = Tag{0x0070, 0x0022}
	GraphicType                               = Tag{0x0070, 0x0023}
)

// Real World Value Mapping
var (
	RealWorldValueMappingSequence                = Tag{0x0040, 0x9096}
	ReferencedImageRealWorldValueMappingSequence = Tag{0x0040, 0x9094}
	LUTLabel                                     = Tag{0x0040, 0x9210}
	RealWorldValueLastValueMapped                = Tag{0x0040, 0x9211}
	RealWorldValueFirstValueMapped               = Tag{0x0040, 0x9216}
	RealWorldValueIntercept                      = Tag{0x0040, 0x9224}
	RealWorldValueSlope                          = Tag{0x0040, 0x9225}
	QuantityDefinitionSequence                   = Tag{0x0040, 0x9220}
)

// Encapsulated Document Module
var (
	DocumentTitle                  = Tag{0x0042, 0x0010}
	EncapsulatedDocument           = Tag{0x0042, 0x0011}
	MIMETypeOfEncapsulatedDocument = Tag{0x0042, 0x0012}
	EncapsulatedDocumentLength     = Tag{0x0042, 0x0015}
)

// Sequence delimiters
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)
