package tag

import "github.com/jpfielding/qreport.go/pkg/dicom/vr"

// Entry is a dictionary record for a known tag
type Entry struct {
	VR   vr.VR
	Name string
}

var dictionary = map[Tag]Entry{
	FileMetaInformationGroupLength: {vr.UL, "FileMetaInformationGroupLength"},
	FileMetaInformationVersion:     {vr.OB, "FileMetaInformationVersion"},
	MediaStorageSOPClassUID:        {vr.UI, "MediaStorageSOPClassUID"},
	MediaStorageSOPInstanceUID:     {vr.UI, "MediaStorageSOPInstanceUID"},
	TransferSyntaxUID:              {vr.UI, "TransferSyntaxUID"},
	ImplementationClassUID:         {vr.UI, "ImplementationClassUID"},
	ImplementationVersionName:      {vr.SH, "ImplementationVersionName"},

	SpecificCharacterSet: {vr.CS, "SpecificCharacterSet"},
	InstanceCreationDate: {vr.DA, "InstanceCreationDate"},
	InstanceCreationTime: {vr.TM, "InstanceCreationTime"},
	SOPClassUID:          {vr.UI, "SOPClassUID"},
	SOPInstanceUID:       {vr.UI, "SOPInstanceUID"},

	PatientName:      {vr.PN, "PatientName"},
	PatientID:        {vr.LO, "PatientID"},
	PatientBirthDate: {vr.DA, "PatientBirthDate"},
	PatientSex:       {vr.CS, "PatientSex"},

	StudyDate:              {vr.DA, "StudyDate"},
	StudyTime:              {vr.TM, "StudyTime"},
	AccessionNumber:        {vr.SH, "AccessionNumber"},
	ReferringPhysicianName: {vr.PN, "ReferringPhysicianName"},
	StudyDescription:       {vr.LO, "StudyDescription"},
	StudyInstanceUID:       {vr.UI, "StudyInstanceUID"},
	StudyID:                {vr.SH, "StudyID"},

	SeriesDate:        {vr.DA, "SeriesDate"},
	SeriesTime:        {vr.TM, "SeriesTime"},
	Modality:          {vr.CS, "Modality"},
	SeriesDescription: {vr.LO, "SeriesDescription"},
	SeriesInstanceUID: {vr.UI, "SeriesInstanceUID"},
	SeriesNumber:      {vr.IS, "SeriesNumber"},
	InstanceNumber:    {vr.IS, "InstanceNumber"},

	Manufacturer:          {vr.LO, "Manufacturer"},
	InstitutionName:       {vr.LO, "InstitutionName"},
	StationName:           {vr.SH, "StationName"},
	ManufacturerModelName: {vr.LO, "ManufacturerModelName"},
	DeviceSerialNumber:    {vr.LO, "DeviceSerialNumber"},
	SoftwareVersions:      {vr.LO, "SoftwareVersions"},

	ClinicalTrialTimePointID:            {vr.LO, "ClinicalTrialTimePointID"},
	ClinicalTrialCoordinatingCenterName: {vr.LO, "ClinicalTrialCoordinatingCenterName"},
	ClinicalTrialSeriesID:               {vr.LO, "ClinicalTrialSeriesID"},

	FrameOfReferenceUID:        {vr.UI, "FrameOfReferenceUID"},
	PositionReferenceIndicator: {vr.LO, "PositionReferenceIndicator"},
	ImagePositionPatient:       {vr.DS, "ImagePositionPatient"},
	ImageOrientationPatient:    {vr.DS, "ImageOrientationPatient"},
	SliceLocation:              {vr.DS, "SliceLocation"},
	SliceThickness:             {vr.DS, "SliceThickness"},
	SpacingBetweenSlices:       {vr.DS, "SpacingBetweenSlices"},
	PixelSpacing:               {vr.DS, "PixelSpacing"},

	ImageType:                 {vr.CS, "ImageType"},
	ContentDate:               {vr.DA, "ContentDate"},
	ContentTime:               {vr.TM, "ContentTime"},
	SamplesPerPixel:           {vr.US, "SamplesPerPixel"},
	PhotometricInterpretation: {vr.CS, "PhotometricInterpretation"},
	NumberOfFrames:            {vr.IS, "NumberOfFrames"},
	Rows:                      {vr.US, "Rows"},
	Columns:                   {vr.US, "Columns"},
	BitsAllocated:             {vr.US, "BitsAllocated"},
	BitsStored:                {vr.US, "BitsStored"},
	HighBit:                   {vr.US, "HighBit"},
	PixelRepresentation:       {vr.US, "PixelRepresentation"},
	WindowCenter:              {vr.DS, "WindowCenter"},
	WindowWidth:               {vr.DS, "WindowWidth"},
	RescaleIntercept:          {vr.DS, "RescaleIntercept"},
	RescaleSlope:              {vr.DS, "RescaleSlope"},
	RescaleType:               {vr.LO, "RescaleType"},
	LossyImageCompression:     {vr.CS, "LossyImageCompression"},
	BurnedInAnnotation:        {vr.CS, "BurnedInAnnotation"},
	PresentationLUTShape:      {vr.CS, "PresentationLUTShape"},
	ContentQualification:      {vr.CS, "ContentQualification"},
	LUTExplanation:            {vr.LO, "LUTExplanation"},
	FloatPixelData:            {vr.OF, "FloatPixelData"},
	PixelData:                 {vr.OW, "PixelData"},

	CodeValue:              {vr.SH, "CodeValue"},
	CodingSchemeDesignator: {vr.SH, "CodingSchemeDesignator"},
	CodingSchemeVersion:    {vr.SH, "CodingSchemeVersion"},
	CodeMeaning:            {vr.LO, "CodeMeaning"},
	MappingResource:        {vr.CS, "MappingResource"},

	ReferencedSeriesSequence:      {vr.SQ, "ReferencedSeriesSequence"},
	ReferencedImageSequence:       {vr.SQ, "ReferencedImageSequence"},
	ReferencedInstanceSequence:    {vr.SQ, "ReferencedInstanceSequence"},
	ReferencedSOPClassUID:         {vr.UI, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUID:      {vr.UI, "ReferencedSOPInstanceUID"},
	ReferencedFrameNumber:         {vr.IS, "ReferencedFrameNumber"},
	ReferencedSOPSequence:         {vr.SQ, "ReferencedSOPSequence"},
	SourceImageSequence:           {vr.SQ, "SourceImageSequence"},
	DerivationImageSequence:       {vr.SQ, "DerivationImageSequence"},
	DerivationCodeSequence:        {vr.SQ, "DerivationCodeSequence"},
	ReferencedFrameOfReferenceUID: {vr.UI, "ReferencedFrameOfReferenceUID"},

	SharedFunctionalGroupsSequence:   {vr.SQ, "SharedFunctionalGroupsSequence"},
	PerFrameFunctionalGroupsSequence: {vr.SQ, "PerFrameFunctionalGroupsSequence"},
	PixelMeasuresSequence:            {vr.SQ, "PixelMeasuresSequence"},
	PlanePositionSequence:            {vr.SQ, "PlanePositionSequence"},
	FrameContentSequence:             {vr.SQ, "FrameContentSequence"},
	DimensionIndexValues:             {vr.UL, "DimensionIndexValues"},
	DimensionOrganizationUID:         {vr.UI, "DimensionOrganizationUID"},
	DimensionOrganizationSequence:    {vr.SQ, "DimensionOrganizationSequence"},
	PlaneOrientationSequence:         {vr.SQ, "PlaneOrientationSequence"},
	PixelValueTransformationSequence: {vr.SQ, "PixelValueTransformationSequence"},
	ContentLabel:                     {vr.CS, "ContentLabel"},
	ContentDescription:               {vr.LO, "ContentDescription"},
	ContentCreatorName:               {vr.PN, "ContentCreatorName"},

	SegmentationType:                          {vr.CS, "SegmentationType"},
	SegmentSequence:                           {vr.SQ, "SegmentSequence"},
	SegmentedPropertyCategoryCodeSequence:     {vr.SQ, "SegmentedPropertyCategoryCodeSequence"},
	SegmentNumber:                             {vr.US, "SegmentNumber"},
	SegmentLabel:                              {vr.LO, "SegmentLabel"},
	SegmentDescription:                        {vr.ST, "SegmentDescription"},
	SegmentAlgorithmType:                      {vr.CS, "SegmentAlgorithmType"},
	SegmentAlgorithmName:                      {vr.LO, "SegmentAlgorithmName"},
	SegmentIdentificationSequence:             {vr.SQ, "SegmentIdentificationSequence"},
	ReferencedSegmentNumber:                   {vr.US, "ReferencedSegmentNumber"},
	RecommendedDisplayCIELabValue:             {vr.US, "RecommendedDisplayCIELabValue"},
	SegmentedPropertyTypeCodeSequence:         {vr.SQ, "SegmentedPropertyTypeCodeSequence"},
	SegmentedPropertyTypeModifierCodeSequence: {vr.SQ, "SegmentedPropertyTypeModifierCodeSequence"},
	SegmentsOverlap:                           {vr.CS, "SegmentsOverlap"},
	TrackingID:                                {vr.UT, "TrackingID"},
	TrackingUID:                               {vr.UI, "TrackingUID"},
	AnatomicRegionSequence:                    {vr.SQ, "AnatomicRegionSequence"},
	AnatomicRegionModifierSequence:            {vr.SQ, "AnatomicRegionModifierSequence"},

	RelationshipType:             {vr.CS, "RelationshipType"},
	ValueType:                    {vr.CS, "ValueType"},
	ConceptNameCodeSequence:      {vr.SQ, "ConceptNameCodeSequence"},
	ContinuityOfContent:          {vr.CS, "ContinuityOfContent"},
	VerifyingObserverSequence:    {vr.SQ, "VerifyingObserverSequence"},
	VerifyingObserverName:        {vr.PN, "VerifyingObserverName"},
	VerifyingOrganization:        {vr.LO, "VerifyingOrganization"},
	VerificationDateTime:         {vr.DT, "VerificationDateTime"},
	DateTime:                     {vr.DT, "DateTime"},
	PersonName:                   {vr.PN, "PersonName"},
	UID:                          {vr.UI, "UID"},
	TextValue:                    {vr.UT, "TextValue"},
	ConceptCodeSequence:          {vr.SQ, "ConceptCodeSequence"},
	MeasuredValueSequence:        {vr.SQ, "MeasuredValueSequence"},
	NumericValue:                 {vr.DS, "NumericValue"},
	MeasurementUnitsCodeSequence: {vr.SQ, "MeasurementUnitsCodeSequence"},
	CurrentRequestedProcedureEvidenceSequence: {vr.SQ, "CurrentRequestedProcedureEvidenceSequence"},
	CompletionFlag:          {vr.CS, "CompletionFlag"},
	VerificationFlag:        {vr.CS, "VerificationFlag"},
	ContentTemplateSequence: {vr.SQ, "ContentTemplateSequence"},
	ContentSequence:         {vr.SQ, "ContentSequence"},
	TemplateIdentifier:      {vr.CS, "TemplateIdentifier"},
	GraphicData:             {vr.FL, "GraphicData"},
	GraphicType:             {vr.CS, "GraphicType"},

	RealWorldValueMappingSequence:                {vr.SQ, "RealWorldValueMappingSequence"},
	ReferencedImageRealWorldValueMappingSequence: {vr.SQ, "ReferencedImageRealWorldValueMappingSequence"},
	LUTLabel:                       {vr.SH, "LUTLabel"},
	RealWorldValueLastValueMapped:  {vr.US, "RealWorldValueLastValueMapped"},
	RealWorldValueFirstValueMapped: {vr.US, "RealWorldValueFirstValueMapped"},
	RealWorldValueIntercept:        {vr.FD, "RealWorldValueIntercept"},
	RealWorldValueSlope:            {vr.FD, "RealWorldValueSlope"},
	QuantityDefinitionSequence:     {vr.SQ, "QuantityDefinitionSequence"},

	DocumentTitle:                  {vr.ST, "DocumentTitle"},
	EncapsulatedDocument:           {vr.OB, "EncapsulatedDocument"},
	MIMETypeOfEncapsulatedDocument: {vr.LO, "MIMETypeOfEncapsulatedDocument"},
	EncapsulatedDocumentLength:     {vr.UL, "EncapsulatedDocumentLength"},
}

// Lookup returns the dictionary entry for a tag
func Lookup(t Tag) (Entry, bool) {
	e, ok := dictionary[t]
	return e, ok
}

// VR returns the dictionary VR for the tag, UN when unknown.
// Group lengths are always UL.
func (t Tag) VR() vr.VR {
	if e, ok := dictionary[t]; ok {
		return e.VR
	}
	if t.Element == 0x0000 {
		return vr.UL
	}
	return vr.UN
}

// LookupName returns a human-readable name for known tags
func (t Tag) LookupName() string {
	return dictionary[t].Name
}
