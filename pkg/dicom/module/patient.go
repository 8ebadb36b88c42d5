package module

import "github.com/jpfielding/qreport.go/pkg/dicom/tag"

// PatientModule (C.7.1.1). Derived objects copy it from their source series.
type PatientModule struct {
	PatientName      PersonName
	PatientID        string
	PatientBirthDate string
	PatientSex       string
}

func (m *PatientModule) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.PatientName, Value: m.PatientName.String()},
		{Tag: tag.PatientID, Value: m.PatientID},
		{Tag: tag.PatientBirthDate, Value: m.PatientBirthDate},
		{Tag: tag.PatientSex, Value: m.PatientSex},
	}
}
