package module

import "github.com/jpfielding/qreport.go/pkg/dicom/tag"

// GeneralStudyModule (C.7.2.1). Every attribute is written, empty or not.
type GeneralStudyModule struct {
	StudyInstanceUID       string
	StudyDate              Date
	StudyTime              Time
	StudyID                string
	AccessionNumber        string
	ReferringPhysicianName string
	StudyDescription       string
}

func (m *GeneralStudyModule) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.StudyInstanceUID, Value: m.StudyInstanceUID},
		{Tag: tag.StudyID, Value: m.StudyID},
		{Tag: tag.StudyDate, Value: m.StudyDate.String()},
		{Tag: tag.StudyTime, Value: m.StudyTime.String()},
		{Tag: tag.StudyDescription, Value: m.StudyDescription},
		{Tag: tag.AccessionNumber, Value: m.AccessionNumber},
		{Tag: tag.ReferringPhysicianName, Value: m.ReferringPhysicianName},
	}
}
