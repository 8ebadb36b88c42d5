package module

import (
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// UTF8 is the character set every written object declares
const UTF8 = "ISO_IR 192"

// SOPCommonModule (C.12.1)
type SOPCommonModule struct {
	SOPClassUID          string
	SOPInstanceUID       string
	SpecificCharacterSet string
	InstanceCreationDate Date
	InstanceCreationTime Time
}

// NewSOPCommonModule stamps the creation date and time with now
func NewSOPCommonModule() SOPCommonModule {
	now := time.Now()
	return SOPCommonModule{SpecificCharacterSet: UTF8, InstanceCreationDate: NewDate(now), InstanceCreationTime: NewTime(now)}
}

func (m *SOPCommonModule) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.SpecificCharacterSet, Value: m.SpecificCharacterSet},
		{Tag: tag.InstanceCreationDate, Value: m.InstanceCreationDate.String()},
		{Tag: tag.InstanceCreationTime, Value: m.InstanceCreationTime.String()},
		{Tag: tag.SOPClassUID, Value: m.SOPClassUID},
		{Tag: tag.SOPInstanceUID, Value: m.SOPInstanceUID},
	}
}
