package module

import (
	"strconv"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// GeneralSeriesModule (C.7.3.1). Date and time are written only together.
type GeneralSeriesModule struct {
	Modality          string
	SeriesInstanceUID string
	SeriesNumber      int
	SeriesDate        Date
	SeriesTime        Time
	SeriesDescription string
}

func (m *GeneralSeriesModule) ToTags() []IODElement {
	out := []IODElement{
		{Tag: tag.Modality, Value: m.Modality},
		{Tag: tag.SeriesInstanceUID, Value: m.SeriesInstanceUID},
		{Tag: tag.SeriesNumber, Value: strconv.Itoa(m.SeriesNumber)},
		{Tag: tag.SeriesDescription, Value: m.SeriesDescription},
	}
	if m.SeriesDate.IsZero() {
		return out
	}
	return append(out,
		IODElement{Tag: tag.SeriesDate, Value: m.SeriesDate.String()},
		IODElement{Tag: tag.SeriesTime, Value: m.SeriesTime.String()})
}

// ClinicalTrialSeriesModule carries the reader session identifiers of a
// derived series. Unset identifiers are omitted.
type ClinicalTrialSeriesModule struct {
	CoordinatingCenterName string
	SeriesID               string
	TimePointID            string
}

func (m *ClinicalTrialSeriesModule) ToTags() []IODElement {
	out := appendSet(nil, tag.ClinicalTrialCoordinatingCenterName, m.CoordinatingCenterName)
	out = appendSet(out, tag.ClinicalTrialSeriesID, m.SeriesID)
	return appendSet(out, tag.ClinicalTrialTimePointID, m.TimePointID)
}
