package module

import "github.com/jpfielding/qreport.go/pkg/dicom/tag"

// GeneralEquipmentModule written in its enhanced form: manufacturer,
// model, serial and software versions always, the rest when set
type GeneralEquipmentModule struct {
	Manufacturer      string
	ManufacturerModel string
	DeviceSerial      string
	SoftwareVersions  string
	InstitutionName   string
	StationName       string
}

func (m *GeneralEquipmentModule) ToTags() []IODElement {
	out := []IODElement{
		{Tag: tag.Manufacturer, Value: m.Manufacturer},
		{Tag: tag.ManufacturerModelName, Value: m.ManufacturerModel},
		{Tag: tag.DeviceSerialNumber, Value: m.DeviceSerial},
		{Tag: tag.SoftwareVersions, Value: m.SoftwareVersions},
	}
	out = appendSet(out, tag.InstitutionName, m.InstitutionName)
	return appendSet(out, tag.StationName, m.StationName)
}
