package dicomdb

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	sdicom "github.com/suyashkumar/dicom"
	stag "github.com/suyashkumar/dicom/pkg/tag"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// HeaderParser reads the indexed attributes of one file
type HeaderParser interface {
	ParseHeader(path string) (Instance, error)
}

// ParserByName returns the parser configured as database.parser
func ParserByName(name string) (HeaderParser, error) {
	switch name {
	case "", "suyashkumar":
		return SuyashkumarParser{}, nil
	case "native":
		return NativeParser{}, nil
	}
	return nil, fmt.Errorf("unknown header parser %q", name)
}

// SuyashkumarParser parses headers with github.com/suyashkumar/dicom,
// skipping pixel data.
type SuyashkumarParser struct{}

// ParseHeader implements HeaderParser
func (SuyashkumarParser) ParseHeader(path string) (Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return Instance{}, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Instance{}, fmt.Errorf("could not stat file: %w", err)
	}
	ds, err := sdicom.Parse(f, info.Size(), nil, sdicom.SkipPixelData())
	if err != nil {
		return Instance{}, fmt.Errorf("could not parse DICOM: %w", err)
	}

	str := func(t stag.Tag) string {
		elem, err := ds.FindElementByTag(t)
		if err != nil || elem.Value == nil {
			return ""
		}
		switch v := elem.Value.GetValue().(type) {
		case []string:
			return strings.TrimSpace(strings.Join(v, "\\"))
		case []int:
			if len(v) > 0 {
				return strconv.Itoa(v[0])
			}
		}
		return ""
	}
	floats := func(t stag.Tag) []float64 {
		elem, err := ds.FindElementByTag(t)
		if err != nil || elem.Value == nil {
			return nil
		}
		switch v := elem.Value.GetValue().(type) {
		case []float64:
			return v
		case []string:
			return parseFloats(v)
		}
		return nil
	}

	inst := Instance{
		Path:                    path,
		PatientID:               str(stag.PatientID),
		PatientName:             str(stag.PatientName),
		StudyInstanceUID:        str(stag.StudyInstanceUID),
		StudyDate:               str(stag.StudyDate),
		StudyTime:               str(stag.StudyTime),
		SeriesInstanceUID:       str(stag.SeriesInstanceUID),
		SeriesDescription:       str(stag.SeriesDescription),
		SeriesDate:              str(stag.SeriesDate),
		SeriesTime:              str(stag.SeriesTime),
		Modality:                str(stag.Modality),
		SOPClassUID:             str(stag.SOPClassUID),
		SOPInstanceUID:          str(stag.SOPInstanceUID),
		FrameOfReferenceUID:     str(stag.FrameOfReferenceUID),
		ImagePositionPatient:    floats(stag.ImagePositionPatient),
		ImageOrientationPatient: floats(stag.ImageOrientationPatient),
		PixelSpacing:            floats(stag.PixelSpacing),
	}
	inst.SeriesNumber, _ = strconv.Atoi(str(stag.SeriesNumber))
	inst.InstanceNumber, _ = strconv.Atoi(str(stag.InstanceNumber))
	return inst, validate(inst)
}

func parseFloats(parts []string) []float64 {
	var out []float64
	for _, p := range parts {
		for _, s := range strings.Split(p, "\\") {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
	}
	return out
}

// NativeParser parses headers with the package's own reader
type NativeParser struct{}

// ParseHeader implements HeaderParser
func (NativeParser) ParseHeader(path string) (Instance, error) {
	ds, err := dicom.ReadFile(path, dicom.SkipPixelData())
	if err != nil {
		return Instance{}, err
	}
	return FromDataset(path, ds)
}

// FromDataset extracts the indexed attributes from a parsed dataset
func FromDataset(path string, ds *dicom.Dataset) (Instance, error) {
	inst := Instance{
		Path:                    path,
		PatientID:               ds.Text(tag.PatientID),
		PatientName:             ds.Text(tag.PatientName),
		StudyInstanceUID:        ds.Text(tag.StudyInstanceUID),
		StudyDate:               ds.Text(tag.StudyDate),
		StudyTime:               ds.Text(tag.StudyTime),
		SeriesInstanceUID:       ds.Text(tag.SeriesInstanceUID),
		SeriesDescription:       ds.Text(tag.SeriesDescription),
		SeriesDate:              ds.Text(tag.SeriesDate),
		SeriesTime:              ds.Text(tag.SeriesTime),
		Modality:                ds.Text(tag.Modality),
		SOPClassUID:             ds.Text(tag.SOPClassUID),
		SOPInstanceUID:          ds.Text(tag.SOPInstanceUID),
		FrameOfReferenceUID:     ds.Text(tag.FrameOfReferenceUID),
		ImagePositionPatient:    ds.Floats(tag.ImagePositionPatient),
		ImageOrientationPatient: ds.Floats(tag.ImageOrientationPatient),
		PixelSpacing:            ds.Floats(tag.PixelSpacing),
	}
	inst.SeriesNumber, _ = ds.Int(tag.SeriesNumber)
	inst.InstanceNumber, _ = ds.Int(tag.InstanceNumber)
	return inst, validate(inst)
}

func validate(inst Instance) error {
	if inst.SOPInstanceUID == "" || inst.SeriesInstanceUID == "" {
		return fmt.Errorf("%s: missing SOPInstanceUID or SeriesInstanceUID", inst.Path)
	}
	return nil
}
