package terminology

import (
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codePtr(v, s, m string) *Code {
	c := module.NewCode(v, s, m)
	return &c
}

func TestEntry_RoundTrip(t *testing.T) {
	entries := []Entry{
		{
			TerminologyContextName: DefaultTerminologyContext,
			Category:               module.NewCode("T-D0050", "SRT", "Tissue"),
			Type:                   module.NewCode("49755003", "SCT", "Neoplasm"),
		},
		{
			TerminologyContextName: "ctx",
			Category:               module.NewCode("123037004", "SCT", "Anatomical Structure"),
			Type:                   module.NewCode("64033007", "SCT", "Kidney"),
			TypeModifier:           codePtr("7771000", "SCT", "Left"),
			AnatomicContextName:    DefaultAnatomicContext,
			Region:                 codePtr("818981001", "SCT", "Abdomen"),
			RegionModifier:         codePtr("24028007", "SCT", "Right"),
		},
	}
	for _, e := range entries {
		s := e.String()
		got, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, e, got)
		assert.Equal(t, s, got.String())
	}
}

func TestEntry_StringFormat(t *testing.T) {
	e := Entry{
		TerminologyContextName: "ctx",
		Category:               module.NewCode("T-D0050", "SRT", "Tissue"),
		Type:                   module.NewCode("49755003", "SCT", "Neoplasm"),
	}
	assert.Equal(t, "ctx~SRT^T-D0050^Tissue~SCT^49755003^Neoplasm~^^~~^^~^^", e.String())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("a~b")
	assert.Error(t, err)
	_, err = Parse("ctx~SRT^T-D0050~^^~^^~~^^~^^")
	assert.Error(t, err)
}

func TestEntry_Validate(t *testing.T) {
	e := Entry{Category: module.NewCode("T-D0050", "SRT", "Tissue"), Type: module.NewCode("49755003", "SCT", "")}
	assert.Error(t, e.Validate())
	e.Type.Meaning = "Neoplasm"
	assert.NoError(t, e.Validate())
	e.Region = codePtr("", "SCT", "Abdomen")
	assert.Error(t, e.Validate())
}

func TestEntry_DICOMCodes(t *testing.T) {
	e := Entry{
		Category:       module.NewCode("T-D0050", "SRT", "Tissue"),
		Type:           module.NewCode("49755003", "SCT", "Neoplasm"),
		TypeModifier:   codePtr("7771000", "", "Left"),
		Region:         codePtr("818981001", "SCT", "Abdomen"),
		RegionModifier: codePtr("24028007", "SCT", "Right"),
	}
	codes := e.DICOMCodes()
	assert.False(t, codes.Empty())
	assert.Nil(t, codes.TypeModifier)
	require.NotNil(t, codes.Region)
	require.NotNil(t, codes.RegionModifier)

	e.Category.Meaning = ""
	assert.True(t, e.DICOMCodes().Empty())
}

func TestFromCodes_Defaults(t *testing.T) {
	e := FromCodes(nil, nil, nil, nil, nil)
	assert.Equal(t, DefaultCategory, e.Category)
	assert.Equal(t, DefaultType, e.Type)
	require.NotNil(t, e.Region)
	assert.Equal(t, DefaultRegion, *e.Region)
	assert.NoError(t, e.Validate())

	typ := codePtr("49755003", "SCT", "Neoplasm")
	e = FromCodes(nil, typ, nil, nil, nil)
	assert.Equal(t, *typ, e.Type)
}
