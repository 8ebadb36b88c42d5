package module

import "github.com/jpfielding/qreport.go/pkg/dicom/tag"

// Code is a coded concept: value, coding scheme designator and meaning
type Code struct {
	Value   string
	Scheme  string
	Meaning string
}

// NewCode creates a Code
func NewCode(value, scheme, meaning string) Code {
	return Code{Value: value, Scheme: scheme, Meaning: meaning}
}

// IsZero reports whether the code is absent
func (c Code) IsZero() bool {
	return c.Value == "" && c.Scheme == "" && c.Meaning == ""
}

// Equal compares value and scheme; meanings are display text
func (c Code) Equal(o Code) bool {
	return c.Value == o.Value && c.Scheme == o.Scheme
}

// ToTags returns the Code Sequence Macro attributes
func (c Code) ToTags() []IODElement {
	return []IODElement{
		{Tag: tag.CodeValue, Value: c.Value},
		{Tag: tag.CodingSchemeDesignator, Value: c.Scheme},
		{Tag: tag.CodeMeaning, Value: c.Meaning},
	}
}

func (c Code) String() string {
	return "(" + c.Value + ", " + c.Scheme + ", \"" + c.Meaning + "\")"
}
