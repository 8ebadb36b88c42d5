// Package terminology encodes the coded description of a segment
// (category, type, modifiers and anatomic region) to and from the single
// string carried in a segment's TerminologyEntry tag.
//
// The string has seven '~' separated fields:
//
//	context~SCHEME^VALUE^MEANING~type~typeModifier~anatomicContext~region~regionModifier
//
// An absent code is written as "^^".
package terminology

import (
	"fmt"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
)

// Code is a coded triplet
type Code = module.Code

// Context names used when none is given
const (
	DefaultTerminologyContext = "Segmentation category and type - 3D Slicer General Anatomy list"
	DefaultAnatomicContext    = "Anatomic codes - DICOM master list"
)

// Defaults substituted on read when a segment carries no code
var (
	DefaultCategory = module.NewCode("T-D0050", "SRT", "Tissue")
	DefaultType     = module.NewCode("T-D0050", "SRT", "Tissue")
	DefaultRegion   = module.NewCode("T-D0010", "SRT", "Entire Body")
)

// Entry is the full terminology of one segment
type Entry struct {
	TerminologyContextName string
	Category               Code
	Type                   Code
	TypeModifier           *Code
	AnatomicContextName    string
	Region                 *Code
	RegionModifier         *Code
}

// Valid reports whether all three fields of c are present
func Valid(c Code) bool {
	return c.Value != "" && c.Scheme != "" && c.Meaning != ""
}

func validPtr(c *Code) bool {
	return c != nil && Valid(*c)
}

// Validate checks that category and type are valid and that any optional
// code present is valid too.
func (e Entry) Validate() error {
	if !Valid(e.Category) {
		return fmt.Errorf("category %v is not a valid code", e.Category)
	}
	if !Valid(e.Type) {
		return fmt.Errorf("type %v is not a valid code", e.Type)
	}
	for name, c := range map[string]*Code{"type modifier": e.TypeModifier, "region": e.Region, "region modifier": e.RegionModifier} {
		if c != nil && !Valid(*c) {
			return fmt.Errorf("%s %v is not a valid code", name, *c)
		}
	}
	return nil
}

// String serializes the entry
func (e Entry) String() string {
	return strings.Join([]string{
		e.TerminologyContextName,
		encode(&e.Category),
		encode(&e.Type),
		encode(e.TypeModifier),
		e.AnatomicContextName,
		encode(e.Region),
		encode(e.RegionModifier),
	}, "~")
}

func encode(c *Code) string {
	if c == nil {
		return "^^"
	}
	return c.Scheme + "^" + c.Value + "^" + c.Meaning
}

// Parse deserializes a TerminologyEntry string. Empty optional codes come
// back as nil.
func Parse(s string) (Entry, error) {
	parts := strings.Split(s, "~")
	if len(parts) != 7 {
		return Entry{}, fmt.Errorf("terminology entry has %d fields, want 7: %q", len(parts), s)
	}
	var (
		e   = Entry{TerminologyContextName: parts[0], AnatomicContextName: parts[4]}
		err error
	)
	decodeInto := func(field string, dst **Code) {
		if err != nil {
			return
		}
		var c *Code
		c, err = decode(field)
		*dst = c
	}
	var category, typ *Code
	decodeInto(parts[1], &category)
	decodeInto(parts[2], &typ)
	decodeInto(parts[3], &e.TypeModifier)
	decodeInto(parts[5], &e.Region)
	decodeInto(parts[6], &e.RegionModifier)
	if err != nil {
		return Entry{}, err
	}
	if category != nil {
		e.Category = *category
	}
	if typ != nil {
		e.Type = *typ
	}
	return e, nil
}

func decode(field string) (*Code, error) {
	f := strings.Split(field, "^")
	if len(f) != 3 {
		return nil, fmt.Errorf("terminology code %q needs SCHEME^VALUE^MEANING", field)
	}
	if f[0] == "" && f[1] == "" && f[2] == "" {
		return nil, nil
	}
	return &Code{Scheme: f[0], Value: f[1], Meaning: f[2]}, nil
}

// Codes is the terminology as emitted into DICOM; nil members are not encoded
type Codes struct {
	Category       *Code
	Type           *Code
	TypeModifier   *Code
	Region         *Code
	RegionModifier *Code
}

// DICOMCodes returns the codes to encode. An invalid category or type
// yields an empty block. Invalid optional codes are dropped on their own.
func (e Entry) DICOMCodes() Codes {
	if !Valid(e.Category) || !Valid(e.Type) {
		return Codes{}
	}
	out := Codes{Category: &e.Category, Type: &e.Type}
	if validPtr(e.TypeModifier) {
		out.TypeModifier = e.TypeModifier
	}
	if validPtr(e.Region) {
		out.Region = e.Region
		if validPtr(e.RegionModifier) {
			out.RegionModifier = e.RegionModifier
		}
	}
	return out
}

// Empty reports whether no code is set
func (c Codes) Empty() bool {
	return c.Category == nil && c.Type == nil
}

// FromCodes composes an entry from decoded codes, substituting the read
// defaults for a missing category, type or region.
func FromCodes(category, typ, typeModifier, region, regionModifier *Code) Entry {
	e := Entry{
		TerminologyContextName: DefaultTerminologyContext,
		AnatomicContextName:    DefaultAnatomicContext,
		Category:               DefaultCategory,
		Type:                   DefaultType,
		Region:                 &DefaultRegion,
	}
	if category != nil {
		e.Category = *category
	}
	if typ != nil {
		e.Type = *typ
	}
	if region != nil {
		e.Region = region
	} else {
		r := DefaultRegion
		e.Region = &r
	}
	e.TypeModifier = typeModifier
	e.RegionModifier = regionModifier
	return e
}
