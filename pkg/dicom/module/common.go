// Package module holds the IOD modules written into derived objects. Each
// module renders itself as IODElements through ToTags.
package module

import (
	"strings"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// Date is a DA value
type Date struct{ t time.Time }

func NewDate(t time.Time) Date { return Date{t: t} }

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("20060102")
}

// Time is a TM value with microsecond precision
type Time struct{ t time.Time }

func NewTime(t time.Time) Time { return Time{t: t} }

func (t Time) IsZero() bool { return t.t.IsZero() }

func (t Time) String() string {
	if t.IsZero() {
		return ""
	}
	return t.t.Format("150405.000000")
}

// PersonName is a PN value
type PersonName struct {
	FamilyName string
	GivenName  string
	MiddleName string
	Prefix     string
	Suffix     string
}

// String joins the components with ^, dropping empty trailing ones
func (p PersonName) String() string {
	return strings.TrimRight(strings.Join([]string{p.FamilyName, p.GivenName, p.MiddleName, p.Prefix, p.Suffix}, "^"), "^")
}

func ParsePersonName(s string) PersonName {
	var c [5]string
	copy(c[:], strings.SplitN(s, "^", 5))
	return PersonName{FamilyName: c[0], GivenName: c[1], MiddleName: c[2], Prefix: c[3], Suffix: c[4]}
}

// IODElement is one attribute of a module. VR is optional and overrides
// the dictionary VR when set.
type IODElement struct {
	Tag   tag.Tag
	VR    string
	Value interface{}
}

func multi(values []string) string {
	return strings.Join(values, `\`)
}

// appendSet appends t=v when v is not empty
func appendSet(out []IODElement, t tag.Tag, v string) []IODElement {
	if v == "" {
		return out
	}
	return append(out, IODElement{Tag: t, Value: v})
}
