package scene

import (
	"encoding/json"
	"io"

	"github.com/jpfielding/qreport.go/pkg/geom"
)

// MarkupKind is the shape of a Markups node
type MarkupKind string

const (
	MarkupPoints MarkupKind = "Fiducial"
	MarkupLine   MarkupKind = "Line"
	MarkupCurve  MarkupKind = "Curve"
	MarkupROI    MarkupKind = "ROI"
)

// ControlPoint is a labelled RAS position
type ControlPoint struct {
	Label    string    `json:"label,omitempty"`
	Position geom.Vec3 `json:"position"`
}

// Markups is a point list, line, curve or box in RAS
type Markups struct {
	Base
	Kind        MarkupKind
	Points      []ControlPoint
	Description string
	Locked      bool
	// Center and Size describe an axis aligned ROI
	Center geom.Vec3
	Size   geom.Vec3
}

// NewMarkups returns an empty markups node
func NewMarkups(kind MarkupKind, name string) *Markups {
	return &Markups{Base: Base{Name: name}, Kind: kind}
}

// AddPoint appends a control point
func (m *Markups) AddPoint(label string, p geom.Vec3) {
	m.Points = append(m.Points, ControlPoint{Label: label, Position: p})
}

// Length returns the summed distance between consecutive points
func (m *Markups) Length() float64 {
	var total float64
	for i := 1; i < len(m.Points); i++ {
		total += m.Points[i].Position.Sub(m.Points[i-1].Position).Norm()
	}
	return total
}

type markupsJSON struct {
	Name        string         `json:"name"`
	Kind        MarkupKind     `json:"type"`
	Description string         `json:"description,omitempty"`
	Locked      bool           `json:"locked"`
	Points      []ControlPoint `json:"controlPoints,omitempty"`
	Center      *geom.Vec3     `json:"center,omitempty"`
	Size        *geom.Vec3     `json:"size,omitempty"`
	Coordinates string         `json:"coordinateSystem"`
}

// WriteJSON writes the markups as an indented JSON document
func (m *Markups) WriteJSON(w io.Writer) error {
	out := markupsJSON{
		Name:        m.Name,
		Kind:        m.Kind,
		Description: m.Description,
		Locked:      m.Locked,
		Points:      m.Points,
		Coordinates: "RAS",
	}
	if m.Kind == MarkupROI {
		out.Center, out.Size = &m.Center, &m.Size
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
