// Package scene is the in-memory collection of the objects loaded or built
// by the codecs: volumes, segmentations, tables and markups. Each node may
// have a parent, which models the subject hierarchy (study, series).
//
// A Scene is not safe for concurrent use.
package scene

import (
	"fmt"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/stl"
)

// Attribute keys stored on nodes
const (
	AttrInstanceUIDs           = "DICOM.instanceUIDs"
	AttrReferencedInstanceUIDs = "DICOM.ReferencedInstanceUIDs"
	AttrRWVMInstanceUID        = "DICOM.RWV.instanceUID"
	AttrSeriesInstanceUID      = "DICOM.SeriesInstanceUID"
	AttrStudyInstanceUID       = "DICOM.StudyInstanceUID"
	AttrModality               = "DICOM.Modality"
)

// Base holds what every node has
type Base struct {
	ID   string
	Name string
	// Parent is nil for top level nodes
	Parent     Node
	Attributes map[string]string
}

// Header returns the receiver
func (b *Base) Header() *Base { return b }

// Attribute returns the attribute value or ""
func (b *Base) Attribute(key string) string {
	if b.Attributes == nil {
		return ""
	}
	return b.Attributes[key]
}

// SetAttribute sets one attribute
func (b *Base) SetAttribute(key, value string) {
	if b.Attributes == nil {
		b.Attributes = map[string]string{}
	}
	b.Attributes[key] = value
}

// Node is anything held by a Scene
type Node interface {
	Header() *Base
}

// Folder groups nodes in the subject hierarchy
type Folder struct {
	Base
}

// ScalarVolume is a 3D grid of intensities
type ScalarVolume struct {
	Base
	Grid     geom.Grid
	Data     []float32
	Modality string
}

// InstanceUIDs returns the ordered source SOPInstanceUIDs
func (v *ScalarVolume) InstanceUIDs() []string {
	return strings.Fields(v.Attribute(AttrInstanceUIDs))
}

// VolumeFromDICOM wraps a loaded series. The DICOM.instanceUIDs attribute
// lists the source instances in slice order.
func VolumeFromDICOM(name string, v *dicom.Volume) *ScalarVolume {
	grid := geom.FromLPS(
		[3]int{v.Width, v.Height, v.Depth},
		geom.Vec3(v.Origin),
		v.Spacing,
		[3]geom.Vec3{geom.Vec3(v.RowDir), geom.Vec3(v.ColDir), geom.Vec3(v.SliceDir)},
	)
	sv := &ScalarVolume{
		Base:     Base{Name: name},
		Grid:     grid,
		Data:     v.Data,
		Modality: v.Modality,
	}
	sv.SetAttribute(AttrInstanceUIDs, strings.Join(v.InstanceUIDs, " "))
	sv.SetAttribute(AttrSeriesInstanceUID, v.SeriesInstanceUID)
	sv.SetAttribute(AttrStudyInstanceUID, v.StudyInstanceUID)
	sv.SetAttribute(AttrModality, v.Modality)
	return sv
}

// LabelMap is an integer label volume used while importing segments
type LabelMap struct {
	Base
	Grid geom.Grid
	Data []uint8
}

// Model is a closed surface mesh
type Model struct {
	Base
	Mesh *stl.Mesh
}

// Scene holds nodes in insertion order
type Scene struct {
	nodes []Node
	seq   int
}

// New returns an empty scene
func New() *Scene {
	return &Scene{}
}

// Add inserts n, assigning an ID when it has none, and returns the ID
func (s *Scene) Add(n Node) string {
	h := n.Header()
	if h.ID == "" {
		s.seq++
		h.ID = fmt.Sprintf("%s%d", kind(n), s.seq)
	}
	s.nodes = append(s.nodes, n)
	return h.ID
}

// AddChild inserts n under parent
func (s *Scene) AddChild(parent, n Node) string {
	n.Header().Parent = parent
	return s.Add(n)
}

// Get returns the node with id or nil
func (s *Scene) Get(id string) Node {
	for _, n := range s.nodes {
		if n.Header().ID == id {
			return n
		}
	}
	return nil
}

// Nodes returns every node in insertion order
func (s *Scene) Nodes() []Node {
	return append([]Node(nil), s.nodes...)
}

// Children returns the direct children of parent; nil lists top level nodes
func (s *Scene) Children(parent Node) []Node {
	var out []Node
	for _, n := range s.nodes {
		if n.Header().Parent == parent {
			out = append(out, n)
		}
	}
	return out
}

// Remove deletes n and every node below it
func (s *Scene) Remove(n Node) {
	if n == nil {
		return
	}
	for _, c := range s.Children(n) {
		s.Remove(c)
	}
	for i, m := range s.nodes {
		if m == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

// Contains reports whether n is in the scene
func (s *Scene) Contains(n Node) bool {
	for _, m := range s.nodes {
		if m == n {
			return true
		}
	}
	return false
}

// Len returns the node count
func (s *Scene) Len() int { return len(s.nodes) }

// NodesOf returns the nodes of type T in insertion order
func NodesOf[T Node](s *Scene) []T {
	var out []T
	for _, n := range s.nodes {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func kind(n Node) string {
	switch n.(type) {
	case *Folder:
		return "Folder"
	case *ScalarVolume:
		return "Volume"
	case *LabelMap:
		return "LabelMap"
	case *Model:
		return "Model"
	case *Segmentation:
		return "Segmentation"
	case *Table:
		return "Table"
	case *Markups:
		return "Markups"
	}
	return "Node"
}
