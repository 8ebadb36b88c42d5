package scene

import (
	"fmt"
	"math"

	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/stl"
)

// Representation is a form a segment can be held in
type Representation string

const (
	BinaryLabelmap Representation = "Binary labelmap"
	ClosedSurface  Representation = "Closed surface"
)

// Segment tag keys
const (
	TagTerminologyEntry = "TerminologyEntry"
	TagAlgorithmType    = "DICOM.SegmentAlgorithmType"
	TagAlgorithmName    = "DICOM.SegmentAlgorithmName"
	TagTrackingUID      = "TrackingUniqueIdentifier"
	TagAppliedTools     = "QuantitativeReporting.AppliedTools"
)

// Segment is one labelled region of a Segmentation
type Segment struct {
	ID      string
	Name    string
	Color   [3]float64 // RGB in [0,1]
	Visible bool
	// Mask is one byte per voxel of the segmentation grid, non-zero when set
	Mask    []uint8
	Surface *stl.Mesh
	tags    map[string]string
}

// NewSegment returns a visible segment with no mask
func NewSegment(name string, color [3]float64) *Segment {
	return &Segment{Name: name, Color: color, Visible: true, tags: map[string]string{}}
}

// Tag returns the value of key
func (s *Segment) Tag(key string) (string, bool) {
	v, ok := s.tags[key]
	return v, ok
}

// SetTag sets key without notifying anyone; use Segmentation.SetTag for
// segments already added
func (s *Segment) SetTag(key, value string) {
	if s.tags == nil {
		s.tags = map[string]string{}
	}
	s.tags[key] = value
}

// Tags returns a copy of every tag
func (s *Segment) Tags() map[string]string {
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// VoxelCount returns the number of set voxels in the mask
func (s *Segment) VoxelCount() int {
	n := 0
	for _, v := range s.Mask {
		if v != 0 {
			n++
		}
	}
	return n
}

// EventKind identifies a segmentation change
type EventKind int

const (
	SegmentAdded EventKind = iota + 1
	SegmentRemoved
	SegmentModified
	MasterRepresentationModified
)

func (k EventKind) String() string {
	switch k {
	case SegmentAdded:
		return "SegmentAdded"
	case SegmentRemoved:
		return "SegmentRemoved"
	case SegmentModified:
		return "SegmentModified"
	case MasterRepresentationModified:
		return "MasterRepresentationModified"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is published to subscribers of a Segmentation. Tool names the
// editor tool behind a MasterRepresentationModified event.
type Event struct {
	Kind      EventKind
	SegmentID string
	Tool      string
}

type subscriber struct {
	id int
	fn func(Event)
}

// Segmentation is an ordered set of segments over one grid
type Segmentation struct {
	Base
	// Grid is the geometry of every segment mask
	Grid   geom.Grid
	Master Representation
	// ReferenceGeometry is the grid of the image the segmentation was drawn on
	ReferenceGeometry *geom.Grid

	derived  map[Representation]bool
	segments []*Segment
	subs     []subscriber
	nextSub  int
	seq      int
}

// NewSegmentation creates an empty segmentation
func NewSegmentation(name string, grid geom.Grid, master Representation) *Segmentation {
	return &Segmentation{
		Base:    Base{Name: name},
		Grid:    grid,
		Master:  master,
		derived: map[Representation]bool{},
	}
}

// Subscribe registers fn for every event and returns a function that
// removes it
func (s *Segmentation) Subscribe(fn func(Event)) func() {
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Segmentation) emit(e Event) {
	for _, sub := range append([]subscriber(nil), s.subs...) {
		sub.fn(e)
	}
}

// Len returns the number of segments
func (s *Segmentation) Len() int { return len(s.segments) }

// Segments returns the segments in insertion order
func (s *Segmentation) Segments() []*Segment {
	return append([]*Segment(nil), s.segments...)
}

// SegmentIDs returns the segment IDs in insertion order
func (s *Segmentation) SegmentIDs() []string {
	ids := make([]string, len(s.segments))
	for i, seg := range s.segments {
		ids[i] = seg.ID
	}
	return ids
}

// Segment returns the segment with id or nil
func (s *Segmentation) Segment(id string) *Segment {
	for _, seg := range s.segments {
		if seg.ID == id {
			return seg
		}
	}
	return nil
}

// AddSegment appends seg, giving it an ID when it has none. A labelmap
// master gets an empty mask when seg has none.
func (s *Segmentation) AddSegment(seg *Segment) (string, error) {
	if seg.tags == nil {
		seg.tags = map[string]string{}
	}
	if s.Master == BinaryLabelmap {
		if seg.Mask == nil {
			seg.Mask = make([]uint8, s.Grid.Len())
		}
		if len(seg.Mask) != s.Grid.Len() {
			return "", fmt.Errorf("segment %q mask has %d voxels, grid has %d", seg.Name, len(seg.Mask), s.Grid.Len())
		}
	}
	if seg.ID == "" {
		for {
			s.seq++
			seg.ID = fmt.Sprintf("Segment_%d", s.seq)
			if s.Segment(seg.ID) == nil {
				break
			}
		}
	} else if s.Segment(seg.ID) != nil {
		return "", fmt.Errorf("segment %q already exists", seg.ID)
	}
	s.segments = append(s.segments, seg)
	s.emit(Event{Kind: SegmentAdded, SegmentID: seg.ID})
	return seg.ID, nil
}

// RemoveSegment deletes the segment with id
func (s *Segmentation) RemoveSegment(id string) error {
	for i, seg := range s.segments {
		if seg.ID == id {
			s.segments = append(s.segments[:i], s.segments[i+1:]...)
			s.emit(Event{Kind: SegmentRemoved, SegmentID: id})
			return nil
		}
	}
	return fmt.Errorf("segment %q not found", id)
}

// SetMask replaces the labelmap of a segment on behalf of tool and drops
// any derived surface
func (s *Segmentation) SetMask(id string, mask []uint8, tool string) error {
	seg := s.Segment(id)
	if seg == nil {
		return fmt.Errorf("segment %q not found", id)
	}
	if len(mask) != s.Grid.Len() {
		return fmt.Errorf("mask has %d voxels, grid has %d", len(mask), s.Grid.Len())
	}
	seg.Mask = append(seg.Mask[:0], mask...)
	seg.Surface = nil
	delete(s.derived, ClosedSurface)
	s.emit(Event{Kind: MasterRepresentationModified, SegmentID: id, Tool: tool})
	return nil
}

// SetTag sets a string tag on a segment
func (s *Segmentation) SetTag(id, key, value string) error {
	seg := s.Segment(id)
	if seg == nil {
		return fmt.Errorf("segment %q not found", id)
	}
	seg.tags[key] = value
	s.emit(Event{Kind: SegmentModified, SegmentID: id})
	return nil
}

// HasRepresentation reports whether r is the master or has been derived
func (s *Segmentation) HasRepresentation(r Representation) bool {
	return r == s.Master || s.derived[r]
}

// CreateRepresentation derives r from the master representation
func (s *Segmentation) CreateRepresentation(r Representation) error {
	if s.HasRepresentation(r) {
		return nil
	}
	switch r {
	case ClosedSurface:
		for _, seg := range s.segments {
			mesh, err := stl.SurfaceFromMask(seg.Mask, s.Grid)
			if err != nil {
				return fmt.Errorf("segment %q: %w", seg.ID, err)
			}
			mesh.Name = seg.Name
			seg.Surface = mesh
		}
	case BinaryLabelmap:
		if s.Grid.Len() == 0 {
			g, err := s.surfaceGrid(1)
			if err != nil {
				return err
			}
			s.Grid = g
		}
		for _, seg := range s.segments {
			if seg.Surface == nil {
				seg.Mask = make([]uint8, s.Grid.Len())
				continue
			}
			mask, err := stl.Voxelize(seg.Surface, s.Grid)
			if err != nil {
				return fmt.Errorf("segment %q: %w", seg.ID, err)
			}
			seg.Mask = mask
		}
	default:
		return fmt.Errorf("unknown representation %q", r)
	}
	s.derived[r] = true
	return nil
}

// surfaceGrid is an axis aligned RAS grid covering every surface with a
// margin of at least one voxel
func (s *Segmentation) surfaceGrid(spacing float64) (geom.Grid, error) {
	if s.ReferenceGeometry != nil {
		return *s.ReferenceGeometry, nil
	}
	lo := geom.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := geom.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, seg := range s.segments {
		if seg.Surface == nil || len(seg.Surface.Triangles) == 0 {
			continue
		}
		found = true
		l, h := seg.Surface.Bounds()
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], float64(l[a]))
			hi[a] = math.Max(hi[a], float64(h[a]))
		}
	}
	if !found {
		return geom.Grid{}, fmt.Errorf("no surface to derive a labelmap from")
	}
	var dims [3]int
	for a := 0; a < 3; a++ {
		lo[a] -= 1.5 * spacing
		dims[a] = int(math.Ceil((hi[a]-lo[a])/spacing)) + 2
	}
	return geom.NewGrid(dims, lo, [3]float64{spacing, spacing, spacing}, geom.IdentityDirs), nil
}

// ImportLabelMap adds a segment whose mask is the non-zero voxels of lm.
// The first import of an empty segmentation adopts the labelmap's grid,
// later ones are resampled onto it.
func (s *Segmentation) ImportLabelMap(lm *LabelMap, seg *Segment) (string, error) {
	if len(lm.Data) != lm.Grid.Len() {
		return "", fmt.Errorf("label map %q has %d voxels, grid has %d", lm.Name, len(lm.Data), lm.Grid.Len())
	}
	if s.Len() == 0 && s.Grid.Len() == 0 {
		s.Grid = lm.Grid
	}
	mask := make([]uint8, s.Grid.Len())
	if lm.Grid.Equal(s.Grid, 1e-6) {
		for i, v := range lm.Data {
			if v != 0 {
				mask[i] = 1
			}
		}
	} else {
		idx, err := geom.NearestIndices(lm.Grid, s.Grid)
		if err != nil {
			return "", err
		}
		for i, src := range idx {
			if src >= 0 && lm.Data[src] != 0 {
				mask[i] = 1
			}
		}
	}
	seg.Mask = mask
	return s.AddSegment(seg)
}

// ImportModel adds a segment holding the model's surface
func (s *Segmentation) ImportModel(m *Model, seg *Segment) (string, error) {
	seg.Surface = m.Mesh
	return s.AddSegment(seg)
}

// MaskOn returns the segment mask resampled onto g by nearest neighbour
func (s *Segmentation) MaskOn(seg *Segment, g geom.Grid) ([]uint8, error) {
	if g.Equal(s.Grid, 1e-6) {
		return seg.Mask, nil
	}
	idx, err := geom.NearestIndices(s.Grid, g)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, g.Len())
	for i, src := range idx {
		if src >= 0 && seg.Mask[src] != 0 {
			out[i] = 1
		}
	}
	return out, nil
}
