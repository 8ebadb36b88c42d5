// Package provenance keeps each segment's algorithm type and name in step
// with the editor tools applied to it.
package provenance

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/scene"
)

// Segment algorithm types
const (
	Manual        = "MANUAL"
	SemiAutomatic = "SEMIAUTOMATIC"
	Automatic     = "AUTOMATIC"
)

// CreateTool is recorded for a segment added empty
const CreateTool = "Add"

// ManualTools are the editor tools classified MANUAL
var ManualTools = []string{"Paint", "Draw", "Erase"}

// ValidType reports whether t is one of the three algorithm types
func ValidType(t string) bool {
	return t == Manual || t == SemiAutomatic || t == Automatic
}

// Tracker observes one segmentation
type Tracker struct {
	AppName        string
	AppVersion     string
	AutomaticTools []string

	seg         *scene.Segmentation
	unsubscribe func()
	updating    bool
}

// NewTracker returns a tracker that names algorithms after the application
func NewTracker(appName, appVersion string, automaticTools []string) *Tracker {
	return &Tracker{AppName: appName, AppVersion: appVersion, AutomaticTools: automaticTools}
}

// Attach starts observing seg, detaching from any previous segmentation
func (t *Tracker) Attach(seg *scene.Segmentation) {
	t.Detach()
	t.seg = seg
	t.unsubscribe = seg.Subscribe(t.handle)
}

// Detach stops observing
func (t *Tracker) Detach() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	t.seg, t.unsubscribe = nil, nil
}

func (t *Tracker) handle(e scene.Event) {
	if t.updating {
		return
	}
	switch e.Kind {
	case scene.SegmentAdded:
		t.added(e.SegmentID)
	case scene.MasterRepresentationModified:
		if err := t.Apply(e.SegmentID, e.Tool); err != nil {
			slog.Warn("provenance update failed", slog.String("segment", e.SegmentID), slog.Any("error", err))
		}
	}
}

func (t *Tracker) added(id string) {
	s := t.seg.Segment(id)
	if s == nil {
		return
	}
	if _, ok := s.Tag(scene.TagAppliedTools); ok {
		return
	}
	if s.VoxelCount() > 0 || s.Surface != nil {
		// imported content, history starts with the first edit
		return
	}
	t.setTags(id, map[string]string{scene.TagAppliedTools: CreateTool})
}

// Classify returns the algorithm type of one editor tool
func (t *Tracker) Classify(tool string) string {
	switch {
	case slices.Contains(ManualTools, tool):
		return Manual
	case slices.Contains(t.AutomaticTools, tool):
		return Automatic
	}
	return SemiAutomatic
}

// Apply records tool on segment id and updates its algorithm type and name
func (t *Tracker) Apply(id, tool string) error {
	if t.seg == nil {
		return fmt.Errorf("tracker is not attached")
	}
	s := t.seg.Segment(id)
	if s == nil {
		return fmt.Errorf("segment %q not found", id)
	}
	history := Split(tagOf(s, scene.TagAppliedTools))
	imported := len(history) == 0 || history[0] != CreateTool
	history = AppendTool(history, tool)

	prevType := tagOf(s, scene.TagAlgorithmType)
	typ := MergeType(prevType, imported, t.Classify(tool))
	name := t.MergeName(tagOf(s, scene.TagAlgorithmName), prevType == "" && imported, tool)

	slog.Debug("segment provenance",
		slog.String("segment", id),
		slog.String("tool", tool),
		slog.String("type", typ),
		slog.String("name", name))
	t.setTags(id, map[string]string{
		scene.TagAppliedTools:  strings.Join(history, ";"),
		scene.TagAlgorithmType: typ,
		scene.TagAlgorithmName: name,
	})
	return nil
}

func (t *Tracker) setTags(id string, tags map[string]string) {
	t.updating = true
	defer func() { t.updating = false }()
	for _, k := range []string{scene.TagAppliedTools, scene.TagAlgorithmType, scene.TagAlgorithmName} {
		if v, ok := tags[k]; ok {
			_ = t.seg.SetTag(id, k, v)
		}
	}
}

func tagOf(s *scene.Segment, key string) string {
	v, _ := s.Tag(key)
	return v
}

// Split parses a semicolon joined tool history
func Split(history string) []string {
	var out []string
	for _, p := range strings.Split(history, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AppendTool adds tool unless it is already present
func AppendTool(history []string, tool string) []string {
	if tool == "" || slices.Contains(history, tool) {
		return history
	}
	return append(history, tool)
}

// MergeType folds the classification of a new tool into the previous
// type. Mixed classifications collapse to SEMIAUTOMATIC.
func MergeType(prev string, imported bool, toolType string) string {
	switch {
	case prev == "" && imported:
		return SemiAutomatic
	case prev == "":
		return toolType
	case prev == Manual && toolType != Manual:
		return SemiAutomatic
	case prev == Automatic:
		return SemiAutomatic
	}
	return prev
}

// ToolName is the algorithm name recorded for one tool
func (t *Tracker) ToolName(tool string) string {
	return fmt.Sprintf("%s %s %s Effect", t.AppName, t.AppVersion, tool)
}

// EditorName is recorded once several tools contributed
func (t *Tracker) EditorName() string {
	return fmt.Sprintf("%s %s Segment Editor", t.AppName, t.AppVersion)
}

// ApplicationName is recorded when the history includes foreign work
func (t *Tracker) ApplicationName() string {
	return fmt.Sprintf("%s %s", t.AppName, t.AppVersion)
}

// MergeName folds a tool into the previous algorithm name, preferring the
// tool name, then the editor name, then the application name.
func (t *Tracker) MergeName(prev string, imported bool, tool string) string {
	candidate := t.ToolName(tool)
	prefix := t.ApplicationName() + " "
	switch {
	case prev == "" && imported:
		return t.ApplicationName()
	case prev == "" || prev == candidate:
		return candidate
	case prev == t.EditorName():
		return prev
	case strings.HasPrefix(prev, prefix) && strings.HasSuffix(prev, " Effect"):
		return t.EditorName()
	}
	return t.ApplicationName()
}
