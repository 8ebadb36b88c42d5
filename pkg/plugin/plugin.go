// Package plugin is the examine/load contract shared by the SEG, SR, PM and
// M3D codecs. Examine turns lists of files into candidate Loadables; Load
// materializes a selected Loadable into the scene.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/scene"
)

// Loadable is one thing a plugin offers to load
type Loadable struct {
	Plugin     string
	Name       string
	Tooltip    string
	Warning    string
	Files      []string
	Confidence float64
	Selected   bool

	// filled by the reference resolver
	ReferencedSeriesUID     string
	ReferencedInstanceUIDs  []string
	ReferencedSegmentations []string
	ReferencedRWVMs         []string
	ReferencedOthers        []string

	// InstanceUIDs lists the SOP instances of Files in load order
	InstanceUIDs []string
	// Planar marks an SR carrying planar annotations
	Planar bool
}

// Env is what a plugin needs to load
type Env struct {
	Scene  *scene.Scene
	DB     dicomdb.Database
	Runner dcmqi.Runner
	Poll   dcmqi.PollConfig
	// TempDir is the root of per-load scratch directories
	TempDir string
}

// Run invokes a dcmqi tool with the environment's runner and polling
func (e *Env) Run(ctx context.Context, tool string, params dcmqi.Params) error {
	return dcmqi.Run(ctx, e.Runner, tool, params, e.Poll)
}

// Plugin examines and loads one kind of object
type Plugin interface {
	Name() string
	Examine(ctx context.Context, fileLists [][]string) ([]*Loadable, error)
	Load(ctx context.Context, l *Loadable) error
}

// Registry examines with every plugin and routes loads by plugin name
type Registry struct {
	plugins []Plugin
}

// NewRegistry returns a registry holding plugins in order
func NewRegistry(plugins ...Plugin) *Registry {
	return &Registry{plugins: plugins}
}

// Register appends p
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
}

// Plugins returns the registered plugins
func (r *Registry) Plugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}

// Plugin returns the plugin called name or nil
func (r *Registry) Plugin(name string) Plugin {
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Examine runs every plugin over fileLists and returns the loadables by
// descending confidence. A failing plugin is logged and skipped.
func (r *Registry) Examine(ctx context.Context, fileLists [][]string) []*Loadable {
	var all []*Loadable
	for _, p := range r.plugins {
		found, err := p.Examine(ctx, fileLists)
		if err != nil {
			slog.WarnContext(ctx, "examine failed", slog.String("plugin", p.Name()), slog.Any("error", err))
			continue
		}
		for _, l := range found {
			l.Plugin = p.Name()
		}
		all = append(all, found...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Confidence > all[j].Confidence })
	return all
}

// Load hands l to the plugin that produced it
func (r *Registry) Load(ctx context.Context, l *Loadable) error {
	p := r.Plugin(l.Plugin)
	if p == nil {
		return fmt.Errorf("no plugin %q for %s", l.Plugin, l.Name)
	}
	slog.InfoContext(ctx, "loading", slog.String("plugin", l.Plugin), slog.String("name", l.Name), slog.Int("files", len(l.Files)))
	return p.Load(ctx, l)
}
