// Package qrtest builds the synthetic series, database and plugin
// environment shared by codec tests.
package qrtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dcmqi/native"
	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/terminology"
	"github.com/stretchr/testify/require"
)

// Codes used across tests
var (
	Tissue   = module.NewCode("T-D0050", "SRT", "Tissue")
	Neoplasm = module.NewCode("49755003", "SCT", "Neoplasm")
	Air      = module.NewCode("C0001861", "UMLS", "Air")
	Liver    = module.NewCode("10200004", "SCT", "Liver")
)

// Poll is fast enough for in-process tools
var Poll = dcmqi.PollConfig{Ticks: 500, Interval: 10 * time.Millisecond}

// Fixture is an indexed phantom series loaded as a volume, with a plugin
// environment running the native tools
type Fixture struct {
	Env    *plugin.Env
	Index  *dicomdb.Index
	Series *phantom.Series
	Volume *scene.ScalarVolume
	Dir    string
}

// New writes a phantom with o under a temp dir, indexes and loads it
func New(t testing.TB, o phantom.Options) *Fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := phantom.Write(filepath.Join(dir, "ct"), o)
	require.NoError(t, err)

	f := &Fixture{Index: dicomdb.NewIndex(), Series: s, Dir: dir}
	f.IndexFiles(t, s.Files...)

	v, err := dicom.LoadSeriesFiles(s.Files)
	require.NoError(t, err)
	f.Volume = scene.VolumeFromDICOM(o.SeriesDescription, v)

	f.Env = &plugin.Env{
		Scene:   scene.New(),
		DB:      f.Index,
		Runner:  native.Runner(),
		Poll:    Poll,
		TempDir: t.TempDir(),
	}
	f.Env.Scene.Add(f.Volume)
	return f
}

// IndexFiles adds files to the fixture database
func (f *Fixture) IndexFiles(t testing.TB, files ...string) {
	t.Helper()
	n, err := dicomdb.NewIndexer(f.Index, dicomdb.NativeParser{}).IndexFiles(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, len(files), n)
}

// Entry serializes a terminology entry in the default contexts
func Entry(category, typ module.Code, region *module.Code) string {
	return terminology.Entry{
		TerminologyContextName: terminology.DefaultTerminologyContext,
		Category:               category,
		Type:                   typ,
		AnatomicContextName:    terminology.DefaultAnatomicContext,
		Region:                 region,
	}.String()
}

// Segment returns a segment with mask, terminology and algorithm tags
func Segment(name string, color [3]float64, mask []uint8, entry, algType, algName string) *scene.Segment {
	s := scene.NewSegment(name, color)
	s.Mask = mask
	s.SetTag(scene.TagTerminologyEntry, entry)
	if algType != "" {
		s.SetTag(scene.TagAlgorithmType, algType)
	}
	if algName != "" {
		s.SetTag(scene.TagAlgorithmName, algName)
	}
	return s
}

// Box sets the voxels of g with i, j, k in [lo, hi)
func Box(g geom.Grid, lo, hi [3]int) []uint8 {
	mask := make([]uint8, g.Len())
	for k := lo[2]; k < hi[2]; k++ {
		for j := lo[1]; j < hi[1]; j++ {
			for i := lo[0]; i < hi[0]; i++ {
				mask[g.Index(i, j, k)] = 1
			}
		}
	}
	return mask
}
