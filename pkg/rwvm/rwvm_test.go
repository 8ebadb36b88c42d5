package rwvm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/phantom"
	"github.com/jpfielding/qreport.go/pkg/qrtest"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suv = module.NewCode("{SUVbw}g/ml", "UCUM", "Standardized Uptake Value body weight")

func writeMapping(t *testing.T, f *qrtest.Fixture, m *Mapping) string {
	var refs []*dicom.Dataset
	for _, p := range f.Series.Files {
		ds, err := dicom.ReadFile(p, dicom.SkipPixelData())
		require.NoError(t, err)
		refs = append(refs, ds)
	}
	ds, err := Dataset(m, refs)
	require.NoError(t, err)
	out := filepath.Join(f.Dir, "rwvm.dcm")
	_, err = dicom.WriteFile(out, ds)
	require.NoError(t, err)
	return out
}

func TestRead(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	out := writeMapping(t, f, &Mapping{Slope: 0.5, Intercept: 2, LUTLabel: "SUVbw", Units: suv})

	ds, err := dicom.ReadFile(out, dicom.SkipPixelData())
	require.NoError(t, err)
	m, err := Read(ds)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Slope, 1e-9)
	assert.InDelta(t, 2, m.Intercept, 1e-9)
	assert.Equal(t, "SUVbw", m.LUTLabel)
	assert.Equal(t, suv.Value, m.Units.Value)
	assert.ElementsMatch(t, f.Series.SOPInstanceUIDs, m.ReferencedInstanceUIDs)
	assert.True(t, m.ReferencesSeries(f.Index, f.Series.SeriesInstanceUID))
	assert.False(t, m.ReferencesSeries(f.Index, "1.2.3"))
}

func TestRead_NotRWVM(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	ds, err := dicom.ReadFile(f.Series.Files[0], dicom.SkipPixelData())
	require.NoError(t, err)
	_, err = Read(ds)
	assert.Error(t, err)
}

func TestLoadScaled(t *testing.T) {
	f := qrtest.New(t, phantom.DefaultOptions())
	m := &Mapping{Slope: 2, Intercept: -1, LUTLabel: "SUVbw", Units: suv}
	out := writeMapping(t, f, m)

	vol, err := LoadScaled(context.Background(), f.Env, out, f.Series.SeriesInstanceUID)
	require.NoError(t, err)
	require.Len(t, vol.Data, len(f.Volume.Data))
	for i := range vol.Data {
		require.InDelta(t, 2*f.Volume.Data[i]-1, vol.Data[i], 1e-3)
	}
	assert.Equal(t, m.SOPInstanceUID, vol.Attribute(scene.AttrRWVMInstanceUID))
	assert.Equal(t, suv.Value, vol.Attribute(AttrUnits))
	assert.True(t, f.Env.Scene.Contains(vol))

	_, err = LoadScaled(context.Background(), f.Env, out, "1.2.3")
	assert.Error(t, err)
}
