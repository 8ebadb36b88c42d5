package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/config"
	"github.com/jpfielding/qreport.go/pkg/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a configuration using the native header parser and a
// private temp dir
func testConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "qrctl.yaml")
	body := "database:\n  parser: native\ntemp:\n  dir: " + t.TempDir() + "\ntools:\n  poll:\n    ticks: 500\n    interval: 10ms\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	args = append(args, "--config", testConfig(t))
	var out bytes.Buffer
	root := NewRoot(context.Background(), "test")
	root.SetOut(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestPhantomReportAndLoad(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	run(t, "phantom", "--out", dir, "--report", "--model", "--db", filepath.Join(dir, "none"))

	for _, name := range []string{"report/segmentation.dcm", "report/measurements.dcm", "model.dcm"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	listing := run(t, "examine", "--db", dir, filepath.Join(dir, "report"))
	assert.Contains(t, listing, "DICOMSegmentation")
	assert.Contains(t, listing, "DICOMTID1500")

	out := filepath.Join(tmp, "loaded")
	run(t, "load", "--db", dir, "--out", out, filepath.Join(dir, "report", "measurements.dcm"), filepath.Join(dir, "model.dcm"))
	files, err := filepath.Glob(filepath.Join(out, "*"))
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Contains(t, names, "Measurement_Report_measurements.csv")
	assert.Contains(t, names, "Tumor_model-Segment_1.stl")
	assert.Contains(t, names, "Sphere_phantom.nrrd")
}

func TestDump_Summary(t *testing.T) {
	dir := t.TempDir()
	run(t, "phantom", "--out", dir, "--db", filepath.Join(dir, "none"))
	files, err := filepath.Glob(filepath.Join(dir, "ct", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	out := run(t, "dump", "--format", "summary", files[0])
	assert.Contains(t, out, "Modality: CT")
	assert.Contains(t, out, "Kind: image")
	assert.Contains(t, out, "Valid: true")
}

func TestIndex_ListsSeries(t *testing.T) {
	dir := t.TempDir()
	run(t, "phantom", "--out", dir, "--db", filepath.Join(dir, "none"))
	out := run(t, "index", "--db", dir)
	assert.Contains(t, out, "PHANTOM1")
	assert.Contains(t, out, "Sphere phantom")
}

func TestApp_TrackerUsesConfiguredAutomaticTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provenance.AutomaticTools = []string{"Grow from seeds"}
	a := &app{cfg: cfg}

	tr := a.tracker()
	assert.Equal(t, provenance.Automatic, tr.Classify("Grow from seeds"))
	assert.Equal(t, provenance.Manual, tr.Classify("Paint"))
	assert.Equal(t, provenance.SemiAutomatic, tr.Classify("Threshold"))
	assert.Equal(t, cfg.Application.Name, tr.AppName)
}
