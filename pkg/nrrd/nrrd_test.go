package nrrd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() geom.Grid {
	return geom.FromLPS([3]int{3, 2, 2}, geom.Vec3{-10, 5, 2.5}, [3]float64{0.5, 0.75, 2}, geom.IdentityDirs)
}

func TestWriteRead_Raw(t *testing.T) {
	data := []float32{0, 1, 0, 1, 1, 0, 0, 0, 1, 1, 1, 1}
	img := FromGrid(testGrid(), Uint8, data)
	img.Fields = map[string]string{"Segment0_Name": "Tumor"}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, false))
	assert.True(t, strings.HasPrefix(buf.String(), "NRRD0004\ntype: uint8\n"))
	assert.NotContains(t, buf.String(), "endian")

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, Uint8, got.Type)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, "Tumor", got.Fields["Segment0_Name"])
	assert.True(t, testGrid().Equal(got.Grid(), 1e-9))
}

func TestWriteRead_Gzip(t *testing.T) {
	data := make([]float32, 12)
	for i := range data {
		data[i] = float32(i)*0.25 - 1
	}
	path := filepath.Join(t.TempDir(), "pmap.nrrd")
	require.NoError(t, WriteFile(path, FromGrid(testGrid(), Float32, data), true))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, [3]int{3, 2, 2}, got.Sizes)
}

func TestWrite_ClampsIntegerTypes(t *testing.T) {
	img := FromGrid(geom.NewGrid([3]int{3, 1, 1}, geom.Vec3{}, [3]float64{1, 1, 1}, geom.IdentityDirs), Int16, []float32{-40000, 12.6, 40000})
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, false))
	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{-32768, 13, 32767}, got.Data)
}

func TestRead_SlicerHeader(t *testing.T) {
	header := "NRRD0004\n# Complete NRRD file format specification at:\n" +
		"type: unsigned char\ndimension: 3\nspace: right-anterior-superior\nsizes: 2 1 1\n" +
		"space directions: (-1,0,0) (0,-1,0) (0,0,1)\nkinds: domain domain domain\n" +
		"encoding: raw\nspace origin: (5,6,7)\n\n"
	got, err := Read(strings.NewReader(header + "\x01\x00"))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got.Data)
	g := got.Grid()
	assert.Equal(t, geom.Vec3{5, 6, 7}, g.Origin())
	dirs := g.Directions()
	assert.InDeltaSlice(t, []float64{-1, 0, 0}, dirs[0][:], 1e-12)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader("P6\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("NRRD0004\ntype: uchar\ndimension: 2\n\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("NRRD0004\ntype: uchar\ndimension: 3\nsizes: 2 2 2\nencoding: raw\n\n\x00"))
	assert.Error(t, err)
	assert.Error(t, Write(&bytes.Buffer{}, &Image{Type: Uint8, Sizes: [3]int{2, 2, 2}}, false))
}
