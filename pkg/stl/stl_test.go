package stl

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sphereMask(g geom.Grid, center geom.Vec3, radius float64) []uint8 {
	mask := make([]uint8, g.Len())
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				if g.ToRAS(geom.Vec3{float64(i), float64(j), float64(k)}).Sub(center).Norm() <= radius {
					mask[g.Index(i, j, k)] = 1
				}
			}
		}
	}
	return mask
}

func TestSurfaceFromMask_Voxelize_RoundTrip(t *testing.T) {
	g := geom.FromLPS([3]int{16, 16, 12}, geom.Vec3{-8, -8, -10}, [3]float64{1, 1, 2}, geom.IdentityDirs)
	mask := sphereMask(g, g.ToRAS(geom.Vec3{7.5, 7.5, 5.5}), 5)

	mesh, err := SurfaceFromMask(mask, g)
	require.NoError(t, err)
	require.NotEmpty(t, mesh.Triangles)

	// outward normals on a sphere point away from its centre
	center := g.ToRAS(geom.Vec3{7.5, 7.5, 5.5})
	for _, tri := range mesh.Triangles[:20] {
		var c geom.Vec3
		for _, v := range tri.Vertices() {
			c = c.Add(geom.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}.Scale(1.0 / 3))
		}
		out := c.Sub(center)
		n := geom.Vec3{float64(tri.Normal[0]), float64(tri.Normal[1]), float64(tri.Normal[2])}
		assert.Greater(t, n.Dot(out), 0.0)
	}

	back, err := Voxelize(mesh, g)
	require.NoError(t, err)
	assert.Equal(t, mask, back)
}

func TestWriteParse_Binary(t *testing.T) {
	m := &Mesh{Name: "model", Triangles: []Triangle{
		{Vertex1: [3]float32{0, 0, 0}, Vertex2: [3]float32{1, 0, 0}, Vertex3: [3]float32{0, 1, 0}},
	}}
	m.Triangles[0].ComputeNormal()
	assert.Equal(t, [3]float32{0, 0, 1}, m.Triangles[0].Normal)

	path := filepath.Join(t.TempDir(), "m.stl")
	require.NoError(t, SaveToSTL(path, m))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model", got.Name)
	assert.Equal(t, m.Triangles, got.Triangles)
}

func TestWriteParse_ASCII(t *testing.T) {
	m := &Mesh{Name: "ascii", Triangles: []Triangle{
		{Normal: [3]float32{0, 0, 1}, Vertex1: [3]float32{0, 0, 0}, Vertex2: [3]float32{1.5, 0, 0}, Vertex3: [3]float32{0, 2.25, 0}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteASCII(&buf, m))
	// padding from an even-length encapsulation must not break parsing
	buf.WriteString(" \n")

	got, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "ascii", got.Name)
	assert.Equal(t, m.Triangles, got.Triangles)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("not a mesh"))
	assert.Error(t, err)
	_, err = Parse([]byte("solid x\nfacet normal 0 0 1\nouter loop\nvertex 0 0 0\nendloop\nendfacet\nendsolid\n"))
	assert.Error(t, err)
}

func TestMesh_Bounds(t *testing.T) {
	m := &Mesh{Triangles: []Triangle{
		{Vertex1: [3]float32{-1, 2, 3}, Vertex2: [3]float32{4, -5, 6}, Vertex3: [3]float32{0, 0, -7}},
	}}
	lo, hi := m.Bounds()
	assert.Equal(t, [3]float32{-1, -5, -7}, lo)
	assert.Equal(t, [3]float32{4, 2, 6}, hi)
	assert.False(t, math.IsInf(float64(lo[0]), 0))
}
