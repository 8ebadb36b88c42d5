// Package stl reads and writes STL surface meshes and converts between
// closed surfaces and binary label maps.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Triangle is one facet; vertices are in RAS millimetres
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// Vertices returns the three vertices in order
func (t Triangle) Vertices() [3][3]float32 {
	return [3][3]float32{t.Vertex1, t.Vertex2, t.Vertex3}
}

// ComputeNormal sets Normal from the vertex winding
func (t *Triangle) ComputeNormal() {
	ux, uy, uz := t.Vertex2[0]-t.Vertex1[0], t.Vertex2[1]-t.Vertex1[1], t.Vertex2[2]-t.Vertex1[2]
	vx, vy, vz := t.Vertex3[0]-t.Vertex1[0], t.Vertex3[1]-t.Vertex1[1], t.Vertex3[2]-t.Vertex1[2]
	nx, ny, nz := uy*vz-uz*vy, uz*vx-ux*vz, ux*vy-uy*vx
	l := float32(math.Sqrt(float64(nx*nx + ny*ny + nz*nz)))
	if l > 0 {
		nx, ny, nz = nx/l, ny/l, nz/l
	}
	t.Normal = [3]float32{nx, ny, nz}
}

// Mesh is a triangle soup
type Mesh struct {
	Name      string
	Triangles []Triangle
}

const headerSize = 80

// ReadFile reads a binary or ASCII STL file
func ReadFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes STL bytes. A payload whose size matches the binary layout
// is read as binary even when its header starts with "solid".
func Parse(data []byte) (*Mesh, error) {
	if len(data) >= headerSize+4 {
		count := binary.LittleEndian.Uint32(data[headerSize:])
		if int64(len(data)) == headerSize+4+int64(count)*50 {
			return parseBinary(data, count)
		}
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) {
		return parseASCII(data)
	}
	return nil, fmt.Errorf("stl: payload of %d bytes is neither binary nor ASCII STL", len(data))
}

func parseBinary(data []byte, count uint32) (*Mesh, error) {
	m := &Mesh{
		Name:      strings.TrimRight(string(data[:headerSize]), "\x00 "),
		Triangles: make([]Triangle, count),
	}
	off := headerSize + 4
	read := func() [3]float32 {
		var v [3]float32
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		return v
	}
	for i := range m.Triangles {
		t := &m.Triangles[i]
		t.Normal = read()
		t.Vertex1 = read()
		t.Vertex2 = read()
		t.Vertex3 = read()
		off += 2 // attribute byte count
	}
	return m, nil
}

func parseASCII(data []byte) (*Mesh, error) {
	m := &Mesh{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	var (
		cur    Triangle
		nVerts int
		line   int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				m.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			cur, nVerts = Triangle{}, 0
			if len(fields) == 5 && fields[1] == "normal" {
				n, err := parseFloats(fields[2:])
				if err != nil {
					return nil, fmt.Errorf("stl: line %d: %w", line, err)
				}
				cur.Normal = n
			}
		case "vertex":
			if len(fields) != 4 || nVerts > 2 {
				return nil, fmt.Errorf("stl: line %d: malformed vertex", line)
			}
			v, err := parseFloats(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("stl: line %d: %w", line, err)
			}
			switch nVerts {
			case 0:
				cur.Vertex1 = v
			case 1:
				cur.Vertex2 = v
			case 2:
				cur.Vertex3 = v
			}
			nVerts++
		case "endfacet":
			if nVerts != 3 {
				return nil, fmt.Errorf("stl: line %d: facet with %d vertices", line, nVerts)
			}
			m.Triangles = append(m.Triangles, cur)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseFloats(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

// WriteBinary encodes m as binary STL
func WriteBinary(w io.Writer, m *Mesh) error {
	header := make([]byte, headerSize)
	copy(header, m.Name)
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return err
	}
	for _, t := range m.Triangles {
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteASCII encodes m as ASCII STL
func WriteASCII(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", m.Name)
	for _, t := range m.Triangles {
		fmt.Fprintf(bw, "  facet normal %g %g %g\n    outer loop\n", t.Normal[0], t.Normal[1], t.Normal[2])
		for _, v := range t.Vertices() {
			fmt.Fprintf(bw, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		fmt.Fprint(bw, "    endloop\n  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", m.Name)
	return bw.Flush()
}

// SaveToSTL writes m as binary STL to path
func SaveToSTL(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteBinary(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Bounds returns the axis aligned bounding box of the mesh
func (m *Mesh) Bounds() (lo, hi [3]float32) {
	for i := range lo {
		lo[i] = math.MaxFloat32
		hi[i] = -math.MaxFloat32
	}
	for _, t := range m.Triangles {
		for _, v := range t.Vertices() {
			for i := range v {
				lo[i] = min(lo[i], v[i])
				hi[i] = max(hi[i], v[i])
			}
		}
	}
	return lo, hi
}
