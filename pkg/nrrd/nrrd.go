// Package nrrd reads and writes 3D NRRD volumes (raw and gzip encodings),
// the exchange format for label maps and scalar volumes handed to and
// received from the SEG and PM tools.
package nrrd

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/geom"
)

// Pixel types
const (
	Uint8   = "uint8"
	Int16   = "int16"
	Uint16  = "uint16"
	Int32   = "int32"
	Float32 = "float"
	Float64 = "double"
)

// Spaces
const (
	SpaceLPS = "left-posterior-superior"
	SpaceRAS = "right-anterior-superior"
)

// Image is a 3D volume with its geometry. Values are held as float32 and
// converted to Type on write.
type Image struct {
	Type  string
	Sizes [3]int
	Space string
	// Directions[a] is the step vector of axis a in Space coordinates
	Directions [3]geom.Vec3
	Origin     geom.Vec3
	Data       []float32
	// Key/value pairs, written as "key:=value"
	Fields map[string]string
}

// FromGrid creates an LPS image of the given type over g
func FromGrid(g geom.Grid, typ string, data []float32) *Image {
	img := &Image{
		Type:   typ,
		Sizes:  g.Dims,
		Space:  SpaceLPS,
		Origin: geom.RASToLPS(g.Origin()),
		Data:   data,
	}
	spacing, dirs := g.Spacing(), g.Directions()
	for a := 0; a < 3; a++ {
		img.Directions[a] = geom.RASToLPS(dirs[a]).Scale(spacing[a])
	}
	return img
}

// Grid returns the RAS grid of the image
func (img *Image) Grid() geom.Grid {
	origin := img.Origin
	var dirs [3]geom.Vec3
	var spacing [3]float64
	for a := 0; a < 3; a++ {
		d := img.Directions[a]
		spacing[a] = d.Norm()
		if spacing[a] > 0 {
			d = d.Scale(1 / spacing[a])
		}
		dirs[a] = d
	}
	if img.Space != SpaceRAS {
		origin = geom.LPSToRAS(origin)
		for a := range dirs {
			dirs[a] = geom.LPSToRAS(dirs[a])
		}
	}
	return geom.NewGrid(img.Sizes, origin, spacing, dirs)
}

// WriteFile writes img to path, gzip encoded when compress is set
func WriteFile(path string, img *Image, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, img, compress); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes img as a single attached-header NRRD
func Write(w io.Writer, img *Image, compress bool) error {
	n := img.Sizes[0] * img.Sizes[1] * img.Sizes[2]
	if len(img.Data) != n {
		return fmt.Errorf("nrrd: %d values for sizes %v", len(img.Data), img.Sizes)
	}
	typ := img.Type
	if typ == "" {
		typ = Float32
	}
	size, err := typeSize(typ)
	if err != nil {
		return err
	}
	space := img.Space
	if space == "" {
		space = SpaceLPS
	}
	encoding := "raw"
	if compress {
		encoding = "gzip"
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "NRRD0004")
	fmt.Fprintf(bw, "type: %s\n", typ)
	fmt.Fprintln(bw, "dimension: 3")
	fmt.Fprintf(bw, "space: %s\n", space)
	fmt.Fprintf(bw, "sizes: %d %d %d\n", img.Sizes[0], img.Sizes[1], img.Sizes[2])
	fmt.Fprintf(bw, "space directions: %s %s %s\n", vector(img.Directions[0]), vector(img.Directions[1]), vector(img.Directions[2]))
	fmt.Fprintln(bw, "kinds: domain domain domain")
	if size > 1 {
		fmt.Fprintln(bw, "endian: little")
	}
	fmt.Fprintf(bw, "encoding: %s\n", encoding)
	fmt.Fprintf(bw, "space origin: %s\n", vector(img.Origin))
	for k, v := range img.Fields {
		fmt.Fprintf(bw, "%s:=%s\n", k, v)
	}
	fmt.Fprintln(bw)

	raw := make([]byte, n*size)
	for i, v := range img.Data {
		putValue(raw[i*size:], typ, v)
	}

	if compress {
		zw := gzip.NewWriter(bw)
		if _, err := zw.Write(raw); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	} else if _, err := bw.Write(raw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadFile reads a NRRD file
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Read decodes an attached-header 3D NRRD
func Read(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("nrrd: reading magic: %w", err)
	}
	if !strings.HasPrefix(magic, "NRRD000") {
		return nil, fmt.Errorf("nrrd: bad magic %q", strings.TrimSpace(magic))
	}

	img := &Image{Space: SpaceLPS, Fields: map[string]string{}}
	img.Directions = geom.IdentityDirs
	encoding, endian := "raw", "little"
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("nrrd: reading header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":="); ok {
			img.Fields[k] = v
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("nrrd: malformed header line %q", line)
		}
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "type":
			img.Type, err = canonicalType(v)
		case "dimension":
			if v != "3" {
				err = fmt.Errorf("nrrd: only 3D volumes are supported, got dimension %s", v)
			}
		case "space":
			img.Space = v
		case "sizes":
			err = parseSizes(v, &img.Sizes)
		case "space directions":
			err = parseDirections(v, &img.Directions)
		case "space origin":
			img.Origin, err = parseVector(v)
		case "encoding":
			encoding = v
		case "endian":
			endian = v
		}
		if err != nil {
			return nil, err
		}
	}
	if img.Type == "" {
		return nil, fmt.Errorf("nrrd: missing type")
	}

	var body io.Reader = br
	switch encoding {
	case "raw":
	case "gzip", "gz":
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("nrrd: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("nrrd: unsupported encoding %q", encoding)
	}

	size, _ := typeSize(img.Type)
	n := img.Sizes[0] * img.Sizes[1] * img.Sizes[2]
	raw := make([]byte, n*size)
	if _, err := io.ReadFull(body, raw); err != nil {
		return nil, fmt.Errorf("nrrd: reading %d voxels: %w", n, err)
	}
	var order binary.ByteOrder = binary.LittleEndian
	if endian == "big" {
		order = binary.BigEndian
	}
	img.Data = make([]float32, n)
	for i := range img.Data {
		img.Data[i] = getValue(raw[i*size:], img.Type, order)
	}
	return img, nil
}

func canonicalType(t string) (string, error) {
	switch strings.ToLower(t) {
	case "uchar", "unsigned char", "uint8", "uint8_t":
		return Uint8, nil
	case "short", "short int", "signed short", "signed short int", "int16", "int16_t":
		return Int16, nil
	case "ushort", "unsigned short", "unsigned short int", "uint16", "uint16_t":
		return Uint16, nil
	case "int", "signed int", "int32", "int32_t":
		return Int32, nil
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	}
	return "", fmt.Errorf("nrrd: unsupported type %q", t)
}

func typeSize(t string) (int, error) {
	switch t {
	case Uint8:
		return 1, nil
	case Int16, Uint16:
		return 2, nil
	case Int32, Float32:
		return 4, nil
	case Float64:
		return 8, nil
	}
	return 0, fmt.Errorf("nrrd: unsupported type %q", t)
}

func putValue(b []byte, t string, v float32) {
	le := binary.LittleEndian
	switch t {
	case Uint8:
		b[0] = uint8(clamp(v, 0, math.MaxUint8))
	case Int16:
		le.PutUint16(b, uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	case Uint16:
		le.PutUint16(b, uint16(clamp(v, 0, math.MaxUint16)))
	case Int32:
		le.PutUint32(b, uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
	case Float32:
		le.PutUint32(b, math.Float32bits(v))
	case Float64:
		le.PutUint64(b, math.Float64bits(float64(v)))
	}
}

func clamp(v float32, lo, hi float64) float64 {
	f := math.Round(float64(v))
	return math.Max(lo, math.Min(hi, f))
}

func getValue(b []byte, t string, order binary.ByteOrder) float32 {
	switch t {
	case Uint8:
		return float32(b[0])
	case Int16:
		return float32(int16(order.Uint16(b)))
	case Uint16:
		return float32(order.Uint16(b))
	case Int32:
		return float32(int32(order.Uint32(b)))
	case Float32:
		return math.Float32frombits(order.Uint32(b))
	case Float64:
		return float32(math.Float64frombits(order.Uint64(b)))
	}
	return 0
}

func vector(v geom.Vec3) string {
	var b bytes.Buffer
	b.WriteByte('(')
	for i, c := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(c, 'g', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}

func parseVector(s string) (geom.Vec3, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return geom.Vec3{}, fmt.Errorf("nrrd: malformed vector %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("nrrd: vector %q needs 3 components", s)
	}
	var v geom.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vec3{}, fmt.Errorf("nrrd: vector %q: %w", s, err)
		}
		v[i] = f
	}
	return v, nil
}

func parseSizes(s string, out *[3]int) error {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return fmt.Errorf("nrrd: sizes %q needs 3 values", s)
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("nrrd: sizes %q: %w", s, err)
		}
		out[i] = n
	}
	return nil
}

func parseDirections(s string, out *[3]geom.Vec3) error {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return fmt.Errorf("nrrd: space directions %q needs 3 vectors", s)
	}
	for i, f := range fields {
		v, err := parseVector(f)
		if err != nil {
			return err
		}
		out[i] = v
	}
	return nil
}
