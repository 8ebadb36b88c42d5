package dicom

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

type Tag = tag.Tag

// Dataset is a parsed object or one sequence item
type Dataset struct {
	Elements map[Tag]*Element
}

// Element holds a decoded value: string for text VRs, the numeric Go type
// for binary VRs, []*Dataset for SQ and *PixelData for encapsulated pixels
type Element struct {
	Tag   Tag
	VR    string
	Value interface{}
}

// PixelData is native or encapsulated pixel data split into frames
type PixelData struct {
	IsEncapsulated bool
	Frames         []Frame
	Offsets        []uint32
}

// Frame carries Data for native pixels, CompressedData for encapsulated ones
type Frame struct {
	Data           []uint16
	CompressedData []byte
}

// Flat concatenates native frames; nil when encapsulated
func (pd *PixelData) Flat() []uint16 {
	if pd.IsEncapsulated {
		return nil
	}
	var out []uint16
	for _, f := range pd.Frames {
		out = append(out, f.Data...)
	}
	return out
}

func (ds *Dataset) Get(t Tag) *Element {
	if ds == nil {
		return nil
	}
	return ds.Elements[t]
}

// text is the raw string value, multi-valued strings rejoined with \
func (e *Element) text() (string, bool) {
	switch v := e.Value.(type) {
	case string:
		return v, true
	case []string:
		return strings.Join(v, `\`), true
	}
	return "", false
}

func (e *Element) strings() ([]string, bool) {
	if v, ok := e.Value.([]string); ok {
		return v, true
	}
	s, ok := e.Value.(string)
	if !ok {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	parts := strings.Split(s, `\`)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts, true
}

// Ints decodes US, UL, IS and untyped 16 bit values
func (e *Element) Ints() ([]int, bool) {
	switch v := e.Value.(type) {
	case uint16:
		return []int{int(v)}, true
	case uint32:
		return []int{int(v)}, true
	case int:
		return []int{v}, true
	case int16:
		return []int{int(v)}, true
	case int32:
		return []int{int(v)}, true
	case []uint16:
		return widen(v), true
	case []uint32:
		return widen(v), true
	case []int:
		return v, true
	case []byte:
		switch {
		case len(v) == 4:
			return []int{int(binary.LittleEndian.Uint32(v))}, true
		case len(v)%2 == 0:
			out := make([]int, len(v)/2)
			for i := range out {
				out[i] = int(binary.LittleEndian.Uint16(v[2*i:]))
			}
			return out, true
		}
	case string, []string:
		parts, _ := e.strings()
		out := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func widen[T uint16 | uint32](v []T) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}

// Floats decodes FL, FD, DS and IS values
func (e *Element) Floats() ([]float64, bool) {
	switch v := e.Value.(type) {
	case float32:
		return []float64{float64(v)}, true
	case float64:
		return []float64{v}, true
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, true
	case []float64:
		return v, true
	case string, []string:
		parts, _ := e.strings()
		out := make([]float64, len(parts))
		for i, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	if n, ok := e.Ints(); ok {
		out := make([]float64, len(n))
		for i, x := range n {
			out[i] = float64(x)
		}
		return out, true
	}
	return nil, false
}

// Text is the trimmed string value of t, "" when absent
func (ds *Dataset) Text(t Tag) string {
	if e := ds.Get(t); e != nil {
		if s, ok := e.text(); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (ds *Dataset) Strings(t Tag) []string {
	if e := ds.Get(t); e != nil {
		s, _ := e.strings()
		return s
	}
	return nil
}

// Int is the first integer value of t
func (ds *Dataset) Int(t Tag) (int, bool) {
	if e := ds.Get(t); e != nil {
		if n, ok := e.Ints(); ok && len(n) > 0 {
			return n[0], true
		}
	}
	return 0, false
}

func (ds *Dataset) Floats(t Tag) []float64 {
	if e := ds.Get(t); e != nil {
		f, _ := e.Floats()
		return f
	}
	return nil
}

func (ds *Dataset) Items(t Tag) []*Dataset {
	if e := ds.Get(t); e != nil {
		items, _ := e.Value.([]*Dataset)
		return items
	}
	return nil
}

// Item is the first item of the sequence t or nil
func (ds *Dataset) Item(t Tag) *Dataset {
	if items := ds.Items(t); len(items) > 0 {
		return items[0]
	}
	return nil
}

func (ds *Dataset) Bytes(t Tag) []byte {
	if e := ds.Get(t); e != nil {
		b, _ := e.Value.([]byte)
		return b
	}
	return nil
}
