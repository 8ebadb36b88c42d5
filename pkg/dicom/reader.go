package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
)

const undefinedLength = 0xFFFFFFFF

var le = binary.LittleEndian

// decoder reads little endian Part 10 streams in explicit or implicit VR
type decoder struct {
	r             io.Reader
	explicitVR    bool
	skipPixelData bool
}

// ReadOption configures Parse
type ReadOption func(*decoder)

// SkipPixelData stops at the first pixel data element; the header,
// including every sequence before it, is still returned
func SkipPixelData() ReadOption {
	return func(d *decoder) { d.skipPixelData = true }
}

// Parse reads a Part 10 stream: preamble, file meta group and data set
func Parse(r io.Reader, opts ...ReadOption) (*Dataset, error) {
	d := &decoder{r: r, explicitVR: true}
	for _, opt := range opts {
		opt(d)
	}
	return d.file()
}

// sub reads src with the same encoding as d
func (d *decoder) sub(src io.Reader) *decoder {
	return &decoder{r: src, explicitVR: d.explicitVR}
}

func (d *decoder) stopsAt(t Tag) bool {
	return d.skipPixelData && (t == tag.PixelData || t == tag.FloatPixelData)
}

func (d *decoder) file() (*Dataset, error) {
	head := make([]byte, 132)
	if _, err := io.ReadFull(d.r, head); err != nil {
		return nil, fmt.Errorf("reading preamble: %w", err)
	}
	if string(head[128:]) != "DICM" {
		return nil, errors.New("not a DICOM file: no DICM prefix")
	}
	ds := &Dataset{Elements: map[Tag]*Element{}}

	// the meta group is always explicit VR
	next, err := d.tag()
	if err != nil {
		return nil, err
	}
	grouped := next == tag.FileMetaInformationGroupLength
	if grouped {
		e, err := d.element(next)
		if err != nil {
			return nil, fmt.Errorf("meta group length: %w", err)
		}
		ds.Elements[next] = e
		n, _ := e.Value.(uint32)
		meta := make([]byte, n)
		if _, err := io.ReadFull(d.r, meta); err != nil {
			return nil, fmt.Errorf("reading file meta: %w", err)
		}
		if err := d.sub(bytes.NewReader(meta)).elements(ds, false); err != nil {
			return nil, fmt.Errorf("parsing file meta: %w", err)
		}
	} else {
		for next.Group == 0x0002 {
			e, err := d.element(next)
			if err != nil {
				return nil, fmt.Errorf("element %v: %w", next, err)
			}
			ds.Elements[next] = e
			if next, err = d.tag(); err == io.EOF {
				return ds, nil
			} else if err != nil {
				return nil, err
			}
		}
	}

	ts := transfer.Syntax(ds.Text(tag.TransferSyntaxUID))
	if ts == "" {
		ts = transfer.ImplicitVRLittleEndian
	}
	if !ts.IsLittleEndian() {
		return nil, fmt.Errorf("unsupported transfer syntax %s", ts.Name())
	}
	d.explicitVR = ts.IsExplicitVR()

	body := d
	if ts == transfer.DeflatedExplicitVR {
		if !grouped {
			return nil, errors.New("deflated data set without a meta group length")
		}
		body = d.sub(flate.NewReader(d.r))
		body.skipPixelData = d.skipPixelData
	}
	if !grouped {
		// next already holds the first data set tag
		if d.stopsAt(next) {
			return ds, nil
		}
		e, err := body.element(next)
		if err != nil {
			return nil, fmt.Errorf("element %v: %w", next, err)
		}
		ds.Elements[next] = e
	}
	return ds, body.elements(ds, false)
}

// elements fills ds until EOF, or through an item delimiter when inItem
func (d *decoder) elements(ds *Dataset, inItem bool) error {
	for {
		t, err := d.tag()
		switch {
		case err == io.EOF && !inItem:
			return nil
		case err != nil:
			return err
		case t == tag.ItemDelimitationItem:
			_, err := d.u32()
			return err
		case d.stopsAt(t):
			return nil
		}
		e, err := d.element(t)
		if err != nil {
			return fmt.Errorf("element %v: %w", t, err)
		}
		ds.Elements[t] = e
	}
}

func (d *decoder) element(t Tag) (*Element, error) {
	vr := string(t.VR())
	var length uint32
	if d.explicitVR {
		var hdr [2]byte
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			return nil, err
		}
		vr = string(hdr[:])
		if longLength(vr) {
			if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
				return nil, err
			}
			l, err := d.u32()
			if err != nil {
				return nil, err
			}
			length = l
		} else {
			var l uint16
			if err := binary.Read(d.r, le, &l); err != nil {
				return nil, err
			}
			length = uint32(l)
		}
	} else {
		l, err := d.u32()
		if err != nil {
			return nil, err
		}
		length = l
	}

	var value any
	var err error
	switch {
	case vr == "SQ":
		value, err = d.sequence(length, d.explicitVR)
	case length == undefinedLength && t == tag.PixelData:
		value, err = d.fragments()
	case length == undefinedLength:
		// an undefined length UN is an implicit VR sequence
		vr = "SQ"
		value, err = d.sequence(length, false)
	default:
		buf := make([]byte, length)
		if _, err = io.ReadFull(d.r, buf); err == nil {
			value = decodeValue(vr, buf)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Element{Tag: t, VR: vr, Value: value}, nil
}

func (d *decoder) tag() (Tag, error) {
	var b [4]byte
	n, err := io.ReadFull(d.r, b[:])
	if n == 0 && err == io.EOF {
		return Tag{}, io.EOF
	}
	if err != nil {
		return Tag{}, io.ErrUnexpectedEOF
	}
	return Tag{Group: le.Uint16(b[:]), Element: le.Uint16(b[2:])}, nil
}

func (d *decoder) u32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return le.Uint32(b[:]), nil
}

func (d *decoder) sequence(length uint32, explicitVR bool) ([]*Dataset, error) {
	src := d
	bounded := length != undefinedLength
	if bounded {
		buf := make([]byte, length)
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return nil, fmt.Errorf("reading sequence: %w", err)
		}
		src = d.sub(bytes.NewReader(buf))
	} else if explicitVR != d.explicitVR {
		src = d.sub(d.r)
	}
	src.explicitVR = explicitVR

	items := []*Dataset{}
	for {
		t, err := src.tag()
		if err == io.EOF && bounded {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("sequence item: %w", err)
		}
		n, err := src.u32()
		if err != nil {
			return nil, err
		}
		if t == tag.SequenceDelimitationItem {
			return items, nil
		}
		if t != tag.Item {
			return nil, fmt.Errorf("expected item, got %v", t)
		}
		item := &Dataset{Elements: map[Tag]*Element{}}
		if n == undefinedLength {
			err = src.elements(item, true)
		} else {
			buf := make([]byte, n)
			if _, err = io.ReadFull(src.r, buf); err == nil {
				err = src.sub(bytes.NewReader(buf)).elements(item, false)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", len(items), err)
		}
		items = append(items, item)
	}
}

// fragments reads encapsulated pixel data: the offset table item, then one
// fragment per frame up to the sequence delimiter
func (d *decoder) fragments() (*PixelData, error) {
	pd := &PixelData{IsEncapsulated: true}
	for first := true; ; first = false {
		t, err := d.tag()
		if err != nil {
			return nil, err
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		if t == tag.SequenceDelimitationItem && !first {
			return pd, nil
		}
		if t != tag.Item {
			return nil, fmt.Errorf("expected fragment item, got %v", t)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return nil, err
		}
		if first {
			for i := 0; i+4 <= len(buf); i += 4 {
				pd.Offsets = append(pd.Offsets, le.Uint32(buf[i:]))
			}
			continue
		}
		pd.Frames = append(pd.Frames, Frame{CompressedData: buf})
	}
}

// longLength VRs carry a 4 byte length after 2 reserved bytes
func longLength(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OV", "OW", "SQ", "SV", "UC", "UR", "UT", "UN", "UV":
		return true
	}
	return false
}

// words decodes every size byte word of data with conv
func words[T any](data []byte, size int, conv func([]byte) T) []T {
	out := make([]T, len(data)/size)
	for i := range out {
		out[i] = conv(data[i*size:])
	}
	return out
}

// scalarOr returns the single value of vs, or vs itself when there are
// several
func scalarOr[T any](vs []T) any {
	if len(vs) == 1 {
		return vs[0]
	}
	return vs
}

func f32(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) }
func f64(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }

// decodeValue types a raw value by VR. Text is trimmed of trailing pad
// bytes; OB, OW, UN and unknown VRs stay raw.
func decodeValue(vr string, data []byte) any {
	switch vr {
	case "AE", "AS", "CS", "DA", "DS", "DT", "IS", "LO", "LT", "PN", "SH", "ST", "TM", "UC", "UI", "UR", "UT":
		return string(bytes.TrimRight(data, "\x00 "))
	case "US":
		return scalarOr(words(data, 2, le.Uint16))
	case "UL":
		return scalarOr(words(data, 4, le.Uint32))
	case "SS":
		vs := words(data, 2, func(b []byte) int { return int(int16(le.Uint16(b))) })
		if len(vs) == 1 {
			return int16(vs[0])
		}
		return vs
	case "SL":
		vs := words(data, 4, func(b []byte) int { return int(int32(le.Uint32(b))) })
		if len(vs) == 1 {
			return int32(vs[0])
		}
		return vs
	case "FL":
		return scalarOr(words(data, 4, f32))
	case "OF":
		return words(data, 4, f32)
	case "FD":
		return scalarOr(words(data, 8, f64))
	case "OD":
		return words(data, 8, f64)
	}
	return data
}
