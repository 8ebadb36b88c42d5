package dicom

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
	"github.com/jpfielding/qreport.go/pkg/dicom/vr"
)

var (
	itemTag      = []byte{0xFE, 0xFF, 0x00, 0xE0}
	seqDelimiter = []byte{0xFE, 0xFF, 0xDD, 0xE0, 0, 0, 0, 0}
)

// WriteFile writes ds to path and returns the bytes written
func WriteFile(path string, ds *Dataset) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := Write(f, ds)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Write encodes ds as Explicit VR Little Endian Part 10. The meta group
// gets a computed group length plus version and transfer syntax defaults.
func Write(w io.Writer, ds *Dataset) (int64, error) {
	meta := &Dataset{Elements: map[Tag]*Element{
		tag.FileMetaInformationVersion: {Tag: tag.FileMetaInformationVersion, VR: "OB", Value: []byte{0, 1}},
		tag.TransferSyntaxUID:          {Tag: tag.TransferSyntaxUID, VR: "UI", Value: string(transfer.ExplicitVRLittleEndian)},
	}}
	body := &Dataset{Elements: map[Tag]*Element{}}
	for t, e := range ds.Elements {
		switch {
		case t == tag.FileMetaInformationGroupLength:
		case t.Group == 0x0002:
			meta.Elements[t] = e
		default:
			body.Elements[t] = e
		}
	}

	var metaBytes bytes.Buffer
	if err := encodeDataset(&metaBytes, meta); err != nil {
		return 0, fmt.Errorf("encoding file meta: %w", err)
	}
	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	if err := encodeElement(&out, &Element{Tag: tag.FileMetaInformationGroupLength, VR: "UL", Value: uint32(metaBytes.Len())}); err != nil {
		return 0, err
	}
	out.Write(metaBytes.Bytes())
	if err := encodeDataset(&out, body); err != nil {
		return 0, err
	}
	return out.WriteTo(w)
}

func encodeDataset(buf *bytes.Buffer, ds *Dataset) error {
	for _, t := range ds.sortedTags() {
		if err := encodeElement(buf, ds.Elements[t]); err != nil {
			return fmt.Errorf("element %v: %w", t, err)
		}
	}
	return nil
}

func encodeElement(buf *bytes.Buffer, e *Element) error {
	vrs := e.VR
	if len(vrs) != 2 {
		slog.Warn("invalid VR, writing UN", slog.String("vr", vrs), slog.Any("tag", e.Tag))
		vrs = "UN"
	}
	value, undefined, err := encodeValue(e.Value, vrs)
	if err != nil {
		return err
	}
	buf.Write(le.AppendUint16(le.AppendUint16(nil, e.Tag.Group), e.Tag.Element))
	buf.WriteString(vrs)
	switch {
	case longLength(vrs):
		n := uint32(len(value))
		if undefined {
			n = undefinedLength
		}
		buf.Write(le.AppendUint32([]byte{0, 0}, n))
	case undefined:
		return fmt.Errorf("undefined length with short VR %s", vrs)
	case len(value) > math.MaxUint16:
		return fmt.Errorf("%d bytes too long for VR %s", len(value), vrs)
	default:
		buf.Write(le.AppendUint16(nil, uint16(len(value))))
	}
	buf.Write(value)
	return nil
}

// pad appends the VR pad byte to odd length values
func pad(b []byte, vrs string) []byte {
	if len(b)%2 == 1 {
		b = append(b, vr.VR(vrs).PadByte())
	}
	return b
}

func toInts[T uint16 | uint32 | int16 | int32 | int](vs ...T) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}
	return out
}

func toFloats[T float32 | float64](vs ...T) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}

// encodeValue renders v for vrs. Sequences and encapsulated pixel data are
// written with undefined length.
func encodeValue(v any, vrs string) ([]byte, bool, error) {
	switch val := v.(type) {
	case nil:
		return nil, false, nil
	case *PixelData:
		if val.IsEncapsulated {
			return encodeFragments(val), true, nil
		}
		var b []byte
		for _, f := range val.Frames {
			for _, p := range f.Data {
				b = le.AppendUint16(b, p)
			}
		}
		return b, false, nil
	case []*Dataset:
		if vrs != "SQ" {
			return nil, false, fmt.Errorf("items for VR %s", vrs)
		}
		b, err := encodeItems(val)
		return b, true, err
	case string:
		return pad([]byte(val), vrs), false, nil
	case []string:
		return pad([]byte(strings.Join(val, `\`)), vrs), false, nil
	case []byte:
		return pad(append([]byte(nil), val...), vrs), false, nil
	case uint16:
		return encodeInts(toInts(val), vrs)
	case []uint16:
		return encodeInts(toInts(val...), vrs)
	case uint32:
		return encodeInts(toInts(val), vrs)
	case []uint32:
		return encodeInts(toInts(val...), vrs)
	case int16:
		return encodeInts(toInts(val), vrs)
	case int32:
		return encodeInts(toInts(val), vrs)
	case int:
		return encodeInts([]int{val}, vrs)
	case []int:
		return encodeInts(val, vrs)
	case float32:
		return encodeFloats(toFloats(val), vrs)
	case []float32:
		return encodeFloats(toFloats(val...), vrs)
	case float64:
		return encodeFloats([]float64{val}, vrs)
	case []float64:
		return encodeFloats(val, vrs)
	}
	return nil, false, fmt.Errorf("cannot encode %T as %s", v, vrs)
}

func encodeInts(vals []int, vrs string) ([]byte, bool, error) {
	var b []byte
	switch vrs {
	case "US", "SS", "OW":
		for _, v := range vals {
			b = le.AppendUint16(b, uint16(v))
		}
	case "UL", "SL", "OL":
		for _, v := range vals {
			b = le.AppendUint32(b, uint32(v))
		}
	case "IS", "DS":
		s := make([]string, len(vals))
		for i, v := range vals {
			s[i] = strconv.Itoa(v)
		}
		b = pad([]byte(strings.Join(s, `\`)), vrs)
	case "FL", "FD", "OF", "OD":
		fs := make([]float64, len(vals))
		for i, v := range vals {
			fs[i] = float64(v)
		}
		return encodeFloats(fs, vrs)
	default:
		return nil, false, fmt.Errorf("integers for VR %s", vrs)
	}
	return b, false, nil
}

func encodeFloats(vals []float64, vrs string) ([]byte, bool, error) {
	var b []byte
	switch vrs {
	case "DS":
		b = pad([]byte(vr.FormatDSList(vals)), vrs)
	case "FD", "OD":
		for _, f := range vals {
			b = le.AppendUint64(b, math.Float64bits(f))
		}
	case "FL", "OF":
		for _, f := range vals {
			b = le.AppendUint32(b, math.Float32bits(float32(f)))
		}
	default:
		return nil, false, fmt.Errorf("floats for VR %s", vrs)
	}
	return b, false, nil
}

// encodeItems writes each item with an explicit length followed by the
// sequence delimiter
func encodeItems(items []*Dataset) ([]byte, error) {
	var buf bytes.Buffer
	for i, item := range items {
		var body bytes.Buffer
		if err := encodeDataset(&body, item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		buf.Write(le.AppendUint32(append([]byte(nil), itemTag...), uint32(body.Len())))
		buf.Write(body.Bytes())
	}
	buf.Write(seqDelimiter)
	return buf.Bytes(), nil
}

// encodeFragments writes the offset table then one even length fragment
// per frame
func encodeFragments(pd *PixelData) []byte {
	b := le.AppendUint32(append([]byte(nil), itemTag...), uint32(4*len(pd.Offsets)))
	for _, off := range pd.Offsets {
		b = le.AppendUint32(b, off)
	}
	for _, f := range pd.Frames {
		data := f.CompressedData
		n := len(data) + len(data)%2
		b = le.AppendUint32(append(b, itemTag...), uint32(n))
		b = append(b, data...)
		if n > len(data) {
			b = append(b, 0)
		}
	}
	return append(b, seqDelimiter...)
}
