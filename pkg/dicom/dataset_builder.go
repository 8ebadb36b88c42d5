package dicom

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// file meta implementation identification
const (
	ImplementationClassUID    = "1.2.826.0.1.3680043.8.498.1"
	ImplementationVersionName = "GO_QREPORT"
)

// Option sets elements of a Dataset under construction
type Option func(*Dataset) error

// NewDataset applies opts in order to an empty Dataset
func NewDataset(opts ...Option) (*Dataset, error) {
	ds := &Dataset{Elements: map[Tag]*Element{}}
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// MustDataset panics on error; for option lists that cannot fail
func MustDataset(opts ...Option) *Dataset {
	ds, err := NewDataset(opts...)
	if err != nil {
		panic(err)
	}
	return ds
}

func set(t tag.Tag, vr string, value any) Option {
	return func(ds *Dataset) error {
		ds.Elements[t] = &Element{Tag: t, VR: vr, Value: value}
		return nil
	}
}

// WithElement sets t with its dictionary VR
func WithElement(t tag.Tag, value any) Option {
	return set(t, string(t.VR()), value)
}

// WithSequence sets t to the given items, an empty sequence when none
func WithSequence(t tag.Tag, items ...*Dataset) Option {
	if items == nil {
		items = []*Dataset{}
	}
	return set(t, "SQ", items)
}

// WithFileMeta sets the group 0002 identification of a written object
func WithFileMeta(sopClassUID, sopInstanceUID, transferSyntax string) Option {
	return all(
		WithElement(tag.FileMetaInformationVersion, []byte{0, 1}),
		WithElement(tag.MediaStorageSOPClassUID, sopClassUID),
		WithElement(tag.MediaStorageSOPInstanceUID, sopInstanceUID),
		WithElement(tag.TransferSyntaxUID, transferSyntax),
		WithElement(tag.ImplementationClassUID, ImplementationClassUID),
		WithElement(tag.ImplementationVersionName, ImplementationVersionName),
	)
}

// WithModule sets every element of a module, honoring VR overrides
func WithModule(elements []module.IODElement) Option {
	opts := make([]Option, len(elements))
	for i, el := range elements {
		if el.VR != "" {
			opts[i] = set(el.Tag, el.VR, el.Value)
		} else {
			opts[i] = WithElement(el.Tag, el.Value)
		}
	}
	return all(opts...)
}

func all(opts ...Option) Option {
	return func(ds *Dataset) error {
		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithPixelData stores rows x cols frames of stored words, natively when
// codec is nil and as encapsulated fragments otherwise. Data of 8 bits or
// less is stored a byte per pixel.
func WithPixelData(rows, cols, bitsAllocated int, data []uint16, codec Codec) Option {
	return func(ds *Dataset) error {
		size := rows * cols
		if len(data) == 0 || size == 0 {
			return nil
		}
		n := len(data) / size
		if codec == nil && bitsAllocated <= 8 {
			raw := make([]byte, len(data))
			for i, v := range data {
				raw[i] = uint8(v)
			}
			return set(tag.PixelData, "OB", pad(raw, "OB"))(ds)
		}
		pd := &PixelData{IsEncapsulated: codec != nil, Frames: make([]Frame, n)}
		var offset uint32
		for i := range pd.Frames {
			words := data[i*size : (i+1)*size]
			if codec == nil {
				pd.Frames[i].Data = append([]uint16(nil), words...)
				continue
			}
			frame, err := encodeFrame(codec, words, rows, cols, bitsAllocated)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			pd.Frames[i].CompressedData = frame
			pd.Offsets = append(pd.Offsets, offset)
			offset += uint32(len(frame)) + 8
		}
		vr := "OW"
		if pd.IsEncapsulated {
			vr = "OB"
			slog.Debug("encoded frames", slog.String("codec", codec.Name()), slog.Int("frames", n), slog.Int("bytes", int(offset)))
		}
		return set(tag.PixelData, vr, pd)(ds)
	}
}

func encodeFrame(codec Codec, words []uint16, rows, cols, bits int) ([]byte, error) {
	rect := image.Rect(0, 0, cols, rows)
	var img image.Image
	if bits > 8 {
		g := image.NewGray16(rect)
		for i, v := range words {
			g.Pix[2*i], g.Pix[2*i+1] = byte(v>>8), byte(v)
		}
		img = g
	} else {
		g := image.NewGray(rect)
		for i, v := range words {
			g.Pix[i] = uint8(v)
		}
		img = g
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%s: %w", codec.Name(), err)
	}
	b := buf.Bytes()
	if len(b)%2 == 1 {
		b = append(b, 0)
	}
	return b, nil
}

// WithRawPixelData stores pd as is
func WithRawPixelData(pd *PixelData) Option {
	if pd == nil {
		return all()
	}
	vr := "OB"
	if !pd.IsEncapsulated && len(pd.Frames) > 0 && len(pd.Frames[0].Data) > 0 {
		vr = "OW"
	}
	return set(tag.PixelData, vr, pd)
}

// WithBitPackedFrames stores binary frames, a byte per pixel with non-zero
// set, as 1 bit pixel data
func WithBitPackedFrames(frames [][]uint8) Option {
	return set(tag.PixelData, "OB", PackBits(frames))
}

func WithFloatPixelData(data []float32) Option {
	return set(tag.FloatPixelData, "OF", data)
}

// PackBits concatenates frames into one least significant bit first
// stream with no padding between frames, padded to even length
func PackBits(frames [][]uint8) []byte {
	var out []byte
	bit := 0
	for _, f := range frames {
		for _, v := range f {
			if bit%8 == 0 {
				out = append(out, 0)
			}
			if v != 0 {
				out[bit/8] |= 1 << (bit % 8)
			}
			bit++
		}
	}
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// UnpackBits splits a 1 bit stream into frames of rows*cols values of 0 or 1
func UnpackBits(data []byte, rows, cols, frames int) ([][]uint8, error) {
	size := rows * cols
	if len(data)*8 < size*frames {
		return nil, fmt.Errorf("%d bytes of bit packed data short of %d frames of %dx%d", len(data), frames, cols, rows)
	}
	out := make([][]uint8, frames)
	for f := range out {
		out[f] = make([]uint8, size)
		for i := range out[f] {
			bit := f*size + i
			out[f][i] = data[bit/8] >> (bit % 8) & 1
		}
	}
	return out, nil
}

// WithCopied copies the elements of src listed in tags that it has
func WithCopied(src *Dataset, tags ...tag.Tag) Option {
	return func(ds *Dataset) error {
		for _, t := range tags {
			if e := src.Get(t); e != nil {
				cp := *e
				ds.Elements[t] = &cp
			}
		}
		return nil
	}
}

// PatientStudyTags are copied from source images into derived objects
var PatientStudyTags = []tag.Tag{
	tag.PatientName, tag.PatientID, tag.PatientBirthDate, tag.PatientSex,
	tag.StudyInstanceUID, tag.StudyDate, tag.StudyTime, tag.StudyID,
	tag.AccessionNumber, tag.ReferringPhysicianName, tag.StudyDescription,
}
