package dicom

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
)

// pixelData returns the frames of ds, splitting native pixel data as the
// reader leaves it into per-frame words
func (ds *Dataset) pixelData() (*PixelData, error) {
	elem := ds.Get(tag.PixelData)
	if elem == nil {
		return nil, fmt.Errorf("no pixel data")
	}
	if pd, ok := elem.Value.(*PixelData); ok {
		return pd, nil
	}
	rows, cols, n := GetRows(ds), GetColumns(ds), GetNumberOfFrames(ds)
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("pixel data without dimensions %dx%d", cols, rows)
	}
	size := rows * cols
	pd := &PixelData{Frames: make([]Frame, n)}

	switch v := elem.Value.(type) {
	case []uint16:
		if len(v) < n*size {
			return nil, fmt.Errorf("pixel data truncated: %d of %d words", len(v), n*size)
		}
		for i := range pd.Frames {
			pd.Frames[i].Data = append([]uint16(nil), v[i*size:(i+1)*size]...)
		}
	case []byte:
		bits := GetBitsAllocated(ds)
		if bits == 1 {
			frames, err := UnpackBits(v, rows, cols, n)
			if err != nil {
				return nil, err
			}
			for i, f := range frames {
				pd.Frames[i].Data = make([]uint16, len(f))
				for j, b := range f {
					pd.Frames[i].Data[j] = uint16(b)
				}
			}
			return pd, nil
		}
		step := max((bits+7)/8, 1)
		if len(v) < n*size*step {
			return nil, fmt.Errorf("pixel data truncated: %d of %d bytes", len(v), n*size*step)
		}
		for i := range pd.Frames {
			raw := v[i*size*step:]
			words := make([]uint16, size)
			for j := range words {
				if step == 2 {
					words[j] = binary.LittleEndian.Uint16(raw[2*j:])
				} else {
					words[j] = uint16(raw[j])
				}
			}
			pd.Frames[i].Data = words
		}
	default:
		return nil, fmt.Errorf("pixel data of type %T", elem.Value)
	}
	return pd, nil
}

// DecodeFrames returns the stored words of every frame. Native 1, 8 and 16
// bit data and RLE Lossless are supported.
func DecodeFrames(ds *Dataset) ([][]uint16, error) {
	pd, err := ds.pixelData()
	if err != nil {
		return nil, err
	}
	rows, cols := GetRows(ds), GetColumns(ds)
	ts := GetTransferSyntax(ds)
	out := make([][]uint16, len(pd.Frames))
	for i, f := range pd.Frames {
		if !pd.IsEncapsulated {
			out[i] = make([]uint16, rows*cols)
			copy(out[i], f.Data)
			continue
		}
		if out[i], err = decodeFrame(f.CompressedData, rows, cols, ts); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return out, nil
}

func decodeFrame(data []byte, rows, cols int, ts TransferSyntax) ([]uint16, error) {
	codec := CodecByTransferSyntax(string(ts))
	if codec == nil {
		return nil, fmt.Errorf("no decoder for %s", ts.Name())
	}
	img, err := codec.Decode(data, cols, rows)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, rows*cols)
	switch img := img.(type) {
	case *image.Gray16:
		for i := range out {
			out[i] = binary.BigEndian.Uint16(img.Pix[2*i:])
		}
	case *image.Gray:
		for i := range out {
			out[i] = uint16(img.Pix[i])
		}
	default:
		return nil, fmt.Errorf("decoded %T frame", img)
	}
	return out, nil
}

// GetFloatFrames splits Float Pixel Data into frames
func GetFloatFrames(ds *Dataset) ([][]float32, error) {
	elem := ds.Get(tag.FloatPixelData)
	if elem == nil {
		return nil, fmt.Errorf("no float pixel data")
	}
	values, ok := elem.Value.([]float32)
	if !ok {
		if f, single := elem.Value.(float32); single {
			values = []float32{f}
		} else {
			return nil, fmt.Errorf("float pixel data of type %T", elem.Value)
		}
	}
	size, n := GetRows(ds)*GetColumns(ds), GetNumberOfFrames(ds)
	if size == 0 {
		return nil, fmt.Errorf("float pixel data without dimensions")
	}
	if len(values) < size*n {
		return nil, fmt.Errorf("float pixel data truncated: %d values for %d frames", len(values), n)
	}
	frames := make([][]float32, n)
	for i := range frames {
		frames[i] = values[i*size : (i+1)*size]
	}
	return frames, nil
}

func floatsOr(ds *Dataset, t Tag, def ...float64) []float64 {
	if v := ds.Floats(t); len(v) >= len(def) {
		return v[:len(def)]
	}
	return def
}

// GetPixelSpacing is the row then column spacing in mm, 1 when absent
func GetPixelSpacing(ds *Dataset) (row, col float64) {
	v := floatsOr(ds, tag.PixelSpacing, 1, 1)
	return v[0], v[1]
}

// GetSliceThickness is 1 when absent or not positive
func GetSliceThickness(ds *Dataset) float64 {
	if v := floatsOr(ds, tag.SliceThickness, 1); v[0] > 0 {
		return v[0]
	}
	return 1
}

func GetImagePositionPatient(ds *Dataset) []float64 {
	return floatsOr(ds, tag.ImagePositionPatient, 0, 0, 0)
}

// GetImageOrientationPatient defaults to axial
func GetImageOrientationPatient(ds *Dataset) []float64 {
	return floatsOr(ds, tag.ImageOrientationPatient, 1, 0, 0, 0, 1, 0)
}

// GetRescale defaults to the identity
func GetRescale(ds *Dataset) (intercept, slope float64) {
	return floatsOr(ds, tag.RescaleIntercept, 0)[0], floatsOr(ds, tag.RescaleSlope, 1)[0]
}
