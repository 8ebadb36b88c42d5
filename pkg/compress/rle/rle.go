// Package rle implements the DICOM RLE Lossless transfer syntax
// (PS3.5 Annex G) for single-sample 8 and 16 bit frames.
package rle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
)

const headerSize = 64

// Encode compresses a grayscale image into one RLE frame. 16 bit images
// are split into a high byte segment followed by a low byte segment.
func Encode(w io.Writer, img image.Image) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	var planes [][]byte
	switch src := img.(type) {
	case *image.Gray:
		plane := make([]byte, 0, width*height)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				plane = append(plane, src.GrayAt(x, y).Y)
			}
		}
		planes = [][]byte{plane}
	case *image.Gray16:
		hi := make([]byte, 0, width*height)
		lo := make([]byte, 0, width*height)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := src.Gray16At(x, y).Y
				hi = append(hi, byte(v>>8))
				lo = append(lo, byte(v))
			}
		}
		planes = [][]byte{hi, lo}
	default:
		return fmt.Errorf("rle: unsupported image type %T", img)
	}

	header := make([]uint32, 16)
	header[0] = uint32(len(planes))
	var body bytes.Buffer
	for i, plane := range planes {
		header[i+1] = uint32(headerSize + body.Len())
		seg := pack(plane)
		if len(seg)%2 != 0 {
			// segments are even length
			seg = append(seg, 0x80)
		}
		body.Write(seg)
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Decode decompresses one RLE frame into *image.Gray (one segment) or
// *image.Gray16 (two segments).
func Decode(data []byte, width, height int) (image.Image, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("rle: frame of %d bytes shorter than header", len(data))
	}
	header := make([]uint32, 16)
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, header); err != nil {
		return nil, err
	}
	n := int(header[0])
	if n < 1 || n > 2 {
		return nil, fmt.Errorf("rle: unsupported segment count %d", n)
	}

	pixels := width * height
	planes := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := int(header[i+1])
		end := len(data)
		if i+1 < n {
			end = int(header[i+2])
		}
		if start < headerSize || start > end || end > len(data) {
			return nil, fmt.Errorf("rle: invalid segment %d offsets %d..%d", i, start, end)
		}
		plane, err := unpack(data[start:end], pixels)
		if err != nil {
			return nil, err
		}
		if len(plane) < pixels {
			return nil, fmt.Errorf("rle: segment %d decoded %d of %d bytes", i, len(plane), pixels)
		}
		planes[i] = plane[:pixels]
	}

	rect := image.Rect(0, 0, width, height)
	if n == 1 {
		img := image.NewGray(rect)
		copy(img.Pix, planes[0])
		return img, nil
	}
	img := image.NewGray16(rect)
	for i := 0; i < pixels; i++ {
		// Gray16.Pix is big endian
		img.Pix[i*2] = planes[0][i]
		img.Pix[i*2+1] = planes[1][i]
	}
	return img, nil
}
