package dicom

import (
	"image"
	"io"

	"github.com/jpfielding/qreport.go/pkg/compress/rle"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
)

// Codec compresses and decompresses single frames of encapsulated pixel data
type Codec interface {
	Encode(w io.Writer, img image.Image) error
	// Decode needs the frame size since RLE frames do not carry it
	Decode(data []byte, width, height int) (image.Image, error)
	Name() string
	TransferSyntaxUID() string
}

type rleCodec struct{}

func (rleCodec) Encode(w io.Writer, img image.Image) error { return rle.Encode(w, img) }

func (rleCodec) Decode(data []byte, width, height int) (image.Image, error) {
	return rle.Decode(data, width, height)
}

func (rleCodec) Name() string { return "rle" }

func (rleCodec) TransferSyntaxUID() string { return string(transfer.RLELossless) }

// CodecRLE writes RLE Lossless frames
var CodecRLE Codec = rleCodec{}

// CodecByTransferSyntax returns the codec decoding ts or nil
func CodecByTransferSyntax(ts string) Codec {
	if ts == CodecRLE.TransferSyntaxUID() {
		return CodecRLE
	}
	return nil
}
