// Package transfer names the transfer syntaxes found on source images and
// written objects
package transfer

// Syntax is a transfer syntax UID
type Syntax string

const (
	ImplicitVRLittleEndian Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    Syntax = "1.2.840.10008.1.2.2"
	DeflatedExplicitVR     Syntax = "1.2.840.10008.1.2.1.99"
	RLELossless            Syntax = "1.2.840.10008.1.2.5"

	// frames in these are carried through undecoded
	JPEGBaseline           Syntax = "1.2.840.10008.1.2.4.50"
	JPEGLosslessFirstOrder Syntax = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless         Syntax = "1.2.840.10008.1.2.4.80"
	JPEG2000Lossless       Syntax = "1.2.840.10008.1.2.4.90"
	JPEG2000               Syntax = "1.2.840.10008.1.2.4.91"
)

var names = map[Syntax]string{
	ImplicitVRLittleEndian: "Implicit VR Little Endian",
	ExplicitVRLittleEndian: "Explicit VR Little Endian",
	ExplicitVRBigEndian:    "Explicit VR Big Endian",
	DeflatedExplicitVR:     "Deflated Explicit VR Little Endian",
	RLELossless:            "RLE Lossless",
	JPEGBaseline:           "JPEG Baseline",
	JPEGLosslessFirstOrder: "JPEG Lossless SV1",
	JPEGLSLossless:         "JPEG-LS Lossless",
	JPEG2000Lossless:       "JPEG 2000 Lossless",
	JPEG2000:               "JPEG 2000",
}

func (s Syntax) IsExplicitVR() bool { return s != ImplicitVRLittleEndian }

func (s Syntax) IsLittleEndian() bool { return s != ExplicitVRBigEndian }

// IsEncapsulated reports whether pixel data is stored as fragments
func (s Syntax) IsEncapsulated() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian, DeflatedExplicitVR:
		return false
	}
	return true
}

// Name is the display name, or the UID when unknown
func (s Syntax) Name() string {
	if n, ok := names[s]; ok {
		return n
	}
	return string(s)
}
