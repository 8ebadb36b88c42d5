package dicom

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_NestedSequences(t *testing.T) {
	inner := MustDataset(
		WithElement(tag.ReferencedSOPClassUID, CTImageStorageUID),
		WithElement(tag.ReferencedSOPInstanceUID, "1.2.3.4"),
	)
	series := MustDataset(
		WithElement(tag.SeriesInstanceUID, "1.2.3"),
		WithSequence(tag.ReferencedInstanceSequence, inner),
	)
	ds := MustDataset(
		WithFileMeta(SegmentationStorageUID, "1.2.3.99", string(transfer.ExplicitVRLittleEndian)),
		WithElement(tag.SOPClassUID, SegmentationStorageUID),
		WithElement(tag.SOPInstanceUID, "1.2.3.99"),
		WithElement(tag.PatientName, "Doe^Jane"),
		WithElement(tag.Rows, uint16(3)),
		WithElement(tag.ImagePositionPatient, "-1.5\\2\\3"),
		WithSequence(tag.ReferencedSeriesSequence, series),
		WithSequence(tag.SegmentSequence),
		WithElement(tag.GraphicData, []float32{1.5, 2.5}),
	)

	var buf bytes.Buffer
	_, err := Write(&buf, ds)
	require.NoError(t, err)

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Doe^Jane", got.Text(tag.PatientName))
	assert.Equal(t, transfer.ExplicitVRLittleEndian, GetTransferSyntax(got))
	rows, ok := got.Int(tag.Rows)
	require.True(t, ok)
	assert.Equal(t, 3, rows)
	assert.Equal(t, []float64{-1.5, 2, 3}, got.Floats(tag.ImagePositionPatient))
	assert.Equal(t, []float64{1.5, 2.5}, got.Floats(tag.GraphicData))

	ser := got.Item(tag.ReferencedSeriesSequence)
	require.NotNil(t, ser)
	assert.Equal(t, "1.2.3", ser.Text(tag.SeriesInstanceUID))
	ref := ser.Item(tag.ReferencedInstanceSequence)
	require.NotNil(t, ref)
	assert.Equal(t, "1.2.3.4", ref.Text(tag.ReferencedSOPInstanceUID))
	assert.True(t, HasElement(got, tag.SegmentSequence))
	assert.Empty(t, got.Items(tag.SegmentSequence))
}

func TestWrite_GroupLength(t *testing.T) {
	ds := MustDataset(WithFileMeta(CTImageStorageUID, "1.2", string(transfer.ExplicitVRLittleEndian)))
	var buf bytes.Buffer
	_, err := Write(&buf, ds)
	require.NoError(t, err)

	b := buf.Bytes()
	require.Greater(t, len(b), 144)
	assert.Equal(t, "DICM", string(b[128:132]))
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 'U', 'L', 0x04, 0x00}, b[132:140])
	groupLen := binary.LittleEndian.Uint32(b[140:144])
	assert.Equal(t, len(b)-144, int(groupLen))
}

func TestWrite_OddStringsArePadded(t *testing.T) {
	ds := MustDataset(
		WithFileMeta(CTImageStorageUID, "1.2", string(transfer.ExplicitVRLittleEndian)),
		WithElement(tag.SOPInstanceUID, "1.2.345"),
		WithElement(tag.PatientID, "ABC"),
	)
	var buf bytes.Buffer
	_, err := Write(&buf, ds)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "1.2.345\x00")
	assert.Contains(t, buf.String(), "ABC ")

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "ABC", got.Text(tag.PatientID))
	assert.Equal(t, "1.2.345", got.Text(tag.SOPInstanceUID))
}

// writeUndefinedLengthSQ appends an explicit VR SQ with undefined length
// holding one undefined length item
func writeUndefinedLengthSQ(buf *bytes.Buffer, t Tag, item []byte) {
	le := binary.LittleEndian
	_ = binary.Write(buf, le, t.Group)
	_ = binary.Write(buf, le, t.Element)
	buf.WriteString("SQ")
	buf.Write([]byte{0, 0})
	_ = binary.Write(buf, le, uint32(undefinedLength))

	_ = binary.Write(buf, le, tag.Item.Group)
	_ = binary.Write(buf, le, tag.Item.Element)
	_ = binary.Write(buf, le, uint32(undefinedLength))
	buf.Write(item)
	_ = binary.Write(buf, le, tag.ItemDelimitationItem.Group)
	_ = binary.Write(buf, le, tag.ItemDelimitationItem.Element)
	_ = binary.Write(buf, le, uint32(0))

	_ = binary.Write(buf, le, tag.SequenceDelimitationItem.Group)
	_ = binary.Write(buf, le, tag.SequenceDelimitationItem.Element)
	_ = binary.Write(buf, le, uint32(0))
}

func explicitElement(t Tag, vrs string, value string) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, t.Group)
	_ = binary.Write(&buf, le, t.Element)
	buf.WriteString(vrs)
	_ = binary.Write(&buf, le, uint16(len(value)))
	buf.WriteString(value)
	return buf.Bytes()
}

func TestRead_UndefinedLengthSequence(t *testing.T) {
	meta := MustDataset(WithFileMeta(ComprehensiveSRStorageUID, "1.2", string(transfer.ExplicitVRLittleEndian)))
	var buf bytes.Buffer
	_, err := Write(&buf, meta)
	require.NoError(t, err)

	buf.Write(explicitElement(tag.Modality, "CS", "SR"))
	writeUndefinedLengthSQ(&buf, tag.ConceptNameCodeSequence,
		append(explicitElement(tag.CodeValue, "SH", "126000"), explicitElement(tag.CodingSchemeDesignator, "SH", "DCM ")...))
	buf.Write(explicitElement(tag.ValueType, "CS", "CONTAINER "))

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "SR", got.Text(tag.Modality))
	assert.Equal(t, "CONTAINER", got.Text(tag.ValueType))
	code := ParseCode(got.Item(tag.ConceptNameCodeSequence))
	assert.Equal(t, "126000", code.Value)
	assert.Equal(t, "DCM", code.Scheme)
}

func TestRead_ImplicitVR(t *testing.T) {
	meta := MustDataset(WithFileMeta(CTImageStorageUID, "1.2", string(transfer.ImplicitVRLittleEndian)))
	var buf bytes.Buffer
	_, err := Write(&buf, meta)
	require.NoError(t, err)

	le := binary.LittleEndian
	put := func(t Tag, value []byte) {
		_ = binary.Write(&buf, le, t.Group)
		_ = binary.Write(&buf, le, t.Element)
		_ = binary.Write(&buf, le, uint32(len(value)))
		buf.Write(value)
	}
	put(tag.Modality, []byte("CT"))
	rows := make([]byte, 2)
	le.PutUint16(rows, 512)
	put(tag.Rows, rows)

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "CT", got.Text(tag.Modality))
	r, ok := got.Int(tag.Rows)
	require.True(t, ok)
	assert.Equal(t, 512, r)
}

func TestRead_Deflated(t *testing.T) {
	meta := MustDataset(WithFileMeta(ComprehensiveSRStorageUID, "1.2", string(transfer.DeflatedExplicitVR)))
	var buf bytes.Buffer
	_, err := Write(&buf, meta)
	require.NoError(t, err)

	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(explicitElement(tag.Modality, "CS", "SR"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "SR", got.Text(tag.Modality))
}

func TestRead_RejectsBigEndian(t *testing.T) {
	meta := MustDataset(WithFileMeta(CTImageStorageUID, "1.2", string(transfer.ExplicitVRBigEndian)))
	var buf bytes.Buffer
	_, err := Write(&buf, meta)
	require.NoError(t, err)
	_, err = Parse(&buf)
	assert.Error(t, err)
}

func TestRead_SkipPixelData(t *testing.T) {
	ds := MustDataset(
		WithFileMeta(SegmentationStorageUID, "1.2", string(transfer.ExplicitVRLittleEndian)),
		WithElement(tag.Rows, uint16(2)),
		WithElement(tag.Columns, uint16(2)),
		WithBitPackedFrames([][]uint8{{1, 0, 0, 1}}),
	)
	var buf bytes.Buffer
	_, err := Write(&buf, ds)
	require.NoError(t, err)

	got, err := Parse(bytes.NewReader(buf.Bytes()), SkipPixelData())
	require.NoError(t, err)
	assert.False(t, HasElement(got, tag.PixelData))
	assert.Equal(t, 2, GetRows(got))
}

func TestPackBits_RoundTrip(t *testing.T) {
	// 3x3 frames: 18 bits span frame boundaries inside a byte
	frames := [][]uint8{
		{1, 0, 0, 0, 1, 0, 0, 0, 1},
		{0, 1, 0, 1, 1, 1, 0, 1, 0},
	}
	packed := PackBits(frames)
	assert.Len(t, packed, 4)
	assert.Equal(t, byte(0b00010001), packed[0])

	got, err := UnpackBits(packed, 3, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, frames, got)

	_, err = UnpackBits(packed, 3, 3, 4)
	assert.Error(t, err)
}

func TestDecodeFrames_BitPacked(t *testing.T) {
	frames := [][]uint8{{1, 1, 0, 0}, {0, 0, 1, 1}}
	ds := MustDataset(
		WithElement(tag.Rows, uint16(2)),
		WithElement(tag.Columns, uint16(2)),
		WithElement(tag.NumberOfFrames, "2"),
		WithElement(tag.BitsAllocated, uint16(1)),
		WithBitPackedFrames(frames),
	)
	decoded, err := DecodeFrames(ds)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, []uint16{1, 1, 0, 0}, decoded[0])
	assert.Equal(t, []uint16{0, 0, 1, 1}, decoded[1])
}

func TestGetFloatFrames(t *testing.T) {
	ds := MustDataset(
		WithElement(tag.Rows, uint16(1)),
		WithElement(tag.Columns, uint16(2)),
		WithElement(tag.NumberOfFrames, "2"),
		WithFloatPixelData([]float32{0.5, 1.5, 2.5, 3.5}),
	)
	frames, err := GetFloatFrames(ds)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 1.5}, {2.5, 3.5}}, frames)
}

func TestGenerateUID(t *testing.T) {
	a, b := NewUID(), NewUID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^2\.25\.[0-9]+$`, a)
	assert.LessOrEqual(t, len(a), 64)

	long := GenerateUID("1.2.826.0.1.3680043.8.498.12345678901234567890")
	assert.LessOrEqual(t, len(long), 64)

	h1, err := HashUID("seed")
	require.NoError(t, err)
	h2, err := HashUID("seed")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestDataset_String(t *testing.T) {
	ds := MustDataset(
		WithElement(tag.PatientID, "P1"),
		WithSequence(tag.ConceptNameCodeSequence, CodeDataset(module.NewCode("126000", "DCM", "Imaging Measurement Report"))),
	)
	s := ds.String()
	assert.Contains(t, s, "PatientID")
	assert.Contains(t, s, "Imaging Measurement Report")

	js, err := ds.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(js), "P1")
}
