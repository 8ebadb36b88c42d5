package dicom

import (
	"errors"
	"testing"

	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceBuilder_Items(t *testing.T) {
	refs := NewSequenceBuilder(tag.ReferencedInstanceSequence)
	for _, uid := range []string{"1.2.3.4.5", "1.2.3.4.6"} {
		refs.AddItem(
			WithElement(tag.ReferencedSOPClassUID, CTImageStorageUID),
			WithElement(tag.ReferencedSOPInstanceUID, uid),
		)
	}
	assert.Equal(t, 2, refs.Len())

	opt, err := refs.Build()
	require.NoError(t, err)
	ds := MustDataset(WithElement(tag.SeriesInstanceUID, "1.2.3"), opt)

	items := ds.Items(tag.ReferencedInstanceSequence)
	require.Len(t, items, 2)
	assert.Equal(t, "1.2.3.4.6", items[1].Text(tag.ReferencedSOPInstanceUID))
	assert.Equal(t, "SQ", ds.Get(tag.ReferencedInstanceSequence).VR)
}

func TestSequenceBuilder_JoinsItemErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := func(*Dataset) error { return boom }
	_, err := NewSequenceBuilder(tag.SegmentSequence).
		AddItem(WithElement(tag.SegmentNumber, uint16(1))).
		AddItem(failing).
		AddItem(failing).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "item 3")
}

func TestSequenceBuilder_Empty(t *testing.T) {
	opt, err := NewSequenceBuilder(tag.SegmentSequence).Build()
	require.NoError(t, err)
	ds := MustDataset(opt)
	assert.NotNil(t, ds.Get(tag.SegmentSequence))
	assert.Empty(t, ds.Items(tag.SegmentSequence))
}
