package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_UnwrapToSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"attribute", &AttributeError{Key: "ContentCreatorName"}, ErrMissingAttribute},
		{"tool", &ToolError{Tool: "tid1500writer", Status: "CompletedWithErrors"}, ErrExternalToolFailed},
		{"mismatch", &MismatchError{Files: 2, Descriptors: 3}, ErrDescriptorMismatch},
		{"segment", &SegmentError{SegmentID: "s1", Err: ErrInvalidTerminology}, ErrInvalidTerminology},
		{"empty", &EmptySegmentsError{SegmentIDs: []string{"air"}}, ErrEmptySegmentsFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("writing SEG: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "The required attribute ContentCreatorName is missing.",
		Message(fmt.Errorf("x: %w", &AttributeError{Key: "ContentCreatorName"})))
	assert.Equal(t, "itkimage2segimage failed: boom",
		Message(&ToolError{Tool: "itkimage2segimage", Status: "CompletedWithErrors", Stderr: "boom"}))
	assert.Equal(t, "No referenced series found in the DICOM database.",
		Message(ErrReferencedSeriesNotInDatabase))
	assert.Equal(t, "Segment s2 needs an algorithm name.",
		Message(&SegmentError{SegmentID: "s2", Err: ErrMissingAlgorithmName}))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
