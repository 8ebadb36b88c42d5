// Package errs defines the failure kinds reported by the SEG, SR, PM and M3D
// codecs. Sentinels are matched with errors.Is, detail types with errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAttribute              = errors.New("missing required attribute")
	ErrInvalidTerminology            = errors.New("invalid terminology")
	ErrInvalidAlgorithmType          = errors.New("invalid segment algorithm type")
	ErrMissingAlgorithmName          = errors.New("missing segment algorithm name")
	ErrEmptySegmentsFound            = errors.New("empty segments found")
	ErrNoNonEmptySegmentsFound       = errors.New("no non-empty segments found")
	ErrReferencedSeriesNotInDatabase = errors.New("no referenced series found in the DICOM database")
	ErrExternalToolFailed            = errors.New("external tool failed")
	ErrDescriptorMismatch            = errors.New("descriptor mismatch")
)

// AttributeError names a descriptor key that is absent or malformed
type AttributeError struct {
	Key string
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingAttribute, e.Key)
}

func (e *AttributeError) Unwrap() error { return ErrMissingAttribute }

// ToolError carries the final status and stderr of an encoder/decoder run
type ToolError struct {
	Tool   string
	Status string
	Stderr string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %s finished with status %s", ErrExternalToolFailed, e.Tool, e.Status)
	}
	return fmt.Sprintf("%s: %s finished with status %s: %s", ErrExternalToolFailed, e.Tool, e.Status, e.Stderr)
}

func (e *ToolError) Unwrap() error { return ErrExternalToolFailed }

// MismatchError reports label map files versus meta.json segment blocks
type MismatchError struct {
	Files       int
	Descriptors int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d label files but %d segment descriptors", ErrDescriptorMismatch, e.Files, e.Descriptors)
}

func (e *MismatchError) Unwrap() error { return ErrDescriptorMismatch }

// SegmentError attaches a segment to a validation failure
type SegmentError struct {
	SegmentID string
	Err       error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %q: %v", e.SegmentID, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// EmptySegmentsError lists the segments that have no voxels set
type EmptySegmentsError struct {
	SegmentIDs []string
}

func (e *EmptySegmentsError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEmptySegmentsFound, e.SegmentIDs)
}

func (e *EmptySegmentsError) Unwrap() error { return ErrEmptySegmentsFound }

// Message renders the short sentence shown to a user for err
func Message(err error) string {
	var (
		attr *AttributeError
		tool *ToolError
		mm   *MismatchError
		seg  *SegmentError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &attr):
		return fmt.Sprintf("The required attribute %s is missing.", attr.Key)
	case errors.As(err, &tool):
		if tool.Stderr != "" {
			return fmt.Sprintf("%s failed: %s", tool.Tool, tool.Stderr)
		}
		return fmt.Sprintf("%s failed with status %s.", tool.Tool, tool.Status)
	case errors.As(err, &mm):
		return fmt.Sprintf("Found %d label files but %d segment descriptions.", mm.Files, mm.Descriptors)
	case errors.Is(err, ErrEmptySegmentsFound):
		return "Empty segments found. Do you want to skip them?"
	case errors.Is(err, ErrNoNonEmptySegmentsFound):
		return "No non-empty segments found."
	case errors.Is(err, ErrReferencedSeriesNotInDatabase):
		return "No referenced series found in the DICOM database."
	case errors.As(err, &seg) && errors.Is(err, ErrInvalidTerminology):
		return fmt.Sprintf("Segment %s has no valid category and type.", seg.SegmentID)
	case errors.As(err, &seg) && errors.Is(err, ErrInvalidAlgorithmType):
		return fmt.Sprintf("Segment %s has an invalid algorithm type.", seg.SegmentID)
	case errors.As(err, &seg) && errors.Is(err, ErrMissingAlgorithmName):
		return fmt.Sprintf("Segment %s needs an algorithm name.", seg.SegmentID)
	default:
		return err.Error()
	}
}
