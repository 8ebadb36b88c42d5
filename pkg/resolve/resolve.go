// Package resolve discovers the image series and instances a SEG, SR or
// parametric map refers to.
package resolve

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/errs"
)

// Unnamed stands in for an absent FrameOfReferenceUID
const Unnamed = "unnamed"

// References is what an object points at
type References struct {
	// ReferencedSeriesUID is the first ReferencedSeriesSequence entry
	ReferencedSeriesUID string
	// ReferencedInstanceUIDs are the instances of that series known to the
	// database followed by any ReferencedImageSequence entries
	ReferencedInstanceUIDs []string
	// SeriesUIDs is every referenced series, first seen first
	SeriesUIDs []string

	// SR evidence by SOP class
	Segmentations []string
	RWVMs         []string
	Others        []string
}

// SeriesReferencedBy walks ReferencedSeriesSequence, the SR evidence
// sequence and ReferencedImageSequence of ds
func SeriesReferencedBy(ds *dicom.Dataset, db dicomdb.Database) References {
	var refs References
	addSeries := func(uid string) {
		if uid != "" && !slices.Contains(refs.SeriesUIDs, uid) {
			refs.SeriesUIDs = append(refs.SeriesUIDs, uid)
		}
	}

	if item := ds.Item(tag.ReferencedSeriesSequence); item != nil {
		refs.ReferencedSeriesUID = item.Text(tag.SeriesInstanceUID)
		addSeries(refs.ReferencedSeriesUID)
		if db != nil {
			for _, inst := range db.InstancesForSeries(refs.ReferencedSeriesUID) {
				refs.ReferencedInstanceUIDs = append(refs.ReferencedInstanceUIDs, inst.SOPInstanceUID)
			}
		}
	}

	if dicom.IsStructuredReport(ds) {
		for _, ev := range dicom.ParseEvidence(ds) {
			addSeries(ev.SeriesInstanceUID)
			switch ev.SOPClassUID {
			case dicom.SegmentationStorageUID:
				refs.Segmentations = appendUnique(refs.Segmentations, ev.SOPInstanceUID)
			case dicom.RealWorldValueMappingUID:
				refs.RWVMs = appendUnique(refs.RWVMs, ev.SOPInstanceUID)
			default:
				refs.Others = appendUnique(refs.Others, ev.SOPInstanceUID)
			}
		}
	}

	for _, item := range ds.Items(tag.ReferencedImageSequence) {
		if uid := item.Text(tag.ReferencedSOPInstanceUID); uid != "" {
			refs.ReferencedInstanceUIDs = append(refs.ReferencedInstanceUIDs, uid)
		}
	}
	slog.Debug("resolved references",
		slog.String("series", refs.ReferencedSeriesUID),
		slog.Int("instances", len(refs.ReferencedInstanceUIDs)),
		slog.Int("segmentations", len(refs.Segmentations)),
		slog.Int("rwvms", len(refs.RWVMs)))
	return refs
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// FrameOfReferenceUID returns the dataset's FrameOfReferenceUID or Unnamed
func FrameOfReferenceUID(ds *dicom.Dataset) string {
	if uid := ds.Text(tag.FrameOfReferenceUID); uid != "" {
		return uid
	}
	return Unnamed
}

// SeriesByFrameOfReference returns every image series of a study whose
// first instance is in one of the frames of reference. SR and SEG series
// are skipped.
func SeriesByFrameOfReference(db dicomdb.Database, studyUID string, frameOfReferenceUIDs []string) ([]string, error) {
	var out []string
	for _, uid := range db.SeriesForStudy(studyUID) {
		s, ok := db.Series(uid)
		if !ok || s.Modality == "SR" || s.Modality == "SEG" {
			continue
		}
		if slices.Contains(frameOfReferenceUIDs, s.FrameOfReferenceUID) {
			out = append(out, uid)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("study %s: %w", studyUID, errs.ErrReferencedSeriesNotInDatabase)
	}
	return out, nil
}
