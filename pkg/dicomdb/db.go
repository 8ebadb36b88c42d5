// Package dicomdb is the local DICOM database the codecs query: an
// in-memory index of instance header attributes keyed by patient, study,
// series and instance.
package dicomdb

import (
	"sort"
	"sync"
)

// Instance holds the indexed header attributes of one file
type Instance struct {
	Path string

	PatientID   string
	PatientName string

	StudyInstanceUID string
	StudyDate        string
	StudyTime        string

	SeriesInstanceUID string
	SeriesNumber      int
	SeriesDescription string
	SeriesDate        string
	SeriesTime        string
	Modality          string

	SOPClassUID    string
	SOPInstanceUID string
	InstanceNumber int

	FrameOfReferenceUID     string
	ImagePositionPatient    []float64
	ImageOrientationPatient []float64
	PixelSpacing            []float64
}

// Series summarises a series from its first instance
type Series struct {
	SeriesInstanceUID   string
	StudyInstanceUID    string
	PatientID           string
	Modality            string
	SeriesNumber        int
	SeriesDescription   string
	SeriesDate          string
	SeriesTime          string
	FrameOfReferenceUID string
	Instances           int
}

// Database is the read side used by the codecs
type Database interface {
	Instance(sopInstanceUID string) (Instance, bool)
	FileForInstance(sopInstanceUID string) string
	InstancesForSeries(seriesInstanceUID string) []Instance
	FilesForSeries(seriesInstanceUID string) []string
	Series(seriesInstanceUID string) (Series, bool)
	SeriesForStudy(studyInstanceUID string) []string
	StudiesForPatient(patientID string) []string
}

// Index is an in-memory Database safe for concurrent use
type Index struct {
	mu        sync.RWMutex
	instances map[string]Instance
	series    map[string][]string // series -> SOP instance UIDs
	studies   map[string][]string // study -> series
	patients  map[string][]string // patient -> studies
}

// NewIndex returns an empty index
func NewIndex() *Index {
	return &Index{
		instances: map[string]Instance{},
		series:    map[string][]string{},
		studies:   map[string][]string{},
		patients:  map[string][]string{},
	}
}

// Add indexes inst, replacing an instance with the same SOPInstanceUID
func (x *Index) Add(inst Instance) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.instances[inst.SOPInstanceUID]; !ok {
		x.series[inst.SeriesInstanceUID] = append(x.series[inst.SeriesInstanceUID], inst.SOPInstanceUID)
		x.studies[inst.StudyInstanceUID] = appendUnique(x.studies[inst.StudyInstanceUID], inst.SeriesInstanceUID)
		x.patients[inst.PatientID] = appendUnique(x.patients[inst.PatientID], inst.StudyInstanceUID)
	}
	x.instances[inst.SOPInstanceUID] = inst
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// Len returns the number of instances
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.instances)
}

// Instance returns the record of one SOP instance
func (x *Index) Instance(uid string) (Instance, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	inst, ok := x.instances[uid]
	return inst, ok
}

// FileForInstance returns the path of an instance or ""
func (x *Index) FileForInstance(uid string) string {
	inst, _ := x.Instance(uid)
	return inst.Path
}

// HasInstances reports whether every uid is indexed
func (x *Index) HasInstances(uids ...string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, uid := range uids {
		if _, ok := x.instances[uid]; !ok {
			return false
		}
	}
	return true
}

// InstancesForSeries returns the instances of a series ordered by
// InstanceNumber then path
func (x *Index) InstancesForSeries(series string) []Instance {
	x.mu.RLock()
	out := make([]Instance, 0, len(x.series[series]))
	for _, uid := range x.series[series] {
		out = append(out, x.instances[uid])
	}
	x.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].InstanceNumber != out[j].InstanceNumber {
			return out[i].InstanceNumber < out[j].InstanceNumber
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// FilesForSeries returns the paths of a series in instance order
func (x *Index) FilesForSeries(series string) []string {
	insts := x.InstancesForSeries(series)
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.Path
	}
	return out
}

// Series summarises one series
func (x *Index) Series(uid string) (Series, bool) {
	insts := x.InstancesForSeries(uid)
	if len(insts) == 0 {
		return Series{}, false
	}
	first := insts[0]
	return Series{
		SeriesInstanceUID:   uid,
		StudyInstanceUID:    first.StudyInstanceUID,
		PatientID:           first.PatientID,
		Modality:            first.Modality,
		SeriesNumber:        first.SeriesNumber,
		SeriesDescription:   first.SeriesDescription,
		SeriesDate:          first.SeriesDate,
		SeriesTime:          first.SeriesTime,
		FrameOfReferenceUID: first.FrameOfReferenceUID,
		Instances:           len(insts),
	}, true
}

// SeriesForStudy returns the series of a study ordered by SeriesNumber
func (x *Index) SeriesForStudy(study string) []string {
	x.mu.RLock()
	uids := append([]string(nil), x.studies[study]...)
	x.mu.RUnlock()
	x.sortSeries(uids)
	return uids
}

func (x *Index) sortSeries(uids []string) {
	num := make(map[string]int, len(uids))
	for _, uid := range uids {
		s, _ := x.Series(uid)
		num[uid] = s.SeriesNumber
	}
	sort.SliceStable(uids, func(i, j int) bool {
		if num[uids[i]] != num[uids[j]] {
			return num[uids[i]] < num[uids[j]]
		}
		return uids[i] < uids[j]
	})
}

// StudiesForPatient returns the studies of a patient ordered by date
func (x *Index) StudiesForPatient(patient string) []string {
	x.mu.RLock()
	uids := append([]string(nil), x.patients[patient]...)
	when := make(map[string]string, len(uids))
	for _, study := range uids {
		for _, series := range x.studies[study] {
			if sops := x.series[series]; len(sops) > 0 {
				inst := x.instances[sops[0]]
				when[study] = inst.StudyDate + inst.StudyTime
				break
			}
		}
	}
	x.mu.RUnlock()
	sort.SliceStable(uids, func(i, j int) bool {
		if when[uids[i]] != when[uids[j]] {
			return when[uids[i]] < when[uids[j]]
		}
		return uids[i] < uids[j]
	})
	return uids
}

// Patients returns every indexed PatientID
func (x *Index) Patients() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.patients))
	for p := range x.patients {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AllSeries lists every series grouped by patient and study
func (x *Index) AllSeries() []Series {
	var out []Series
	for _, p := range x.Patients() {
		for _, st := range x.StudiesForPatient(p) {
			for _, se := range x.SeriesForStudy(st) {
				if s, ok := x.Series(se); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
