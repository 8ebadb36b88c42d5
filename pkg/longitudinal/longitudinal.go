// Package longitudinal groups the measurement reports of one patient's
// studies into a single loadable.
package longitudinal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicom/tag"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/sr"
)

// PluginName identifies longitudinal loadables
const PluginName = "DICOMLongitudinalTID1500"

// Confidence is above that of a single report
const Confidence = 0.96

// Prefix starts the name of every longitudinal loadable
const Prefix = "Longitudinal"

// Report is one TID 1500 report of the group
type Report struct {
	Path             string
	SOPInstanceUID   string
	StudyInstanceUID string
	// When is SeriesDate+SeriesTime, else StudyDate+StudyTime, else empty
	When string
}

// Plugin examines reports for siblings in the patient's other studies and
// loads each member through the SR plugin
type Plugin struct {
	Env *plugin.Env
	SR  *sr.Plugin
}

// New returns a longitudinal plugin over env
func New(env *plugin.Env) *Plugin {
	return &Plugin{Env: env, SR: sr.New(env)}
}

func (p *Plugin) Name() string { return PluginName }

// Examine offers one loadable per distinct group of reports spanning more
// than one study
func (p *Plugin) Examine(ctx context.Context, fileLists [][]string) ([]*plugin.Loadable, error) {
	if p.Env.DB == nil {
		return nil, nil
	}
	var out []*plugin.Loadable
	seen := map[string]bool{}
	for _, files := range fileLists {
		for _, f := range files {
			ds, err := dicom.ReadFile(f, dicom.SkipPixelData())
			if err != nil || !sr.IsTID1500(ds) {
				continue
			}
			reports := append([]Report{fromDataset(f, ds)}, p.Siblings(ctx, ds)...)
			if len(reports) < 2 {
				continue
			}
			Sort(reports)
			key := groupKey(reports)
			if seen[key] {
				continue
			}
			seen[key] = true

			name := ds.Text(tag.SeriesDescription)
			if name == "" {
				name = sr.DefaultName
			}
			l := &plugin.Loadable{
				Plugin:     PluginName,
				Name:       Prefix + " " + name,
				Tooltip:    fmt.Sprintf("%d reports of patient %s", len(reports), ds.Text(tag.PatientID)),
				Confidence: Confidence,
				Selected:   true,
			}
			for _, r := range reports {
				l.Files = append(l.Files, r.Path)
				l.InstanceUIDs = append(l.InstanceUIDs, r.SOPInstanceUID)
			}
			out = append(out, l)
		}
	}
	return out, nil
}

// Siblings returns the TID 1500 reports of the other studies of the
// patient of ds. A study holding more than one report is logged.
func (p *Plugin) Siblings(ctx context.Context, ds *dicom.Dataset) []Report {
	patient := ds.Text(tag.PatientID)
	study := ds.Text(tag.StudyInstanceUID)
	var out []Report
	for _, other := range p.Env.DB.StudiesForPatient(patient) {
		if other == study {
			continue
		}
		found := p.studyReports(other)
		if len(found) > 1 {
			slog.WarnContext(ctx, "study holds more than one measurement report",
				slog.String("study", other), slog.Int("reports", len(found)))
		}
		out = append(out, found...)
	}
	return out
}

func (p *Plugin) studyReports(study string) []Report {
	var out []Report
	for _, series := range p.Env.DB.SeriesForStudy(study) {
		s, ok := p.Env.DB.Series(series)
		if !ok || s.Modality != "SR" {
			continue
		}
		for _, inst := range p.Env.DB.InstancesForSeries(series) {
			ds, err := dicom.ReadFile(inst.Path, dicom.SkipPixelData())
			if err != nil || !sr.IsTID1500(ds) {
				continue
			}
			out = append(out, fromInstance(inst))
		}
	}
	return out
}

func fromDataset(path string, ds *dicom.Dataset) Report {
	return Report{
		Path:             path,
		SOPInstanceUID:   ds.Text(tag.SOPInstanceUID),
		StudyInstanceUID: ds.Text(tag.StudyInstanceUID),
		When: when(ds.Text(tag.SeriesDate), ds.Text(tag.SeriesTime),
			ds.Text(tag.StudyDate), ds.Text(tag.StudyTime)),
	}
}

func fromInstance(inst dicomdb.Instance) Report {
	return Report{
		Path:             inst.Path,
		SOPInstanceUID:   inst.SOPInstanceUID,
		StudyInstanceUID: inst.StudyInstanceUID,
		When:             when(inst.SeriesDate, inst.SeriesTime, inst.StudyDate, inst.StudyTime),
	}
}

func when(seriesDate, seriesTime, studyDate, studyTime string) string {
	if seriesDate+seriesTime != "" {
		return seriesDate + seriesTime
	}
	return studyDate + studyTime
}

// Sort orders reports by acquisition time, then SOP Instance UID
func Sort(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].When != reports[j].When {
			return reports[i].When < reports[j].When
		}
		return reports[i].SOPInstanceUID < reports[j].SOPInstanceUID
	})
}

func groupKey(reports []Report) string {
	uids := make([]string, len(reports))
	for i, r := range reports {
		uids[i] = r.SOPInstanceUID
	}
	sort.Strings(uids)
	return strings.Join(uids, ",")
}

// Load loads every report of l in time order. Members that fail are
// logged and the first failure returned once all were tried.
func (p *Plugin) Load(ctx context.Context, l *plugin.Loadable) error {
	var first error
	for _, f := range l.Files {
		found, err := p.SR.Examine(ctx, [][]string{{f}})
		if err == nil && len(found) == 0 {
			err = fmt.Errorf("%s is not a measurement report", f)
		}
		if err == nil {
			err = p.SR.Load(ctx, found[0])
		}
		if err != nil {
			slog.WarnContext(ctx, "loading report", slog.String("path", f), slog.Any("error", err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
