package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/descriptor"
	"github.com/jpfielding/qreport.go/pkg/dicom/module"
	"github.com/jpfielding/qreport.go/pkg/geom"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/provenance"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/seg"
	"github.com/jpfielding/qreport.go/pkg/sr"
	"github.com/jpfielding/qreport.go/pkg/terminology"
	"github.com/spf13/cobra"
)

var palette = [][3]float64{
	{0.5, 0.68, 0.5},
	{0.94, 0.84, 0.57},
	{0.69, 0.48, 0.4},
	{0.43, 0.72, 0.82},
	{0.85, 0.4, 0.35},
}

// NewExportCmd writes a SEG and a measurement report from label map NRRDs
// drawn over an indexed series
func NewExportCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export --series UID --label [name=]file.nrrd...",
		Short: "write a SEG and TID 1500 report from label maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			series, _ := f.GetString("series")
			labels, _ := f.GetStringArray("label")
			out, _ := f.GetString("out")
			tool, _ := f.GetString("tool")
			if series == "" || len(labels) == 0 {
				return fmt.Errorf("--series and at least one --label are required")
			}
			entry, err := entryFromFlags(cmd)
			if err != nil {
				return err
			}
			idx, err := a.index(ctx)
			if err != nil {
				return err
			}
			env := a.env(idx)
			if err := loadSource(ctx, env, series); err != nil {
				return err
			}
			vol := scene.NodesOf[*scene.ScalarVolume](env.Scene)[0]

			s, err := a.segmentationFromLabels(vol, labels, entry, tool)
			if err != nil {
				return err
			}
			opts := a.exportOptions()
			opts.SR.Reader, _ = f.GetString("reader")
			if f.Changed("skip-empty") {
				opts.SEG.SkipEmpty, _ = f.GetBool("skip-empty")
			}
			return exportTo(ctx, cmd, env, s, vol, out, opts)
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("series", "", "SeriesInstanceUID of the source image series")
	pf.StringArray("label", nil, "label map NRRD, optionally prefixed with the segment name as name=path")
	pf.StringP("out", "o", "out", "output directory")
	pf.String("tool", provenance.ManualTools[0], "editor tool the labels were drawn with")
	pf.String("reader", "", "person observer, the content creator when empty")
	pf.Bool("skip-empty", false, "drop empty segments instead of failing, defaults to series.skipEmpty")
	pf.String("category", codeFlag(terminology.DefaultCategory), "segmented property category as value,scheme,meaning")
	pf.String("type", codeFlag(terminology.DefaultType), "segmented property type as value,scheme,meaning")
	pf.String("region", "", "anatomic region as value,scheme,meaning")
	return cmd
}

func codeFlag(c module.Code) string {
	return strings.Join([]string{c.Value, c.Scheme, c.Meaning}, ",")
}

func parseCode(s string) (module.Code, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return module.Code{}, fmt.Errorf("code %q is not value,scheme,meaning", s)
	}
	return module.NewCode(parts[0], parts[1], parts[2]), nil
}

func entryFromFlags(cmd *cobra.Command) (string, error) {
	f := cmd.Flags()
	e := terminology.Entry{
		TerminologyContextName: terminology.DefaultTerminologyContext,
		AnatomicContextName:    terminology.DefaultAnatomicContext,
	}
	var err error
	category, _ := f.GetString("category")
	if e.Category, err = parseCode(category); err != nil {
		return "", err
	}
	typ, _ := f.GetString("type")
	if e.Type, err = parseCode(typ); err != nil {
		return "", err
	}
	if region, _ := f.GetString("region"); region != "" {
		c, err := parseCode(region)
		if err != nil {
			return "", err
		}
		e.Region = &c
	}
	return e.String(), e.Validate()
}

// segmentationFromLabels builds one segment per label map over the grid of
// vol. Masks are applied as edits with tool so the provenance tracker sets
// the algorithm tags.
func (a *app) segmentationFromLabels(vol *scene.ScalarVolume, labels []string, entry, tool string) (*scene.Segmentation, error) {
	s := scene.NewSegmentation(vol.Name+" segmentation", vol.Grid, scene.BinaryLabelmap)
	s.SetAttribute(scene.AttrReferencedInstanceUIDs, strings.Join(vol.InstanceUIDs(), " "))
	tracker := a.tracker()
	tracker.Attach(s)
	defer tracker.Detach()

	for i, label := range labels {
		name, path, ok := strings.Cut(label, "=")
		if !ok {
			path = label
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		img, err := nrrd.ReadFile(path)
		if err != nil {
			return nil, err
		}
		mask, err := maskOn(img, s.Grid)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		segment := scene.NewSegment(name, palette[i%len(palette)])
		segment.SetTag(scene.TagTerminologyEntry, entry)
		id, err := s.AddSegment(segment)
		if err != nil {
			return nil, err
		}
		if err := s.SetMask(id, mask, tool); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func maskOn(img *nrrd.Image, g geom.Grid) ([]uint8, error) {
	mask := make([]uint8, g.Len())
	src := img.Grid()
	if src.Equal(g, 1e-6) {
		for i, v := range img.Data {
			if v != 0 {
				mask[i] = 1
			}
		}
		return mask, nil
	}
	idx, err := geom.NearestIndices(src, g)
	if err != nil {
		return nil, err
	}
	for i, j := range idx {
		if j >= 0 && img.Data[j] != 0 {
			mask[i] = 1
		}
	}
	return mask, nil
}

func (a *app) exportOptions() sr.ExportOptions {
	attrs := descriptor.SeriesAttributes{
		ContentCreatorName:                  a.cfg.Series.ContentCreatorName,
		ClinicalTrialSeriesID:               a.cfg.Series.ClinicalTrialSeriesID,
		ClinicalTrialTimePointID:            a.cfg.Series.ClinicalTrialTimePointID,
		ClinicalTrialCoordinatingCenterName: a.cfg.Series.ClinicalTrialCoordinatingCenterName,
	}
	return sr.ExportOptions{
		SEG: seg.WriteOptions{Attributes: attrs, SkipEmpty: a.cfg.Series.SkipEmpty},
		SR: sr.WriteOptions{
			Attributes:  attrs,
			TimePoint:   a.cfg.Series.ClinicalTrialTimePointID,
			VisibleOnly: a.cfg.Statistics.VisibleOnly,
		},
	}
}

func exportTo(ctx context.Context, cmd *cobra.Command, env *plugin.Env, s *scene.Segmentation, vol *scene.ScalarVolume, out string, opts sr.ExportOptions) error {
	segWritten, srWritten, err := sr.Export(ctx, env, s, vol, out, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", segWritten.Path, segWritten.SOPInstanceUID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", srWritten.Path, srWritten.SOPInstanceUID)
	return nil
}
