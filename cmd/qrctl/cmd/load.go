package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"text/tabwriter"

	"github.com/jpfielding/qreport.go/pkg/dicom"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/nrrd"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/stl"
	"github.com/spf13/cobra"
)

// NewExamineCmd lists what the plugins offer for the given files
func NewExamineCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examine path...",
		Short: "list the loadables offered for DICOM files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expand(args)
			if err != nil {
				return err
			}
			idx, err := a.index(ctx, args...)
			if err != nil {
				return err
			}
			loadables := registry(a.env(idx)).Examine(ctx, [][]string{files})
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLUGIN\tNAME\tCONFIDENCE\tFILES\tSERIES\tWARNING")
			for _, l := range loadables {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\t%s\n", l.Plugin, l.Name, l.Confidence, len(l.Files), l.ReferencedSeriesUID, l.Warning)
			}
			return tw.Flush()
		},
	}
	return cmd
}

// NewLoadCmd loads the best loadables for the given files and writes the
// resulting scene to a directory
func NewLoadCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load path...",
		Short: "load SEG, SR, parametric map and M3D files",
		Long:  "Loads each file with the most confident plugin and writes volumes and labels as NRRD, surfaces as STL, tables as CSV and markups as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			only, _ := cmd.Flags().GetString("plugin")
			files, err := expand(args)
			if err != nil {
				return err
			}
			idx, err := a.index(ctx, args...)
			if err != nil {
				return err
			}
			env := a.env(idx)
			reg := registry(env)

			loaded := map[string]bool{}
			for _, l := range reg.Examine(ctx, [][]string{files}) {
				if only != "" && l.Plugin != only {
					continue
				}
				if !l.Selected || covered(loaded, l.Files) {
					continue
				}
				if uid := sourceSeries(env, l); uid != "" {
					if err := loadSource(ctx, env, uid); err != nil {
						slog.WarnContext(ctx, "source series not loaded", slog.String("series", uid), slog.Any("error", err))
					}
				}
				if err := reg.Load(ctx, l); err != nil {
					return fmt.Errorf("%s: %w", l.Name, err)
				}
				for _, f := range l.Files {
					loaded[f] = true
				}
			}
			return writeScene(ctx, env.Scene, out)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "out", "output directory")
	pf.String("plugin", "", "only load loadables of this plugin")
	return cmd
}

// expand replaces directories with the DICOM files below them
func expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			out = append(out, p)
			continue
		}
		found, err := dicomdb.FindFiles(p)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func covered(loaded map[string]bool, files []string) bool {
	for _, f := range files {
		if !loaded[f] {
			return false
		}
	}
	return len(files) > 0
}

// sourceSeries returns the image series l was derived from: the referenced
// series, else the series of the first referenced image instance
func sourceSeries(env *plugin.Env, l *plugin.Loadable) string {
	if l.ReferencedSeriesUID != "" {
		return l.ReferencedSeriesUID
	}
	for _, uid := range append(append([]string(nil), l.ReferencedInstanceUIDs...), l.ReferencedOthers...) {
		inst, ok := env.DB.Instance(uid)
		if ok && inst.Modality != "SR" && inst.Modality != "SEG" {
			return inst.SeriesInstanceUID
		}
	}
	return ""
}

// loadSource adds the image series uid to the scene unless it is there
func loadSource(ctx context.Context, env *plugin.Env, uid string) error {
	if uid == "" {
		return nil
	}
	for _, v := range scene.NodesOf[*scene.ScalarVolume](env.Scene) {
		if v.Attribute(scene.AttrSeriesInstanceUID) == uid {
			return nil
		}
	}
	files := env.DB.FilesForSeries(uid)
	if len(files) == 0 {
		return fmt.Errorf("no files for series %s", uid)
	}
	vol, err := dicom.LoadSeriesFiles(files)
	if err != nil {
		return err
	}
	name := uid
	if s, ok := env.DB.Series(uid); ok && s.SeriesDescription != "" {
		name = s.SeriesDescription
	}
	env.Scene.Add(scene.VolumeFromDICOM(name, vol))
	slog.InfoContext(ctx, "loaded source series", slog.String("series", uid), slog.Int("files", len(files)))
	return nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(name, ext string, used map[string]bool) string {
	base := unsafeName.ReplaceAllString(name, "_")
	if base == "" {
		base = "node"
	}
	out := base + ext
	for i := 1; used[out]; i++ {
		out = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	used[out] = true
	return out
}

// writeScene writes every node of s below dir
func writeScene(ctx context.Context, s *scene.Scene, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	used := map[string]bool{}
	create := func(name string, write func(f *os.File) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	for _, n := range s.Nodes() {
		var err error
		switch n := n.(type) {
		case *scene.ScalarVolume:
			err = nrrd.WriteFile(filepath.Join(dir, fileName(n.Name, ".nrrd", used)), nrrd.FromGrid(n.Grid, nrrd.Float32, n.Data), true)
		case *scene.Segmentation:
			err = writeSegmentation(dir, n, used)
		case *scene.Table:
			err = create(fileName(n.Name, ".csv", used), func(f *os.File) error { return n.WriteCSV(f) })
		case *scene.Markups:
			err = create(fileName(n.Name, ".json", used), func(f *os.File) error { return n.WriteJSON(f) })
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", n.Header().Name, err)
		}
	}
	slog.InfoContext(ctx, "wrote scene", slog.String("dir", dir), slog.Int("files", len(used)))
	return nil
}

func writeSegmentation(dir string, s *scene.Segmentation, used map[string]bool) error {
	for _, seg := range s.Segments() {
		name := s.Name + "-" + seg.Name
		if s.HasRepresentation(scene.BinaryLabelmap) && len(seg.Mask) == s.Grid.Len() {
			data := make([]float32, len(seg.Mask))
			for i, m := range seg.Mask {
				if m != 0 {
					data[i] = 1
				}
			}
			path := filepath.Join(dir, fileName(name, ".nrrd", used))
			if err := nrrd.WriteFile(path, nrrd.FromGrid(s.Grid, nrrd.Uint8, data), true); err != nil {
				return err
			}
		}
		if seg.Surface != nil && s.HasRepresentation(scene.ClosedSurface) {
			if err := stl.SaveToSTL(filepath.Join(dir, fileName(name, ".stl", used)), seg.Surface); err != nil {
				return err
			}
		}
	}
	return nil
}
