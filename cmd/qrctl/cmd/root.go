package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jpfielding/qreport.go/pkg/config"
	"github.com/jpfielding/qreport.go/pkg/dcmqi"
	"github.com/jpfielding/qreport.go/pkg/dcmqi/native"
	"github.com/jpfielding/qreport.go/pkg/dicomdb"
	"github.com/jpfielding/qreport.go/pkg/logging"
	"github.com/jpfielding/qreport.go/pkg/longitudinal"
	"github.com/jpfielding/qreport.go/pkg/m3d"
	"github.com/jpfielding/qreport.go/pkg/plugin"
	"github.com/jpfielding/qreport.go/pkg/pmap"
	"github.com/jpfielding/qreport.go/pkg/provenance"
	"github.com/jpfielding/qreport.go/pkg/scene"
	"github.com/jpfielding/qreport.go/pkg/seg"
	"github.com/jpfielding/qreport.go/pkg/sr"
	"github.com/spf13/cobra"
)

// app is the state shared by subcommands once flags are parsed
type app struct {
	cfg    *config.Config
	logOut io.Closer
}

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}
	cmd := &cobra.Command{
		Use:           "qrctl",
		Short:         "read and write DICOM segmentations and measurement reports",
		Long:          "qrctl examines, loads and exports DICOM SEG, TID 1500 SR, parametric map and M3D objects over a local DICOM database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(ctx, cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logOut != nil {
				a.logOut.Close()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewDumpCmd(ctx),
		NewIndexCmd(ctx, a),
		NewExamineCmd(ctx, a),
		NewLoadCmd(ctx, a),
		NewExportCmd(ctx, a),
		NewPhantomCmd(ctx, a),
	)
	pf := cmd.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR), overrides logging.level")
	pf.String("log-file", "", "Rotated log file, overrides logging.file.path")
	pf.String("db", "", "DICOM database directory, overrides database.dir")
	pf.String("tools", "", "Tool mode (native|exec), overrides tools.mode")
	return cmd
}

// setup loads the configuration, applies flag overrides and installs the
// default logger
func (a *app) setup(ctx context.Context, cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-file"); v != "" {
		cfg.Logging.File.Path = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Database.Dir = v
	}
	if v, _ := cmd.Flags().GetString("tools"); v != "" {
		cfg.Tools.Mode = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logging.Level))); err != nil {
		level = slog.LevelInfo
	}
	var out io.Writer = os.Stderr
	if cfg.Logging.File.Path != "" {
		w := logging.RotatingWriter(logging.RotationConfig{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		})
		a.logOut = w
		out = w
	}
	slog.SetDefault(logging.Logger(out, cfg.Logging.JSON, level))
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logging.Level))); err != nil {
		slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", cfg.Logging.Level, "error", err)
	}
	return nil
}

// runner returns the tool runner selected by tools.mode
// tracker classifies editor tools with the configured automatic set
func (a *app) tracker() *provenance.Tracker {
	return provenance.NewTracker(a.cfg.Application.Name, a.cfg.Application.Version, a.cfg.Provenance.AutomaticTools)
}

func (a *app) runner() dcmqi.Runner {
	if a.cfg.Tools.Mode == "exec" {
		return dcmqi.ExecRunner{Dir: a.cfg.Tools.Dir}
	}
	return native.Runner()
}

// index builds the database over database.dir and any extra paths
func (a *app) index(ctx context.Context, extra ...string) (*dicomdb.Index, error) {
	parser, err := dicomdb.ParserByName(a.cfg.Database.Parser)
	if err != nil {
		return nil, err
	}
	idx := dicomdb.NewIndex()
	ix := dicomdb.NewIndexer(idx, parser)
	if st, err := os.Stat(a.cfg.Database.Dir); err == nil && st.IsDir() {
		if _, err := ix.IndexDirectory(ctx, a.cfg.Database.Dir); err != nil {
			return nil, err
		}
	}
	for _, p := range extra {
		st, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if st.IsDir() {
			_, err = ix.IndexDirectory(ctx, p)
		} else {
			_, err = ix.IndexFiles(ctx, []string{p})
		}
		if err != nil {
			return nil, err
		}
	}
	slog.DebugContext(ctx, "database ready", slog.Int("instances", idx.Len()))
	return idx, nil
}

// env returns a plugin environment over a fresh scene
func (a *app) env(idx *dicomdb.Index) *plugin.Env {
	return &plugin.Env{
		Scene:  scene.New(),
		DB:     idx,
		Runner: a.runner(),
		Poll: dcmqi.PollConfig{
			Ticks:    a.cfg.Tools.Poll.Ticks,
			Interval: a.cfg.Tools.Poll.Interval,
		},
		TempDir: a.cfg.Temp.Dir,
	}
}

// registry holds every codec plugin over env
func registry(env *plugin.Env) *plugin.Registry {
	return plugin.NewRegistry(
		seg.New(env),
		sr.New(env),
		longitudinal.New(env),
		pmap.New(env),
		m3d.New(env),
	)
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(gitsha)
		},
	}
	return cmd
}
