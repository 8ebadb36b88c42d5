package dcmqi

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPoll = PollConfig{Ticks: 100, Interval: 5 * time.Millisecond}

func TestParams_Args(t *testing.T) {
	p := Params{OutputDirName: "/out", InputSEGFileName: "seg.dcm"}
	assert.Equal(t, []string{"--inputSEGFileName", "seg.dcm", "--outputDirName", "/out"}, p.Args())
}

func TestRun_Completed(t *testing.T) {
	var got Params
	r := NativeRunner{Tools: map[string]ToolFunc{
		SegImageToITK: func(_ context.Context, p Params) error {
			got = p
			return nil
		},
	}}
	params := Params{InputSEGFileName: "seg.dcm"}
	require.NoError(t, Run(context.Background(), r, SegImageToITK, params, fastPoll))
	assert.Equal(t, params, got)
}

func TestRun_CompletedWithErrors(t *testing.T) {
	r := NativeRunner{Tools: map[string]ToolFunc{
		TID1500Writer: func(context.Context, Params) error { return errors.New("bad metadata") },
	}}
	err := Run(context.Background(), r, TID1500Writer, Params{}, fastPoll)
	var tool *errs.ToolError
	require.ErrorAs(t, err, &tool)
	assert.ErrorIs(t, err, errs.ErrExternalToolFailed)
	assert.Equal(t, TID1500Writer, tool.Tool)
	assert.Equal(t, StatusCompletedWithError, tool.Status)
	assert.Equal(t, "bad metadata", tool.Stderr)
}

func TestRun_TimeoutCancelsTool(t *testing.T) {
	exited := make(chan struct{})
	r := NativeRunner{Tools: map[string]ToolFunc{
		ParamapToITK: func(ctx context.Context, _ Params) error {
			defer close(exited)
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	err := Run(context.Background(), r, ParamapToITK, Params{}, PollConfig{Ticks: 3, Interval: time.Millisecond})
	var tool *errs.ToolError
	require.ErrorAs(t, err, &tool)
	assert.Equal(t, StatusTimeout, tool.Status)
	select {
	case <-exited:
	default:
		t.Fatal("tool still running after Run returned")
	}
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	dir := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script tool")
	}
	script := filepath.Join(dir, ParamapToITK)
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0755))
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("no sleep binary")
	}
	start := time.Now()
	err := Run(context.Background(), ExecRunner{Dir: dir}, ParamapToITK, Params{}, PollConfig{Ticks: 2, Interval: 10 * time.Millisecond})
	var tool *errs.ToolError
	require.ErrorAs(t, err, &tool)
	assert.Equal(t, StatusTimeout, tool.Status)
	assert.Less(t, time.Since(start), KillWait)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NativeRunner{Tools: map[string]ToolFunc{
		ITKToSegImage: func(ctx context.Context, _ Params) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	}}
	err := Run(ctx, r, ITKToSegImage, Params{}, fastPoll)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_UnknownTool(t *testing.T) {
	err := Run(context.Background(), NativeRunner{}, "nope", Params{}, fastPoll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestExecRunner_Path(t *testing.T) {
	_, err := ExecRunner{Dir: t.TempDir()}.Path("no-such-dcmqi-tool")
	assert.Error(t, err)
}
