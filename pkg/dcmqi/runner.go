// Package dcmqi runs the SEG, TID 1500 and parametric map conversion tools,
// either as external dcmqi binaries or in process, and waits for them with
// a bounded poll.
package dcmqi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jpfielding/qreport.go/pkg/errs"
	"github.com/jpfielding/qreport.go/pkg/util"
)

// tool names
const (
	SegImageToITK = "segimage2itkimage"
	ITKToSegImage = "itkimage2segimage"
	TID1500Reader = "tid1500reader"
	TID1500Writer = "tid1500writer"
	ParamapToITK  = "paramap2itkimage"
)

// parameter names
const (
	InputSEGFileName        = "inputSEGFileName"
	OutputDirName           = "outputDirName"
	DICOMDirectory          = "dicomDirectory"
	SegImageFiles           = "segImageFiles"
	MetaDataFileName        = "metaDataFileName"
	OutputSEGFileName       = "outputSEGFileName"
	InputSRFileName         = "inputSRFileName"
	CompositeContextDataDir = "compositeContextDataDir"
	ImageLibraryDataDir     = "imageLibraryDataDir"
	OutputFileName          = "outputFileName"
	InputFileName           = "inputFileName"
)

// job states
const (
	StatusScheduled          = "Scheduled"
	StatusRunning            = "Running"
	StatusCompleted          = "Completed"
	StatusCompletedWithError = "Completed with errors"
	StatusCancelled          = "Cancelled"
	StatusTimeout            = "Timed out"
)

// Params are tool parameters by name
type Params map[string]string

// Args renders params as --name value pairs in name order
func (p Params) Args() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	args := make([]string, 0, 2*len(names))
	for _, k := range names {
		args = append(args, "--"+k, p[k])
	}
	return args
}

// Job is one running tool invocation
type Job struct {
	Tool string

	mu     sync.Mutex
	status string
	stderr bytes.Buffer
	done   chan struct{}
}

func newJob(tool string) *Job {
	return &Job{Tool: tool, status: StatusScheduled, done: make(chan struct{})}
}

// Status returns the current state
func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Stderr returns what the tool wrote to its error stream
func (j *Job) Stderr() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stderr.String()
}

func (j *Job) setStatus(s string) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	defer close(j.done)
	switch {
	case err == nil:
		j.status = StatusCompleted
	case errors.Is(err, context.Canceled):
		j.status = StatusCancelled
	default:
		j.status = StatusCompletedWithError
		if j.stderr.Len() == 0 {
			j.stderr.WriteString(err.Error())
		}
	}
}

// Write appends to stderr
func (j *Job) Write(p []byte) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stderr.Write(p)
}

// Done reports whether the job reached a final state
func (j *Job) Done() bool {
	s := j.Status()
	return s != StatusScheduled && s != StatusRunning
}

// Runner starts tools asynchronously
type Runner interface {
	Start(ctx context.Context, tool string, params Params) (*Job, error)
}

// PollConfig bounds the wait for a job
type PollConfig struct {
	Ticks    int
	Interval time.Duration
}

// DefaultPoll waits up to 20 seconds
var DefaultPoll = PollConfig{Ticks: 20, Interval: time.Second}

// KillWait bounds the wait for a timed out tool to exit after it is cancelled
var KillWait = 5 * time.Second

// Run starts tool and polls it to completion. Any final state other than
// Completed, or running out of ticks, is a ToolError. A timed out tool is
// cancelled and given KillWait to exit before Run returns.
func Run(ctx context.Context, r Runner, tool string, params Params, poll PollConfig) error {
	slog.InfoContext(ctx, "running tool", slog.String("tool", tool), slog.Any("params", params))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job, err := r.Start(ctx, tool, params)
	if err != nil {
		return fmt.Errorf("starting %s: %w", tool, err)
	}
	err = util.Poll(ctx, poll.Ticks, poll.Interval, func() (bool, error) {
		return job.Done(), nil
	})
	if errors.Is(err, util.ErrPollTimeout) {
		cancel()
		select {
		case <-job.done:
		case <-time.After(KillWait):
			slog.WarnContext(ctx, "tool did not exit after cancel", slog.String("tool", tool))
		}
		return &errs.ToolError{Tool: tool, Status: StatusTimeout, Stderr: job.Stderr()}
	}
	if err != nil {
		return err
	}
	status := job.Status()
	if status == StatusCancelled {
		return fmt.Errorf("%s: %w", tool, context.Canceled)
	}
	if status != StatusCompleted {
		return &errs.ToolError{Tool: tool, Status: status, Stderr: job.Stderr()}
	}
	slog.DebugContext(ctx, "tool completed", slog.String("tool", tool))
	return nil
}

// ExecRunner runs the dcmqi command line tools
type ExecRunner struct {
	// Dir is searched before PATH
	Dir string
}

// Path resolves the executable for tool
func (r ExecRunner) Path(tool string) (string, error) {
	if r.Dir != "" {
		p := filepath.Join(r.Dir, tool)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return exec.LookPath(tool)
}

func (r ExecRunner) Start(ctx context.Context, tool string, params Params) (*Job, error) {
	path, err := r.Path(tool)
	if err != nil {
		return nil, err
	}
	job := newJob(tool)
	cmd := exec.CommandContext(ctx, path, params.Args()...)
	cmd.Stderr = job
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	job.setStatus(StatusRunning)
	go func() {
		job.finish(cmd.Wait())
	}()
	return job, nil
}

// ToolFunc is an in-process implementation of a tool
type ToolFunc func(ctx context.Context, params Params) error

// NativeRunner runs registered ToolFuncs on a goroutine
type NativeRunner struct {
	Tools map[string]ToolFunc
}

func (r NativeRunner) Start(ctx context.Context, tool string, params Params) (*Job, error) {
	fn, ok := r.Tools[tool]
	if !ok {
		return nil, fmt.Errorf("no native implementation of %s", tool)
	}
	job := newJob(tool)
	job.setStatus(StatusRunning)
	go func() {
		job.finish(fn(ctx, params))
	}()
	return job, nil
}
