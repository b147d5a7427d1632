package build

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jucacrispim/toxicslave/internal/manager"
	"github.com/jucacrispim/toxicslave/internal/protocol"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
	"github.com/jucacrispim/toxicslave/internal/slavelog"
)

// StepConfig is one entry of a builder's "steps" list, already decoded.
// Nothing in this package parses builder config, so the bare-string
// shorthand of the config file is not handled here: a caller passes
// {Name: s, Command: s} for it.
type StepConfig struct {
	Name          string
	Command       string
	WarningOnFail bool
	Timeout       time.Duration
	StopOnFail    bool
}

// SlavePlugin is the subset of plugin.Plugin the builder depends on;
// kept narrow here so package build doesn't import package plugin
// (which itself imports package build).
type SlavePlugin interface {
	StepsBefore() []Step
	StepsAfter() []Step
	EnvVars() map[string]string
}

// ContainerRebaser is implemented by plugins whose contributed steps
// reference a data directory rooted in the host filesystem (e.g.
// python-venv's venv_dir). containerbuild.Builder calls WithDataDir
// before materializing steps so that directory resolves inside the
// container instead, per spec.md §4.5.
type ContainerRebaser interface {
	WithDataDir(dataDir string) SlavePlugin
}

// Builder executes a build: a named, ordered list of steps, run inside
// a scoped copy of workdir, reporting progress through a
// manager.Manager (spec.md §4.3).
type Builder struct {
	Manager manager.Manager

	Name    string
	Workdir string
	EnvVars map[string]string
	Plugins []SlavePlugin
	Steps   []Step

	// RemoveEnv controls whether the scoped workdir copy is deleted when
	// the build finishes.
	RemoveEnv bool

	// StepOutputBuffLen is the high-water mark, in bytes, before
	// buffered step output is flushed as a step_output_info message. 0
	// flushes on every line.
	StepOutputBuffLen int

	// Enter and Exit let a variant Builder (containerbuild.Builder)
	// replace the default local-copy scoped-workspace discipline with
	// its own acquisition/teardown (container create+copy-in,
	// kill+conditional-rm). Enter returns the directory steps execute
	// in. Both default to the local derived-workdir behavior when nil.
	Enter func(ctx context.Context) (dir string, err error)
	Exit  func(ctx context.Context) error
}

// NewBuilder assembles a Builder's step list as plugin-before ++
// user-steps ++ plugin-after, per spec.md §4.5.
func NewBuilder(mgr manager.Manager, name, workdir string, userSteps []StepConfig, plugins []SlavePlugin, envVars map[string]string, removeEnv bool, stepOutputBuffLen int) *Builder {
	var steps []Step
	for _, p := range plugins {
		steps = append(steps, p.StepsBefore()...)
	}
	for _, sc := range userSteps {
		steps = append(steps, NewBuildStep(sc.Name, sc.Command, sc.Timeout, sc.WarningOnFail, sc.StopOnFail))
	}
	for _, p := range plugins {
		steps = append(steps, p.StepsAfter()...)
	}

	return &Builder{
		Manager:           mgr,
		Name:              name,
		Workdir:           workdir,
		EnvVars:           envVars,
		Plugins:           plugins,
		Steps:             steps,
		RemoveEnv:         removeEnv,
		StepOutputBuffLen: stepOutputBuffLen,
	}
}

// tmpDir is the scoped copy of Workdir this build runs in:
// <abs(Workdir)>-<Name>.
func (b *Builder) tmpDir() (string, error) {
	abs, err := filepath.Abs(b.Workdir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", abs, b.Name), nil
}

// copyWorkdir materializes the scoped copy of Workdir this build runs
// its steps in.
func (b *Builder) copyWorkdir(ctx context.Context) error {
	tmp, err := b.tmpDir()
	if err != nil {
		return err
	}
	if _, err := shellexec.Run(ctx, fmt.Sprintf("mkdir -p %s", tmp), ".", 0, nil, nil); err != nil {
		return err
	}
	_, err = shellexec.Run(ctx, fmt.Sprintf("cp -R %s/* %s", b.Workdir, tmp), ".", 0, nil, nil)
	return err
}

// removeTmpDir tears down the scoped workdir copy.
func (b *Builder) removeTmpDir(ctx context.Context) error {
	tmp, err := b.tmpDir()
	if err != nil {
		return err
	}
	_, err = shellexec.Run(ctx, fmt.Sprintf("rm -rf %s", tmp), ".", 0, nil, nil)
	return err
}

func (b *Builder) envVars() map[string]string {
	merged := make(map[string]string, len(b.EnvVars))
	for k, v := range b.EnvVars {
		merged[k] = v
	}
	for _, p := range b.Plugins {
		for k, v := range p.EnvVars() {
			merged[k] = v
		}
	}
	return merged
}

// Build runs every step in order, reporting a build_info message at
// start and end and a step_info/step_output_info sequence per step, per
// spec.md §4.3. build_uuid is registered with Manager for the duration
// of the build so an external cancel-build request can reach it.
func (b *Builder) Build(ctx context.Context, buildUUID string) (*protocol.BuildInfo, error) {
	logger := slavelog.SubLogger(slavelog.FromContext(ctx), buildUUID)

	enter, exit := b.Enter, b.Exit
	if enter == nil {
		enter = func(ctx context.Context) (string, error) {
			if err := b.copyWorkdir(ctx); err != nil {
				return "", err
			}
			return b.tmpDir()
		}
	}
	if exit == nil {
		exit = func(ctx context.Context) error {
			if !b.RemoveEnv {
				return nil
			}
			return b.removeTmpDir(ctx)
		}
	}

	tmp, err := enter(ctx)
	if err != nil {
		return nil, fmt.Errorf("entering build environment: %w", err)
	}
	defer func() {
		if err := exit(context.Background()); err != nil {
			logger.Error("leaving build environment", "error", err)
		}
	}()

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.Manager.AddBuildTask(buildUUID, cancel)
	defer b.Manager.RmBuildTask(buildUUID)

	buildInfo := protocol.NewRunningBuildInfo()
	if err := b.Manager.SendInfo(ctx, buildInfo); err != nil {
		logger.Error("sending build_info", "error", err)
	}

	envVars := b.envVars()
	buildStatus := protocol.StatusSuccess

	var lastStatus protocol.StepStatus
	var lastFinished *protocol.Timestamp

	for index, step := range b.Steps {
		stream := newOutputStream(b.Manager, b.StepOutputBuffLen)

		cmdForLog, _ := step.GetCommand(ctx)
		logger.Debug("executing step", "cmd", cmdForLog)

		stepUUID := uuid.NewString()
		stepInfo := protocol.NewStepInfo(stepUUID, step.Name(), cmdForLog, index, lastStatus, lastFinished)
		if err := b.Manager.SendInfo(ctx, stepInfo); err != nil {
			logger.Error("sending step_info", "error", err)
		}

		outFn := func(i int, line string) { stream.Write(ctx, stepUUID, i, line) }

		outcome := Execute(buildCtx, step, tmp, envVars, outFn)
		stream.Flush(ctx, stepUUID)

		finished := protocol.Now()
		stepInfo.Status = outcome.Status
		stepInfo.Output = outcome.Output
		stepInfo.Finished = &finished
		totalTime := int64(finished.Sub(stepInfo.Started.Time).Seconds())
		stepInfo.TotalTime = &totalTime

		logger.Debug("finished step", "cmd", cmdForLog, "status", outcome.Status,
			"started", humanize.Time(stepInfo.Started.Time))

		if err := b.Manager.SendInfo(ctx, stepInfo); err != nil {
			logger.Error("sending step_info", "error", err)
		}

		lastStatus = outcome.Status
		lastFinished = &finished
		buildInfo.Steps = append(buildInfo.Steps, stepInfo)

		if outcome.Status == protocol.StatusCancelled {
			buildStatus = protocol.StatusCancelled
			break
		}

		if outcome.Status.WorseThan(buildStatus) {
			buildStatus = outcome.Status
		}
		if (outcome.Status == protocol.StatusFail || outcome.Status == protocol.StatusException) && step.StopOnFail() {
			break
		}
	}

	buildInfo.Status = buildStatus
	buildInfo.TotalSteps = len(b.Steps)
	finished := protocol.Now()
	buildInfo.Finished = &finished

	if err := b.Manager.SendInfo(ctx, buildInfo); err != nil {
		logger.Error("sending final build_info", "error", err)
	}

	return buildInfo, nil
}

// outputStream buffers a step's output lines up to buffLen bytes before
// flushing a step_output_info message, per spec.md §4.3's streaming
// high-water-mark behavior. A fresh instance is used per step.
type outputStream struct {
	mgr       manager.Manager
	buffLen   int
	lines     []string
	byteCount int
	index     int
	started   bool
}

func newOutputStream(mgr manager.Manager, buffLen int) *outputStream {
	return &outputStream{mgr: mgr, buffLen: buffLen}
}

func (s *outputStream) Write(ctx context.Context, stepUUID string, _ int, line string) {
	s.lines = append(s.lines, line)
	s.byteCount += len(line)
	if s.byteCount > s.buffLen {
		s.flush(ctx, stepUUID)
	}
}

// Flush sends any output still buffered, e.g. the remainder below the
// high-water mark once the step has finished.
func (s *outputStream) Flush(ctx context.Context, stepUUID string) {
	if len(s.lines) > 0 {
		s.flush(ctx, stepUUID)
	}
}

func (s *outputStream) flush(ctx context.Context, stepUUID string) {
	idx := s.index
	if s.started {
		idx = s.index + 1
	}
	s.index = idx
	s.started = true

	output := strings.Trim(strings.Join(s.lines, "\n")+"\n", "\n")
	msg := protocol.StepOutputInfo{
		InfoType:    "step_output_info",
		UUID:        stepUUID,
		OutputIndex: idx,
		Output:      output,
	}
	_ = s.mgr.SendInfo(ctx, msg)
	s.lines = nil
	s.byteCount = 0
}
