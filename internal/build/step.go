// Package build implements the execution engine from spec.md §4.2-§4.3:
// BuildStep/StepOutcome classification and the Builder orchestrator.
package build

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jucacrispim/toxicslave/internal/protocol"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
)

// DefaultTimeout is the timeout a step gets when none is configured,
// per spec.md §3.
const DefaultTimeout = 3600 * time.Second

// Step is one unit of execution in a build. GetCommand is resolved
// dynamically (the apt-install plugin's install-vs-reconfigure decision
// happens here); RunCommand is where the command is actually carried out
// (ContainerStep overrides this to route through a container instead of
// a bare shell), mirroring the get_command/exec_cmd split in the
// original toxicslave/build.py.
type Step interface {
	Name() string
	GetCommand(ctx context.Context) (string, error)
	RunCommand(ctx context.Context, cmd, cwd string, env map[string]string, outFn shellexec.OutFunc) (string, error)
	Timeout() time.Duration
	WarningOnFail() bool
	StopOnFail() bool
}

// customOutcome lets a Step (e.g. the python-venv plugin's
// create-virtualenv step) short-circuit the standard
// GetCommand+RunCommand+classify dance, for steps whose result depends
// on workspace state rather than on running a command at all.
type customOutcome interface {
	ExecuteOverride(ctx context.Context, cwd string, env map[string]string, outFn shellexec.OutFunc) (Outcome, bool)
}

// Outcome is the {status, output} pair produced by executing one step
// (spec.md §3 StepOutcome).
type Outcome struct {
	Status protocol.StepStatus
	Output string
}

// Execute runs step and classifies the result per spec.md §4.2. Any Step
// implementation may be passed here: Builder and ContainerBuilder share
// this single entry point.
func Execute(ctx context.Context, step Step, cwd string, env map[string]string, outFn shellexec.OutFunc) Outcome {
	if co, ok := step.(customOutcome); ok {
		if outcome, handled := co.ExecuteOverride(ctx, cwd, env, outFn); handled {
			return outcome
		}
	}

	cmd, err := step.GetCommand(ctx)
	if err != nil {
		return Outcome{Status: protocol.StatusException, Output: err.Error()}
	}

	output, err := step.RunCommand(ctx, cmd, cwd, env, outFn)
	return classify(cmd, step.Timeout(), step.WarningOnFail(), output, err)
}

func classify(cmd string, timeout time.Duration, warningOnFail bool, output string, err error) Outcome {
	if errors.Is(err, context.Canceled) {
		// Cancellation is never promoted by warning_on_fail (spec.md §4.2 step 4).
		return Outcome{Status: protocol.StatusCancelled, Output: "Build cancelled"}
	}

	var status protocol.StepStatus
	switch {
	case err == nil:
		status = protocol.StatusSuccess
	case errors.Is(err, shellexec.ErrTimeout):
		status = protocol.StatusException
		output = fmt.Sprintf("%s has timed out in %d seconds", cmd, int(timeout.Seconds()))
	default:
		var execErr *shellexec.ExecCmdError
		if errors.As(err, &execErr) {
			status = protocol.StatusFail
			output = execErr.Output
		} else {
			status = protocol.StatusException
			output = err.Error()
		}
	}

	if warningOnFail && (status == protocol.StatusFail || status == protocol.StatusException) {
		status = protocol.StatusWarning
	}

	return Outcome{Status: status, Output: output}
}

// BuildStep is the base, statically-commanded step (spec.md §3).
type BuildStep struct {
	name          string
	command       string
	timeout       time.Duration
	warningOnFail bool
	stopOnFail    bool
}

// NewBuildStep builds a BuildStep, trimming the command and defaulting
// the timeout per spec.md §3.
func NewBuildStep(name, command string, timeout time.Duration, warningOnFail, stopOnFail bool) *BuildStep {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BuildStep{
		name:          name,
		command:       strings.TrimSpace(command),
		timeout:       timeout,
		warningOnFail: warningOnFail,
		stopOnFail:    stopOnFail,
	}
}

func (s *BuildStep) Name() string    { return s.name }
func (s *BuildStep) Command() string { return s.command }

func (s *BuildStep) GetCommand(ctx context.Context) (string, error) {
	return s.command, nil
}

func (s *BuildStep) RunCommand(ctx context.Context, cmd, cwd string, env map[string]string, outFn shellexec.OutFunc) (string, error) {
	return shellexec.Run(ctx, cmd, cwd, s.timeout, env, outFn)
}

func (s *BuildStep) Timeout() time.Duration { return s.timeout }
func (s *BuildStep) WarningOnFail() bool    { return s.warningOnFail }
func (s *BuildStep) StopOnFail() bool       { return s.stopOnFail }

// Equal compares steps by command only, per spec.md §3.
func (s *BuildStep) Equal(other *BuildStep) bool {
	return other != nil && s.command == other.command
}
