package build

import (
	"context"
	"testing"
	"time"

	"github.com/jucacrispim/toxicslave/internal/protocol"
)

func TestNewBuildStepTrimsCommandAndDefaultsTimeout(t *testing.T) {
	s := NewBuildStep("greet", "  echo hi  ", 0, false, false)
	if s.Command() != "echo hi" {
		t.Errorf("command = %q, want %q", s.Command(), "echo hi")
	}
	if s.Timeout() != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", s.Timeout(), DefaultTimeout)
	}
}

func TestBuildStepEqual(t *testing.T) {
	a := NewBuildStep("a", "echo hi", 0, false, false)
	b := NewBuildStep("b", "echo hi", time.Minute, true, true)
	c := NewBuildStep("c", "echo bye", 0, false, false)

	if !a.Equal(b) {
		t.Error("steps with the same command should be equal regardless of other fields")
	}
	if a.Equal(c) {
		t.Error("steps with different commands should not be equal")
	}
	if a.Equal(nil) {
		t.Error("a step should never equal nil")
	}
}

func TestExecuteSuccess(t *testing.T) {
	step := NewBuildStep("greet", "echo hi", 0, false, false)
	var lines []string
	outcome := Execute(context.Background(), step, ".", nil, func(i int, l string) {
		lines = append(lines, l)
	})
	if outcome.Status != protocol.StatusSuccess {
		t.Errorf("status = %q, want success", outcome.Status)
	}
	if outcome.Output != "hi" {
		t.Errorf("output = %q, want %q", outcome.Output, "hi")
	}
	if len(lines) != 1 || lines[0] != "hi" {
		t.Errorf("lines = %v", lines)
	}
}

func TestExecuteFail(t *testing.T) {
	step := NewBuildStep("boom", "echo oops && false", 0, false, false)
	outcome := Execute(context.Background(), step, ".", nil, nil)
	if outcome.Status != protocol.StatusFail {
		t.Errorf("status = %q, want fail", outcome.Status)
	}
	if outcome.Output != "oops" {
		t.Errorf("output = %q, want %q", outcome.Output, "oops")
	}
}

func TestExecuteWarningOnFailPromotesFail(t *testing.T) {
	step := NewBuildStep("boom", "false", 0, true, false)
	outcome := Execute(context.Background(), step, ".", nil, nil)
	if outcome.Status != protocol.StatusWarning {
		t.Errorf("status = %q, want warning", outcome.Status)
	}
}

func TestExecuteTimeoutIsException(t *testing.T) {
	step := NewBuildStep("slow", "sleep 5", 10*time.Millisecond, false, false)
	outcome := Execute(context.Background(), step, ".", nil, nil)
	if outcome.Status != protocol.StatusException {
		t.Errorf("status = %q, want exception", outcome.Status)
	}
	want := "sleep 5 has timed out in 0 seconds"
	if outcome.Output != want {
		t.Errorf("output = %q, want %q", outcome.Output, want)
	}
}

func TestExecuteCancelledNeverPromoted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	step := NewBuildStep("slow", "sleep 5", 0, true, false)
	outcome := Execute(ctx, step, ".", nil, nil)
	if outcome.Status != protocol.StatusCancelled {
		t.Errorf("status = %q, want cancelled even though warning_on_fail is set", outcome.Status)
	}
	if outcome.Output != "Build cancelled" {
		t.Errorf("output = %q, want %q", outcome.Output, "Build cancelled")
	}
}
