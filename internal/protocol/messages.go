// Package protocol defines the JSON-serializable progress messages sent
// to the Manager, as specified in spec.md §3.
package protocol

import (
	"fmt"
	"time"
)

// Timestamp renders as spec.md's wall-clock UTC string format:
// YYYY-MM-DD HH:MM:SS.ffffff±ZZZZ.
type Timestamp struct {
	time.Time
}

const timestampLayout = "2006-01-02 15:04:05.000000-0700"

// Now returns the current time as a Timestamp, normalized to UTC.
func Now() Timestamp {
	return Timestamp{time.Now().UTC()}
}

// MarshalJSON renders the timestamp in spec.md's string format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", t.Time.Format(timestampLayout))), nil
}

// StepStatus enumerates the outcome of a single step execution.
type StepStatus string

const (
	StatusRunning   StepStatus = "running"
	StatusSuccess   StepStatus = "success"
	StatusFail      StepStatus = "fail"
	StatusWarning   StepStatus = "warning"
	StatusException StepStatus = "exception"
	StatusCancelled StepStatus = "cancelled"
)

// rank orders non-cancelled statuses for the "worst status wins"
// aggregation rule in spec.md §3: success < warning < fail < exception,
// and once a build's status is non-success it never improves. Cancelled
// short-circuits separately.
var rank = map[StepStatus]int{
	StatusSuccess:   0,
	StatusWarning:   1,
	StatusFail:      2,
	StatusException: 3,
}

// WorseThan reports whether s is strictly worse than other under the
// build-status aggregation ordering, per spec.md §3. Cancelled is
// handled by the caller as a short-circuit, not through this ordering.
func (s StepStatus) WorseThan(other StepStatus) bool {
	return rank[s] > rank[other]
}

// BuildStatus enumerates the final build-level status. It shares the
// same string space as StepStatus but never takes the value "running"
// for a completed build.
type BuildStatus = StepStatus

// StepInfo mirrors a single step's progress/terminal message.
type StepInfo struct {
	InfoType  string     `json:"info_type"`
	UUID      string     `json:"uuid"`
	Name      string     `json:"name"`
	Cmd       string     `json:"cmd"`
	Index     int        `json:"index"`
	Status    StepStatus `json:"status"`
	Started   Timestamp  `json:"started"`
	Finished  *Timestamp `json:"finished"`
	TotalTime *int64     `json:"total_time"`
	Output    string     `json:"output"`

	LastStepFinished *Timestamp `json:"last_step_finished"`
	LastStepStatus   StepStatus `json:"last_step_status,omitempty"`
}

// NewStepInfo builds the running-status message emitted at step start.
func NewStepInfo(uuid, name, cmd string, index int, lastStatus StepStatus, lastFinished *Timestamp) StepInfo {
	return StepInfo{
		InfoType:         "step_info",
		UUID:             uuid,
		Name:             name,
		Cmd:              cmd,
		Index:            index,
		Status:           StatusRunning,
		Started:          Now(),
		LastStepStatus:   lastStatus,
		LastStepFinished: lastFinished,
	}
}

// StepOutputInfo carries one batch of a step's streamed output.
type StepOutputInfo struct {
	InfoType    string `json:"info_type"`
	UUID        string `json:"uuid"`
	OutputIndex int    `json:"output_index"`
	Output      string `json:"output"`
}

// BuildInfo is the build-level summary message emitted at start and end.
type BuildInfo struct {
	InfoType   string     `json:"info_type"`
	Status     BuildStatus `json:"status"`
	Started    Timestamp  `json:"started"`
	Finished   *Timestamp `json:"finished"`
	Steps      []StepInfo `json:"steps"`
	TotalSteps int        `json:"total_steps"`
}

// NewRunningBuildInfo builds the initial build_info message.
func NewRunningBuildInfo() *BuildInfo {
	return &BuildInfo{
		InfoType: "build_info",
		Status:   StatusRunning,
		Started:  Now(),
		Steps:    []StepInfo{},
	}
}
