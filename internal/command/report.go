package command

import (
	"time"

	"github.com/flight-control/fcc/internal/link"
)

// StepStatus is how one entry ended.
type StepStatus string

const (
	// StepOK means the command completed.
	StepOK StepStatus = "ok"
	// StepWarning means the command failed in a way the sequence tolerates.
	StepWarning StepStatus = "warning"
	// StepSkipped means the entry was malformed, unknown or its precondition was unmet.
	StepSkipped StepStatus = "skipped"
	// StepFailed means the command failed and the sequence was abandoned.
	StepFailed StepStatus = "failed"
)

// AbortClosed is the abort reason when close ended a sequence early.
const AbortClosed = "CLOSED"

// Step is the result of one processed entry.
type Step struct {
	Index   int           `json:"index"`
	Command string        `json:"command"`
	Status  StepStatus    `json:"status"`
	Outcome string        `json:"outcome,omitempty"`
	Code    string        `json:"code,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Report summarizes one Execute call.
type Report struct {
	Steps []Step `json:"steps"`

	// Aborted is set when entries were left unprocessed.
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abortReason,omitempty"`
	Remaining   int    `json:"remaining"`

	// Session state after the last processed entry.
	Connected bool        `json:"connected"`
	State     *link.State `json:"state,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Session describes the dispatcher's vehicle session.
type Session struct {
	Connected bool        `json:"connected"`
	Target    string      `json:"target,omitempty"`
	OpenedAt  time.Time   `json:"openedAt,omitempty"`
	State     *link.State `json:"state,omitempty"`
}
