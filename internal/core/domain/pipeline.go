package domain

import "time"

type RunStep string

// Step cursor values, in execution order. A run resumes from the first step
// whose result is not yet checkpointed.
const (
	StepReceived   RunStep = "received"
	StepMatched    RunStep = "matched"
	StepClassified RunStep = "classified"
	StepRecorded   RunStep = "recorded"
	StepRouted     RunStep = "routed"
)

type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// PipelineRun is the durable task record for one inbound message. Each step
// result is checkpointed before the next step starts, so a crash mid-pipeline
// resumes from the last completed step instead of the beginning. MessageID is
// the natural key that makes redelivery safe.
type PipelineRun struct {
	MessageID      string          `json:"message_id"`
	UserID         string          `json:"user_id"`
	Email          ParsedEmail     `json:"email"`
	Step           RunStep         `json:"step"`
	Status         RunStatus       `json:"status"`
	Match          *MatchResult    `json:"match,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	EmailRecordID  *string         `json:"email_record_id,omitempty"`
	Attempts       int             `json:"attempts"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// MaxRunAttempts bounds automatic redelivery retries; after this the run is
// marked failed and surfaced instead of retried forever.
const MaxRunAttempts = 3
