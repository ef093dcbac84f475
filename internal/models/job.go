package models

import "time"

// JobStatus represents the status of an express-mode batch job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Finished reports whether the job reached a terminal status
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// StepStatus is the status of one stage (or substep) within an express run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StageProgress tracks one pipeline step inside an express job
type StageProgress struct {
	StageKey string     `bson:"stageKey" json:"stageKey"`
	Substep  string     `bson:"substep,omitempty" json:"substep,omitempty"`
	Status   StepStatus `bson:"status" json:"status"`
	Error    string     `bson:"error,omitempty" json:"error,omitempty"`
}

// ExpressJob represents a background batch run of the remaining stages of a
// dossier, with auto-accepted reviewer feedback
type ExpressJob struct {
	ID         string          `bson:"_id" json:"id"`
	DossierID  string          `bson:"dossierId" json:"dossierId"`
	Status     JobStatus       `bson:"status" json:"status"`
	Stages     []StageProgress `bson:"stages" json:"stages"`
	Error      string          `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt  time.Time       `bson:"startedAt" json:"startedAt"`
	FinishedAt *time.Time      `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

// ProgressEvent is pushed to SSE subscribers whenever an express job advances
type ProgressEvent struct {
	JobID     string     `json:"jobId"`
	JobStatus JobStatus  `json:"jobStatus"`
	StageKey  string     `json:"stageKey,omitempty"`
	Substep   string     `json:"substep,omitempty"`
	Status    StepStatus `json:"status,omitempty"`
	Error     string     `json:"error,omitempty"`
}
