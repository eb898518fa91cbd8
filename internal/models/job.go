package models

import "time"

// ProcessTrigger records what started an edit/upload run.
type ProcessTrigger string

const (
	// TriggerManual is a user-initiated run.
	TriggerManual ProcessTrigger = "manual"
	// TriggerAuto is a power-off initiated run.
	TriggerAuto ProcessTrigger = "auto"
	// TriggerSchedule is a cron-initiated run.
	TriggerSchedule ProcessTrigger = "schedule"
)

// ProcessJobStatus is the lifecycle state of an edit/upload run.
type ProcessJobStatus string

const (
	// ProcessJobRunning indicates the run is executing.
	ProcessJobRunning ProcessJobStatus = "running"
	// ProcessJobCompleted indicates the run finished successfully.
	ProcessJobCompleted ProcessJobStatus = "completed"
	// ProcessJobFailed indicates the run failed.
	ProcessJobFailed ProcessJobStatus = "failed"
	// ProcessJobCancelled indicates the run was cancelled by the user.
	ProcessJobCancelled ProcessJobStatus = "cancelled"
)

// ProcessJob is the persisted record of one edit/upload run.
type ProcessJob struct {
	BaseModel

	// Trigger records what started the run.
	Trigger ProcessTrigger `gorm:"not null;size:20;index" json:"trigger"`

	// Status is the current lifecycle state.
	Status ProcessJobStatus `gorm:"not null;default:'running';size:20;index" json:"status"`

	// StartedAt is when the run began executing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the run reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMs is the execution duration in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// EditedCount is how many merged videos the edit phase produced.
	EditedCount int `gorm:"default:0" json:"edited_count"`

	// UploadedCount is how many videos the upload phase published.
	UploadedCount int `gorm:"default:0" json:"uploaded_count"`

	// LastError contains the message from a failed run.
	LastError string `gorm:"size:4096" json:"last_error,omitempty"`
}

// TableName returns the table name for ProcessJob.
func (ProcessJob) TableName() string {
	return "process_jobs"
}

// MarkRunning stamps the start of execution.
func (j *ProcessJob) MarkRunning() {
	now := time.Now()
	j.Status = ProcessJobRunning
	j.StartedAt = &now
}

// MarkCompleted stamps a successful finish with the phase counts.
func (j *ProcessJob) MarkCompleted(edited, uploaded int) {
	now := time.Now()
	j.Status = ProcessJobCompleted
	j.CompletedAt = &now
	j.EditedCount = edited
	j.UploadedCount = uploaded
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// MarkFailed stamps a failed finish with the error message.
func (j *ProcessJob) MarkFailed(err error) {
	now := time.Now()
	j.Status = ProcessJobFailed
	j.CompletedAt = &now
	if err != nil {
		j.LastError = err.Error()
	}
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// MarkCancelled stamps a user cancellation.
func (j *ProcessJob) MarkCancelled() {
	now := time.Now()
	j.Status = ProcessJobCancelled
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// IsTerminal reports whether the run has finished.
func (j *ProcessJob) IsTerminal() bool {
	return j.Status == ProcessJobCompleted || j.Status == ProcessJobFailed || j.Status == ProcessJobCancelled
}
