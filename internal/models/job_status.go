package models

/*
Task status constants shared by progress events, results and the intake API.
*/

// Progress event status values (derived from the progress percentage).
const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Terminal result status values expected by the downstream consumer.
const (
	ResultStatusSuccess = "SUCCESS"
	ResultStatusFailed  = "FAILED"
)

// SubmitStatusProcessing is returned to the submitter once the task is queued.
const SubmitStatusProcessing = "processing"

// Progress checkpoints.
const (
	ProgressStarted = 0
	ProgressDone    = 100
	ProgressFailed  = -1
)
