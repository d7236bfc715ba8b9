package models

import "time"

// RowStatus tracks the lifecycle of a single imported record.
// Pending transitions to Succeeded or Failed exactly once.
type RowStatus string

const (
	RowPending   RowStatus = "pending"
	RowSucceeded RowStatus = "succeeded"
	RowFailed    RowStatus = "failed"
)

// ImportRow is one typed record parsed from the input stream. A row is owned
// by exactly one pipeline stage at a time: the parser builds it, a single
// worker processes it, the aggregator reads the reported outcome.
type ImportRow struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields"`
	Status RowStatus         `json:"status"`
	Err    string            `json:"error,omitempty"`
}

// Succeed marks the row as processed. It is a no-op if the row already left
// the Pending state.
func (r *ImportRow) Succeed() {
	if r.Status == RowPending {
		r.Status = RowSucceeded
	}
}

// Fail marks the row as failed with a localized description
func (r *ImportRow) Fail(desc string) {
	if r.Status == RowPending {
		r.Status = RowFailed
		r.Err = desc
	}
}

// JobState is the terminal disposition of an import batch
type JobState string

const (
	JobRunning    JobState = "running"
	JobCompleted  JobState = "completed"
	JobTimedOut   JobState = "timed_out"
	JobFatalError JobState = "fatal_error"
)

// ImportJob owns one batch of rows and is discarded once its summary is emitted
type ImportJob struct {
	ID        string        `json:"id"`
	CompanyID int64         `json:"company_id"`
	EventType EventType     `json:"event_type"`
	Deadline  time.Duration `json:"deadline"`
	State     JobState      `json:"state"`
	StartedAt time.Time     `json:"started_at"`
}

// ImportSummary is the aggregate result of one batch. It is computed once
// when the batch finishes (normally or by timeout) and never mutated after.
// Rows still pending when the deadline fires are excluded, so
// Succeeded+Failed may be smaller than TotalRead.
type ImportSummary struct {
	TotalRead          int      `json:"total_read"`
	Succeeded          int      `json:"succeeded"`
	Failed             int      `json:"failed"`
	FailedDescriptions []string `json:"failed_descriptions,omitempty"`
}
