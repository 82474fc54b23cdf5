package crawler

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/course-crawler/internal/recovery"
	"github.com/jonathan/course-crawler/internal/types"
)

// Status is the final outcome of one career in a pass.
type Status string

const (
	// StatusPersisted means the listing was recovered and saved.
	StatusPersisted Status = "persisted"
	// StatusFetchFailed means the transport failed; recovery was not attempted.
	StatusFetchFailed Status = "fetch_failed"
	// StatusRecoveryFailed means no candidate parsed; the raw payload was archived.
	StatusRecoveryFailed Status = "recovery_failed"
	// StatusPersistFailed means the listing was recovered but the store write failed.
	StatusPersistFailed Status = "persist_failed"
	// StatusCanceled means the pass was canceled before the career was processed.
	StatusCanceled Status = "canceled"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// ReasonCanceled is the failure reason recorded for careers skipped by cancellation.
const ReasonCanceled = "canceled"

// Result is the outcome of one career.
type Result struct {
	Career   types.Career   `json:"career"`
	Label    string         `json:"label"`
	Status   Status         `json:"status"`
	Reason   string         `json:"reason,omitempty"`   // Failure reason
	Location string         `json:"location,omitempty"` // Document or archive location
	Records  int            `json:"records,omitempty"`
	Stage    recovery.Stage `json:"stage,omitempty"`
	Repairs  int            `json:"repairs,omitempty"`
	Err      error          `json:"-"`
}

// Succeeded reports whether the career was recovered and durably saved.
func (r Result) Succeeded() bool {
	return r.Status == StatusPersisted
}

// Report is the outcome of one pass, with one Result per career in enumeration order.
type Report struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Map returns label to success for every career in the pass.
func (r *Report) Map() map[string]bool {
	m := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		m[res.Label] = res.Succeeded()
	}
	return m
}

// Succeeded returns the number of careers that were persisted.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of careers that were not persisted.
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Duration returns how long the pass took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Result returns the outcome for career.
func (r *Report) Result(career types.Career) (Result, bool) {
	for _, res := range r.Results {
		if res.Career == career {
			return res, true
		}
	}
	return Result{}, false
}
