package model

import "time"

// JobStatus is the lifecycle state of a scan job. Transitions are monotonic:
// running -> completed or running -> error, never back.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// ScanMode selects the research depth and prompt shape of a scan.
type ScanMode string

const (
	ModeFull        ScanMode = "full"         // every checklist field
	ModeStatusCheck ScanMode = "status_check" // planning-stage and signatures only
	ModeListings    ScanMode = "listings"     // active listings and transactions
	ModeDistress    ScanMode = "distress"     // enforcement/receivership/bankruptcy signals
)

// ValidScanMode reports whether the mode is one of the fixed set.
func ValidScanMode(m ScanMode) bool {
	switch m {
	case ModeFull, ModeStatusCheck, ModeListings, ModeDistress:
		return true
	}
	return false
}

// ScanJob is one orchestrated batch enrichment run over an ordered set of
// complexes. The ID is process-unique and immutable.
type ScanJob struct {
	ID            string     `json:"id"`
	Tier          Tier       `json:"tier,omitempty"`
	Mode          ScanMode   `json:"mode"`
	ComplexIDs    []string   `json:"complex_ids"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	Total         int        `json:"total"`
	FieldsUpdated int        `json:"fields_updated"`
	ErrorCount    int        `json:"error_count"`
	LastError     string     `json:"last_error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns a point-in-time copy safe to hand to callers.
func (j *ScanJob) Snapshot() JobSnapshot {
	return JobSnapshot{
		JobID:         j.ID,
		Tier:          j.Tier,
		Mode:          j.Mode,
		Status:        j.Status,
		Progress:      j.Progress,
		Total:         j.Total,
		FieldsUpdated: j.FieldsUpdated,
		ErrorCount:    j.ErrorCount,
		LastError:     j.LastError,
		StartedAt:     j.StartedAt,
		FinishedAt:    j.FinishedAt,
	}
}

// JobSnapshot is the operator-facing view of a scan job.
type JobSnapshot struct {
	JobID         string     `json:"job_id"`
	Tier          Tier       `json:"tier,omitempty"`
	Mode          ScanMode   `json:"mode"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	Total         int        `json:"total"`
	FieldsUpdated int        `json:"fields_updated"`
	ErrorCount    int        `json:"error_count"`
	LastError     string     `json:"last_error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}
