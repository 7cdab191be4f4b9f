package domain

import "time"

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// IsTerminal reports whether no more work will happen for the job.
func (s ExportStatus) IsTerminal() bool {
	return s == ExportStatusSucceeded || s == ExportStatusFailed
}

// ExportQuery describes what to pull out of the query engine.
type ExportQuery struct {
	Dataset    string    `json:"dataset"`
	Fields     []string  `json:"fields"`
	Conditions string    `json:"conditions,omitempty"`
	Projects   []int64   `json:"projects,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// ExportJob is one requested data export.
type ExportJob struct {
	ID             string       `json:"id"`
	OrganizationID int64        `json:"organization_id"`
	Query          ExportQuery  `json:"query"`
	Status         ExportStatus `json:"status"`
	FileName       string       `json:"file_name,omitempty"`
	Rows           int64        `json:"rows"`
	Error          string       `json:"error,omitempty"` // user-facing message only
	Attempts       int          `json:"attempts"`
	CreatedAt      time.Time    `json:"created_at"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
}

// IsExpired reports whether the job has an expiry in the past.
func (j *ExportJob) IsExpired(now time.Time) bool {
	return j.ExpiresAt != nil && !j.ExpiresAt.After(now)
}

// Clone returns a deep copy.
func (j *ExportJob) Clone() *ExportJob {
	c := *j
	c.Query.Fields = append([]string(nil), j.Query.Fields...)
	c.Query.Projects = append([]int64(nil), j.Query.Projects...)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.ExpiresAt != nil {
		t := *j.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
