package models

import "time"

type BugSeverity string

const (
	SeverityLow      BugSeverity = "Low"
	SeverityMedium   BugSeverity = "Medium"
	SeverityHigh     BugSeverity = "High"
	SeverityCritical BugSeverity = "Critical"
)

func (s BugSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type BugStatus string

const (
	BugPending    BugStatus = "Pending"
	BugInProgress BugStatus = "InProgress"
	BugCompleted  BugStatus = "Completed"
)

func (s BugStatus) Valid() bool {
	switch s {
	case BugPending, BugInProgress, BugCompleted:
		return true
	}
	return false
}

type Bug struct {
	ID          int64       `json:"id"`
	TaskID      int64       `json:"task_id"`
	ProjectID   int64       `json:"project_id"`
	Title       string      `json:"bug_title"`
	Module      string      `json:"module"`
	Severity    BugSeverity `json:"severity"`
	Description string      `json:"description"`
	FileURL     string      `json:"bug_file"`
	ReportedBy  int64       `json:"reported_by"`
	DeveloperID int64       `json:"developer_id"`
	Status      BugStatus   `json:"status"`
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BugFilter narrows bug listings; nil fields are ignored.
type BugFilter struct {
	DeveloperID  *int64
	ReportedBy   *int64
	ProjectID    *int64
	// ProjectOwner keeps bugs on projects created by this PM.
	ProjectOwner *int64
}
