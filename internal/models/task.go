// internal/models/task.go
package models

import "time"

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskSubmitted  TaskStatus = "submitted"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskSubmitted:
		return true
	}
	return false
}

// SubmissionStatus tracks the developer's code submission alongside TaskStatus.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionTested    SubmissionStatus = "tested"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

// Task represents a unit of work assigned to a developer and a tester.
type Task struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	DeveloperID      int64            `json:"developer_id"`
	TesterID         int64            `json:"tester_id"`
	ProjectID        int64            `json:"project_id"`
	DueDate          time.Time        `json:"due_date"`
	Status           TaskStatus       `json:"status"`
	DocumentURL      *string          `json:"document_url"`
	CreatedBy        int64            `json:"created_by"`
	Code             string           `json:"code"`
	SubmissionStatus SubmissionStatus `json:"submission_status"`
	TesterFeedback   *string          `json:"tester_feedback"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Filled on reads that join projects.
	ProjectName string `json:"project_name,omitempty"`
}

// Submission is the read-only view of the code a developer submitted for a task.
type Submission struct {
	Submitted        bool             `json:"submitted"`
	Code             string           `json:"code,omitempty"`
	Status           TaskStatus       `json:"status,omitempty"`
	SubmissionStatus SubmissionStatus `json:"submission_status,omitempty"`
	Feedback         *string          `json:"feedback,omitempty"`
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	ProjectID *int64
	// Assignee matches either the developer or the tester.
	Assignee *int64
}
