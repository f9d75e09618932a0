package models

import "time"

type SuggestionStatus string

const (
	SuggestionPending SuggestionStatus = "Pending"
	SuggestionValid   SuggestionStatus = "Valid"
	SuggestionInvalid SuggestionStatus = "Invalid"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionPending, SuggestionValid, SuggestionInvalid:
		return true
	}
	return false
}

type Suggestion struct {
	ID          int64            `json:"id"`
	TaskID      int64            `json:"task_id"`
	ProjectID   int64            `json:"project_id"`
	PMID        int64            `json:"pm_id"`
	AuthorID    int64            `json:"tester_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      SuggestionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type SuggestionFilter struct {
	PMID      *int64
	ProjectID *int64
}
