package models

import "time"

type EmployeeRole string

const (
	RoleDeveloper EmployeeRole = "Developer"
	RoleTester    EmployeeRole = "Tester"
)

func (r EmployeeRole) Valid() bool {
	return r == RoleDeveloper || r == RoleTester
}

type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "Active"
	EmployeeInactive EmployeeStatus = "Inactive"
)

func (s EmployeeStatus) Valid() bool {
	return s == EmployeeActive || s == EmployeeInactive
}

type Employee struct {
	ID             int64          `json:"id"`
	EmpID          string         `json:"emp_id"`
	Role           EmployeeRole   `json:"role"`
	Email          string         `json:"email"`
	Status         EmployeeStatus `json:"status"`
	Name           string         `json:"name"`
	Mobile         string         `json:"mobile"`
	Address        string         `json:"address"`
	ProfilePhoto   string         `json:"profile_photo"`
	TelegramChatID int64          `json:"telegram_chat_id,omitempty"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	PasswordHash string `json:"-"`
}

type EmployeeLoginRequest struct {
	EmpID    string       `json:"emp_id" binding:"required"`
	Password string       `json:"password" binding:"required"`
	Role     EmployeeRole `json:"role" binding:"required"`
}

// EmployeeFilter narrows employee listings; nil fields are ignored.
type EmployeeFilter struct {
	CreatedBy      *int64
	Role           *EmployeeRole
	Status         *EmployeeStatus
	// TelegramChatID matches employees that linked this chat.
	TelegramChatID *int64
}
