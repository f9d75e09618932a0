package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow/internal/models"
	"taskflow/internal/repositories"
	"taskflow/internal/storage"
)

const minPasswordLen = 6

type RegisterPMInput struct {
	Name     string
	Email    string
	Mobile   string
	Address  *string
	Password string
}

type CreateEmployeeInput struct {
	EmpID    string
	Password string
	Role     models.EmployeeRole
	Email    string
	Name     string
}

type UpdateProfileInput struct {
	Name           *string
	Mobile         *string
	Address        *string
	TelegramChatID *int64
}

// AuthResult is returned by registration and logins. Exactly one of PM and
// Employee is set.
type AuthResult struct {
	Token    string
	PM       *models.PM
	Employee *models.Employee
}

type IdentityService interface {
	RegisterPM(ctx context.Context, in RegisterPMInput, image *storage.Upload) (*AuthResult, error)
	LoginPM(ctx context.Context, email, password string) (*AuthResult, error)
	LoginEmployee(ctx context.Context, empID, password string, role models.EmployeeRole) (*AuthResult, error)
	GetPM(ctx context.Context, id int64) (*models.PM, error)

	CreateEmployee(ctx context.Context, pmID int64, in CreateEmployeeInput) (*models.Employee, error)
	GetEmployee(ctx context.Context, id int64) (*models.Employee, error)
	UpdateEmployeeProfile(ctx context.Context, id int64, in UpdateProfileInput, photo *storage.Upload) (*models.Employee, error)
	ListEmployees(ctx context.Context, pmID int64) ([]models.Employee, error)
	ListActiveByRole(ctx context.Context, pmID int64, role models.EmployeeRole) ([]models.Employee, error)
	UpdateEmployeeStatus(ctx context.Context, pmID, id int64, status models.EmployeeStatus) (*models.Employee, error)
	DeleteEmployee(ctx context.Context, pmID, id int64) error
}

type identityService struct {
	store    repositories.Store
	auth     AuthService
	files    storage.Store
	outbox   OutboxTrigger
	loginURL string
	now      func() time.Time
}

func NewIdentityService(store repositories.Store, auth AuthService, files storage.Store, outbox OutboxTrigger, loginURL string) IdentityService {
	return &identityService{store: store, auth: auth, files: files, outbox: outbox, loginURL: loginURL, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", validation("invalid email %q", email)
	}
	return email, nil
}

func (s *identityService) RegisterPM(ctx context.Context, in RegisterPMInput, image *storage.Upload) (*AuthResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	in.Name, in.Mobile = strings.TrimSpace(in.Name), strings.TrimSpace(in.Mobile)
	if in.Name == "" || in.Mobile == "" {
		return nil, validation("name and mobile are required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, validation("password must be at least %d characters", minPasswordLen)
	}
	if image == nil {
		return nil, validation("profile image is required")
	}
	if _, err := s.store.PMs().GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: a PM with this email already exists", ErrDuplicate)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	url, err := s.files.Put(ctx, "profiles", image)
	if err != nil {
		return nil, fmt.Errorf("store profile image: %w", err)
	}
	if in.Address != nil {
		trimmed := strings.TrimSpace(*in.Address)
		in.Address = &trimmed
	}

	pm := &models.PM{
		// Millis alone collide for concurrent registrations.
		PMCode:       fmt.Sprintf("PM%d-%s", s.now().UnixMilli(), uuid.NewString()[:4]),
		Name:         in.Name,
		Email:        email,
		Mobile:       in.Mobile,
		ProfilePic:   url,
		Address:      in.Address,
		PasswordHash: hash,
	}
	if err := s.store.PMs().Create(ctx, pm); err != nil {
		return nil, fromRepo(err, "pm")
	}
	token, err := s.auth.IssuePMToken(pm.ID)
	if err != nil {
		return nil, err
	}
	logrus.Infof("[auth][register] pm %d registered", pm.ID)
	return &AuthResult{Token: token, PM: pm}, nil
}

func (s *identityService) LoginPM(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	pm, err := s.store.PMs().GetByEmail(ctx, email)
	if err != nil {
		return nil, fromRepo(err, "pm")
	}
	if !s.auth.CheckPassword(pm.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	token, err := s.auth.IssuePMToken(pm.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, PM: pm}, nil
}

func (s *identityService) LoginEmployee(ctx context.Context, empID, password string, role models.EmployeeRole) (*AuthResult, error) {
	if !role.Valid() {
		return nil, validation("role must be Developer or Tester")
	}
	emp, err := s.store.Employees().GetByEmpIDAndRole(ctx, strings.TrimSpace(empID), role)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.auth.CheckPassword(emp.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if emp.Status != models.EmployeeActive {
		return nil, ErrInactiveAccount
	}
	token, err := s.auth.IssueEmployeeToken(emp.ID, string(emp.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Employee: emp}, nil
}

func (s *identityService) GetPM(ctx context.Context, id int64) (*models.PM, error) {
	pm, err := s.store.PMs().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "pm")
	}
	return pm, nil
}

func (s *identityService) CreateEmployee(ctx context.Context, pmID int64, in CreateEmployeeInput) (*models.Employee, error) {
	in.EmpID = strings.TrimSpace(in.EmpID)
	if in.EmpID == "" {
		return nil, validation("emp_id is required")
	}
	if !in.Role.Valid() {
		return nil, validation("role must be Developer or Tester")
	}
	if len(in.Password) < minPasswordLen {
		return nil, validation("password must be at least %d characters", minPasswordLen)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "N/A"
	}

	emp := &models.Employee{
		EmpID:        in.EmpID,
		Role:         in.Role,
		Email:        email,
		PasswordHash: hash,
		Status:       models.EmployeeActive,
		Name:         name,
		Mobile:       "N/A",
		Address:      "N/A",
		CreatedBy:    pmID,
	}
	err = s.store.WithTx(ctx, func(tx repositories.Store) error {
		if err := tx.Employees().Create(ctx, emp); err != nil {
			return fromRepo(err, "employee with this emp_id and role, or email,")
		}
		_, err := tx.Outbox().Enqueue(ctx, models.OutboxEmail,
			credentialsEmail(emp.Email, emp.EmpID, emp.Role, in.Password, s.loginURL))
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.outbox != nil {
		s.outbox.Trigger()
	}
	logrus.Infof("[employee][create] pm=%d employee=%d role=%s", pmID, emp.ID, emp.Role)
	return emp, nil
}

func (s *identityService) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	e, err := s.store.Employees().GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "employee")
	}
	return e, nil
}

func (s *identityService) UpdateEmployeeProfile(ctx context.Context, id int64, in UpdateProfileInput, photo *storage.Upload) (*models.Employee, error) {
	emp, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if v := strings.TrimSpace(*in.Name); v != "" {
			emp.Name = v
		}
	}
	if in.Mobile != nil {
		if v := strings.TrimSpace(*in.Mobile); v != "" {
			emp.Mobile = v
		}
	}
	if in.Address != nil {
		if v := strings.TrimSpace(*in.Address); v != "" {
			emp.Address = v
		}
	}
	if in.TelegramChatID != nil {
		emp.TelegramChatID = *in.TelegramChatID
	}
	if photo != nil {
		url, err := s.files.Put(ctx, "profiles", photo)
		if err != nil {
			return nil, fmt.Errorf("store profile photo: %w", err)
		}
		emp.ProfilePhoto = url
	}
	if err := s.store.Employees().UpdateProfile(ctx, emp); err != nil {
		return nil, fromRepo(err, "employee")
	}
	return emp, nil
}

func (s *identityService) ListEmployees(ctx context.Context, pmID int64) ([]models.Employee, error) {
	return nonNil(s.store.Employees().List(ctx, models.EmployeeFilter{CreatedBy: &pmID}))
}

func (s *identityService) ListActiveByRole(ctx context.Context, pmID int64, role models.EmployeeRole) ([]models.Employee, error) {
	active := models.EmployeeActive
	return nonNil(s.store.Employees().List(ctx, models.EmployeeFilter{CreatedBy: &pmID, Role: &role, Status: &active}))
}

func (s *identityService) ownedEmployee(ctx context.Context, pmID, id int64) (*models.Employee, error) {
	e, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.CreatedBy != pmID {
		return nil, fmt.Errorf("%w: employee %d belongs to another PM", ErrForbidden, id)
	}
	return e, nil
}

func (s *identityService) UpdateEmployeeStatus(ctx context.Context, pmID, id int64, status models.EmployeeStatus) (*models.Employee, error) {
	if !status.Valid() {
		return nil, validation("status must be Active or Inactive")
	}
	e, err := s.ownedEmployee(ctx, pmID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Employees().UpdateStatus(ctx, id, status); err != nil {
		return nil, fromRepo(err, "employee")
	}
	e.Status = status
	return e, nil
}

func (s *identityService) DeleteEmployee(ctx context.Context, pmID, id int64) error {
	if _, err := s.ownedEmployee(ctx, pmID, id); err != nil {
		return err
	}
	return fromRepo(s.store.Employees().Delete(ctx, id), "employee")
}
