package services

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/authz"
)

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	IssuePMToken(pmID int64) (string, error)
	IssueEmployeeToken(employeeID int64, role string) (string, error)
}

type authService struct {
	secret      []byte
	pmTTL       time.Duration
	employeeTTL time.Duration
	cost        int
}

func NewAuthService(secret string, pmTTL, employeeTTL time.Duration) AuthService {
	return &authService{
		secret:      []byte(secret),
		pmTTL:       pmTTL,
		employeeTTL: employeeTTL,
		cost:        bcrypt.DefaultCost,
	}
}

func (s *authService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *authService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) IssuePMToken(pmID int64) (string, error) {
	return authz.IssueToken(s.secret, pmID, authz.RolePM, s.pmTTL)
}

func (s *authService) IssueEmployeeToken(employeeID int64, role string) (string, error) {
	return authz.IssueToken(s.secret, employeeID, role, s.employeeTTL)
}
