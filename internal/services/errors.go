package services

import (
	"errors"
	"fmt"

	"taskflow/internal/repositories"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrOTPInvalid         = errors.New("invalid OTP")
	ErrOTPExpired         = errors.New("OTP has expired")
)

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// fromRepo maps repository sentinels onto service errors, naming the entity
// for not-found cases.
func fromRepo(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %s not found", ErrNotFound, entity)
	case errors.Is(err, repositories.ErrUniqueViolation):
		return fmt.Errorf("%w: %s", ErrDuplicate, entity)
	case errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, entity)
	case errors.Is(err, repositories.ErrStillReferenced):
		return fmt.Errorf("%w: %s is referenced by other records", ErrConflict, entity)
	}
	return err
}
