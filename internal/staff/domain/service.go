package domain

import (
	"context"
	"errors"
)

type CreateStaffRequest struct {
	ClinicID string `json:"-"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role" binding:"required,oneof=DOCTOR RECEPTION"`
	Password string `json:"password" binding:"required,min=8"`
}

type ListStaffRequest struct {
	ClinicID   string
	ActiveOnly bool
}

type Service interface {
	Create(ctx context.Context, req CreateStaffRequest) (StaffAccount, error)
	Deactivate(ctx context.Context, id string) (StaffAccount, error)
	Reactivate(ctx context.Context, id string) (StaffAccount, error)
	List(ctx context.Context, req ListStaffRequest) ([]StaffAccount, error)
	// CheckCanAddAccount takes the clinic lock and reports the allowance, failing
	// with ErrAccountLimitExceeded when no seat is free.
	CheckCanAddAccount(ctx context.Context, clinicID string) (Allowance, error)
	Allowance(ctx context.Context, clinicID string) (Allowance, error)
}

var (
	ErrInvalidClinic        = errors.New("invalid_clinic")
	ErrInvalidID            = errors.New("invalid_staff_id")
	ErrInvalidName          = errors.New("invalid_full_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrInvalidPassword      = errors.New("invalid_password")
	ErrDuplicateEmail       = errors.New("duplicate_email")
	ErrAlreadyActive        = errors.New("staff_already_active")
	ErrAlreadyInactive      = errors.New("staff_already_inactive")
	ErrAccountLimitExceeded = errors.New("account_limit_exceeded")
	ErrNotFound             = errors.New("staff_not_found")
)
