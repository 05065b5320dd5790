package domain

import (
	"context"
	"errors"
)

type CreateClinicRequest struct {
	Name string `json:"name" binding:"required"`
}

type ListClinicRequest struct {
	Status string
}

type ListClinicFilter struct {
	Status ClinicStatus
}

type Service interface {
	Create(context.Context, CreateClinicRequest) (Clinic, error)
	List(context.Context, ListClinicRequest) ([]Clinic, error)
	GetByID(context.Context, string) (Clinic, error)
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("clinic_not_found")
)
