package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Entry describes one audited change. Actor and request id come from the context.
type Entry struct {
	ClinicID   snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	ClinicID string
	Action   string
	Limit    int
}

type Service interface {
	// Record writes the entry on db, which should be the caller's open transaction.
	Record(ctx context.Context, db *gorm.DB, entry Entry) error
	ListByClinic(ctx context.Context, req ListAuditLogRequest) ([]AuditLog, error)
}

var (
	ErrInvalidClinic = errors.New("invalid_clinic")
	ErrInvalidAction = errors.New("invalid_action")
)
