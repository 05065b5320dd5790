package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, clinic *Clinic) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Clinic, error)
	// FindByIDForUpdate takes the per-clinic row lock held until the transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Clinic, error)
	List(ctx context.Context, db *gorm.DB, filter ListClinicFilter) ([]Clinic, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status ClinicStatus, at time.Time) error
}
