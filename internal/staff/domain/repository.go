package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *StaffAccount) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*StaffAccount, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*StaffAccount, error)
	ListByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, activeOnly bool) ([]StaffAccount, error)
	CountActiveByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) (int64, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) (int64, error)
}
