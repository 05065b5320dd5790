package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the subscription store. Every method runs on the given handle
// so callers decide the transaction scope. Records are never deleted.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *SubscriptionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SubscriptionRecord, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SubscriptionRecord, error)
	ListByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]SubscriptionRecord, error)
	ListStatusesByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]SubscriptionStatus, error)
	FindActiveByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) (*SubscriptionRecord, error)
	ExistsByClinicAndStatus(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, status SubscriptionStatus) (bool, error)
	ListNonTerminalByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]SubscriptionRecord, error)
	// Close moves a record from one status to another and sets its end date.
	// It returns the number of rows changed; zero means the status no longer matched.
	Close(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to SubscriptionStatus, endDate *time.Time, at time.Time) (int64, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to SubscriptionStatus, activationDate *time.Time, at time.Time) (int64, error)
	// ListSweepCandidateClinics returns clinics holding an ACTIVE record ending
	// before today or an UPCOMING record starting on or before today.
	ListSweepCandidateClinics(ctx context.Context, db *gorm.DB, today time.Time) ([]snowflake.ID, error)
	ListExpirable(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, today time.Time) ([]SubscriptionRecord, error)
	ListActivatable(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, today time.Time) ([]SubscriptionRecord, error)
}
