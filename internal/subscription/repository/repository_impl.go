package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetsub/internal/clock"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"gorm.io/gorm"
)

const recordColumns = `id, clinic_id, plan_id, payment_method_id, subscription_group, ref_number,
	amount_paid, extra_accounts_number, start_date, end_date, status, activation_date,
	remaining_days, created_by, comment, created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *subscriptiondomain.SubscriptionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscription_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ClinicID,
		record.PlanID,
		record.PaymentMethodID,
		record.SubscriptionGroup,
		record.RefNumber,
		record.AmountPaid,
		record.ExtraAccountsNumber,
		record.StartDate,
		record.EndDate,
		record.Status,
		record.ActivationDate,
		record.RemainingDays,
		record.CreatedBy,
		record.Comment,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.SubscriptionRecord, error) {
	return r.findOne(ctx, db, `SELECT `+recordColumns+` FROM subscription_records WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.SubscriptionRecord, error) {
	return r.findOne(ctx, db, `SELECT `+recordColumns+` FROM subscription_records WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) FindActiveByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) (*subscriptiondomain.SubscriptionRecord, error) {
	return r.findOne(ctx, db,
		`SELECT `+recordColumns+` FROM subscription_records
		 WHERE clinic_id = ? AND status = ?
		 ORDER BY start_date DESC
		 LIMIT 1`,
		clinicID,
		subscriptiondomain.SubscriptionStatusActive,
	)
}

func (r *repo) ListByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]subscriptiondomain.SubscriptionRecord, error) {
	return r.findMany(ctx, db,
		`SELECT `+recordColumns+` FROM subscription_records
		 WHERE clinic_id = ?
		 ORDER BY start_date DESC, id DESC`,
		clinicID,
	)
}

func (r *repo) ListNonTerminalByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]subscriptiondomain.SubscriptionRecord, error) {
	return r.findMany(ctx, db,
		`SELECT `+recordColumns+` FROM subscription_records
		 WHERE clinic_id = ? AND status IN ?
		 ORDER BY start_date ASC, id ASC`,
		clinicID,
		subscriptiondomain.NonTerminalStatuses,
	)
}

func (r *repo) ListStatusesByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) ([]subscriptiondomain.SubscriptionStatus, error) {
	type row struct {
		Status subscriptiondomain.SubscriptionStatus `gorm:"column:status"`
	}

	var rows []row
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT status FROM subscription_records WHERE clinic_id = ?`,
		clinicID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	statuses := make([]subscriptiondomain.SubscriptionStatus, 0, len(rows))
	for _, item := range rows {
		statuses = append(statuses, item.Status)
	}
	return statuses, nil
}

func (r *repo) ExistsByClinicAndStatus(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, status subscriptiondomain.SubscriptionStatus) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscription_records WHERE clinic_id = ? AND status = ?`,
		clinicID,
		status,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Close(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	from, to subscriptiondomain.SubscriptionStatus,
	endDate *time.Time,
	at time.Time,
) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscription_records
		 SET status = ?, end_date = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		endDate,
		at,
		id,
		from,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) UpdateStatus(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	from, to subscriptiondomain.SubscriptionStatus,
	activationDate *time.Time,
	at time.Time,
) (int64, error) {
	var result *gorm.DB
	if activationDate != nil {
		result = db.WithContext(ctx).Exec(
			`UPDATE subscription_records
			 SET status = ?, activation_date = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			to,
			*activationDate,
			at,
			id,
			from,
		)
	} else {
		result = db.WithContext(ctx).Exec(
			`UPDATE subscription_records
			 SET status = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			to,
			at,
			id,
			from,
		)
	}
	return result.RowsAffected, result.Error
}

func (r *repo) ListSweepCandidateClinics(ctx context.Context, db *gorm.DB, today time.Time) ([]snowflake.ID, error) {
	type row struct {
		ClinicID snowflake.ID `gorm:"column:clinic_id"`
	}

	var rows []row
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT clinic_id FROM subscription_records
		 WHERE (status = ? AND end_date < ?)
		    OR (status = ? AND start_date <= ?)
		 ORDER BY clinic_id ASC`,
		subscriptiondomain.SubscriptionStatusActive,
		today,
		subscriptiondomain.SubscriptionStatusUpcoming,
		today,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, item := range rows {
		ids = append(ids, item.ClinicID)
	}
	return ids, nil
}

func (r *repo) ListExpirable(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, today time.Time) ([]subscriptiondomain.SubscriptionRecord, error) {
	return r.findMany(ctx, db,
		`SELECT `+recordColumns+` FROM subscription_records
		 WHERE clinic_id = ? AND status = ? AND end_date < ?
		 ORDER BY end_date ASC, id ASC`,
		clinicID,
		subscriptiondomain.SubscriptionStatusActive,
		today,
	)
}

func (r *repo) ListActivatable(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, today time.Time) ([]subscriptiondomain.SubscriptionRecord, error) {
	return r.findMany(ctx, db,
		`SELECT `+recordColumns+` FROM subscription_records
		 WHERE clinic_id = ? AND status = ? AND start_date <= ?
		 ORDER BY start_date ASC, id ASC`,
		clinicID,
		subscriptiondomain.SubscriptionStatusUpcoming,
		today,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*subscriptiondomain.SubscriptionRecord, error) {
	var record subscriptiondomain.SubscriptionRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	normalizeDates(&record)
	return &record, nil
}

func (r *repo) findMany(ctx context.Context, db *gorm.DB, query string, args ...any) ([]subscriptiondomain.SubscriptionRecord, error) {
	var records []subscriptiondomain.SubscriptionRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	for i := range records {
		normalizeDates(&records[i])
	}
	return records, nil
}

// normalizeDates pins DATE columns to midnight UTC regardless of driver location.
func normalizeDates(record *subscriptiondomain.SubscriptionRecord) {
	record.StartDate = clock.ToDate(record.StartDate)
	if record.EndDate != nil {
		end := clock.ToDate(*record.EndDate)
		record.EndDate = &end
	}
}
