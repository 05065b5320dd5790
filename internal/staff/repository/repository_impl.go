package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	"gorm.io/gorm"
)

const staffColumns = `id, clinic_id, full_name, email, role, password_hash, is_active, created_at, updated_at`

type repo struct{}

func Provide() staffdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *staffdomain.StaffAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO staff_accounts (`+staffColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.ClinicID,
		account.FullName,
		account.Email,
		account.Role,
		account.PasswordHash,
		account.IsActive,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*staffdomain.StaffAccount, error) {
	return r.find(ctx, db, `SELECT `+staffColumns+` FROM staff_accounts WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*staffdomain.StaffAccount, error) {
	return r.find(ctx, db, `SELECT `+staffColumns+` FROM staff_accounts WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, id snowflake.ID) (*staffdomain.StaffAccount, error) {
	var account staffdomain.StaffAccount
	if err := db.WithContext(ctx).Raw(query, id).Scan(&account).Error; err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) ListByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID, activeOnly bool) ([]staffdomain.StaffAccount, error) {
	stmt := db.WithContext(ctx).Model(&staffdomain.StaffAccount{}).Where("clinic_id = ?", clinicID)
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	var accounts []staffdomain.StaffAccount
	if err := stmt.Order("created_at ASC, id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) CountActiveByClinic(ctx context.Context, db *gorm.DB, clinicID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM staff_accounts WHERE clinic_id = ? AND is_active = ?`,
		clinicID,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE staff_accounts SET is_active = ?, updated_at = ? WHERE id = ? AND is_active = ?`,
		active,
		at,
		id,
		!active,
	)
	return result.RowsAffected, result.Error
}
