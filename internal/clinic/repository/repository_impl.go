package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() clinicdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, clinic *clinicdomain.Clinic) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clinics (id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		clinic.ID,
		clinic.Name,
		clinic.Status,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*clinicdomain.Clinic, error) {
	return r.find(ctx, db, `SELECT id, name, status, created_at, updated_at FROM clinics WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*clinicdomain.Clinic, error) {
	return r.find(ctx, db, `SELECT id, name, status, created_at, updated_at FROM clinics WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, id snowflake.ID) (*clinicdomain.Clinic, error) {
	var clinic clinicdomain.Clinic
	if err := db.WithContext(ctx).Raw(query, id).Scan(&clinic).Error; err != nil {
		return nil, err
	}
	if clinic.ID == 0 {
		return nil, nil
	}
	return &clinic, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter clinicdomain.ListClinicFilter) ([]clinicdomain.Clinic, error) {
	var clinics []clinicdomain.Clinic
	tx := db.WithContext(ctx)
	if filter.Status != "" {
		tx = tx.Raw(`SELECT id, name, status, created_at, updated_at FROM clinics WHERE status = ? ORDER BY created_at DESC, id DESC`, filter.Status)
	} else {
		tx = tx.Raw(`SELECT id, name, status, created_at, updated_at FROM clinics ORDER BY created_at DESC, id DESC`)
	}
	if err := tx.Scan(&clinics).Error; err != nil {
		return nil, err
	}
	return clinics, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status clinicdomain.ClinicStatus, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clinics SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		at,
		id,
	).Error
}
