// Package dbtest opens throwaway in-memory databases carrying the vetsub schema.
package dbtest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/vetsub/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE subscription_plans (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0,
		duration_days INTEGER NOT NULL,
		allowed_accounts INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE payment_methods (
		id INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE clinics (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'INACTIVE',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE subscription_records (
		id INTEGER PRIMARY KEY,
		clinic_id INTEGER NOT NULL REFERENCES clinics (id),
		plan_id INTEGER NOT NULL REFERENCES subscription_plans (id),
		payment_method_id INTEGER NOT NULL REFERENCES payment_methods (id),
		subscription_group TEXT NOT NULL,
		ref_number TEXT NOT NULL,
		amount_paid INTEGER NOT NULL DEFAULT 0,
		extra_accounts_number INTEGER NOT NULL DEFAULT 0,
		start_date DATE NOT NULL,
		end_date DATE,
		status TEXT NOT NULL,
		activation_date DATETIME,
		remaining_days INTEGER,
		created_by TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_subscription_records_one_active
		ON subscription_records (clinic_id) WHERE status = 'ACTIVE'`,
	`CREATE TABLE staff_accounts (
		id INTEGER PRIMARY KEY,
		clinic_id INTEGER NOT NULL REFERENCES clinics (id),
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_staff_accounts_clinic_email ON staff_accounts (clinic_id, lower(email))`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		clinic_id INTEGER,
		actor_id TEXT NOT NULL DEFAULT '',
		actor_role TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		request_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns a fresh in-memory database with the full schema applied.
// The pool is capped at one connection, so code under test must run all
// statements of a transaction on the transaction handle.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.StripRowLocks(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// NewNode returns a snowflake node for test fixtures.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	return node
}

type Plan struct {
	ID              snowflake.ID
	Code            string
	Name            string
	Price           int64
	DurationDays    int
	AllowedAccounts int
	Inactive        bool
}

// InsertPlan adds a subscription plan row.
func InsertPlan(t testing.TB, conn *gorm.DB, p Plan) {
	t.Helper()
	if p.Code == "" {
		p.Code = "plan-" + p.ID.String()
	}
	if p.Name == "" {
		p.Name = p.Code
	}
	require.NoError(t, conn.Exec(
		`INSERT INTO subscription_plans (id, code, name, price, duration_days, allowed_accounts, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Code, p.Name, p.Price, p.DurationDays, p.AllowedAccounts, !p.Inactive,
	).Error)
}

// InsertPaymentMethod adds a payment method row.
func InsertPaymentMethod(t testing.TB, conn *gorm.DB, id snowflake.ID, name string, active bool) {
	t.Helper()
	require.NoError(t, conn.Exec(
		`INSERT INTO payment_methods (id, code, name, is_active) VALUES (?, ?, ?, ?)`,
		id, "pm-"+id.String(), name, active,
	).Error)
}

// InsertClinic adds a clinic with the given stored status.
func InsertClinic(t testing.TB, conn *gorm.DB, id snowflake.ID, status string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, conn.Exec(
		`INSERT INTO clinics (id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, "Clinic "+id.String(), status, now, now,
	).Error)
}

type Record struct {
	ID                  snowflake.ID
	ClinicID            snowflake.ID
	PlanID              snowflake.ID
	PaymentMethodID     snowflake.ID
	Group               string
	StartDate           time.Time
	EndDate             *time.Time
	Status              string
	ExtraAccountsNumber int
	RemainingDays       *int
}

// InsertRecord adds a subscription record row as-is, bypassing lifecycle rules.
func InsertRecord(t testing.TB, conn *gorm.DB, r Record) {
	t.Helper()
	if r.Group == "" {
		r.Group = uuid.NewString()
	}
	now := time.Now().UTC()
	require.NoError(t, conn.Exec(
		`INSERT INTO subscription_records (
			id, clinic_id, plan_id, payment_method_id, subscription_group, ref_number,
			amount_paid, extra_accounts_number, start_date, end_date, status,
			remaining_days, created_by, comment, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, 'fixture', '', ?, ?)`,
		r.ID, r.ClinicID, r.PlanID, r.PaymentMethodID, r.Group, "REF-"+r.ID.String(),
		r.ExtraAccountsNumber, r.StartDate, r.EndDate, r.Status,
		r.RemainingDays, now, now,
	).Error)
}

// DatePtr returns a pointer to a civil date.
func DatePtr(t time.Time) *time.Time {
	return &t
}
