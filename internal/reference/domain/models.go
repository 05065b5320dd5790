package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionPlan is immutable reference data read once per transaction.
type SubscriptionPlan struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Code            string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	Price           int64        `json:"price" gorm:"not null"`
	DurationDays    int          `json:"duration_days" gorm:"not null"`
	AllowedAccounts int          `json:"allowed_accounts" gorm:"not null"`
	IsActive        bool         `json:"is_active" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }

type PaymentMethod struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	IsActive  bool         `json:"is_active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }
