package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorRole string

const (
	ActorRoleSiteOwner   ActorRole = "SITE_OWNER"
	ActorRoleClinicOwner ActorRole = "CLINIC_OWNER"
	ActorRoleSystem      ActorRole = "SYSTEM"
)

const (
	ActionSubscriptionCreate     = "subscription.create"
	ActionSubscriptionSuspend    = "subscription.suspend"
	ActionSubscriptionReactivate = "subscription.reactivate"
	ActionSubscriptionRefund     = "subscription.refund"
	ActionSubscriptionExpire     = "subscription.expire"
	ActionSubscriptionActivate   = "subscription.activate"
	ActionStaffCreate            = "staff.create"
	ActionStaffDeactivate        = "staff.deactivate"
	ActionStaffReactivate        = "staff.reactivate"
)

const (
	TargetSubscriptionRecord = "subscription_record"
	TargetStaffAccount       = "staff_account"
)

// AuditLog is an append-only trail entry written in the same transaction as the change it describes.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ClinicID   *snowflake.ID     `json:"clinic_id,omitempty"`
	ActorID    string            `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"not null" json:"actor_role"`
	Action     string            `gorm:"not null" json:"action"`
	TargetType string            `gorm:"not null" json:"target_type"`
	TargetID   *string           `json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	RequestID  string            `gorm:"not null" json:"request_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	ClinicID snowflake.ID
	Action   string
	Limit    int
}
