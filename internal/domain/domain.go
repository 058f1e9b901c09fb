package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RolePharmacist   Role = "pharmacist"
	RoleReceptionist Role = "receptionist"
	RolePatient      Role = "patient"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePharmacist, RoleReceptionist, RolePatient:
		return true
	}
	return false
}

// CanPrescribe reports whether the role may create or amend prescriptions.
func (r Role) CanPrescribe() bool {
	return r == RoleDoctor
}

// User is an identity provisioned by the auth collaborator. The core only
// reads it to resolve patient and prescriber references.
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	DisplayName string `gorm:"column:display_name;type:varchar(200);not null" json:"display_name"`
	Email       string `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Role        Role   `gorm:"column:role;type:varchar(30);not null;index" json:"role"`
	IsActive    bool   `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

func (User) TableName() string {
	return "users"
}

// Caller is the already authenticated identity on whose behalf an operation runs.
type Caller struct {
	UserID    int64
	Role      Role
	IP        string
	RequestID string
}

func (c Caller) IsAuthenticated() bool {
	return c.UserID > 0 && c.Role.IsValid()
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    int64  `gorm:"column:user_id;not null;index"`
	UserRole  Role   `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:text"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
