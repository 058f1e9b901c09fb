package service

import (
	"errors"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
)

var (
	ErrForbidden       = errors.New("forbidden: insufficient permissions")
	ErrUnauthenticated = errors.New("unauthenticated: caller identity required")
)

type AuditEntry struct {
	UserID       int64
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Changes      string
}

func entryFor(caller domain.Caller, action domain.AuditAction, resourceType, resourceID string) AuditEntry {
	return AuditEntry{
		UserID:       caller.UserID,
		UserRole:     caller.Role,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    caller.IP,
		RequestID:    caller.RequestID,
	}
}
