package dispatch

import (
	"time"
)

type Status string

const StatusSent Status = "sent"

// Record says a prescription was sent to a pharmacy. At most one record
// exists per (prescription, pharmacy) pair and records are never updated.
type Record struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PrescriptionID int64     `gorm:"column:prescription_id;not null;uniqueIndex:uq_dispatch_prescription_pharmacy,priority:1" json:"prescription_id"`
	PharmacyID     int64     `gorm:"column:pharmacy_id;not null;uniqueIndex:uq_dispatch_prescription_pharmacy,priority:2;index" json:"pharmacy_id"`
	SentAt         time.Time `gorm:"column:sent_at;not null" json:"sent_at"`
	Status         Status    `gorm:"column:status;type:varchar(20);not null;default:'sent'" json:"status"`
}

func (Record) TableName() string {
	return "dispatch_records"
}
