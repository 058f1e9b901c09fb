package prescription

import (
	"strings"
	"time"
)

// Status transitions permitted at the data layer:
//
//	active → completed
//	active → cancelled
//	any    → itself
//
// Leaving completed or cancelled is not blocked here; reopening is a policy
// decision for the caller.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Prescription struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID    int64 `gorm:"column:patient_id;not null;index:idx_prescriptions_patient_issued,priority:1" json:"patient_id"`
	PrescriberID int64 `gorm:"column:prescriber_id;not null;index" json:"prescriber_id"`

	// Joined from users on read.
	PatientName    string `gorm:"->;-:migration;column:patient_name" json:"patient_name,omitempty"`
	PrescriberName string `gorm:"->;-:migration;column:prescriber_name" json:"prescriber_name,omitempty"`

	IssuedOn     time.Time `gorm:"column:issued_on;not null;index:idx_prescriptions_patient_issued,priority:2" json:"issued_on"`
	Instructions string    `gorm:"column:instructions;type:text" json:"instructions,omitempty"`
	Status       Status    `gorm:"column:status;type:varchar(20);not null;default:'active';index" json:"status"`

	Medications []MedicationLine `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE" json:"medications"`
}

func (Prescription) TableName() string {
	return "prescriptions"
}

type MedicationLine struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	PrescriptionID int64  `gorm:"column:prescription_id;not null;index" json:"prescription_id"`
	Name           string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Dosage         string `gorm:"column:dosage;type:varchar(100);not null" json:"dosage"`       // e.g. "500mg"
	Frequency      string `gorm:"column:frequency;type:varchar(100);not null" json:"frequency"` // e.g. "3x/day"
	Duration       string `gorm:"column:duration;type:varchar(100);not null" json:"duration"`   // e.g. "10 days"
}

func (MedicationLine) TableName() string {
	return "medication_lines"
}

// IssueDate truncates t to the calendar day in UTC.
func IssueDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type MedicationInput struct {
	Name      string
	Dosage    string
	Frequency string
	Duration  string
}

func (in MedicationInput) toLine(prescriptionID int64) MedicationLine {
	return MedicationLine{
		PrescriptionID: prescriptionID,
		Name:           strings.TrimSpace(in.Name),
		Dosage:         strings.TrimSpace(in.Dosage),
		Frequency:      strings.TrimSpace(in.Frequency),
		Duration:       strings.TrimSpace(in.Duration),
	}
}

// Lines converts validated inputs into medication lines owned by prescriptionID.
func Lines(prescriptionID int64, inputs []MedicationInput) []MedicationLine {
	lines := make([]MedicationLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, in.toLine(prescriptionID))
	}
	return lines
}

type CreatePrescriptionCommand struct {
	PatientID    int64
	PrescriberID int64
	Instructions string
	Medications  []MedicationInput
}

// UpdatePrescriptionCommand is a partial update. A nil field is left untouched;
// a non-nil Medications replaces the whole set.
type UpdatePrescriptionCommand struct {
	Instructions *string
	Status       *Status
	Medications  *[]MedicationInput
}

func (c *UpdatePrescriptionCommand) IsEmpty() bool {
	return c.Instructions == nil && c.Status == nil && c.Medications == nil
}
