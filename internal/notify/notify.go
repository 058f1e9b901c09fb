// Package notify publishes dispatch notifications to downstream pharmacy
// integrations.
package notify

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/dispatch"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/prescription"
)

const EventPrescriptionDispatched = "prescription.dispatched"

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

type DispatchEvent struct {
	Type           string       `json:"type"`
	DispatchID     int64        `json:"dispatch_id"`
	PrescriptionID int64        `json:"prescription_id"`
	PharmacyID     int64        `json:"pharmacy_id"`
	PatientID      int64        `json:"patient_id"`
	PrescriberID   int64        `json:"prescriber_id"`
	Instructions   string       `json:"instructions,omitempty"`
	SentAt         time.Time    `json:"sent_at"`
	Medications    []Medication `json:"medications"`
	RequestID      string       `json:"request_id,omitempty"`
}

// NewDispatchEvent describes a committed dispatch record. p may be nil when the
// prescription could not be re-read; the event then carries only the ledger data.
func NewDispatchEvent(rec *dispatch.Record, p *prescription.Prescription, requestID string) DispatchEvent {
	ev := DispatchEvent{
		Type:           EventPrescriptionDispatched,
		DispatchID:     rec.ID,
		PrescriptionID: rec.PrescriptionID,
		PharmacyID:     rec.PharmacyID,
		SentAt:         rec.SentAt.UTC(),
		Medications:    []Medication{},
		RequestID:      requestID,
	}
	if p == nil {
		return ev
	}

	ev.PatientID = p.PatientID
	ev.PrescriberID = p.PrescriberID
	ev.Instructions = p.Instructions
	for _, m := range p.Medications {
		ev.Medications = append(ev.Medications, Medication{
			Name:      m.Name,
			Dosage:    m.Dosage,
			Frequency: m.Frequency,
			Duration:  m.Duration,
		})
	}
	return ev
}

type Publisher interface {
	PublishDispatched(ctx context.Context, ev DispatchEvent) error
	Close() error
}

// NopPublisher is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishDispatched(context.Context, DispatchEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
