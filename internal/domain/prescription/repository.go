package prescription

import "context"

// Repository persists prescriptions together with their medication lines.
// Every method runs as a single transaction.
type Repository interface {
	// Create checks that patient and prescriber resolve, then inserts the
	// prescription and all of its lines. Returns ErrPatientNotFound or
	// ErrPrescriberNotFound when a reference does not resolve.
	Create(ctx context.Context, p *Prescription) error

	// GetByID returns the prescription with medications and joined names.
	GetByID(ctx context.Context, id int64) (*Prescription, error)

	// ListByPatient returns prescriptions newest issue date first.
	ListByPatient(ctx context.Context, patientID int64) ([]*Prescription, error)

	// Update applies a partial update; Medications, when set, replaces every line.
	Update(ctx context.Context, id int64, cmd *UpdatePrescriptionCommand) (*Prescription, error)

	// SetStatus changes only the status column.
	SetStatus(ctx context.Context, id int64, status Status) (*Prescription, error)
}
