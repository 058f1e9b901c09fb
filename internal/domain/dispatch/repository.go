package dispatch

import "context"

type Ledger interface {
	// Dispatch resolves both references, rejects a repeated pair with
	// ErrAlreadySent and inserts a "sent" record, all in one transaction.
	Dispatch(ctx context.Context, prescriptionID, pharmacyID int64) (*Record, error)

	HasBeenSent(ctx context.Context, prescriptionID, pharmacyID int64) (bool, error)

	// ListByPrescription returns records oldest first.
	ListByPrescription(ctx context.Context, prescriptionID int64) ([]*Record, error)
}
