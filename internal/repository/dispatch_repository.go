package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/dispatch"
	"gorm.io/gorm"
)

var _ dispatch.Ledger = (*DispatchLedger)(nil)

type DispatchLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDispatchLedger(db *gorm.DB) *DispatchLedger {
	return &DispatchLedger{db: db, now: time.Now}
}

func (l *DispatchLedger) Dispatch(ctx context.Context, prescriptionID, pharmacyID int64) (*dispatch.Record, error) {
	var rec *dispatch.Record
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The prescription row lock serializes dispatches of the same prescription.
		if err := lockPrescription(tx, prescriptionID); err != nil {
			return err
		}
		if _, err := findPharmacy(tx, pharmacyID); err != nil {
			return err
		}

		sent, err := hasBeenSent(tx, prescriptionID, pharmacyID)
		if err != nil {
			return err
		}
		if sent {
			return dispatch.ErrAlreadySent
		}

		r := &dispatch.Record{
			PrescriptionID: prescriptionID,
			PharmacyID:     pharmacyID,
			SentAt:         l.now().UTC(),
			Status:         dispatch.StatusSent,
		}
		if err := tx.Create(r).Error; err != nil {
			switch {
			case isUniqueViolation(err):
				return dispatch.ErrAlreadySent
			case isForeignKeyViolation(err):
				return fmt.Errorf("dispatch reference %w", domain.ErrNotFound)
			}
			return fmt.Errorf("inserting dispatch record: %w", err)
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *DispatchLedger) HasBeenSent(ctx context.Context, prescriptionID, pharmacyID int64) (bool, error) {
	return hasBeenSent(l.db.WithContext(ctx), prescriptionID, pharmacyID)
}

func (l *DispatchLedger) ListByPrescription(ctx context.Context, prescriptionID int64) ([]*dispatch.Record, error) {
	db := l.db.WithContext(ctx)
	if _, err := findPrescription(db, prescriptionID); err != nil {
		return nil, err
	}

	var records []*dispatch.Record
	err := db.Where("prescription_id = ?", prescriptionID).
		Order("sent_at ASC").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing dispatch records: %w", err)
	}
	return records, nil
}

func hasBeenSent(db *gorm.DB, prescriptionID, pharmacyID int64) (bool, error) {
	var n int64
	err := db.Model(&dispatch.Record{}).
		Where("prescription_id = ? AND pharmacy_id = ?", prescriptionID, pharmacyID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking dispatch ledger: %w", err)
	}
	return n > 0, nil
}
