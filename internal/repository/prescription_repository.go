package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/prescription"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ prescription.Repository = (*PrescriptionRepository)(nil)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	if err := prescription.ValidateLines(p.Medications); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, p.PatientID, domain.RolePatient, prescription.ErrPatientNotFound); err != nil {
			return err
		}
		if err := requireUser(tx, p.PrescriberID, domain.RoleDoctor, prescription.ErrPrescriberNotFound); err != nil {
			return err
		}

		// Lines are inserted through the has-many association in the same statement batch.
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("inserting prescription: %w", err)
		}
		return nil
	})
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id int64) (*prescription.Prescription, error) {
	return findPrescription(r.db.WithContext(ctx), id)
}

func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID int64) ([]*prescription.Prescription, error) {
	db := r.db.WithContext(ctx)

	if err := requireUser(db, patientID, domain.RolePatient, prescription.ErrPatientNotFound); err != nil {
		return nil, err
	}

	var list []*prescription.Prescription
	err := withNames(db).
		Preload("Medications", orderLines).
		Where("prescriptions.patient_id = ?", patientID).
		Order("prescriptions.issued_on DESC").
		Order("prescriptions.id DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("listing prescriptions: %w", err)
	}
	return list, nil
}

func (r *PrescriptionRepository) Update(ctx context.Context, id int64, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error) {
	if err := prescription.ValidateUpdate(cmd); err != nil {
		return nil, err
	}

	var updated *prescription.Prescription
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPrescription(tx, id); err != nil {
			return err
		}

		updates := map[string]any{"updated_at": time.Now().UTC()}
		if cmd.Instructions != nil {
			updates["instructions"] = *cmd.Instructions
		}
		if cmd.Status != nil {
			updates["status"] = *cmd.Status
		}
		if err := tx.Model(&prescription.Prescription{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating prescription: %w", err)
		}

		if cmd.Medications != nil {
			if err := tx.Where("prescription_id = ?", id).Delete(&prescription.MedicationLine{}).Error; err != nil {
				return fmt.Errorf("deleting medication lines: %w", err)
			}
			lines := prescription.Lines(id, *cmd.Medications)
			if err := tx.Create(&lines).Error; err != nil {
				return fmt.Errorf("inserting medication lines: %w", err)
			}
		}

		p, err := findPrescription(tx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PrescriptionRepository) SetStatus(ctx context.Context, id int64, status prescription.Status) (*prescription.Prescription, error) {
	if err := prescription.ValidateStatus(status); err != nil {
		return nil, err
	}

	var updated *prescription.Prescription
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPrescription(tx, id); err != nil {
			return err
		}

		err := tx.Model(&prescription.Prescription{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return fmt.Errorf("updating prescription status: %w", err)
		}

		p, err := findPrescription(tx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func withNames(db *gorm.DB) *gorm.DB {
	return db.Model(&prescription.Prescription{}).
		Select("prescriptions.*, COALESCE(pt.display_name, '') AS patient_name, COALESCE(pr.display_name, '') AS prescriber_name").
		Joins("LEFT JOIN users pt ON pt.id = prescriptions.patient_id").
		Joins("LEFT JOIN users pr ON pr.id = prescriptions.prescriber_id")
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("medication_lines.id ASC")
}

func findPrescription(db *gorm.DB, id int64) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := withNames(db).
		Preload("Medications", orderLines).
		Where("prescriptions.id = ?", id).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading prescription %d: %w", id, err)
	}
	return &p, nil
}

// lockPrescription takes a row lock (FOR UPDATE) on PostgreSQL so writers to
// the same prescription serialize. SQLite ignores the locking clause; its
// single writer connection gives the same guarantee.
func lockPrescription(tx *gorm.DB, id int64) error {
	var p prescription.Prescription
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("locking prescription %d: %w", id, err)
	}
	return nil
}

func requireUser(db *gorm.DB, id int64, role domain.Role, notFound error) error {
	var n int64
	err := db.Model(&domain.User{}).
		Where("id = ? AND role = ?", id, role).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("resolving %s %d: %w", role, id, err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
