package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/pharmacy"
	"gorm.io/gorm"
)

var _ pharmacy.Directory = (*PharmacyDirectory)(nil)

type PharmacyDirectory struct {
	db *gorm.DB
}

func NewPharmacyDirectory(db *gorm.DB) *PharmacyDirectory {
	return &PharmacyDirectory{db: db}
}

func (d *PharmacyDirectory) List(ctx context.Context) ([]*pharmacy.Pharmacy, error) {
	var list []*pharmacy.Pharmacy
	if err := d.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("listing pharmacies: %w", err)
	}
	return list, nil
}

func (d *PharmacyDirectory) GetByID(ctx context.Context, id int64) (*pharmacy.Pharmacy, error) {
	return findPharmacy(d.db.WithContext(ctx), id)
}

func findPharmacy(db *gorm.DB, id int64) (*pharmacy.Pharmacy, error) {
	var p pharmacy.Pharmacy
	err := db.Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pharmacy.ErrPharmacyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pharmacy %d: %w", id, err)
	}
	return &p, nil
}
