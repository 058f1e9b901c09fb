package pharmacy

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
)

var ErrPharmacyNotFound = fmt.Errorf("pharmacy %w", domain.ErrNotFound)

// Pharmacy is seeded outside the service and never mutated by it.
type Pharmacy struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"column:name;type:varchar(255);not null;index" json:"name"`
	Address string `gorm:"column:address;type:text" json:"address"`
	Phone   string `gorm:"column:phone;type:varchar(30)" json:"phone"`
}

func (Pharmacy) TableName() string {
	return "pharmacies"
}

// Directory is the read-only pharmacy registry.
type Directory interface {
	List(ctx context.Context) ([]*Pharmacy, error)
	GetByID(ctx context.Context, id int64) (*Pharmacy, error)
}
