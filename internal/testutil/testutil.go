// Package testutil builds throwaway SQLite databases for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/domain/pharmacy"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory database that is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:medrx_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	db, err := database.Connect(config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: dsn})
	if err != nil {
		t.Fatalf("connecting test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// SeedUser inserts an identity with a fixed id.
func SeedUser(t testing.TB, db *gorm.DB, id int64, name string, role domain.Role) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:          id,
		DisplayName: name,
		Email:       fmt.Sprintf("user%d@medrx.test", id),
		Role:        role,
		IsActive:    true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seeding user %d: %v", id, err)
	}
	return u
}

func SeedPharmacy(t testing.TB, db *gorm.DB, id int64, name string) *pharmacy.Pharmacy {
	t.Helper()

	p := &pharmacy.Pharmacy{
		ID:      id,
		Name:    name,
		Address: fmt.Sprintf("%d Market Street", id),
		Phone:   fmt.Sprintf("555-01%02d", id),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seeding pharmacy %d: %v", id, err)
	}
	return p
}
