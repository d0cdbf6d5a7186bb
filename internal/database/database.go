package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/order-api/internal/types"
)

// NewDatabase initializes a GORM connection and migrates the order schema.
// TranslateError is enabled so unique-constraint violations surface as
// gorm.ErrDuplicatedKey; the store relies on that to reject concurrent
// duplicate idempotency keys at write time.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&types.Order{},
		&types.Execution{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
