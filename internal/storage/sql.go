package storage

import (
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmgilman/go/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// blobRow is one stored blob.
type blobRow struct {
	Name      string `gorm:"primaryKey"`
	Data      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName specifies the table name for blobRow
func (blobRow) TableName() string {
	return "blobs"
}

// SQLStore is a Backend backed by a SQLite table, one row per blob name.
// Uses glebarez/sqlite, a pure Go driver, so no CGO is required.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL opens (creating if needed) the SQLite database at path and runs
// migrations. Use ":memory:" for an ephemeral database.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, backendError(err, "open", path)
	}
	return NewSQLStore(db)
}

// NewSQLStore uses an existing connection and migrates the blobs table.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&blobRow{}); err != nil {
		return nil, backendError(err, "migrate", "blobs")
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) Put(name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	row := blobRow{Name: name, Data: data}
	return backendError(s.db.Save(&row).Error, "put", name)
}

func (s *SQLStore) Get(name string) ([]byte, error) {
	var row blobRow
	if err := s.db.Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(name)
		}
		return nil, backendError(err, "get", name)
	}
	return row.Data, nil
}

func (s *SQLStore) Delete(name string) error {
	result := s.db.Where("name = ?", name).Delete(&blobRow{})
	if result.Error != nil {
		return backendError(result.Error, "delete", name)
	}
	if result.RowsAffected == 0 {
		return notFound(name)
	}
	return nil
}
