package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuomag9/checkpulse/internal/models"
)

// GormStore keeps documents in the records table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on an open database. The schema is
// expected to be migrated already.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Create inserts a new document, failing if the key already exists
func (s *GormStore) Create(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	rec := models.Record{Collection: collection, ID: id, Doc: string(data)}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
	}
	return nil
}

// Read returns the raw document bytes
func (s *GormStore) Read(ctx context.Context, collection, id string) ([]byte, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return []byte(rec.Doc), nil
}

// Update replaces an existing document in a single statement
func (s *GormStore) Update(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %v", ErrWriteFailed, collection, id, err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("doc", string(data))
	if result.Error != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

// Remove deletes a document
func (s *GormStore) Remove(ctx context.Context, collection, id string) error {
	result := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&models.Record{})
	if result.Error != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrWriteFailed, collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

// List returns the ids stored in a collection, sorted
func (s *GormStore) List(ctx context.Context, collection string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("collection = ?", collection).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
