// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for document
// metadata rows.
//
// All functions are context-aware, accept a *gorm.DB handle and scope every
// query by owner id. Rows of other owners are invisible: reads report
// ErrNotFound and writes report ErrNotOwner.
//
// Functions:
//
//   - UpsertDocument(ctx, db, rec) -> error
//     Inserts or replaces the row by id, refusing rows of other owners.
//
//   - ListDocuments(ctx, db, ownerID) -> []domain.DocumentRecord, error
//     Returns all rows of an owner, newest first.
//
//   - GetDocument / GetObjectPath(ctx, db, id, ownerID)
//     Single-row reads; ErrNotFound if missing.
//
//   - DeleteDocument(ctx, db, id, ownerID) -> error
//   - DeleteAllForOwner(ctx, db, ownerID) -> (int64, error)
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frandy73/Lumina/internal/domain"
)

// ErrEmptyOwner guards bulk operations against an unscoped delete.
var ErrEmptyOwner = errors.New("owner id must not be empty")

// UpsertDocument inserts rec or replaces the existing row with the same id.
// CreatedAt of an existing row is preserved. If the id is taken by another
// owner, nothing is written and ErrNotOwner is returned. An insert that
// loses a race with a concurrent first save is retried once as an update,
// so the later writer wins.
func UpsertDocument(ctx context.Context, db *gorm.DB, rec *domain.DocumentRecord) error {
	if strings.TrimSpace(rec.OwnerID) == "" {
		return ErrEmptyOwner
	}
	err := upsertDocument(ctx, db, rec)
	if isDuplicate(err) {
		err = upsertDocument(ctx, db, rec)
	}
	return err
}

func upsertDocument(ctx context.Context, db *gorm.DB, rec *domain.DocumentRecord) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.DocumentRecord
		err := tx.Select("id", "owner_id", "created_at").
			Where("id = ?", rec.ID).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := time.Now().UTC()
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			rec.UpdatedAt = now
			return tx.Create(rec).Error
		case err != nil:
			return err
		}

		if existing.OwnerID != rec.OwnerID {
			return ErrNotOwner
		}
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = time.Now().UTC()
		res := tx.Model(&domain.DocumentRecord{}).
			Where("id = ? AND owner_id = ?", rec.ID, rec.OwnerID).
			Updates(map[string]any{
				"name":        rec.Name,
				"size":        rec.Size,
				"type":        rec.Type,
				"upload_date": rec.UploadDate,
				"file_path":   rec.FilePath,
				"app_data":    rec.AppData,
				"updated_at":  rec.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListDocuments returns every row owned by ownerID, ordered by creation time
// descending.
func ListDocuments(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.DocumentRecord, error) {
	var out []domain.DocumentRecord
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Find(&out).Error
	return out, err
}

// GetDocument fetches a single row by id and owner, or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	if err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetObjectPath returns the recorded object path of a row. The path is nil
// when the row exists but its payload was never written.
func GetObjectPath(ctx context.Context, db *gorm.DB, id, ownerID string) (*string, error) {
	var row struct {
		FilePath *string
	}
	res := db.WithContext(ctx).
		Model(&domain.DocumentRecord{}).
		Select("file_path").
		Where("id = ? AND owner_id = ?", id, ownerID).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return row.FilePath, nil
}

// DeleteDocument removes a single row, returning ErrNotFound if the owner
// has no row with that id.
func DeleteDocument(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.DocumentRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllForOwner removes every row owned by ownerID and returns how many
// were deleted. It never runs without an owner filter.
func DeleteAllForOwner(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	if strings.TrimSpace(ownerID) == "" {
		return 0, ErrEmptyOwner
	}
	res := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&domain.DocumentRecord{})
	return res.RowsAffected, res.Error
}
