package valuations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for valuation storage
type Repository interface {
	Create(ctx context.Context, record *ParcelRecord) error
	Get(ctx context.Context, id uuid.UUID) (*ParcelRecord, error)
	List(ctx context.Context, filter ListFilter) ([]ParcelRecord, error)
	ListIDsByStatus(ctx context.Context, status Status, limit int) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ReplaceResults(ctx context.Context, record *ParcelRecord) error
}

// GormRepository stores valuations in PostgreSQL through gorm
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a new gorm-backed repository
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the valuation tables
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ParcelRecord{}, &BlockResultRecord{})
}

// Create inserts the parcel record and its result rows in one transaction
func (r *GormRepository) Create(ctx context.Context, record *ParcelRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return fmt.Errorf("failed to create valuation: %w", err)
		}
		if len(record.Results) == 0 {
			return nil
		}
		if err := tx.Create(&record.Results).Error; err != nil {
			return fmt.Errorf("failed to create valuation results: %w", err)
		}
		return nil
	})
}

// Get loads a valuation and its result rows in block order
func (r *GormRepository) Get(ctx context.Context, id uuid.UUID) (*ParcelRecord, error) {
	var record ParcelRecord
	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get valuation: %w", err)
	}
	return &record, nil
}

// List returns valuation headers, newest first, without result rows
func (r *GormRepository) List(ctx context.Context, filter ListFilter) ([]ParcelRecord, error) {
	query := r.db.WithContext(ctx).Model(&ParcelRecord{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Tier != "" {
		query = query.Where("overall_tier = ?", filter.Tier)
	}
	if filter.Region != "" {
		query = query.Where("region = ?", filter.Region)
	}
	if filter.ParcelID != "" {
		query = query.Where("parcel_id = ?", filter.ParcelID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query = query.Order("created_at DESC").Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []ParcelRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list valuations: %w", err)
	}
	return records, nil
}

// ListIDsByStatus returns up to limit valuation ids in the given status, oldest update first
func (r *GormRepository) ListIDsByStatus(ctx context.Context, status Status, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&ParcelRecord{}).
		Where("status = ?", status).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list valuation ids: %w", err)
	}
	return ids, nil
}

// UpdateStatus moves a valuation from one status to another. The write only
// applies while the stored status still equals from.
func (r *GormRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&ParcelRecord{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update valuation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return missingOr(db, id, fmt.Errorf("%w: valuation %s is no longer %s", ErrInvalidTransition, id, from))
	}
	return nil
}

// missingOr returns ErrNotFound when the valuation does not exist and
// conflict otherwise
func missingOr(db *gorm.DB, id uuid.UUID, conflict error) error {
	var count int64
	if err := db.Model(&ParcelRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check valuation: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return conflict
}

// ReplaceResults overwrites the aggregates, snapshots and result rows of a
// draft valuation. A valuation that left draft status yields ErrNotDraft.
func (r *GormRepository) ReplaceResults(ctx context.Context, record *ParcelRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ParcelRecord{}).
			Where("id = ? AND status = ?", record.ID, StatusDraft).
			Updates(map[string]interface{}{
				"parcel_id":               record.ParcelID,
				"operator_name":           record.OperatorName,
				"region":                  record.Region,
				"valuation_as_of_date":    record.ValuationAsOfDate,
				"total_parcel_area_ha":    record.TotalParcelAreaHa,
				"total_area_ha":           record.TotalAreaHa,
				"parcel_value_cop":        record.ParcelValueCOP,
				"parcel_value_cop_per_ha": record.ParcelValueCOPPerHa,
				"overall_tier":            record.OverallTier,
				"summary_flags":           record.SummaryFlags,
				"input_snapshot":          record.InputSnapshot,
				"lookups_snapshot":        record.LookupsSnapshot,
				"calculation_version":     record.CalculationVersion,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update valuation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return missingOr(tx, record.ID, fmt.Errorf("%w: valuation %s left draft status", ErrNotDraft, record.ID))
		}

		if err := tx.Where("valuation_id = ?", record.ID).Delete(&BlockResultRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete valuation results: %w", err)
		}
		if len(record.Results) == 0 {
			return nil
		}
		if err := tx.Create(&record.Results).Error; err != nil {
			return fmt.Errorf("failed to create valuation results: %w", err)
		}
		return nil
	})
}
