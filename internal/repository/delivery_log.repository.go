package repository

import (
	"context"
	"errors"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDeliveryLogNotFound = errors.New("delivery log entry not found")
)

type DeliveryLogRepository struct {
	*pg.DB
}

func NewDeliveryLogRepository(db *pg.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{
		db,
	}
}

// Upsert creates or replaces the entry for a provider message id. The
// unique index on provider_message_id keeps at most one active entry.
func (r *DeliveryLogRepository) Upsert(ctx context.Context, d *model.DeliveryLogEntry) (*model.DeliveryLogEntry, error) {
	entity := toDeliveryLogEntity(d)
	if entity.UpdatedAt.IsZero() {
		entity.UpdatedAt = time.Now().UTC()
	}

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}
	return toDeliveryLogModel(entity), nil
}

// UpdateStatus mutates the entry for a provider message id in response to
// an inbound status webhook event.
func (r *DeliveryLogRepository) UpdateStatus(ctx context.Context, providerMessageID string, status model.DeliveryStatus, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&DeliveryLogEntity{}).
		Where("provider_message_id = ?", providerMessageID).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeliveryLogNotFound
	}
	return nil
}

func (r *DeliveryLogRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*model.DeliveryLogEntry, error) {
	var entity DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryLogNotFound
		}
		return nil, err
	}
	return toDeliveryLogModel(&entity), nil
}
