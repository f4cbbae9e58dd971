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
	ErrCustomerNotFound = errors.New("customer not found")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, agentID int64, phone string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("agent_id = ? AND phone = ?", agentID, phone).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return toCustomerModel(&entity), nil
}

// GetOrCreate resolves a customer by phone within agent scope, lazily
// creating the row on first inbound contact. The insert races with
// concurrent webhook deliveries, so conflicts fall back to a re-read.
func (r *CustomerRepository) GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	existing, err := r.GetByPhone(ctx, c.AgentID, c.Phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	entity := toCustomerEntity(c)
	err = r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}, {Name: "phone"}},
			DoNothing: true,
		}).
		Create(entity).
		Error
	if err != nil {
		return nil, err
	}

	if entity.ID != 0 {
		return toCustomerModel(entity), nil
	}
	// Lost the insert race; the winner's row is authoritative.
	return r.GetByPhone(ctx, c.AgentID, c.Phone)
}

// TouchLastInbound advances the session-window anchor. The conditional
// update keeps last_inbound_at monotonic even when the provider redelivers
// events out of order.
func (r *CustomerRepository) TouchLastInbound(ctx context.Context, customerID int64, t time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&CustomerEntity{}).
		Where("id = ? AND (last_inbound_at IS NULL OR last_inbound_at < ?)", customerID, t).
		Update("last_inbound_at", t)
	if result.Error != nil {
		return result.Error
	}
	// RowsAffected == 0 means a newer inbound already advanced the anchor,
	// which is fine.
	return nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCustomerModel(entity), nil
}
