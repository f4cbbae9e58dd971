package repository

import (
	"context"
	"errors"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
)

var (
	// ErrNotFound is returned when a conversation message does not exist.
	ErrNotFound = errors.New("conversation message not found")
)

type ConversationRepository struct {
	*pg.DB
}

func NewConversationRepository(db *pg.DB) *ConversationRepository {
	return &ConversationRepository{
		db,
	}
}

func (r *ConversationRepository) Create(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error) {
	entity := toConversationEntity(msg)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toConversationModel(entity), nil
}

func (r *ConversationRepository) List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ConversationMessageEntity{})

	q = q.Where("agent_id = ?", f.AgentID)

	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Phone != nil && *f.Phone != "" {
		q = q.Joins("JOIN customers ON customers.id = conversation_messages.customer_id").
			Where("customers.phone = ?", *f.Phone)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", string(*f.Direction))
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "timestamp"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ConversationMessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toConversationModels(entities), total, nil
}
