package repository

import (
	"context"
	"errors"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
)

type TemplateRepository struct {
	*pg.DB
}

func NewTemplateRepository(db *pg.DB) *TemplateRepository {
	return &TemplateRepository{
		db,
	}
}

// GetActiveByCategory returns the one active template for agent+category.
// When several are active the newest wins; the policy engine only needs a
// deterministic pick.
func (r *TemplateRepository) GetActiveByCategory(ctx context.Context, agentID int64, category string) (*model.Template, error) {
	var entity TemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("agent_id = ? AND category = ? AND active = ?", agentID, category, true).
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toTemplateModel(&entity), nil
}

func (r *TemplateRepository) GetByName(ctx context.Context, agentID int64, name string) (*model.Template, error) {
	var entity TemplateEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("agent_id = ? AND name = ?", agentID, name).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return toTemplateModel(&entity), nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	entity := toTemplateEntity(t)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toTemplateModel(entity), nil
}
