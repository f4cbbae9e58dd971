package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrConcurrentUpdate   = errors.New("concurrent update detected")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

type AgentRepository struct {
	*pg.DB
}

func NewAgentRepository(db *pg.DB) *AgentRepository {
	return &AgentRepository{
		db,
	}
}

func (r *AgentRepository) GetByID(ctx context.Context, id int64) (*model.Agent, error) {
	var entity AgentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return toAgentModel(&entity), nil
}

// GetByPhoneNumberID resolves an agent by the provider-assigned sender
// identifier carried in webhook metadata.
func (r *AgentRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Agent, error) {
	var entity AgentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("phone_number_id = ?", phoneNumberID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return toAgentModel(&entity), nil
}

func (r *AgentRepository) Create(ctx context.Context, a *model.Agent) (*model.Agent, error) {
	entity := toAgentEntity(a)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toAgentModel(entity), nil
}

// DebitCredit performs atomic credit deduction with automatic retry.
// Used to charge one billing unit after a successful templated send.
func (r *AgentRepository) DebitCredit(ctx context.Context, agentID int64, amount int64) error {
	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := r.debitAttempt(ctx, agentID, amount)

		if err == nil {
			return nil
		}

		// Don't retry on permanent errors
		if errors.Is(err, ErrAgentNotFound) ||
			errors.Is(err, ErrInsufficientCredit) {
			return err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *AgentRepository) debitAttempt(ctx context.Context, agentID int64, amount int64) error {
	var entity AgentEntity

	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", agentID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAgentNotFound
		}
		return err
	}

	if entity.CreditBalance < amount {
		return ErrInsufficientCredit
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&AgentEntity{}).
		Where("id = ?", agentID).
		Update("credit_balance", gorm.Expr("credit_balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}

	return nil
}

func (r *AgentRepository) GetCreditBalance(ctx context.Context, agentID int64) (int64, error) {
	var entity AgentEntity
	err := r.Read(ctx).WithContext(ctx).
		Select("credit_balance").
		Where("id = ?", agentID).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAgentNotFound
		}
		return 0, err
	}

	return entity.CreditBalance, nil
}
