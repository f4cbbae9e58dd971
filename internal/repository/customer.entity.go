package repository

import (
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

type CustomerEntity struct {
	ID            int64      `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	AgentID       int64      `db:"agent_id"        gorm:"column:agent_id;not null;uniqueIndex:idx_customers_agent_phone"`
	Agent         *AgentEntity `gorm:"foreignKey:AgentID;references:ID;constraint:OnDelete:CASCADE"`
	Phone         string     `db:"phone"           gorm:"column:phone;not null;uniqueIndex:idx_customers_agent_phone"`
	Name          string     `db:"name"            gorm:"column:name"`
	AIEnabled     bool       `db:"ai_enabled"      gorm:"column:ai_enabled;not null;default:false"`
	Language      string     `db:"language"        gorm:"column:language"`
	LastInboundAt *time.Time `db:"last_inbound_at" gorm:"column:last_inbound_at"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(c *model.Customer) *CustomerEntity {
	if c == nil {
		return nil
	}
	return &CustomerEntity{
		ID:            c.ID,
		AgentID:       c.AgentID,
		Phone:         c.Phone,
		Name:          c.Name,
		AIEnabled:     c.AIEnabled,
		Language:      c.Language,
		LastInboundAt: c.LastInboundAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:            e.ID,
		AgentID:       e.AgentID,
		Phone:         e.Phone,
		Name:          e.Name,
		AIEnabled:     e.AIEnabled,
		Language:      e.Language,
		LastInboundAt: e.LastInboundAt,
	}
}
