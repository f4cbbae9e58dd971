package repository

import (
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

type DeliveryLogEntity struct {
	ID                int64     `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	AgentID           int64     `db:"agent_id"            gorm:"column:agent_id;not null;index"`
	ProviderMessageID string    `db:"provider_message_id" gorm:"column:provider_message_id;not null;uniqueIndex"`
	Category          string    `db:"category"            gorm:"column:category"`
	Status            string    `db:"status"              gorm:"column:status;not null;index"`
	UpdatedAt         time.Time `db:"updated_at"          gorm:"column:updated_at"`
}

func (DeliveryLogEntity) TableName() string {
	return "delivery_logs"
}

func toDeliveryLogEntity(d *model.DeliveryLogEntry) *DeliveryLogEntity {
	if d == nil {
		return nil
	}
	return &DeliveryLogEntity{
		ID:                d.ID,
		AgentID:           d.AgentID,
		ProviderMessageID: d.ProviderMessageID,
		Category:          d.Category,
		Status:            string(d.Status),
		UpdatedAt:         d.UpdatedAt,
	}
}

func toDeliveryLogModel(e *DeliveryLogEntity) *model.DeliveryLogEntry {
	if e == nil {
		return nil
	}
	return &model.DeliveryLogEntry{
		ID:                e.ID,
		AgentID:           e.AgentID,
		ProviderMessageID: e.ProviderMessageID,
		Category:          e.Category,
		Status:            model.DeliveryStatus(e.Status),
		UpdatedAt:         e.UpdatedAt,
	}
}
