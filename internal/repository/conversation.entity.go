package repository

import (
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

type ConversationMessageEntity struct {
	ID         int64           `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	AgentID    int64           `db:"agent_id"    gorm:"column:agent_id;not null;index"`
	CustomerID int64           `db:"customer_id" gorm:"column:customer_id;not null;index"`
	Customer   *CustomerEntity `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:CASCADE"`
	Direction  string          `db:"direction"   gorm:"column:direction;not null"`
	Body       string          `db:"body"        gorm:"column:body"`
	MediaType  string          `db:"media_type"  gorm:"column:media_type"`
	MediaURL   string          `db:"media_url"   gorm:"column:media_url"`
	Caption    string          `db:"caption"     gorm:"column:caption"`
	Timestamp  time.Time       `db:"timestamp"   gorm:"column:timestamp;not null;index"`
	Read       bool            `db:"read"        gorm:"column:read;not null;default:false"`
}

func (ConversationMessageEntity) TableName() string {
	return "conversation_messages"
}

func toConversationEntity(m *model.ConversationMessage) *ConversationMessageEntity {
	if m == nil {
		return nil
	}
	return &ConversationMessageEntity{
		ID:         m.ID,
		AgentID:    m.AgentID,
		CustomerID: m.CustomerID,
		Direction:  string(m.Direction),
		Body:       m.Body,
		MediaType:  string(m.MediaType),
		MediaURL:   m.MediaURL,
		Caption:    m.Caption,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}

func toConversationModel(e *ConversationMessageEntity) *model.ConversationMessage {
	if e == nil {
		return nil
	}
	return &model.ConversationMessage{
		ID:         e.ID,
		AgentID:    e.AgentID,
		CustomerID: e.CustomerID,
		Direction:  model.Direction(e.Direction),
		Body:       e.Body,
		MediaType:  model.MediaType(e.MediaType),
		MediaURL:   e.MediaURL,
		Caption:    e.Caption,
		Timestamp:  e.Timestamp,
		Read:       e.Read,
	}
}

func toConversationModels(entities []*ConversationMessageEntity) []*model.ConversationMessage {
	if entities == nil {
		return nil
	}
	models := make([]*model.ConversationMessage, len(entities))
	for i, e := range entities {
		models[i] = toConversationModel(e)
	}
	return models
}
