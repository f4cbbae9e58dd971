package model

import "time"

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryLogEntry tracks the provider-side lifecycle of one outbound
// message. At most one active entry exists per provider message id;
// inbound status events mutate it in place.
type DeliveryLogEntry struct {
	ID                int64          `json:"id"`
	AgentID           int64          `json:"agent_id"`
	ProviderMessageID string         `json:"provider_message_id"`
	Category          string         `json:"category"`
	Status            DeliveryStatus `json:"status"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (DeliveryLogEntry) TableName() string { return "delivery_logs" }
