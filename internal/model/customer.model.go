package model

import "time"

type Customer struct {
	ID            int64      `json:"id"`
	AgentID       int64      `json:"agent_id"`
	Phone         string     `json:"phone"` // canonical E.164
	Name          string     `json:"name"`
	AIEnabled     bool       `json:"ai_enabled"`
	Language      string     `json:"language"`
	LastInboundAt *time.Time `json:"last_inbound_at"` // session-window anchor, nil until first inbound
}

func (Customer) TableName() string { return "customers" }
