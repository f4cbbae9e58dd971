package model

import (
	"errors"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MediaType string

const (
	MediaNone     MediaType = ""
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
	MediaSticker  MediaType = "sticker"
)

// ConversationMessage is one logical message in an agent/customer
// conversation. Append-only; an outbound request naming N media items
// produces N rows with the same caption and strictly increasing timestamps
// so chat order stays deterministic.
type ConversationMessage struct {
	ID         int64     `json:"id"`
	AgentID    int64     `json:"agent_id"`
	CustomerID int64     `json:"customer_id"`
	Direction  Direction `json:"direction"`
	Body       string    `json:"body"` // text or serialized template render
	MediaType  MediaType `json:"media_type,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"` // mirrored copy, empty when mirroring failed
	Caption    string    `json:"caption,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

func (ConversationMessage) TableName() string { return "conversation_messages" }

// ConversationFilter controls List queries.
type ConversationFilter struct {
	AgentID    int64
	CustomerID *int64
	Phone      *string
	Direction  *Direction
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
	Desc       bool
}

// MessageType is the caller-requested outbound type.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeTemplate MessageType = "template"
)

// TemplateParam is one caller-supplied parameter for a template slot.
type TemplateParam struct {
	Type     string         `json:"type"` // text | currency | date_time
	Text     string         `json:"text,omitempty"`
	Currency *CurrencyParam `json:"currency,omitempty"`
	DateTime *DateTimeParam `json:"date_time,omitempty"`
}

type CurrencyParam struct {
	Code          string `json:"code"`
	Amount1000    *int   `json:"amount_1000"` // minor units x1000
	FallbackValue string `json:"fallback_value"`
}

type DateTimeParam struct {
	FallbackValue string `json:"fallback_value"`
}

// ButtonParam is a caller-supplied dynamic button payload.
type ButtonParam struct {
	SubType ButtonSubType   `json:"sub_type"`
	Index   int             `json:"index"`
	Params  []TemplateParam `json:"params,omitempty"`
}

// MediaHeaderSpec names the media for a template's media header: either an
// existing provider media id or a link to fetch and re-upload.
type MediaHeaderSpec struct {
	Type string `json:"type"` // image | video | document
	ID   string `json:"id,omitempty"`
	Link string `json:"link,omitempty"`
}

// SendRequest is the generic outbound send request.
type SendRequest struct {
	AgentID         int64            `json:"agent_id"`
	CustomerPhone   string           `json:"customer_phone"`
	Type            MessageType      `json:"type"`
	Category        string           `json:"category"`
	IsPromotional   bool             `json:"is_promotional"`
	Body            string           `json:"body,omitempty"`
	TemplateName    string           `json:"template_name,omitempty"`
	TemplateParams  []TemplateParam  `json:"template_params,omitempty"`
	HeaderParams    []TemplateParam  `json:"header_params,omitempty"`
	TemplateButtons []ButtonParam    `json:"template_buttons,omitempty"`
	MediaID         string           `json:"media_id,omitempty"`
	MediaIDs        []string         `json:"media_ids,omitempty"`
	Caption         string           `json:"caption,omitempty"`
	Filename        string           `json:"filename,omitempty"`
	MediaHeader     *MediaHeaderSpec `json:"media_header,omitempty"`
}

func (r SendRequest) Validate() error {
	if r.AgentID == 0 {
		return errors.New("agent_id is required")
	}
	if r.CustomerPhone == "" {
		return errors.New("customer_phone is required")
	}
	if r.Type == "" {
		return errors.New("type is required")
	}
	return nil
}

// AllMediaIDs flattens media_id / media_ids into one list.
func (r SendRequest) AllMediaIDs() []string {
	if len(r.MediaIDs) > 0 {
		return r.MediaIDs
	}
	if r.MediaID != "" {
		return []string{r.MediaID}
	}
	return nil
}

// DispatchResult is the per-item outcome of one provider dispatch.
type DispatchResult struct {
	MessageID string `json:"message_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// SendResult aggregates a whole send call.
type SendResult struct {
	MessageIDs         []string         `json:"message_ids"`
	StoredMessageCount int              `json:"stored_message_count"`
	PerItemResults     []DispatchResult `json:"per_item_results"`
}
