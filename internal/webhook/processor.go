package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/media"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/services"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/prom"
)

type AgentRepository interface {
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Agent, error)
}

type CustomerRepository interface {
	GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error)
	TouchLastInbound(ctx context.Context, customerID int64, t time.Time) error
}

type ConversationRepository interface {
	Create(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error)
}

type DeliveryLogRepository interface {
	UpdateStatus(ctx context.Context, providerMessageID string, status model.DeliveryStatus, at time.Time) error
}

type MediaMirror interface {
	MirrorByID(ctx context.Context, agentID int64, accessToken, mediaID string) (*media.Result, error)
}

// Notifier delivers downstream notification events, fire-and-forget.
type Notifier interface {
	Notify(url string, event *NotificationEvent)
}

// NotificationEvent is the JSON body POSTed to an agent's notify URL when
// an inbound message lands for an AI-enabled customer.
type NotificationEvent struct {
	AgentID       int64           `json:"agent_id"`
	CustomerID    int64           `json:"customer_id"`
	CustomerPhone string          `json:"customer_phone"`
	MessageType   string          `json:"message_type"`
	Body          string          `json:"body"`
	MediaType     model.MediaType `json:"media_type,omitempty"`
	MediaURL      string          `json:"media_url,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

type Config struct {
	VerifyToken string
	AppSecret   string
	// AllowUnsigned disables signature enforcement. Dev only.
	AllowUnsigned bool
}

// Processor handles provider webhook deliveries: handshake, signature
// verification and event dispatch. All processing errors are logged and
// swallowed so the provider always gets its 200.
type Processor struct {
	cfg           Config
	agents        AgentRepository
	customers     CustomerRepository
	conversations ConversationRepository
	deliveryLogs  DeliveryLogRepository
	mirror        MediaMirror
	dedup         *Deduper
	notifier      Notifier
	now           func() time.Time
}

func NewProcessor(
	cfg Config,
	agents AgentRepository,
	customers CustomerRepository,
	conversations ConversationRepository,
	deliveryLogs DeliveryLogRepository,
	mirror MediaMirror,
	dedup *Deduper,
	notifier Notifier,
) *Processor {
	return &Processor{
		cfg:           cfg,
		agents:        agents,
		customers:     customers,
		conversations: conversations,
		deliveryLogs:  deliveryLogs,
		mirror:        mirror,
		dedup:         dedup,
		notifier:      notifier,
		now:           time.Now,
	}
}

// Handshake implements the provider subscription handshake. It returns the
// challenge to echo and whether the handshake is accepted.
func (p *Processor) Handshake(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || token != p.cfg.VerifyToken || p.cfg.VerifyToken == "" {
		return "", false
	}
	return challenge, true
}

// VerifySignature checks the X-Hub-Signature-256 header against the HMAC
// of the raw body. Constant-time compare; fails closed unless unsigned
// requests are explicitly allowed.
func (p *Processor) VerifySignature(body []byte, header string) bool {
	if p.cfg.AllowUnsigned {
		return true
	}
	if p.cfg.AppSecret == "" {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.AppSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Process dispatches every message and status in the envelope. Per-item
// failures never abort the rest of the delivery.
func (p *Processor) Process(ctx context.Context, env *whatsapp.EventEnvelope) {
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, status := range value.Statuses {
				p.processStatus(ctx, status)
			}
			if len(value.Messages) == 0 {
				continue
			}

			agent, err := p.agents.GetByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
			if err != nil {
				logger.Error("webhook: no agent for phone number id", "phone_number_id", value.Metadata.PhoneNumberID, "error", err)
				continue
			}
			for _, msg := range value.Messages {
				p.processMessage(ctx, agent, value, msg)
			}
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, agent *model.Agent, value whatsapp.ChangeValue, msg whatsapp.InboundMessage) {
	if p.dedup.SeenBefore(msg.ID) {
		logger.Info("webhook: duplicate delivery skipped", "message_id", msg.ID)
		return
	}
	prom.IncCounterVec(prom.SystemGateway, prom.MetricWebhookEventsTotal, msg.Type)

	phone, err := services.NormalizePhone(msg.From)
	if err != nil {
		logger.Error("webhook: unusable sender phone", "message_id", msg.ID, "from", msg.From, "error", err)
		return
	}

	customer, err := p.customers.GetOrCreate(ctx, &model.Customer{
		AgentID: agent.ID,
		Phone:   phone,
		Name:    contactName(value.Contacts, msg.From),
	})
	if err != nil {
		logger.Error("webhook: resolve customer failed", "message_id", msg.ID, "phone", phone, "error", err)
		return
	}

	ts := p.eventTime(msg.Timestamp)
	if err := p.customers.TouchLastInbound(ctx, customer.ID, ts); err != nil {
		logger.Error("webhook: touch last inbound failed", "customer_id", customer.ID, "error", err)
	}

	row := &model.ConversationMessage{
		AgentID:    agent.ID,
		CustomerID: customer.ID,
		Direction:  model.DirectionInbound,
		Timestamp:  ts,
	}
	p.classify(ctx, agent, msg, row)

	if _, err := p.conversations.Create(ctx, row); err != nil {
		logger.Error("webhook: store message failed", "message_id", msg.ID, "error", err)
		return
	}

	if customer.AIEnabled && agent.NotifyURL != "" && p.notifier != nil {
		p.notifier.Notify(agent.NotifyURL, &NotificationEvent{
			AgentID:       agent.ID,
			CustomerID:    customer.ID,
			CustomerPhone: customer.Phone,
			MessageType:   msg.Type,
			Body:          row.Body,
			MediaType:     row.MediaType,
			MediaURL:      row.MediaURL,
			Timestamp:     row.Timestamp,
		})
	}
}

// classify fills body, media type and mirrored media URL from the typed
// message content. A failed mirror leaves the URL empty; the message is
// stored regardless.
func (p *Processor) classify(ctx context.Context, agent *model.Agent, msg whatsapp.InboundMessage, row *model.ConversationMessage) {
	mirrorMedia := func(m *whatsapp.InboundMedia, mediaType model.MediaType) {
		row.MediaType = mediaType
		if m == nil {
			logger.Warn("webhook: media message without media object", "message_id", msg.ID, "type", msg.Type)
			row.Body = "[" + msg.Type + "]"
			return
		}
		row.Caption = m.Caption
		if m.Caption != "" {
			row.Body = m.Caption
		} else {
			row.Body = "[" + msg.Type + "]"
		}
		res, err := p.mirror.MirrorByID(ctx, agent.ID, agent.AccessToken, m.ID)
		if err != nil {
			logger.Warn("webhook: media mirror failed, storing without url", "media_id", m.ID, "error", err)
			return
		}
		row.MediaURL = res.URL
	}

	switch msg.Type {
	case "text":
		if msg.Text != nil {
			row.Body = msg.Text.Body
		}
	case "image":
		mirrorMedia(msg.Image, model.MediaImage)
	case "video":
		mirrorMedia(msg.Video, model.MediaVideo)
	case "audio":
		mirrorMedia(msg.Audio, model.MediaAudio)
	case "document":
		mirrorMedia(msg.Document, model.MediaDocument)
	case "sticker":
		mirrorMedia(msg.Sticker, model.MediaSticker)
	case "button":
		if msg.Button != nil {
			row.Body = msg.Button.Text
		}
	case "interactive":
		row.Body = interactiveText(msg.Interactive)
	default:
		row.Body = "[unsupported message type: " + msg.Type + "]"
	}
	if row.Body == "" {
		row.Body = "[" + msg.Type + "]"
	}
}

func (p *Processor) processStatus(ctx context.Context, status whatsapp.StatusEvent) {
	prom.IncCounterVec(prom.SystemGateway, prom.MetricWebhookEventsTotal, "status")

	mapped, ok := deliveryStatus(status.Status)
	if !ok {
		logger.Warn("webhook: unknown delivery status", "status", status.Status, "message_id", status.ID)
		return
	}
	if err := p.deliveryLogs.UpdateStatus(ctx, status.ID, mapped, p.eventTime(status.Timestamp)); err != nil {
		logger.Warn("webhook: delivery status update failed", "message_id", status.ID, "status", status.Status, "error", err)
	}
}

func (p *Processor) eventTime(unixSeconds string) time.Time {
	if sec, err := strconv.ParseInt(unixSeconds, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC()
	}
	return p.now().UTC()
}

func deliveryStatus(s string) (model.DeliveryStatus, bool) {
	switch s {
	case "sent":
		return model.DeliverySent, true
	case "delivered":
		return model.DeliveryDelivered, true
	case "read":
		return model.DeliveryRead, true
	case "failed":
		return model.DeliveryFailed, true
	}
	return "", false
}

func contactName(contacts []whatsapp.Contact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}

func interactiveText(obj *whatsapp.InteractiveObj) string {
	if obj == nil {
		return ""
	}
	if obj.ButtonReply != nil {
		return obj.ButtonReply.Title
	}
	if obj.ListReply != nil {
		return obj.ListReply.Title
	}
	return ""
}
