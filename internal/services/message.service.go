package services

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/media"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/repository"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/prom"
)

type AgentRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Agent, error)
	DebitCredit(ctx context.Context, agentID, amount int64) error
}

type CustomerRepository interface {
	GetByPhone(ctx context.Context, agentID int64, phone string) (*model.Customer, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error)
	List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error)
}

type DeliveryLogRepository interface {
	Upsert(ctx context.Context, d *model.DeliveryLogEntry) (*model.DeliveryLogEntry, error)
}

// Provider is the messaging-provider surface the composer dispatches to.
type Provider interface {
	SendMessage(ctx context.Context, accessToken, phoneNumberID string, msg *whatsapp.OutboundMessage) (string, error)
	GetMediaDescriptor(ctx context.Context, accessToken, mediaID string) (*whatsapp.MediaDescriptor, error)
	DownloadMedia(ctx context.Context, accessToken, url string) ([]byte, string, error)
	UploadMedia(ctx context.Context, accessToken, phoneNumberID string, data []byte, mimeType, filename string) (string, error)
}

// MediaMirror re-hosts provider media in durable storage.
type MediaMirror interface {
	MirrorBatch(ctx context.Context, agentID int64, accessToken string, mediaIDs []string) ([]*media.Result, error)
	Rollback(ctx context.Context, results []*media.Result)
}

type MessageService struct {
	agents        AgentRepository
	customers     CustomerRepository
	conversations ConversationRepository
	deliveryLogs  DeliveryLogRepository
	provider      Provider
	mirror        MediaMirror
	policy        *PolicyEngine
	now           func() time.Time
}

func NewMessageService(
	agents AgentRepository,
	customers CustomerRepository,
	conversations ConversationRepository,
	deliveryLogs DeliveryLogRepository,
	provider Provider,
	mirror MediaMirror,
	policy *PolicyEngine,
) *MessageService {
	return &MessageService{
		agents:        agents,
		customers:     customers,
		conversations: conversations,
		deliveryLogs:  deliveryLogs,
		provider:      provider,
		mirror:        mirror,
		policy:        policy,
		now:           time.Now,
	}
}

var e164Pattern = regexp.MustCompile(`^\+\d{10,15}$`)

// NormalizePhone canonicalizes a caller-supplied phone number to E.164.
// Ten bare digits are assumed US and get country code 1.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 10 {
		d = "1" + d
	}
	phone := "+" + d
	if !e164Pattern.MatchString(phone) {
		return "", errors.Wrap(ErrInvalidPhoneFormat, raw)
	}
	return phone, nil
}

// outboundItem pairs one provider payload with the conversation row it
// produces when the dispatch succeeds.
type outboundItem struct {
	payload   *whatsapp.OutboundMessage
	body      string
	mediaType model.MediaType
	mediaURL  string
	caption   string
}

// Send runs the full outbound pipeline: normalize, resolve, apply the
// session-window policy, mirror media, build payloads, dispatch, persist,
// and debit credit for templated sends.
func (s *MessageService) Send(ctx context.Context, req *model.SendRequest) (*model.SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	phone, err := NormalizePhone(req.CustomerPhone)
	if err != nil {
		return nil, err
	}

	agent, err := s.agents.GetByID(ctx, req.AgentID)
	if err != nil {
		if errors.Is(err, repository.ErrAgentNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	customer, err := s.customers.GetByPhone(ctx, agent.ID, phone)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	decision, err := s.policy.Evaluate(ctx, agent, customer, req)
	if err != nil {
		return nil, err
	}

	mediaIDs := req.AllMediaIDs()
	if decision.UseTemplate && len(mediaIDs) > 0 {
		return nil, ErrMediaWithTemplate
	}
	if len(mediaIDs) > 1 && req.Type != model.TypeImage {
		return nil, ErrMultiMediaNotImage
	}

	var mirrored []*media.Result
	if !decision.UseTemplate && len(mediaIDs) > 0 {
		start := s.now()
		mirrored, err = s.mirror.MirrorBatch(ctx, agent.ID, agent.AccessToken, mediaIDs)
		if err != nil {
			return nil, err
		}
		prom.AddHistogram(prom.SystemGateway, prom.MetricMediaMirrorDuration, s.now().Sub(start).Seconds())

		want := mediaTypeForMessageType(req.Type)
		if mirrored[0].Format != want {
			// the batch already landed in storage; undo it before rejecting
			s.mirror.Rollback(ctx, mirrored)
			return nil, errors.Wrapf(ErrMediaFormatMismatch, "media resolved to %s, request type is %s", mirrored[0].Format, req.Type)
		}
	}

	var items []*outboundItem
	if decision.UseTemplate {
		item, err := s.buildTemplateItem(ctx, agent, phone, decision.Template, req)
		if err != nil {
			return nil, err
		}
		items = []*outboundItem{item}
	} else {
		items, err = buildFreeFormItems(phone, req, mediaIDs, mirrored)
		if err != nil {
			if len(mirrored) > 0 {
				s.mirror.Rollback(ctx, mirrored)
			}
			return nil, err
		}
	}

	result := s.dispatchAndPersist(ctx, agent, customer, req, items)

	if decision.UseTemplate && len(result.MessageIDs) > 0 {
		if err := s.agents.DebitCredit(ctx, agent.ID, model.CreditUnit); err != nil {
			logger.Error("credit debit failed after dispatch", "agent_id", agent.ID, "error", err)
		} else {
			prom.IncCounter(prom.SystemGateway, prom.MetricCreditDebitsTotal)
		}
	}

	if result.StoredMessageCount == 0 {
		if firstErr := firstItemError(result); firstErr != "" {
			return nil, errors.Wrap(ErrProviderRejected, firstErr)
		}
		return nil, ErrStorage
	}
	return result, nil
}

func (s *MessageService) dispatchAndPersist(ctx context.Context, agent *model.Agent, customer *model.Customer, req *model.SendRequest, items []*outboundItem) *model.SendResult {
	result := &model.SendResult{
		MessageIDs:     []string{},
		PerItemResults: make([]model.DispatchResult, 0, len(items)),
	}

	base := s.now().UTC()
	stored := 0
	for _, item := range items {
		id, err := s.provider.SendMessage(ctx, agent.AccessToken, agent.PhoneNumberID, item.payload)
		if err != nil {
			logger.Error("provider dispatch failed", "agent_id", agent.ID, "type", req.Type, "error", err)
			prom.IncCounterVec(prom.SystemGateway, prom.MetricSendsTotal, string(req.Type), "failure")
			result.PerItemResults = append(result.PerItemResults, model.DispatchResult{Error: err.Error()})
			continue
		}
		prom.IncCounterVec(prom.SystemGateway, prom.MetricSendsTotal, string(req.Type), "success")
		result.MessageIDs = append(result.MessageIDs, id)
		result.PerItemResults = append(result.PerItemResults, model.DispatchResult{MessageID: id, Success: true})

		// Staggered timestamps keep fan-out rows in a deterministic order.
		row := &model.ConversationMessage{
			AgentID:    agent.ID,
			CustomerID: customer.ID,
			Direction:  model.DirectionOutbound,
			Body:       item.body,
			MediaType:  item.mediaType,
			MediaURL:   item.mediaURL,
			Caption:    item.caption,
			Timestamp:  base.Add(time.Duration(stored) * time.Millisecond),
			Read:       true,
		}
		if _, err := s.conversations.Create(ctx, row); err != nil {
			logger.Error("store conversation message failed", "agent_id", agent.ID, "provider_message_id", id, "error", err)
			continue
		}
		stored++

		if _, err := s.deliveryLogs.Upsert(ctx, &model.DeliveryLogEntry{
			AgentID:           agent.ID,
			ProviderMessageID: id,
			Category:          req.Category,
			Status:            model.DeliverySent,
			UpdatedAt:         s.now().UTC(),
		}); err != nil {
			logger.Error("store delivery log failed", "provider_message_id", id, "error", err)
		}
	}
	result.StoredMessageCount = stored
	return result
}

func (s *MessageService) buildTemplateItem(ctx context.Context, agent *model.Agent, phone string, tpl *model.Template, req *model.SendRequest) (*outboundItem, error) {
	header, err := s.resolveHeaderMedia(ctx, agent, tpl, req)
	if err != nil {
		return nil, err
	}
	if err := ValidateTemplateRequest(tpl, req); err != nil {
		return nil, err
	}

	rendered, display := RenderTemplate(tpl, req, header)
	return &outboundItem{
		payload: &whatsapp.OutboundMessage{
			MessagingProduct: "whatsapp",
			To:               phone,
			Type:             "template",
			Template:         rendered,
		},
		body: renderEnvelopeJSON(rendered) + "\n" + display,
	}, nil
}

// resolveHeaderMedia turns the caller's header media spec into a provider
// media id (or link): an existing id is verified against the header's MIME
// class, a link is downloaded, sniffed and re-uploaded for a fresh id.
func (s *MessageService) resolveHeaderMedia(ctx context.Context, agent *model.Agent, tpl *model.Template, req *model.SendRequest) (*HeaderMedia, error) {
	if req.MediaHeader == nil || !tpl.HasMediaHeader() {
		return nil, nil
	}
	want := mediaTypeForHeader(tpl.Header.Type)

	if req.MediaHeader.ID != "" {
		desc, err := s.provider.GetMediaDescriptor(ctx, agent.AccessToken, req.MediaHeader.ID)
		if err != nil {
			return nil, errors.Wrap(ErrProviderRejected, err.Error())
		}
		format, err := media.Classify(desc.MimeType)
		if err != nil {
			return nil, err
		}
		if format != want {
			return nil, errors.Wrapf(ErrTemplateParamMismatch, "header media is %s, template declares %s", format, want)
		}
		return &HeaderMedia{Type: string(want), ID: req.MediaHeader.ID}, nil
	}

	data, mimeType, err := s.provider.DownloadMedia(ctx, agent.AccessToken, req.MediaHeader.Link)
	if err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	format, err := media.Classify(mimeType)
	if err != nil {
		return nil, err
	}
	if format != want {
		return nil, errors.Wrapf(ErrTemplateParamMismatch, "header link is %s, template declares %s", format, want)
	}

	id, err := s.provider.UploadMedia(ctx, agent.AccessToken, agent.PhoneNumberID, data, mimeType, "header"+extForHeader(mimeType))
	if err != nil {
		return nil, errors.Wrap(ErrProviderRejected, err.Error())
	}
	return &HeaderMedia{Type: string(want), ID: id}, nil
}

func buildFreeFormItems(phone string, req *model.SendRequest, mediaIDs []string, mirrored []*media.Result) ([]*outboundItem, error) {
	switch req.Type {
	case model.TypeText:
		body := strings.TrimSpace(req.Body)
		if body == "" {
			return nil, ErrEmptyContent
		}
		return []*outboundItem{{
			payload: &whatsapp.OutboundMessage{
				MessagingProduct: "whatsapp",
				To:               phone,
				Type:             "text",
				Text:             &whatsapp.TextObj{Body: body},
			},
			body: body,
		}}, nil

	case model.TypeImage, model.TypeVideo:
		if len(mediaIDs) == 0 {
			return nil, errors.Wrap(ErrInvalidRequest, "media_id is required")
		}
		items := make([]*outboundItem, 0, len(mediaIDs))
		for i, id := range mediaIDs {
			msg := &whatsapp.OutboundMessage{
				MessagingProduct: "whatsapp",
				To:               phone,
				Type:             string(req.Type),
			}
			obj := &whatsapp.MediaObj{ID: id, Caption: req.Caption}
			if req.Type == model.TypeImage {
				msg.Image = obj
			} else {
				msg.Video = obj
			}
			items = append(items, &outboundItem{
				payload:   msg,
				mediaType: mediaTypeForMessageType(req.Type),
				mediaURL:  mirrored[i].URL,
				caption:   req.Caption,
			})
		}
		return items, nil

	case model.TypeAudio:
		if len(mediaIDs) == 0 {
			return nil, errors.Wrap(ErrInvalidRequest, "media_id is required")
		}
		return []*outboundItem{{
			payload: &whatsapp.OutboundMessage{
				MessagingProduct: "whatsapp",
				To:               phone,
				Type:             "audio",
				Audio:            &whatsapp.MediaObj{ID: mediaIDs[0]},
			},
			mediaType: model.MediaAudio,
			mediaURL:  mirrored[0].URL,
		}}, nil

	case model.TypeDocument:
		if len(mediaIDs) == 0 {
			return nil, errors.Wrap(ErrInvalidRequest, "media_id is required")
		}
		return []*outboundItem{{
			payload: &whatsapp.OutboundMessage{
				MessagingProduct: "whatsapp",
				To:               phone,
				Type:             "document",
				Document:         &whatsapp.MediaObj{ID: mediaIDs[0], Caption: req.Caption, Filename: req.Filename},
			},
			mediaType: model.MediaDocument,
			mediaURL:  mirrored[0].URL,
			caption:   req.Caption,
		}}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedMessageType, "%s", req.Type)
	}
}

// List returns stored conversation messages for the read endpoint.
func (s *MessageService) List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error) {
	return s.conversations.List(ctx, f)
}

func mediaTypeForMessageType(t model.MessageType) model.MediaType {
	switch t {
	case model.TypeImage:
		return model.MediaImage
	case model.TypeVideo:
		return model.MediaVideo
	case model.TypeAudio:
		return model.MediaAudio
	case model.TypeDocument:
		return model.MediaDocument
	}
	return model.MediaNone
}

func mediaTypeForHeader(t model.HeaderType) model.MediaType {
	switch t {
	case model.HeaderTypeImage:
		return model.MediaImage
	case model.HeaderTypeVideo:
		return model.MediaVideo
	case model.HeaderTypeDocument:
		return model.MediaDocument
	}
	return model.MediaNone
}

func extForHeader(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "video/mp4":
		return ".mp4"
	case "application/pdf":
		return ".pdf"
	}
	return ""
}

func firstItemError(result *model.SendResult) string {
	for _, r := range result.PerItemResults {
		if !r.Success && r.Error != "" {
			return r.Error
		}
	}
	return ""
}
