package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/media"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
)

type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Agent, error) {
	args := m.Called(ctx, phoneNumberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func (m *MockCustomerRepository) TouchLastInbound(ctx context.Context, customerID int64, t time.Time) error {
	args := m.Called(ctx, customerID, t)
	return args.Error(0)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConversationMessage), args.Error(1)
}

type MockDeliveryLogRepository struct {
	mock.Mock
}

func (m *MockDeliveryLogRepository) UpdateStatus(ctx context.Context, providerMessageID string, status model.DeliveryStatus, at time.Time) error {
	args := m.Called(ctx, providerMessageID, status, at)
	return args.Error(0)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) MirrorByID(ctx context.Context, agentID int64, accessToken, mediaID string) (*media.Result, error) {
	args := m.Called(ctx, agentID, accessToken, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.Result), args.Error(1)
}

type recordingNotifier struct {
	urls   []string
	events []*NotificationEvent
}

func (n *recordingNotifier) Notify(url string, event *NotificationEvent) {
	n.urls = append(n.urls, url)
	n.events = append(n.events, event)
}

type fakeDedupStore struct {
	seen    map[string]bool
	failing bool
}

func (s *fakeDedupStore) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if s.failing {
		return false, errors.New("redis down")
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

type processorFixture struct {
	agents        *MockAgentRepository
	customers     *MockCustomerRepository
	conversations *MockConversationRepository
	deliveryLogs  *MockDeliveryLogRepository
	mirror        *MockMirror
	notifier      *recordingNotifier
	dedupStore    *fakeDedupStore
	processor     *Processor
}

func newProcessorFixture(cfg Config) *processorFixture {
	f := &processorFixture{
		agents:        new(MockAgentRepository),
		customers:     new(MockCustomerRepository),
		conversations: new(MockConversationRepository),
		deliveryLogs:  new(MockDeliveryLogRepository),
		mirror:        new(MockMirror),
		notifier:      &recordingNotifier{},
		dedupStore:    &fakeDedupStore{},
	}
	f.processor = NewProcessor(cfg, f.agents, f.customers, f.conversations, f.deliveryLogs, f.mirror,
		NewDeduper(f.dedupStore, time.Hour), f.notifier)
	return f
}

func textEnvelope(msgID, body string) *whatsapp.EventEnvelope {
	return &whatsapp.EventEnvelope{
		Object: "whatsapp_business_account",
		Entry: []whatsapp.Entry{{
			ID: "entry-1",
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.ChangeValue{
					MessagingProduct: "whatsapp",
					Metadata:         whatsapp.Metadata{PhoneNumberID: "555000"},
					Contacts: []whatsapp.Contact{{
						WaID:    "14155552671",
						Profile: whatsapp.ContactProfile{Name: "Ann"},
					}},
					Messages: []whatsapp.InboundMessage{{
						From:      "14155552671",
						ID:        msgID,
						Timestamp: "1756600000",
						Type:      "text",
						Text:      &whatsapp.TextBody{Body: body},
					}},
				},
			}},
		}},
	}
}

func TestHandshake(t *testing.T) {
	p := newProcessorFixture(Config{VerifyToken: "secret-token"}).processor

	challenge, ok := p.Handshake("subscribe", "secret-token", "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", challenge)

	_, ok = p.Handshake("subscribe", "wrong", "12345")
	assert.False(t, ok)

	_, ok = p.Handshake("unsubscribe", "secret-token", "12345")
	assert.False(t, ok)
}

func TestVerifySignature(t *testing.T) {
	p := newProcessorFixture(Config{AppSecret: "app-secret"}).processor
	body := []byte(`{"object":"whatsapp_business_account"}`)

	mac := hmac.New(sha256.New, []byte("app-secret"))
	mac.Write(body)
	good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, p.VerifySignature(body, good))
	assert.False(t, p.VerifySignature(body, "sha256=deadbeef"))
	assert.False(t, p.VerifySignature(body, ""))
	assert.False(t, p.VerifySignature(append(body, ' '), good))
}

func TestVerifySignature_AllowUnsigned(t *testing.T) {
	p := newProcessorFixture(Config{AllowUnsigned: true}).processor
	assert.True(t, p.VerifySignature([]byte("{}"), ""))
}

func TestProcess_TextMessage(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{
		ID: 1, AccessToken: "tok", PhoneNumberID: "555000", NotifyURL: "https://ai.example.com/hook",
	}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.MatchedBy(func(c *model.Customer) bool {
		return c.AgentID == 1 && c.Phone == "+14155552671" && c.Name == "Ann"
	})).Return(&model.Customer{ID: 9, AgentID: 1, Phone: "+14155552671", AIEnabled: true}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, int64(9), time.Unix(1756600000, 0).UTC()).Return(nil)

	var stored *model.ConversationMessage
	f.conversations.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.ConversationMessage)
	}).Return(&model.ConversationMessage{ID: 1}, nil)

	f.processor.Process(context.Background(), textEnvelope("wamid.in1", "hi there"))

	require.NotNil(t, stored)
	assert.Equal(t, model.DirectionInbound, stored.Direction)
	assert.Equal(t, "hi there", stored.Body)
	assert.Equal(t, model.MediaNone, stored.MediaType)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, "https://ai.example.com/hook", f.notifier.urls[0])
	assert.Equal(t, "hi there", f.notifier.events[0].Body)
}

func TestProcess_DuplicateDeliverySkipped(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{ID: 1}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil).Once()

	env := textEnvelope("wamid.dup", "hello")
	f.processor.Process(context.Background(), env)
	f.processor.Process(context.Background(), env)

	f.conversations.AssertNumberOfCalls(t, "Create", 1)
}

func TestProcess_DedupOutageProcessesAnyway(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.dedupStore.failing = true
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{ID: 1}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)

	env := textEnvelope("wamid.x", "hello")
	f.processor.Process(context.Background(), env)
	f.processor.Process(context.Background(), env)

	f.conversations.AssertNumberOfCalls(t, "Create", 2)
}

func TestProcess_ImageMirrorFailureStoresWithoutURL(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{ID: 1, AccessToken: "tok"}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mirror.On("MirrorByID", mock.Anything, int64(1), "tok", "media-1").Return(nil, errors.New("expired url"))

	var stored *model.ConversationMessage
	f.conversations.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.ConversationMessage)
	}).Return(&model.ConversationMessage{}, nil)

	env := textEnvelope("wamid.img", "")
	env.Entry[0].Changes[0].Value.Messages[0] = whatsapp.InboundMessage{
		From: "14155552671", ID: "wamid.img", Timestamp: "1756600000", Type: "image",
		Image: &whatsapp.InboundMedia{ID: "media-1", MimeType: "image/jpeg", Caption: "look"},
	}

	f.processor.Process(context.Background(), env)

	require.NotNil(t, stored)
	assert.Equal(t, model.MediaImage, stored.MediaType)
	assert.Empty(t, stored.MediaURL)
	assert.Equal(t, "look", stored.Body)
}

func TestProcess_ImageMirrored(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{ID: 1, AccessToken: "tok"}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mirror.On("MirrorByID", mock.Anything, int64(1), "tok", "media-1").Return(&media.Result{
		URL: "https://cdn/m.jpg", Format: model.MediaImage,
	}, nil)

	var stored *model.ConversationMessage
	f.conversations.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.ConversationMessage)
	}).Return(&model.ConversationMessage{}, nil)

	env := textEnvelope("wamid.img2", "")
	env.Entry[0].Changes[0].Value.Messages[0] = whatsapp.InboundMessage{
		From: "14155552671", ID: "wamid.img2", Timestamp: "1756600000", Type: "image",
		Image: &whatsapp.InboundMedia{ID: "media-1", MimeType: "image/jpeg"},
	}

	f.processor.Process(context.Background(), env)

	require.NotNil(t, stored)
	assert.Equal(t, "https://cdn/m.jpg", stored.MediaURL)
	assert.Equal(t, "[image]", stored.Body)
}

func TestProcess_MediaMessageWithoutMediaObject(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{ID: 1, AccessToken: "tok"}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var stored *model.ConversationMessage
	f.conversations.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*model.ConversationMessage)
	}).Return(&model.ConversationMessage{}, nil)

	// type says image but the image object is missing; the row is stored
	// with a placeholder body and no mirror attempt is made
	env := textEnvelope("wamid.noimg", "")
	env.Entry[0].Changes[0].Value.Messages[0] = whatsapp.InboundMessage{
		From: "14155552671", ID: "wamid.noimg", Timestamp: "1756600000", Type: "image",
	}

	f.processor.Process(context.Background(), env)

	require.NotNil(t, stored)
	assert.Equal(t, model.MediaImage, stored.MediaType)
	assert.Equal(t, "[image]", stored.Body)
	assert.Empty(t, stored.MediaURL)
	f.mirror.AssertNotCalled(t, "MirrorByID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_StatusEvent(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.deliveryLogs.On("UpdateStatus", mock.Anything, "wamid.out1", model.DeliveryDelivered, time.Unix(1756600100, 0).UTC()).Return(nil)

	f.processor.Process(context.Background(), &whatsapp.EventEnvelope{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.ChangeValue{
					Metadata: whatsapp.Metadata{PhoneNumberID: "555000"},
					Statuses: []whatsapp.StatusEvent{{
						ID: "wamid.out1", Status: "delivered", Timestamp: "1756600100",
					}},
				},
			}},
		}},
	})

	f.deliveryLogs.AssertExpectations(t)
	f.agents.AssertNotCalled(t, "GetByPhoneNumberID", mock.Anything, mock.Anything)
}

func TestProcess_NoNotifyWhenAIDisabled(t *testing.T) {
	f := newProcessorFixture(Config{})
	f.agents.On("GetByPhoneNumberID", mock.Anything, "555000").Return(&model.Agent{
		ID: 1, NotifyURL: "https://ai.example.com/hook",
	}, nil)
	f.customers.On("GetOrCreate", mock.Anything, mock.Anything).Return(&model.Customer{ID: 9, AIEnabled: false}, nil)
	f.customers.On("TouchLastInbound", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)

	f.processor.Process(context.Background(), textEnvelope("wamid.q", "hello"))

	assert.Empty(t, f.notifier.events)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := `{
	 "object": "whatsapp_business_account",
	 "entry": [{"id": "e", "changes": [{"field": "messages", "value": {
	   "messaging_product": "whatsapp",
	   "metadata": {"display_phone_number": "15550001111", "phone_number_id": "555000"},
	   "messages": [{"from": "14155552671", "id": "wamid.a", "timestamp": "1756600000",
	     "type": "interactive",
	     "interactive": {"type": "button_reply", "button_reply": {"id": "b1", "title": "Confirm"}}}]
	 }}]}]
	}`

	var env whatsapp.EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	require.Len(t, env.Entry, 1)
	msg := env.Entry[0].Changes[0].Value.Messages[0]
	assert.Equal(t, "interactive", msg.Type)
	assert.Equal(t, "Confirm", interactiveText(msg.Interactive))
}
