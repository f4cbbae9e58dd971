package services

import (
	"context"
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

func (m *MockAgentRepository) GetByID(ctx context.Context, id int64) (*model.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Agent), args.Error(1)
}

func (m *MockAgentRepository) DebitCredit(ctx context.Context, agentID, amount int64) error {
	args := m.Called(ctx, agentID, amount)
	return args.Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetByPhone(ctx context.Context, agentID int64, phone string) (*model.Customer, error) {
	args := m.Called(ctx, agentID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
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

func (m *MockConversationRepository) List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.ConversationMessage), args.Get(1).(int64), args.Error(2)
}

type MockDeliveryLogRepository struct {
	mock.Mock
}

func (m *MockDeliveryLogRepository) Upsert(ctx context.Context, d *model.DeliveryLogEntry) (*model.DeliveryLogEntry, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeliveryLogEntry), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) SendMessage(ctx context.Context, accessToken, phoneNumberID string, msg *whatsapp.OutboundMessage) (string, error) {
	args := m.Called(ctx, accessToken, phoneNumberID, msg)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetMediaDescriptor(ctx context.Context, accessToken, mediaID string) (*whatsapp.MediaDescriptor, error) {
	args := m.Called(ctx, accessToken, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*whatsapp.MediaDescriptor), args.Error(1)
}

func (m *MockProvider) DownloadMedia(ctx context.Context, accessToken, url string) ([]byte, string, error) {
	args := m.Called(ctx, accessToken, url)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockProvider) UploadMedia(ctx context.Context, accessToken, phoneNumberID string, data []byte, mimeType, filename string) (string, error) {
	args := m.Called(ctx, accessToken, phoneNumberID, data, mimeType, filename)
	return args.String(0), args.Error(1)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) MirrorBatch(ctx context.Context, agentID int64, accessToken string, mediaIDs []string) ([]*media.Result, error) {
	args := m.Called(ctx, agentID, accessToken, mediaIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*media.Result), args.Error(1)
}

func (m *MockMirror) Rollback(ctx context.Context, results []*media.Result) {
	m.Called(ctx, results)
}

type composerFixture struct {
	agents        *MockAgentRepository
	customers     *MockCustomerRepository
	conversations *MockConversationRepository
	deliveryLogs  *MockDeliveryLogRepository
	provider      *MockProvider
	mirror        *MockMirror
	templates     *MockTemplateReader
	svc           *MessageService
}

func newComposerFixture() *composerFixture {
	f := &composerFixture{
		agents:        new(MockAgentRepository),
		customers:     new(MockCustomerRepository),
		conversations: new(MockConversationRepository),
		deliveryLogs:  new(MockDeliveryLogRepository),
		provider:      new(MockProvider),
		mirror:        new(MockMirror),
		templates:     new(MockTemplateReader),
	}
	f.svc = NewMessageService(f.agents, f.customers, f.conversations, f.deliveryLogs, f.provider, f.mirror, NewPolicyEngine(f.templates))
	return f
}

func (f *composerFixture) withAgentAndCustomer(balance int64, lastInbound *time.Time) {
	f.agents.On("GetByID", mock.Anything, int64(1)).Return(&model.Agent{
		ID: 1, AccessToken: "tok", PhoneNumberID: "555000", CreditBalance: balance,
	}, nil)
	f.customers.On("GetByPhone", mock.Anything, int64(1), "+14155552671").Return(&model.Customer{
		ID: 9, AgentID: 1, Phone: "+14155552671", LastInboundAt: lastInbound,
	}, nil)
}

func recent() *time.Time {
	t := time.Now().Add(-30 * time.Minute)
	return &t
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"4155552671", "+14155552671"},
		{"(415) 555-2671", "+14155552671"},
		{"+1 415 555 2671", "+14155552671"},
		{"94771234567", "+94771234567"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "12345", "123456789012345678"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidPhoneFormat, bad)
	}
}

func TestSend_TextInsideWindow(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Type == "text" && msg.Text.Body == "hello" && msg.To == "+14155552671"
	})).Return("wamid.1", nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{ID: 1}, nil)
	f.deliveryLogs.On("Upsert", mock.Anything, mock.Anything).Return(&model.DeliveryLogEntry{}, nil)

	res, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "415-555-2671", Type: model.TypeText, Body: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wamid.1"}, res.MessageIDs)
	assert.Equal(t, 1, res.StoredMessageCount)
	f.agents.AssertNotCalled(t, "DebitCredit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_EmptyText(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeText, Body: "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSend_UnknownType(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: "contact",
	})
	assert.ErrorIs(t, err, ErrUnsupportedMessageType)
}

func TestSend_TwoImageFanOut(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())
	f.mirror.On("MirrorBatch", mock.Anything, int64(1), "tok", []string{"m1", "m2"}).Return([]*media.Result{
		{URL: "https://cdn/m1.jpg", Format: model.MediaImage},
		{URL: "https://cdn/m2.jpg", Format: model.MediaImage},
	}, nil)
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Type == "image" && msg.Image.ID == "m1" && msg.Image.Caption == "holiday"
	})).Return("wamid.a", nil).Once()
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Type == "image" && msg.Image.ID == "m2" && msg.Image.Caption == "holiday"
	})).Return("wamid.b", nil).Once()

	var rows []*model.ConversationMessage
	f.conversations.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		rows = append(rows, args.Get(1).(*model.ConversationMessage))
	}).Return(&model.ConversationMessage{}, nil)
	f.deliveryLogs.On("Upsert", mock.Anything, mock.Anything).Return(&model.DeliveryLogEntry{}, nil)

	res, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeImage,
		MediaIDs: []string{"m1", "m2"}, Caption: "holiday",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wamid.a", "wamid.b"}, res.MessageIDs)
	assert.Equal(t, 2, res.StoredMessageCount)

	require.Len(t, rows, 2)
	assert.Equal(t, "https://cdn/m1.jpg", rows[0].MediaURL)
	assert.Equal(t, "https://cdn/m2.jpg", rows[1].MediaURL)
	assert.Equal(t, rows[0].Caption, rows[1].Caption)
	assert.True(t, rows[1].Timestamp.After(rows[0].Timestamp), "fan-out timestamps must strictly increase")
}

func TestSend_PartialFanOutFailure(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())
	f.mirror.On("MirrorBatch", mock.Anything, int64(1), "tok", []string{"m1", "m2"}).Return([]*media.Result{
		{URL: "https://cdn/m1.jpg", Format: model.MediaImage},
		{URL: "https://cdn/m2.jpg", Format: model.MediaImage},
	}, nil)
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Image != nil && msg.Image.ID == "m1"
	})).Return("wamid.a", nil)
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Image != nil && msg.Image.ID == "m2"
	})).Return("", errors.New("provider 500"))
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)
	f.deliveryLogs.On("Upsert", mock.Anything, mock.Anything).Return(&model.DeliveryLogEntry{}, nil)

	res, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeImage,
		MediaIDs: []string{"m1", "m2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StoredMessageCount)
	require.Len(t, res.PerItemResults, 2)
	assert.True(t, res.PerItemResults[0].Success)
	assert.False(t, res.PerItemResults[1].Success)
}

func TestSend_MediaFormatMismatch(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())
	mirrored := []*media.Result{
		{URL: "https://cdn/m1.mp4", Key: "agents/1/media/m1.mp4", Format: model.MediaVideo},
	}
	f.mirror.On("MirrorBatch", mock.Anything, int64(1), "tok", []string{"m1"}).Return(mirrored, nil)
	f.mirror.On("Rollback", mock.Anything, mirrored).Return()

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeImage, MediaID: "m1",
	})
	assert.ErrorIs(t, err, ErrMediaFormatMismatch)
	f.provider.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	// the rejected batch must not leave mirrored copies behind
	f.mirror.AssertCalled(t, "Rollback", mock.Anything, mirrored)
}

func TestSend_MultiMediaOnlyForImages(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeVideo, MediaIDs: []string{"m1", "m2"},
	})
	assert.ErrorIs(t, err, ErrMultiMediaNotImage)
}

func TestSend_MediaForbiddenWithTemplate(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(100, recent())
	f.templates.On("GetByName", mock.Anything, int64(1), "welcome").Return(&model.Template{
		Name: "welcome", Language: "en", Active: true,
	}, nil)

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeTemplate,
		TemplateName: "welcome", MediaID: "m1",
	})
	assert.ErrorIs(t, err, ErrMediaWithTemplate)
}

func TestSend_TemplateZeroCredit(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, nil)
	f.templates.On("GetActiveByCategory", mock.Anything, int64(1), "utility").Return(&model.Template{
		Name: "order_update", Language: "en", Category: "utility", Active: true,
	}, nil)

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeText, Body: "hi", Category: "utility",
	})
	assert.ErrorIs(t, err, ErrInsufficientCredit)
	f.provider.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_TemplateDebitsOnce(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(100, nil)
	f.templates.On("GetActiveByCategory", mock.Anything, int64(1), "utility").Return(&model.Template{
		Name: "order_update", Language: "en", Category: "utility", Active: true,
		Body: "Order {{1}} shipped.", BodyParams: []string{"order_id"},
	}, nil)
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.MatchedBy(func(msg *whatsapp.OutboundMessage) bool {
		return msg.Type == "template" && msg.Template.Name == "order_update"
	})).Return("wamid.t", nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)
	f.deliveryLogs.On("Upsert", mock.Anything, mock.MatchedBy(func(d *model.DeliveryLogEntry) bool {
		return d.ProviderMessageID == "wamid.t" && d.Status == model.DeliverySent
	})).Return(&model.DeliveryLogEntry{}, nil)
	f.agents.On("DebitCredit", mock.Anything, int64(1), model.CreditUnit).Return(nil).Once()

	res, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeText, Body: "hi", Category: "utility",
		TemplateParams: []model.TemplateParam{{Type: "text", Text: "A-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StoredMessageCount)
	f.agents.AssertExpectations(t)
}

func TestSend_DebitFailureDoesNotFailSend(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(100, nil)
	f.templates.On("GetActiveByCategory", mock.Anything, int64(1), "utility").Return(&model.Template{
		Name: "order_update", Language: "en", Category: "utility", Active: true,
	}, nil)
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.Anything).Return("wamid.t", nil)
	f.conversations.On("Create", mock.Anything, mock.Anything).Return(&model.ConversationMessage{}, nil)
	f.deliveryLogs.On("Upsert", mock.Anything, mock.Anything).Return(&model.DeliveryLogEntry{}, nil)
	f.agents.On("DebitCredit", mock.Anything, int64(1), model.CreditUnit).Return(errors.New("ledger down"))

	res, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeText, Body: "hi", Category: "utility",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.StoredMessageCount)
}

func TestSend_AllDispatchesRejected(t *testing.T) {
	f := newComposerFixture()
	f.withAgentAndCustomer(0, recent())
	f.provider.On("SendMessage", mock.Anything, "tok", "555000", mock.Anything).Return("", errors.New("unreachable"))

	_, err := f.svc.Send(context.Background(), &model.SendRequest{
		AgentID: 1, CustomerPhone: "4155552671", Type: model.TypeText, Body: "hi",
	})
	assert.ErrorIs(t, err, ErrProviderRejected)
}
