package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/services"
	xhttp "github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/http"
	"github.com/valyala/fasthttp"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, req *model.SendRequest) (*model.SendResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendResult), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.ConversationMessage), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestMessageHandler_SendMessage(t *testing.T) {
	t.Run("successful send", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody, _ := json.Marshal(model.SendRequest{
			AgentID:       1,
			CustomerPhone: "4155552671",
			Type:          model.TypeText,
			Body:          "hello",
		})
		svc.On("Send", mock.Anything, mock.MatchedBy(func(r *model.SendRequest) bool {
			return r.AgentID == 1 && r.Type == model.TypeText
		})).Return(&model.SendResult{
			MessageIDs:         []string{"wamid.1"},
			StoredMessageCount: 1,
			PerItemResults:     []model.DispatchResult{{MessageID: "wamid.1", Success: true}},
		}, nil)

		ctx := setupTestContext("POST", "/v1/messages/send", reqBody)
		handler.SendMessage(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response sendResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, []string{"wamid.1"}, response.MessageIDs)
		assert.Equal(t, 1, response.StoredMessageCount)
		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		handler := NewMessageHandler(new(MockMessageService))
		ctx := setupTestContext("POST", "/v1/messages/send", []byte("{not json"))
		handler.SendMessage(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("error mapping", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{services.ErrInvalidPhoneFormat, 400},
			{services.ErrTemplateParamMismatch, 400},
			{services.ErrInsufficientCredit, 400},
			{services.ErrCustomerNotFound, 404},
			{services.ErrAgentNotFound, 404},
			{services.ErrTemplateUnavailable, 404},
			{services.ErrProviderRejected, 500},
			{services.ErrStorage, 500},
		}
		for _, tc := range cases {
			svc := new(MockMessageService)
			svc.On("Send", mock.Anything, mock.Anything).Return(nil, tc.err)
			handler := NewMessageHandler(svc)

			body, _ := json.Marshal(model.SendRequest{AgentID: 1, CustomerPhone: "x", Type: model.TypeText})
			ctx := setupTestContext("POST", "/v1/messages/send", body)
			handler.SendMessage(ctx)

			assert.Equal(t, tc.status, ctx.Response.StatusCode(), tc.err.Error())

			var errBody map[string]string
			require.NoError(t, json.Unmarshal(ctx.Response.Body(), &errBody))
			assert.NotEmpty(t, errBody["error"])
		}
	})
}

func TestMessageHandler_ListConversations(t *testing.T) {
	t.Run("agent_id required", func(t *testing.T) {
		handler := NewMessageHandler(new(MockMessageService))
		ctx := setupTestContext("GET", "/v1/conversations", nil)
		handler.ListConversations(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("filters parsed", func(t *testing.T) {
		svc := new(MockMessageService)
		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.ConversationFilter) bool {
			return f.AgentID == 1 &&
				f.Direction != nil && *f.Direction == model.DirectionInbound &&
				f.Phone != nil && *f.Phone == "+14155552671" &&
				f.Limit == 10 && f.Desc
		})).Return([]*model.ConversationMessage{{ID: 1, Body: "hi"}}, int64(1), nil)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("GET", "/v1/conversations?agent_id=1&direction=inbound&phone=%2B14155552671&limit=10&order=desc", nil)
		handler.ListConversations(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		var response listResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(1), response.Total)
		require.Len(t, response.Items, 1)
	})

	t.Run("bad direction", func(t *testing.T) {
		handler := NewMessageHandler(new(MockMessageService))
		ctx := setupTestContext("GET", "/v1/conversations?agent_id=1&direction=sideways", nil)
		handler.ListConversations(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}
