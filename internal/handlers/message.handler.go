package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/services"
	xhttp "github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/http"
)

type MessageService interface {
	Send(ctx context.Context, req *model.SendRequest) (*model.SendResult, error)
	List(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationMessage, int64, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages/send", h.SendMessage)
	e.GET("/conversations", h.ListConversations)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type sendResponse struct {
	Success            bool                   `json:"success"`
	MessageIDs         []string               `json:"message_ids"`
	StoredMessageCount int                    `json:"stored_message_count"`
	PerItemResults     []model.DispatchResult `json:"per_item_results"`
}

type listResponse struct {
	Items []*model.ConversationMessage `json:"items"`
	Total int64                        `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) SendMessage(ctx *xhttp.RequestCtx) {
	var req model.SendRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := h.svc.Send(ctx, &req)
	if err != nil {
		writeError(ctx, statusForError(err), err.Error())
		return
	}

	writeJSON(ctx, xhttp.StatusOK, sendResponse{
		Success:            true,
		MessageIDs:         res.MessageIDs,
		StoredMessageCount: res.StoredMessageCount,
		PerItemResults:     res.PerItemResults,
	})
}

func (h *MessageHandler) ListConversations(ctx *xhttp.RequestCtx) {
	var f model.ConversationFilter

	agentID, err := strconv.ParseInt(query(ctx, "agent_id"), 10, 64)
	if err != nil || agentID <= 0 {
		writeError(ctx, xhttp.StatusBadRequest, "agent_id is required")
		return
	}
	f.AgentID = agentID

	if v := query(ctx, "customer_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.CustomerID = &id
		}
	}
	if v := query(ctx, "phone"); v != "" {
		f.Phone = &v
	}
	if v := query(ctx, "direction"); v != "" {
		d := model.Direction(v)
		if d != model.DirectionInbound && d != model.DirectionOutbound {
			writeError(ctx, xhttp.StatusBadRequest, "direction must be inbound or outbound")
			return
		}
		f.Direction = &d
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

// statusForError maps the service error taxonomy onto HTTP statuses:
// fix-your-request failures get 400, missing entities 404, everything else
// (provider, storage) 500.
func statusForError(err error) int {
	switch {
	case services.IsValidation(err), services.IsPolicy(err):
		return xhttp.StatusBadRequest
	case services.IsNotFound(err):
		return xhttp.StatusNotFound
	default:
		return xhttp.StatusInternalServerError
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
