package handlers

import (
	"context"
	"encoding/json"

	"github.com/fasthttp/router"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
	xhttp "github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/http"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
)

type WebhookProcessor interface {
	Handshake(mode, token, challenge string) (string, bool)
	VerifySignature(body []byte, header string) bool
	Process(ctx context.Context, env *whatsapp.EventEnvelope)
}

type WebhookHandler struct {
	proc WebhookProcessor
	// detach runs event processing on its own goroutine so the provider
	// gets its 200 without waiting on mirrors or downstream calls.
	detach bool
}

func RegisterWebhookRoutes(r *router.Router, h *WebhookHandler) {
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
}

func NewWebhookHandler(proc WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{proc: proc, detach: true}
}

// Verify answers the provider's subscription handshake.
func (h *WebhookHandler) Verify(ctx *xhttp.RequestCtx) {
	mode := query(ctx, "hub.mode")
	token := query(ctx, "hub.verify_token")
	challenge := query(ctx, "hub.challenge")

	if mode == "" || token == "" {
		writeError(ctx, xhttp.StatusBadRequest, "missing hub.mode or hub.verify_token")
		return
	}
	echo, ok := h.proc.Handshake(mode, token, challenge)
	if !ok {
		writeError(ctx, xhttp.StatusForbidden, "verification failed")
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyString(echo)
}

// Receive accepts an event delivery. Once the envelope parses, the
// response is 200 no matter what happens inside processing.
func (h *WebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()

	if !h.proc.VerifySignature(body, string(ctx.Request.Header.Peek("X-Hub-Signature-256"))) {
		logger.Warn("webhook: rejected delivery with bad signature", "remote", ctx.RemoteIP().String())
		writeError(ctx, xhttp.StatusUnauthorized, "invalid signature")
		return
	}

	var env whatsapp.EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "malformed event payload")
		return
	}

	if h.detach {
		// Detached from the request: the provider's delivery timeout is
		// short and redeliveries are expensive. The goroutine runs outside
		// the server's recover middleware, so it needs its own.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("webhook: processing panicked", "panic", r)
				}
			}()
			h.proc.Process(context.Background(), &env)
		}()
	} else {
		h.proc.Process(context.Background(), &env)
	}

	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyString("OK")
}
