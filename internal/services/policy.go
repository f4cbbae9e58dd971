package services

import (
	"context"
	"errors"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/repository"
)

// SessionWindow is how long after a customer's last inbound message the
// agent may still send free-form replies.
const SessionWindow = 24 * time.Hour

// TemplateReader is the template lookup surface the policy engine needs.
type TemplateReader interface {
	GetActiveByCategory(ctx context.Context, agentID int64, category string) (*model.Template, error)
	GetByName(ctx context.Context, agentID int64, name string) (*model.Template, error)
}

// PolicyDecision says whether the send must go out as a template, and with
// which template when it must.
type PolicyDecision struct {
	UseTemplate bool
	Template    *model.Template
}

// PolicyEngine decides free-form versus template for an outbound send. It
// only reads state; the composer acts on the decision.
type PolicyEngine struct {
	templates TemplateReader
	now       func() time.Time
}

func NewPolicyEngine(templates TemplateReader) *PolicyEngine {
	return &PolicyEngine{templates: templates, now: time.Now}
}

// Evaluate applies the session-window rules:
//
//  1. An explicit template send or a promotional send always uses a template.
//  2. Otherwise a missing or stale (older than SessionWindow) last inbound
//     timestamp forces a template.
//  3. Otherwise free-form is permitted.
//
// When a template is required the agent must hold at least one billing unit
// of credit; that is checked here, before any network call.
func (e *PolicyEngine) Evaluate(ctx context.Context, agent *model.Agent, customer *model.Customer, req *model.SendRequest) (*PolicyDecision, error) {
	required := req.Type == model.TypeTemplate || req.IsPromotional
	if !required {
		if customer.LastInboundAt == nil || e.now().Sub(*customer.LastInboundAt) > SessionWindow {
			required = true
		}
	}
	if !required {
		return &PolicyDecision{}, nil
	}

	tpl, err := e.resolveTemplate(ctx, agent.ID, req)
	if err != nil {
		return nil, err
	}

	if agent.CreditBalance < model.CreditUnit {
		return nil, ErrInsufficientCredit
	}

	return &PolicyDecision{UseTemplate: true, Template: tpl}, nil
}

func (e *PolicyEngine) resolveTemplate(ctx context.Context, agentID int64, req *model.SendRequest) (*model.Template, error) {
	var (
		tpl *model.Template
		err error
	)
	if req.TemplateName != "" {
		tpl, err = e.templates.GetByName(ctx, agentID, req.TemplateName)
	} else {
		tpl, err = e.templates.GetActiveByCategory(ctx, agentID, req.Category)
	}
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrTemplateUnavailable
		}
		return nil, err
	}
	if !tpl.Active {
		return nil, ErrTemplateUnavailable
	}
	return tpl, nil
}
