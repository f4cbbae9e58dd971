package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/whatsapp"
)

// HeaderMedia is the resolved provider-side media for a template's media
// header: an uploaded media id or a direct link.
type HeaderMedia struct {
	Type string // image | video | document
	ID   string
	Link string
}

// ValidateTemplateRequest checks a send request against the template's
// declared schema. Every failure wraps ErrTemplateParamMismatch and names
// the offending slot.
func ValidateTemplateRequest(tpl *model.Template, req *model.SendRequest) error {
	if tpl.HasMediaHeader() {
		if req.MediaHeader == nil && tpl.Header.ExampleHandle == "" {
			return errors.Wrapf(ErrTemplateParamMismatch, "template %q requires a %s header", tpl.Name, strings.ToLower(string(tpl.Header.Type)))
		}
		if req.MediaHeader != nil {
			want := strings.ToLower(string(tpl.Header.Type))
			if !strings.EqualFold(req.MediaHeader.Type, want) {
				return errors.Wrapf(ErrTemplateParamMismatch, "header media type %q, template declares %q", req.MediaHeader.Type, want)
			}
			if req.MediaHeader.ID == "" && req.MediaHeader.Link == "" {
				return errors.Wrap(ErrTemplateParamMismatch, "header media needs an id or a link")
			}
		}
	} else if req.MediaHeader != nil {
		return errors.Wrapf(ErrTemplateParamMismatch, "template %q has no media header", tpl.Name)
	}

	if tpl.Header != nil && tpl.Header.Type == model.HeaderTypeText {
		if len(req.HeaderParams) != tpl.Header.ParamCount {
			return errors.Wrapf(ErrTemplateParamMismatch, "header expects %d parameter(s), got %d", tpl.Header.ParamCount, len(req.HeaderParams))
		}
		for i, p := range req.HeaderParams {
			if err := validateParam(p); err != nil {
				return errors.Wrapf(err, "header parameter %d", i+1)
			}
		}
	} else if len(req.HeaderParams) > 0 {
		return errors.Wrap(ErrTemplateParamMismatch, "header parameters supplied for a non-text header")
	}

	if len(req.TemplateParams) != len(tpl.BodyParams) {
		return errors.Wrapf(ErrTemplateParamMismatch, "body expects %d parameter(s), got %d", len(tpl.BodyParams), len(req.TemplateParams))
	}
	for i, p := range req.TemplateParams {
		if err := validateParam(p); err != nil {
			return errors.Wrapf(err, "body parameter %q", tpl.BodyParams[i])
		}
	}

	if len(req.TemplateButtons) != len(tpl.Buttons) {
		return errors.Wrapf(ErrTemplateParamMismatch, "template declares %d button(s), got %d", len(tpl.Buttons), len(req.TemplateButtons))
	}
	for i, b := range req.TemplateButtons {
		decl := tpl.Buttons[i]
		if b.SubType != decl.SubType || b.Index != decl.Index {
			return errors.Wrapf(ErrTemplateParamMismatch, "button %d: sub_type %q index %d, template declares %q index %d", i, b.SubType, b.Index, decl.SubType, decl.Index)
		}
		for j, p := range b.Params {
			if err := validateParam(p); err != nil {
				return errors.Wrapf(err, "button %d parameter %d", i, j+1)
			}
		}
	}

	return nil
}

func validateParam(p model.TemplateParam) error {
	switch p.Type {
	case "text":
		if p.Text == "" {
			return errors.Wrap(ErrTemplateParamMismatch, "text parameter is empty")
		}
	case "currency":
		if p.Currency == nil || p.Currency.Code == "" || p.Currency.FallbackValue == "" || p.Currency.Amount1000 == nil {
			return errors.Wrap(ErrTemplateParamMismatch, "currency parameter is incomplete")
		}
	case "date_time":
		if p.DateTime == nil || p.DateTime.FallbackValue == "" {
			return errors.Wrap(ErrTemplateParamMismatch, "date_time parameter is incomplete")
		}
	default:
		return errors.Wrapf(ErrTemplateParamMismatch, "unknown parameter type %q", p.Type)
	}
	return nil
}

// RenderTemplate builds the provider template envelope (dynamic components
// only) plus a best-effort display text for the stored conversation row.
// The request must already be validated.
func RenderTemplate(tpl *model.Template, req *model.SendRequest, header *HeaderMedia) (*whatsapp.TemplateObj, string) {
	out := &whatsapp.TemplateObj{
		Name:     tpl.Name,
		Language: whatsapp.LanguageObj{Code: tpl.Language},
	}

	if tpl.HasMediaHeader() {
		media := &whatsapp.MediaObj{}
		switch {
		case header != nil && header.ID != "":
			media.ID = header.ID
		case header != nil && header.Link != "":
			media.Link = header.Link
		default:
			media.ID = tpl.Header.ExampleHandle
		}
		param := whatsapp.ParameterObj{Type: strings.ToLower(string(tpl.Header.Type))}
		switch tpl.Header.Type {
		case model.HeaderTypeImage:
			param.Image = media
		case model.HeaderTypeVideo:
			param.Video = media
		case model.HeaderTypeDocument:
			param.Document = media
		}
		out.Components = append(out.Components, whatsapp.ComponentObj{
			Type:       "header",
			Parameters: []whatsapp.ParameterObj{param},
		})
	} else if tpl.Header != nil && tpl.Header.Type == model.HeaderTypeText && len(req.HeaderParams) > 0 {
		out.Components = append(out.Components, whatsapp.ComponentObj{
			Type:       "header",
			Parameters: toParameterObjs(req.HeaderParams),
		})
	}

	if len(req.TemplateParams) > 0 {
		out.Components = append(out.Components, whatsapp.ComponentObj{
			Type:       "body",
			Parameters: toParameterObjs(req.TemplateParams),
		})
	}

	for _, b := range req.TemplateButtons {
		if len(b.Params) == 0 {
			continue
		}
		out.Components = append(out.Components, whatsapp.ComponentObj{
			Type:       "button",
			SubType:    string(b.SubType),
			Index:      fmt.Sprintf("%d", b.Index),
			Parameters: toParameterObjs(b.Params),
		})
	}

	return out, displayText(tpl, req)
}

func toParameterObjs(params []model.TemplateParam) []whatsapp.ParameterObj {
	out := make([]whatsapp.ParameterObj, 0, len(params))
	for _, p := range params {
		obj := whatsapp.ParameterObj{Type: p.Type}
		switch p.Type {
		case "text":
			obj.Text = p.Text
		case "currency":
			obj.Currency = &whatsapp.CurrencyObj{
				FallbackValue: p.Currency.FallbackValue,
				Code:          p.Currency.Code,
				Amount1000:    *p.Currency.Amount1000,
			}
		case "date_time":
			obj.DateTime = &whatsapp.DateTimeObj{FallbackValue: p.DateTime.FallbackValue}
		}
		out = append(out, obj)
	}
	return out
}

// displayText substitutes {{n}} slots in the template body with the
// caller's text or fallback values. Best effort; unmatched slots stay as-is.
func displayText(tpl *model.Template, req *model.SendRequest) string {
	text := tpl.Body
	for i, p := range req.TemplateParams {
		slot := fmt.Sprintf("{{%d}}", i+1)
		text = strings.ReplaceAll(text, slot, paramDisplayValue(p))
	}
	return text
}

func paramDisplayValue(p model.TemplateParam) string {
	switch p.Type {
	case "text":
		return p.Text
	case "currency":
		return p.Currency.FallbackValue
	case "date_time":
		return p.DateTime.FallbackValue
	}
	return ""
}

// renderEnvelopeJSON serializes the rendered template for the stored
// conversation row.
func renderEnvelopeJSON(tpl *whatsapp.TemplateObj) string {
	b, err := json.Marshal(tpl)
	if err != nil {
		return ""
	}
	return string(b)
}
