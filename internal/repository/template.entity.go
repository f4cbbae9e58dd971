package repository

import (
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

type TemplateEntity struct {
	ID         int64                  `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	AgentID    int64                  `db:"agent_id"    gorm:"column:agent_id;not null;uniqueIndex:idx_templates_agent_name_lang"`
	Agent      *AgentEntity           `gorm:"foreignKey:AgentID;references:ID;constraint:OnDelete:CASCADE"`
	Name       string                 `db:"name"        gorm:"column:name;not null;uniqueIndex:idx_templates_agent_name_lang"`
	Language   string                 `db:"language"    gorm:"column:language;not null;uniqueIndex:idx_templates_agent_name_lang"`
	Category   string                 `db:"category"    gorm:"column:category;not null;index"`
	Active     bool                   `db:"active"      gorm:"column:active;not null;default:true"`
	Header     *model.TemplateHeader  `db:"header"      gorm:"column:header;serializer:json"`
	Body       string                 `db:"body"        gorm:"column:body;type:text"`
	BodyParams []string               `db:"body_params" gorm:"column:body_params;serializer:json"`
	Buttons    []model.TemplateButton `db:"buttons"     gorm:"column:buttons;serializer:json"`
}

func (TemplateEntity) TableName() string {
	return "templates"
}

func toTemplateEntity(t *model.Template) *TemplateEntity {
	if t == nil {
		return nil
	}
	return &TemplateEntity{
		ID:         t.ID,
		AgentID:    t.AgentID,
		Name:       t.Name,
		Language:   t.Language,
		Category:   t.Category,
		Active:     t.Active,
		Header:     t.Header,
		Body:       t.Body,
		BodyParams: t.BodyParams,
		Buttons:    t.Buttons,
	}
}

func toTemplateModel(e *TemplateEntity) *model.Template {
	if e == nil {
		return nil
	}
	return &model.Template{
		ID:         e.ID,
		AgentID:    e.AgentID,
		Name:       e.Name,
		Language:   e.Language,
		Category:   e.Category,
		Active:     e.Active,
		Header:     e.Header,
		Body:       e.Body,
		BodyParams: e.BodyParams,
		Buttons:    e.Buttons,
	}
}
