package repository

import (
	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

type AgentEntity struct {
	ID            int64  `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	Name          string `db:"name"            gorm:"column:name;not null"`
	TablePrefix   string `db:"table_prefix"    gorm:"column:table_prefix"`
	AccessToken   string `db:"access_token"    gorm:"column:access_token;not null"`
	PhoneNumberID string `db:"phone_number_id" gorm:"column:phone_number_id;not null;uniqueIndex"`
	CreditBalance int64  `db:"credit_balance"  gorm:"column:credit_balance;not null;default:0"`
	NotifyURL     string `db:"notify_url"      gorm:"column:notify_url"`
}

func (AgentEntity) TableName() string {
	return "agents"
}

func toAgentEntity(a *model.Agent) *AgentEntity {
	if a == nil {
		return nil
	}
	return &AgentEntity{
		ID:            a.ID,
		Name:          a.Name,
		TablePrefix:   a.TablePrefix,
		AccessToken:   a.AccessToken,
		PhoneNumberID: a.PhoneNumberID,
		CreditBalance: a.CreditBalance,
		NotifyURL:     a.NotifyURL,
	}
}

func toAgentModel(e *AgentEntity) *model.Agent {
	if e == nil {
		return nil
	}
	return &model.Agent{
		ID:            e.ID,
		Name:          e.Name,
		TablePrefix:   e.TablePrefix,
		AccessToken:   e.AccessToken,
		PhoneNumberID: e.PhoneNumberID,
		CreditBalance: e.CreditBalance,
		NotifyURL:     e.NotifyURL,
	}
}
