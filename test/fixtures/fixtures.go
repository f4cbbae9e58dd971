package fixtures

import (
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/internal/model"
)

var (
	TestAgent1 = model.Agent{
		ID:            1,
		Name:          "Acme Retail",
		AccessToken:   "test-access-token-1",
		PhoneNumberID: "15550001111",
		CreditBalance: 1000,
	}

	TestAgent2 = model.Agent{
		ID:            2,
		Name:          "Bolt Logistics",
		AccessToken:   "test-access-token-2",
		PhoneNumberID: "15550002222",
		CreditBalance: 500,
		NotifyURL:     "http://localhost:9200/events",
	}

	TestAgentLowCredit = model.Agent{
		ID:            3,
		Name:          "Low Credit Co",
		AccessToken:   "test-access-token-3",
		PhoneNumberID: "15550003333",
		CreditBalance: 1,
	}

	TestAgentZeroCredit = model.Agent{
		ID:            4,
		Name:          "Zero Credit Co",
		AccessToken:   "test-access-token-4",
		PhoneNumberID: "15550004444",
		CreditBalance: 0,
	}
)

func NewTestCustomer(agentID int64, phone string, lastInbound *time.Time) *model.Customer {
	return &model.Customer{
		ID:            0,
		AgentID:       agentID,
		Phone:         phone,
		Name:          "Test Customer",
		LastInboundAt: lastInbound,
	}
}

// CustomerInsideWindow replied recently, so free-form sends are allowed.
func CustomerInsideWindow(agentID int64, phone string) *model.Customer {
	t := time.Now().Add(-1 * time.Hour)
	return NewTestCustomer(agentID, phone, &t)
}

// CustomerStaleWindow last replied outside the session window.
func CustomerStaleWindow(agentID int64, phone string) *model.Customer {
	t := time.Now().Add(-25 * time.Hour)
	return NewTestCustomer(agentID, phone, &t)
}

// CustomerNeverContacted has no inbound history at all.
func CustomerNeverContacted(agentID int64, phone string) *model.Customer {
	return NewTestCustomer(agentID, phone, nil)
}

func NewTestTemplate(agentID int64, name, category string) *model.Template {
	return &model.Template{
		ID:         0,
		AgentID:    agentID,
		Name:       name,
		Language:   "en_US",
		Category:   category,
		Active:     true,
		Body:       "Hello {{1}}, your order {{2}} is on the way.",
		BodyParams: []string{"name", "order_id"},
	}
}

func TemplateWithMediaHeader(agentID int64, name string, header model.HeaderType) *model.Template {
	tpl := NewTestTemplate(agentID, name, "utility")
	tpl.Header = &model.TemplateHeader{Type: header}
	return tpl
}

var (
	ValidPhoneNumbers = []string{
		"+14155552671",
		"+442071838750",
		"+33123456789",
		"+81312345678",
		"4155552671", // ten digits, normalized with a leading 1
	}

	InvalidPhoneNumbers = []string{
		"",
		"123",
		"invalid",
		"+",
		"abc123",
	}
)

func SendRequestText(agentID int64, phone, body string) model.SendRequest {
	return model.SendRequest{
		AgentID:       agentID,
		CustomerPhone: phone,
		Type:          model.TypeText,
		Body:          body,
	}
}

func SendRequestImages(agentID int64, phone string, mediaIDs []string, caption string) model.SendRequest {
	return model.SendRequest{
		AgentID:       agentID,
		CustomerPhone: phone,
		Type:          model.TypeImage,
		MediaIDs:      mediaIDs,
		Caption:       caption,
	}
}

func SendRequestTemplate(agentID int64, phone, category string, params []model.TemplateParam) model.SendRequest {
	return model.SendRequest{
		AgentID:        agentID,
		CustomerPhone:  phone,
		Type:           model.TypeTemplate,
		Category:       category,
		TemplateParams: params,
	}
}

func TextParams(values ...string) []model.TemplateParam {
	params := make([]model.TemplateParam, 0, len(values))
	for _, v := range values {
		params = append(params, model.TemplateParam{Type: "text", Text: v})
	}
	return params
}

func ConversationFilterByAgent(agentID int64) model.ConversationFilter {
	return model.ConversationFilter{
		AgentID: agentID,
		Limit:   50,
		Offset:  0,
		Desc:    false,
	}
}

func ConversationFilterByCustomer(agentID, customerID int64) model.ConversationFilter {
	return model.ConversationFilter{
		AgentID:    agentID,
		CustomerID: &customerID,
		Limit:      50,
		Offset:     0,
		Desc:       false,
	}
}

func ConversationFilterByTimeRange(agentID int64, from, to time.Time) model.ConversationFilter {
	return model.ConversationFilter{
		AgentID: agentID,
		From:    &from,
		To:      &to,
		Limit:   50,
		Offset:  0,
		Desc:    false,
	}
}
