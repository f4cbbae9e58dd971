package model

// Agent is a tenant of the gateway: it owns a pool of customers, a set of
// message templates and a credit balance that rate-limits paid sends.
//
// CreditBalance is stored in integral hundredths of a credit so balance
// arithmetic stays exact; one templated send costs CreditUnit.
type Agent struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	TablePrefix   string `json:"table_prefix"`
	AccessToken   string `json:"-"`
	PhoneNumberID string `json:"phone_number_id"`
	CreditBalance int64  `json:"credit_balance"`
	NotifyURL     string `json:"notify_url"`
}

// CreditUnit is the cost of one templated message, in hundredths.
const CreditUnit int64 = 1

func (Agent) TableName() string { return "agents" }
