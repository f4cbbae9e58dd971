package model

type HeaderType string

const (
	HeaderTypeNone     HeaderType = ""
	HeaderTypeText     HeaderType = "TEXT"
	HeaderTypeImage    HeaderType = "IMAGE"
	HeaderTypeVideo    HeaderType = "VIDEO"
	HeaderTypeDocument HeaderType = "DOCUMENT"
)

type ButtonSubType string

const (
	ButtonQuickReply ButtonSubType = "quick_reply"
	ButtonVoiceCall  ButtonSubType = "voice_call"
	ButtonURL        ButtonSubType = "url"
)

// TemplateHeader is the declared header slot of a template. Media headers
// may carry an example handle that acts as a fallback when the caller
// supplies no header media.
type TemplateHeader struct {
	Type          HeaderType `json:"type"`
	Text          string     `json:"text,omitempty"`
	ParamCount    int        `json:"param_count,omitempty"` // named params in a TEXT header
	ExampleHandle string     `json:"example_handle,omitempty"`
}

type TemplateButton struct {
	SubType ButtonSubType `json:"sub_type"`
	Index   int           `json:"index"`
}

// Template is a provider-approved message template. Immutable at send
// time; the composer only reads it.
type Template struct {
	ID         int64            `json:"id"`
	AgentID    int64            `json:"agent_id"`
	Name       string           `json:"name"`
	Language   string           `json:"language"`
	Category   string           `json:"category"` // e.g. "utility", "marketing"
	Active     bool             `json:"active"`
	Header     *TemplateHeader  `json:"header,omitempty"`
	Body       string           `json:"body"`        // copy with {{1}}..{{n}} slots
	BodyParams []string         `json:"body_params"` // ordered named slots
	Buttons    []TemplateButton `json:"buttons,omitempty"`
}

func (Template) TableName() string { return "templates" }

func (t *Template) HasMediaHeader() bool {
	if t.Header == nil {
		return false
	}
	switch t.Header.Type {
	case HeaderTypeImage, HeaderTypeVideo, HeaderTypeDocument:
		return true
	}
	return false
}
