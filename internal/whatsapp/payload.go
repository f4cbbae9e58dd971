package whatsapp

// Outbound wire format for the WhatsApp Business Cloud API
// (POST /{phone_number_id}/messages).

type OutboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	Text             *TextObj     `json:"text,omitempty"`
	Image            *MediaObj    `json:"image,omitempty"`
	Video            *MediaObj    `json:"video,omitempty"`
	Audio            *MediaObj    `json:"audio,omitempty"`
	Document         *MediaObj    `json:"document,omitempty"`
	Sticker          *MediaObj    `json:"sticker,omitempty"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // documents only
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	SubType    string         `json:"sub_type,omitempty"`
	Parameters []ParameterObj `json:"parameters"`
	Index      string         `json:"index,omitempty"` // buttons only
}

type ParameterObj struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	Currency *CurrencyObj `json:"currency,omitempty"`
	DateTime *DateTimeObj `json:"date_time,omitempty"`
	Image    *MediaObj    `json:"image,omitempty"`
	Video    *MediaObj    `json:"video,omitempty"`
	Document *MediaObj    `json:"document,omitempty"`
}

type CurrencyObj struct {
	FallbackValue string `json:"fallback_value"`
	Code          string `json:"code"`
	Amount1000    int    `json:"amount_1000"`
}

type DateTimeObj struct {
	FallbackValue string `json:"fallback_value"`
}

// SendResponse is the provider's accepted-message envelope.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MediaDescriptor is the media-object lookup result
// (GET /{media_id}): a short-lived download URL plus the MIME type.
type MediaDescriptor struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// UploadResponse is returned by the media upload endpoint.
type UploadResponse struct {
	ID string `json:"id"`
}
