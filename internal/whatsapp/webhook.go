package whatsapp

// Inbound webhook envelope for WhatsApp Business Account events
// (entry[].changes[].value).

type EventEnvelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value ChangeValue `json:"value"`
	Field string      `json:"field"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusEvent    `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

type InboundMessage struct {
	From        string          `json:"from"`
	ID          string          `json:"id"`
	Timestamp   string          `json:"timestamp"` // unix seconds, as string
	Type        string          `json:"type"`
	Text        *TextBody       `json:"text,omitempty"`
	Image       *InboundMedia   `json:"image,omitempty"`
	Video       *InboundMedia   `json:"video,omitempty"`
	Audio       *InboundMedia   `json:"audio,omitempty"`
	Document    *InboundMedia   `json:"document,omitempty"`
	Sticker     *InboundMedia   `json:"sticker,omitempty"`
	Button      *ButtonBody     `json:"button,omitempty"`
	Interactive *InteractiveObj `json:"interactive,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type InboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type ButtonBody struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type InteractiveObj struct {
	Type        string       `json:"type"`
	ButtonReply *ButtonReply `json:"button_reply,omitempty"`
	ListReply   *ListReply   `json:"list_reply,omitempty"`
}

type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ListReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type StatusEvent struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
