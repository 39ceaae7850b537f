package model

const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"
)

// WebhookBatch is the envelope the chat platform POSTs to the webhook
// endpoint. A single delivery carries zero or more events.
type WebhookBatch struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

type WebhookEvent struct {
	Type            string           `json:"type"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Timestamp       int64            `json:"timestamp,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Source          *EventSource     `json:"source,omitempty"`
	Message         *EventMessage    `json:"message,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type EventSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// EventMessage is the message body of a "message" event. Only text messages
// are ingested; every other message kind is skipped.
type EventMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsText reports whether the event is a text message with a non-empty body.
func (e *WebhookEvent) IsText() bool {
	return e.Type == EventTypeMessage &&
		e.Message != nil &&
		e.Message.Type == MessageTypeText &&
		e.Message.Text != ""
}
