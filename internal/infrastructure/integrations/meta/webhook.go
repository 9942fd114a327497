package meta

import "encoding/json"

// WebhookPayload is the body Meta POSTs to the webhook for page and instagram objects
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

type MessagingEvent struct {
	Sender    struct{ ID string } `json:"sender"`
	Recipient struct{ ID string } `json:"recipient"`
	Timestamp int64               `json:"timestamp"`
	Message   *struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message"`
}

// InboundMessage is one non-echo text message extracted from a webhook
type InboundMessage struct {
	Object      string // "page" or "instagram"
	AccountID   string // page id or instagram account id the message was sent to
	SenderID    string
	MessageID   string
	Text        string
	TimestampMs int64
}

// ParseWebhook decodes body and returns its inbound messages.
// Echoes of our own sends and non-message events are dropped.
func ParseWebhook(body []byte) (string, []InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil, err
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			if ev.Message == nil || ev.Message.IsEcho || ev.Message.MID == "" {
				continue
			}
			out = append(out, InboundMessage{
				Object:      payload.Object,
				AccountID:   entry.ID,
				SenderID:    ev.Sender.ID,
				MessageID:   ev.Message.MID,
				Text:        ev.Message.Text,
				TimestampMs: ev.Timestamp,
			})
		}
	}
	return payload.Object, out, nil
}
