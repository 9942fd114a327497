package ringcentral

import (
	"encoding/json"
	"strings"
	"time"
)

// InboundSMS is an inbound text extracted from a message-store notification
type InboundSMS struct {
	ID        string
	From      string
	To        string
	Text      string
	CreatedAt time.Time
}

type notification struct {
	Event string `json:"event"`
	Body  struct {
		ID           flexID        `json:"id"`
		Type         string        `json:"type"`
		Direction    string        `json:"direction"`
		From         phoneNumber   `json:"from"`
		To           []phoneNumber `json:"to"`
		Subject      string        `json:"subject"`
		CreationTime time.Time     `json:"creationTime"`
	} `json:"body"`
}

// ParseInboundSMS returns the SMS carried by a webhook notification.
// ok is false for anything that is not an inbound SMS.
func ParseInboundSMS(body []byte) (InboundSMS, bool, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return InboundSMS{}, false, err
	}
	if !strings.EqualFold(n.Body.Type, "SMS") || !strings.EqualFold(n.Body.Direction, "Inbound") || n.Body.ID == "" {
		return InboundSMS{}, false, nil
	}

	sms := InboundSMS{
		ID:        string(n.Body.ID),
		From:      n.Body.From.PhoneNumber,
		Text:      n.Body.Subject,
		CreatedAt: n.Body.CreationTime,
	}
	if len(n.Body.To) > 0 {
		sms.To = n.Body.To[0].PhoneNumber
	}
	return sms, true, nil
}
