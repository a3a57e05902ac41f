package intake

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Notification is a Mercado Pago webhook delivery. Only the fields used to
// recognise a payment event are decoded; everything else is ignored.
type Notification struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID FlexibleID `json:"id"`
	} `json:"data"`
	// ID is the legacy IPN form (?topic=payment&id=...).
	ID FlexibleID `json:"id"`
}

// FlexibleID accepts a JSON string or number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// IsPayment reports whether the notification declares a payment event.
func (n Notification) IsPayment() bool {
	return strings.EqualFold(n.Type, "payment") ||
		strings.EqualFold(n.Topic, "payment") ||
		strings.HasPrefix(strings.ToLower(n.Action), "payment.")
}

// PaymentID returns the referenced payment id, preferring data.id.
func (n Notification) PaymentID() string {
	if id := strings.TrimSpace(string(n.Data.ID)); id != "" {
		return id
	}
	// Legacy IPN deliveries carry the payment id at the top level; on v2
	// deliveries that field is the notification's own id.
	if n.Topic != "" {
		return strings.TrimSpace(string(n.ID))
	}
	return ""
}

// ParseNotification decodes a webhook body and fills missing fields from the
// query parameters Mercado Pago also sends (type, topic, data.id, id).
// A malformed body yields a notification built from the query alone.
func ParseNotification(body []byte, query map[string][]string) (Notification, error) {
	var n Notification
	var err error
	if len(bytes.TrimSpace(body)) > 0 {
		err = json.Unmarshal(body, &n)
		if err != nil {
			n = Notification{}
		}
	}

	get := func(key string) string {
		if v := query[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	if n.Type == "" {
		n.Type = get("type")
	}
	if n.Topic == "" {
		n.Topic = get("topic")
	}
	if n.Data.ID == "" {
		n.Data.ID = FlexibleID(get("data.id"))
	}
	if n.ID == "" {
		n.ID = FlexibleID(get("id"))
	}
	return n, err
}
