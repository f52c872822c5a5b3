package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/tidwall/gjson"

	"github.com/amoylab/hublink/internal/common/cnst"
)

// Priority ranks a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Notification is an out-of-band event delivered on the notification
// channel, outside any conversation.
type Notification struct {
	ID        ID               `json:"id"`
	Type      string           `json:"type"` // e.g. order_update, payout, review
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Priority  Priority         `json:"priority"`
	Data      NotificationData `json:"data"`
	ReadAt    *time.Time       `json:"readAt"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (Notification) Channel() string { return cnst.ChannelNotification }

// Unread reports whether the notification has not been read yet.
func (n Notification) Unread() bool { return n.ReadAt == nil }

var errDataNotObject = errors.New("notification data must be a JSON object")

// NotificationData is the key/value payload attached to a notification.
// It is kept as raw JSON and read through gjson paths.
type NotificationData struct {
	raw json.RawMessage
}

// NewNotificationData marshals values into a NotificationData.
func NewNotificationData(values map[string]any) (NotificationData, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return NotificationData{}, err
	}
	return NotificationData{raw: raw}, nil
}

// Get returns the value at a gjson path, e.g. "orderId" or "items.0.sku".
func (d NotificationData) Get(path string) gjson.Result {
	if len(d.raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(d.raw, path)
}

// Has reports whether the top-level key exists.
func (d NotificationData) Has(key string) bool {
	return d.Get(gjson.Escape(key)).Exists()
}

// Keys lists the top-level keys in document order.
func (d NotificationData) Keys() []string {
	var keys []string
	if len(d.raw) == 0 {
		return keys
	}
	gjson.ParseBytes(d.raw).ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}

// Raw returns the JSON object, or nil when no data was sent.
func (d NotificationData) Raw() json.RawMessage { return d.raw }

func (d NotificationData) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("{}"), nil
	}
	return d.raw, nil
}

func (d *NotificationData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		d.raw = nil
		return nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return errDataNotObject
	}
	d.raw = append(json.RawMessage(nil), data...)
	return nil
}
