package notify

import "time"

// Level 通知级别。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification 是面向用户的一条提示。
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	AssetID   string    `json:"asset_id,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Detail is rendered by rich sinks such as Telegram; it is not sent to
	// subscribers.
	Detail *StructuredMessage `json:"-"`
}
