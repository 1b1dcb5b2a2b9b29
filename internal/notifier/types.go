package notifier

import "time"

// Config controls delivery throttling.
type Config struct {
	RatePerSec  int
	SendTimeout time.Duration
	HistorySize int
}

type HistoryItem struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"` // card | text
	Summary   string    `json:"summary"`
	MessageID int       `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}
