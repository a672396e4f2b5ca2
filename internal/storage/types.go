package storage

import (
	"time"

	"github.com/cockroachdb/errors"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDeduped = "deduped"
)

// Delivery records what happened to one notification.
// Keep it compact and schema-stable.
type Delivery struct {
	At        time.Time `json:"at"`
	Target    string    `json:"target"`
	ThreadID  int       `json:"thread_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Attempts  int       `json:"attempts"`
	MessageID int       `json:"message_id,omitempty"`
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}
