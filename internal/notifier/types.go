package notifier

import "time"

// Config controls delivery policy. Zero values fall back to defaults; see
// applyLocked.
type Config struct {
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	AttemptTimeout  time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

type HistoryItem struct {
	At        time.Time
	Text      string
	MessageID int
}

const historyCap = 300
