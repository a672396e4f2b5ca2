// Package notifier delivers status messages to the configured Telegram chat.
//
// Send is synchronous and never returns an error: a failed delivery is
// logged (marked ErrNotifyFailure) and the caller moves on. Around the
// transport call the service applies a token-bucket rate limit, optional
// bounded retries with jittered exponential backoff, and an optional dedup
// window that suppresses identical text to the same chat.
//
// # Journal
//
// When a storage.Store is configured, every outcome (sent, failed, deduped)
// is appended to it, and dedup state can be persisted so suppression
// survives restarts.
//
// # History
//
// The service keeps a small in-memory history of recently sent messages.
package notifier
