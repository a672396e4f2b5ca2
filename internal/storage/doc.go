// Package storage provides a minimal persistence layer used by the bot.
//
// It currently supports:
//   - Delivery journal appends (one record per notifier outcome)
//   - Optional notifier dedup state (to survive restarts)
package storage
