// Package poller runs the review-status loop: fetch statuses changed since
// the last poll, validate the response, format the newest record, send it,
// advance the timestamp, wait, repeat.
//
// One iteration never stops the loop. Errors of any kind (including
// panics) are logged with a stable kind label and counted, and the next
// iteration starts on schedule. Shutdown is observed only between
// iterations: an iteration that has started runs to completion.
package poller
