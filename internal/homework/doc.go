// Package homework holds the pure part of the review notifier: the status
// catalog, the response shape validator and the status formatter.
//
// Nothing here performs I/O or logs. Callers decide what to do with errors;
// every error returned by this package matches one of the sentinels in
// errors.go via errors.Is.
package homework
