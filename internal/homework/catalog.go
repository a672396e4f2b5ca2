package homework

// Status is a review outcome code as reported by the API.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

var verdicts = map[Status]string{
	StatusApproved:  "The work has been reviewed: the reviewer liked everything. Hooray!",
	StatusReviewing: "The work has been taken for review by the reviewer.",
	StatusRejected:  "The work has been reviewed: the reviewer has comments.",
}

// Statuses returns the closed set of known status codes in a stable order.
func Statuses() []Status {
	return []Status{StatusApproved, StatusReviewing, StatusRejected}
}

// Verdict returns the display text for s.
func Verdict(s Status) (string, bool) {
	v, ok := verdicts[s]
	return v, ok
}
