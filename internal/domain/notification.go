package domain

// NotificationJob is the unit handed to the push dispatcher.
// Transient: produced per event, never persisted as-is.
type NotificationJob struct {
	Tokens []string
	Title  string
	Body   string
}
