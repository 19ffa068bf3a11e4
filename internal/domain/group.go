package domain

// PendingKey is the date key assigned to messages that have not yet
// received a server commit timestamp. It always sorts before real dates.
const PendingKey = "pending"

// DateGroup is one calendar-date partition of the message list. Groups are
// derived fresh from every snapshot and never stored.
type DateGroup struct {
	DateKey  string
	Messages []Message
}
