package domain

import "time"

type EventKind string

const (
	EventReceived  EventKind = "received"
	EventFailed    EventKind = "failed"
	EventUnhandled EventKind = "unhandled"
)

// NotificationEvent is the canonical form of one gateway callback. It lives
// only for the duration of processing; nothing persists it.
type NotificationEvent struct {
	Kind           EventKind
	RawKind        string
	OrderReference string
	TransactionID  string
	Amount         int64
	Currency       string
	Timestamp      time.Time
	FailureMessage string
}
