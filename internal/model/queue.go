package model

import "time"

// QueuedMessageState is the lifecycle of a QueuedMessage.
type QueuedMessageState string

const (
	QueuedPending   QueuedMessageState = "pending"
	QueuedConsumed  QueuedMessageState = "consumed"
	QueuedCancelled QueuedMessageState = "cancelled"
)

// QueuedMessage is a follow-up message held at-most-one-pending per session
// until the current run exits cleanly.
type QueuedMessage struct {
	ID        string
	SessionID string
	Message   string
	Variant   string
	State     QueuedMessageState
	CreatedAt time.Time
}
