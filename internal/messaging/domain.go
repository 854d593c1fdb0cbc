// Package messaging manages secure message threads between staff
// members and the clients they work with.
package messaging

import "time"

// Thread groups messages about a single client conversation.
type Thread struct {
	ID           int64
	Subject      string
	ClientID     int64
	CreatedBy    int64
	Participants []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is a single entry in a thread.
type Message struct {
	ID        int64
	ThreadID  int64
	SenderID  int64
	Body      string
	CreatedAt time.Time
}
