package model

import "time"

// Message is a single chat message between two users. For any message
// visible to the current user, exactly one of SenderID/ReceiverID equals
// the current user's id.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
}
