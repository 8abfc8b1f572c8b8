package models

import "time"

// MessageThread is a two-party conversation, optionally about a bounty.
type MessageThread struct {
	ID            int64      `json:"id"`
	BountyID      *int64     `json:"bounty_id,omitempty"`
	ParticipantA  int64      `json:"participant_a"`
	ParticipantB  int64      `json:"participant_b"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UnreadCount   int        `json:"unread_count"`
}

// HasParticipant reports whether userID belongs to the thread.
func (t MessageThread) HasParticipant(userID int64) bool {
	return t.ParticipantA == userID || t.ParticipantB == userID
}

// Other returns the participant that is not userID.
func (t MessageThread) Other(userID int64) int64 {
	if t.ParticipantA == userID {
		return t.ParticipantB
	}
	return t.ParticipantA
}

// Message is a single post within a thread.
type Message struct {
	ID        int64      `json:"id"`
	ThreadID  int64      `json:"thread_id"`
	SenderID  int64      `json:"sender_id"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
