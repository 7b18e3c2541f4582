package models

import "time"

// ChatMessage is one teacher message and the assistant's reply. Rows are append-only.
type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	Response  string    `db:"response" json:"response"`
	Intent    *string   `db:"intent" json:"intent,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
