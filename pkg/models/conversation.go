package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups the turns of a single user dialogue.
// Title is an LLM-produced summary of the opening question.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
