package domain

import (
	"slices"
	"time"
)

// Event es una ventana candidata para un encuentro grupal.
type Event struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	OwnerID      string    `json:"owner_id"`
	Code         string    `json:"code"`
	Window       DateRange `json:"window"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e Event) HasParticipant(userID string) bool {
	return slices.Contains(e.Participants, userID)
}

// Follow es la relacion dirigida follower -> followee.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
