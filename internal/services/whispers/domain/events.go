package domain

import (
	"time"

	"whispermap/internal/core/geo"
)

// SubjectWhisperCreated is the bus subject for creation events
const SubjectWhisperCreated = "whispers.created"

// CreatedEvent is published after a successful insert so streaming
// consumers can push nearby whispers without polling
type CreatedEvent struct {
	ID           string       `json:"id"`
	Location     geo.Location `json:"location"`
	Category     Category     `json:"category"`
	RadiusMeters float64      `json:"whisperRadius,omitempty"`
	CreatedAt    time.Time    `json:"timestamp"`
	ExpiresAt    time.Time    `json:"expirationDate"`
}
