// Package domain defines core types and interfaces for whispers
package domain

import (
	"time"

	"whispermap/internal/core/geo"
)

// Category classifies a whisper for map display and filtering
type Category string

// Known categories
const (
	CategoryGeneral      Category = "general"
	CategoryStory        Category = "story"
	CategoryMusic        Category = "music"
	CategoryInformation  Category = "information"
	CategoryAnnouncement Category = "announcement"
	CategoryTip          Category = "tip"
	CategoryGuide        Category = "guide"
	CategoryHistory      Category = "history"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryStory, CategoryMusic, CategoryInformation,
		CategoryAnnouncement, CategoryTip, CategoryGuide, CategoryHistory:
		return true
	}
	return false
}

// Whisper is the central entity: an audio clip pinned to a point
// wire names follow the client contract (timestamp, expirationDate)
type Whisper struct {
	ID           string       `json:"id"`
	AudioURL     string       `json:"audioUrl"`
	Location     geo.Location `json:"location"`
	Category     Category     `json:"category"`
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"timestamp"`
	ExpiresAt    time.Time    `json:"expirationDate"`
	IsAnonymous  bool         `json:"isAnonymous"`
	OwnerID      string       `json:"userId,omitempty"`
	RadiusMeters float64      `json:"whisperRadius,omitempty"`
	Replies      []Reply      `json:"replies,omitempty"`
}

// Live reports whether the whisper has not expired at now
func (w Whisper) Live(now time.Time) bool { return now.Before(w.ExpiresAt) }

// Public strips ownership from anonymous whispers before they leave the server
func (w Whisper) Public() Whisper {
	if w.IsAnonymous {
		w.OwnerID = ""
	}
	return w
}

// Reply is a restricted whisper scoped to a parent thread
// it has no location and never participates in discovery
type Reply struct {
	ID          string    `json:"id"`
	WhisperID   string    `json:"whisperId"`
	AudioURL    string    `json:"audioUrl"`
	Text        string    `json:"text,omitempty"`
	OwnerID     string    `json:"userId,omitempty"`
	IsAnonymous bool      `json:"isAnonymous"`
	CreatedAt   time.Time `json:"timestamp"`
}

// CreateInput carries everything a submit operation supplies
type CreateInput struct {
	Location     geo.Location
	AudioURL     string
	Category     Category
	Title        string
	Description  string
	LifetimeDays int
	IsAnonymous  bool
	OwnerID      string
	RadiusMeters float64
	Premium      bool
}

// ReplyInput carries a reply submission
type ReplyInput struct {
	AudioURL    string
	Text        string
	OwnerID     string
	IsAnonymous bool
}

// WindowQuery is the coarse prefilter window for discovery reads
type WindowQuery struct {
	Center       geo.Location
	RadiusMeters float64
	MaxAge       time.Duration // zero means no age bound beyond liveness
}
