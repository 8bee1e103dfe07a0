// Package domain holds transport DTOs for the whispers API
package domain

// ReplyRequest is the JSON payload for POST /whispers/{id}/replies
// at least one of audioUrl or text must be present; the core enforces it
type ReplyRequest struct {
	AudioURL    string `json:"audioUrl,omitempty" validate:"omitempty,max=2048"`
	Text        string `json:"text,omitempty"     validate:"omitempty,max=500"`
	IsAnonymous bool   `json:"isAnonymous"`
}
