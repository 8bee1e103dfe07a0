// Package repo provides repository implementations for whispers
package repo

import (
	"context"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/services/whispers/domain"
)

// Storage defines the whisper persistence surface
// policy (validation, expiry computation, event publishing) lives in the
// service; repos only move records
type Storage interface {
	// Insert persists w; the caller has already assigned id and expiry
	Insert(ctx context.Context, w domain.Whisper) error

	// Window returns live whispers inside box created at or after since,
	// newest first. A zero since means no age bound
	Window(ctx context.Context, box geo.BBox, since, now time.Time) ([]domain.Whisper, error)

	// FindByID returns the whisper with replies or a NotFound error
	FindByID(ctx context.Context, id string) (domain.Whisper, error)

	// ByOwner returns non-anonymous whispers owned by ownerID, newest first
	ByOwner(ctx context.Context, ownerID string) ([]domain.Whisper, error)

	// AppendReply attaches r to its whisper; NotFound when the parent is gone
	AppendReply(ctx context.Context, r domain.Reply) error

	// PurgeExpired deletes whispers with expires_at <= now and returns the count
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}
