package domain

import "context"

// StorePort is the full whisper persistence surface exposed to other modules
type StorePort interface {
	ReaderPort
	WriterPort
	SweepPort
}

// ReaderPort defines the read interface for whispers
type ReaderPort interface {
	// QueryWindow returns live whispers inside the bounding box derived from
	// the query, newest first. Coarse only; exact circle filtering is the
	// discovery engine's job
	QueryWindow(ctx context.Context, q WindowQuery) ([]Whisper, error)

	// FindByID returns the whisper with its replies or a NotFound error
	FindByID(ctx context.Context, id string) (Whisper, error)

	// ByUser returns whispers owned by userID, excluding anonymous ones
	ByUser(ctx context.Context, userID string) ([]Whisper, error)
}

// WriterPort defines the write interface for whispers
type WriterPort interface {
	// Insert validates, normalizes, assigns an id, computes expiry, persists
	Insert(ctx context.Context, in CreateInput) (Whisper, error)

	// AppendReply attaches a reply to a live whisper
	AppendReply(ctx context.Context, whisperID string, in ReplyInput) (Reply, error)
}

// SweepPort is the expiry sweep interface used by the background worker
type SweepPort interface {
	// PurgeExpired removes expired whispers and returns how many went away
	PurgeExpired(ctx context.Context) (int, error)
}
