package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/modkit/repokit"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/services/whispers/domain"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

const whisperCols = `
	w.id::text,
	w.owner_id,
	w.is_anonymous,
	w.title,
	w.description,
	w.category,
	w.lat,
	w.lng,
	w.radius_m,
	w.audio_url,
	w.created_at,
	w.expires_at`

// Insert implements Storage
func (s *pg) Insert(ctx context.Context, w domain.Whisper) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO whispers
			(id, owner_id, is_anonymous, title, description, category,
			 lat, lng, radius_m, audio_url, created_at, expires_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		w.ID, w.OwnerID, w.IsAnonymous, w.Title, w.Description, string(w.Category),
		w.Location.Lat, w.Location.Lng, w.RadiusMeters, w.AudioURL, w.CreatedAt, w.ExpiresAt,
	)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "insert whisper")
	}
	return nil
}

// Window implements Storage
// the bounding box may wrap the antimeridian, in which case the longitude
// predicate becomes a disjunction
func (s *pg) Window(ctx context.Context, box geo.BBox, since, now time.Time) ([]domain.Whisper, error) {
	var sb strings.Builder
	var args []any
	arg := func(v any) string { args = append(args, v); return fmt.Sprintf("$%d", len(args)) }

	sb.WriteString(`SELECT ` + whisperCols + `
		FROM whispers w
		WHERE w.expires_at > ` + arg(now) + `
			AND w.lat BETWEEN ` + arg(box.MinLat) + ` AND ` + arg(box.MaxLat) + `
	`)

	if box.MinLng <= box.MaxLng {
		sb.WriteString("  AND w.lng BETWEEN " + arg(box.MinLng) + " AND " + arg(box.MaxLng) + "\n")
	} else {
		sb.WriteString("  AND (w.lng >= " + arg(box.MinLng) + " OR w.lng <= " + arg(box.MaxLng) + ")\n")
	}

	if !since.IsZero() {
		sb.WriteString("  AND w.created_at >= " + arg(since) + "\n")
	}

	sb.WriteString("ORDER BY w.created_at DESC, w.id DESC")

	rows, err := s.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "query whisper window")
	}
	defer rows.Close()

	var out []domain.Whisper
	for rows.Next() {
		w, err := scanWhisper(rows)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan whisper")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// FindByID implements Storage
func (s *pg) FindByID(ctx context.Context, id string) (domain.Whisper, error) {
	row := s.q.QueryRow(ctx, `SELECT `+whisperCols+` FROM whispers w WHERE w.id = $1::uuid`, id)
	w, err := scanWhisper(row)
	if err != nil {
		// pgx returns ErrNoRows through Scan; treat any scan miss as absent
		return domain.Whisper{}, perr.NotFoundf("whisper %s not found", id)
	}

	replies, err := s.repliesFor(ctx, id)
	if err != nil {
		return domain.Whisper{}, err
	}
	w.Replies = replies
	return w, nil
}

// ByOwner implements Storage
func (s *pg) ByOwner(ctx context.Context, ownerID string) ([]domain.Whisper, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+whisperCols+`
		FROM whispers w
		WHERE w.owner_id = $1 AND NOT w.is_anonymous
		ORDER BY w.created_at DESC, w.id DESC
	`, ownerID)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "query whispers by owner")
	}
	defer rows.Close()

	var out []domain.Whisper
	for rows.Next() {
		w, err := scanWhisper(rows)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan whisper")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AppendReply implements Storage
func (s *pg) AppendReply(ctx context.Context, r domain.Reply) error {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO whisper_replies
			(id, whisper_id, owner_id, is_anonymous, text, audio_url, created_at)
		SELECT $1::uuid, $2::uuid, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM whispers WHERE id = $2::uuid)
	`, r.ID, r.WhisperID, r.OwnerID, r.IsAnonymous, r.Text, r.AudioURL, r.CreatedAt)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "insert reply")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("whisper %s not found", r.WhisperID)
	}
	return nil
}

// PurgeExpired implements Storage
// replies ride along via ON DELETE CASCADE
func (s *pg) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM whispers WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeDB, "purge expired whispers")
	}
	return int(tag.RowsAffected()), nil
}

func (s *pg) repliesFor(ctx context.Context, whisperID string) ([]domain.Reply, error) {
	rows, err := s.q.Query(ctx, `
		SELECT r.id::text, r.whisper_id::text, r.owner_id, r.is_anonymous,
			r.text, r.audio_url, r.created_at
		FROM whisper_replies r
		WHERE r.whisper_id = $1::uuid
		ORDER BY r.created_at ASC, r.id ASC
	`, whisperID)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "query replies")
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		var r domain.Reply
		if err := rows.Scan(
			&r.ID, &r.WhisperID, &r.OwnerID, &r.IsAnonymous,
			&r.Text, &r.AudioURL, &r.CreatedAt,
		); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "scan reply")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanWhisper(sc scanner) (domain.Whisper, error) {
	var w domain.Whisper
	var cat string
	err := sc.Scan(
		&w.ID, &w.OwnerID, &w.IsAnonymous, &w.Title, &w.Description, &cat,
		&w.Location.Lat, &w.Location.Lng, &w.RadiusMeters, &w.AudioURL,
		&w.CreatedAt, &w.ExpiresAt,
	)
	if err != nil {
		return domain.Whisper{}, err
	}
	w.Category = domain.Category(cat)
	return w, nil
}
