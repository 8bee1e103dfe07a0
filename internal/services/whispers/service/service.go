// Package service provides the whisper store implementation
package service

import (
	"context"
	"encoding/json"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/core/normalize"
	"whispermap/internal/modkit/repokit"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/msg"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/whispers/domain"
	"whispermap/internal/services/whispers/repo"

	"github.com/google/uuid"
)

// Config bounds whisper creation
type Config struct {
	// DefaultLifetimeDays applies when the caller supplies none
	DefaultLifetimeDays int
	// MaxLifetimeDays caps standard tier lifetime
	MaxLifetimeDays int
	// PremiumMaxLifetimeDays caps premium tier lifetime
	PremiumMaxLifetimeDays int
	// DefaultRadiusMeters applies when the caller supplies no whisper radius
	DefaultRadiusMeters float64
	// MaxRadiusMeters caps the whisper broadcast radius
	MaxRadiusMeters float64
	// MaxTitleRunes and MaxDescriptionRunes bound normalized text
	MaxTitleRunes       int
	MaxDescriptionRunes int
}

func (c *Config) fill() {
	if c.DefaultLifetimeDays <= 0 {
		c.DefaultLifetimeDays = 7
	}
	if c.MaxLifetimeDays <= 0 {
		c.MaxLifetimeDays = 7
	}
	if c.PremiumMaxLifetimeDays <= 0 {
		c.PremiumMaxLifetimeDays = 90
	}
	if c.DefaultRadiusMeters <= 0 {
		c.DefaultRadiusMeters = 1000
	}
	if c.MaxRadiusMeters <= 0 {
		c.MaxRadiusMeters = 10000
	}
	if c.MaxTitleRunes <= 0 {
		c.MaxTitleRunes = 80
	}
	if c.MaxDescriptionRunes <= 0 {
		c.MaxDescriptionRunes = 500
	}
}

// Service implements domain.StorePort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	Cfg    Config
	Clock  ptime.Clock
	Bus    msg.Bus
	Log    logger.Logger
}

// New constructs a whisper service over any bound storage
func New(db repokit.TxRunner, b repokit.Binder[repo.Storage], cfg Config, clock ptime.Clock, bus msg.Bus, log logger.Logger) *Service {
	cfg.fill()
	if clock == nil {
		clock = ptime.Real{}
	}
	if bus == nil {
		bus = msg.Noop{}
	}
	return &Service{DB: db, Binder: b, Cfg: cfg, Clock: clock, Bus: bus, Log: log}
}

// Insert implements domain.WriterPort
func (s *Service) Insert(ctx context.Context, in domain.CreateInput) (domain.Whisper, error) {
	if err := validateLocation(in.Location); err != nil {
		return domain.Whisper{}, err
	}
	if in.AudioURL == "" {
		return domain.Whisper{}, perr.Validationf("audio reference is required")
	}

	cat := in.Category
	if cat == "" {
		cat = domain.CategoryGeneral
	}
	if !cat.Valid() {
		return domain.Whisper{}, perr.Validationf("unknown category %q", cat)
	}

	now := s.Clock.Now().UTC()
	w := domain.Whisper{
		ID:           uuid.NewString(),
		AudioURL:     in.AudioURL,
		Location:     in.Location,
		Category:     cat,
		Title:        normalize.Title(in.Title, s.Cfg.MaxTitleRunes),
		Description:  normalize.Description(in.Description, s.Cfg.MaxDescriptionRunes),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(s.clampLifetime(in.LifetimeDays, in.Premium)) * 24 * time.Hour),
		IsAnonymous:  in.IsAnonymous,
		OwnerID:      in.OwnerID,
		RadiusMeters: s.clampRadius(in.RadiusMeters),
	}

	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).Insert(ctx, w)
	})
	if err != nil {
		return domain.Whisper{}, err
	}

	s.publishCreated(w)
	return w, nil
}

// QueryWindow implements domain.ReaderPort
// the repo already filters liveness, but reads re-check defensively in
// case a backend races the sweep
func (s *Service) QueryWindow(ctx context.Context, q domain.WindowQuery) ([]domain.Whisper, error) {
	if err := validateLocation(q.Center); err != nil {
		return nil, err
	}
	if q.RadiusMeters <= 0 {
		return nil, perr.Validationf("radius must be positive")
	}

	now := s.Clock.Now().UTC()
	box := geo.BoundingBox(q.Center, q.RadiusMeters)
	var since time.Time
	if q.MaxAge > 0 {
		since = now.Add(-q.MaxAge)
	}

	var rows []domain.Whisper
	err := s.DB.Tx(ctx, func(qr repokit.Queryer) error {
		var err error
		rows, err = s.Binder.Bind(qr).Window(ctx, box, since, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	live := rows[:0]
	for _, w := range rows {
		if w.Live(now) {
			live = append(live, w)
		}
	}
	return live, nil
}

// FindByID implements domain.ReaderPort
// expired whispers read as absent even before the sweep removes them
func (s *Service) FindByID(ctx context.Context, id string) (domain.Whisper, error) {
	var w domain.Whisper
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		w, err = s.Binder.Bind(q).FindByID(ctx, id)
		return err
	})
	if err != nil {
		return domain.Whisper{}, err
	}
	if !w.Live(s.Clock.Now().UTC()) {
		return domain.Whisper{}, perr.NotFoundf("whisper %s not found", id)
	}
	return w, nil
}

// ByUser implements domain.ReaderPort
func (s *Service) ByUser(ctx context.Context, userID string) ([]domain.Whisper, error) {
	if userID == "" {
		return nil, perr.Validationf("user id is required")
	}
	var rows []domain.Whisper
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		rows, err = s.Binder.Bind(q).ByOwner(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	live := rows[:0]
	for _, w := range rows {
		if w.Live(now) {
			live = append(live, w)
		}
	}
	return live, nil
}

// AppendReply implements domain.WriterPort
func (s *Service) AppendReply(ctx context.Context, whisperID string, in domain.ReplyInput) (domain.Reply, error) {
	if in.AudioURL == "" && in.Text == "" {
		return domain.Reply{}, perr.Validationf("reply needs audio or text")
	}

	r := domain.Reply{
		ID:          uuid.NewString(),
		WhisperID:   whisperID,
		AudioURL:    in.AudioURL,
		Text:        normalize.Text(in.Text),
		OwnerID:     in.OwnerID,
		IsAnonymous: in.IsAnonymous,
		CreatedAt:   s.Clock.Now().UTC(),
	}

	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		st := s.Binder.Bind(q)
		parent, err := st.FindByID(ctx, whisperID)
		if err != nil {
			return err
		}
		if !parent.Live(r.CreatedAt) {
			return perr.NotFoundf("whisper %s not found", whisperID)
		}
		return st.AppendReply(ctx, r)
	})
	if err != nil {
		return domain.Reply{}, err
	}
	return r, nil
}

// PurgeExpired implements domain.SweepPort
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()
	var n int
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		n, err = s.Binder.Bind(q).PurgeExpired(ctx, now)
		return err
	})
	return n, err
}

func (s *Service) clampLifetime(days int, premium bool) int {
	if days <= 0 {
		days = s.Cfg.DefaultLifetimeDays
	}
	limit := s.Cfg.MaxLifetimeDays
	if premium {
		limit = s.Cfg.PremiumMaxLifetimeDays
	}
	if days > limit {
		days = limit
	}
	return days
}

func (s *Service) clampRadius(r float64) float64 {
	if r <= 0 {
		r = s.Cfg.DefaultRadiusMeters
	}
	if r > s.Cfg.MaxRadiusMeters {
		r = s.Cfg.MaxRadiusMeters
	}
	return r
}

// publishCreated notifies streaming consumers, best effort
func (s *Service) publishCreated(w domain.Whisper) {
	ev := domain.CreatedEvent{
		ID:           w.ID,
		Location:     w.Location,
		Category:     w.Category,
		RadiusMeters: w.RadiusMeters,
		CreatedAt:    w.CreatedAt,
		ExpiresAt:    w.ExpiresAt,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.Log.Warn().Err(err).Str("whisper_id", w.ID).Msg("encode created event")
		return
	}
	if err := s.Bus.Publish(domain.SubjectWhisperCreated, payload); err != nil {
		s.Log.Warn().Err(err).Str("whisper_id", w.ID).Msg("publish created event")
	}
}

func validateLocation(l geo.Location) error {
	if l.Lat < -90 || l.Lat > 90 {
		return perr.Validationf("latitude %v out of range", l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return perr.Validationf("longitude %v out of range", l.Lng)
	}
	return nil
}
