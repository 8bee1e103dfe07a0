// Package http provides http transport for whispers
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"whispermap/internal/core/geo"
	"whispermap/internal/modkit/httpkit"
	perr "whispermap/internal/platform/errors"
	wmnet "whispermap/internal/platform/net"
	apidomain "whispermap/internal/services/api/whispers/domain"
	discovery "whispermap/internal/services/discovery/domain"
	"whispermap/internal/services/whispers/blob"
	whispers "whispermap/internal/services/whispers/domain"
)

// maxUploadBytes bounds a single multipart submission
const maxUploadBytes = 32 << 20

// Deps are the handler dependencies
type Deps struct {
	Reader whispers.ReaderPort
	Writer whispers.WriterPort
	Engine discovery.EnginePort
	Audio  blob.Store

	// DefaultRadiusMeters applies when a discovery query omits radius
	DefaultRadiusMeters float64
}

type handlers struct{ deps Deps }

// Register mounts whisper endpoints on the given router
func Register(r httpkit.Router, d Deps) {
	if d.DefaultRadiusMeters <= 0 {
		d.DefaultRadiusMeters = 1000
	}
	h := &handlers{deps: d}

	httpkit.Get(r, "/", h.nearby)
	r.Post("/", httpkit.Call(h.create))
	httpkit.Get(r, "/{id}", h.byID)
	httpkit.Get(r, "/user/{userId}", h.byUser)
	httpkit.PostJSON[apidomain.ReplyRequest](r, "/{id}/replies", h.reply)
}

// swagger:route GET /whispers Whispers whispersNearby
// @Summary Live whispers within a detection radius, newest first
// @Tags Whispers
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query number false "Detection radius in meters"
// @Param maxAge query number false "Maximum whisper age in hours"
// @Param limit query int false "Maximum result count"
// @Success 200 {array} whispers.Whisper ok
// @Router /whispers [get]
func (h *handlers) nearby(r *stdhttp.Request) (any, error) {
	loc, err := queryLocation(r)
	if err != nil {
		return nil, err
	}

	radius := h.deps.DefaultRadiusMeters
	if s := r.URL.Query().Get("radius"); s != "" {
		if radius, err = parseFloat("radius", s); err != nil {
			return nil, err
		}
	}

	var maxAge time.Duration
	if s := r.URL.Query().Get("maxAge"); s != "" {
		hours, err := parseFloat("maxAge", s)
		if err != nil {
			return nil, err
		}
		maxAge = time.Duration(hours * float64(time.Hour))
	}

	var limit int
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil {
			return nil, perr.Validationf("limit must be an integer")
		}
	}

	found, err := h.deps.Engine.Discover(r.Context(), discovery.Query{
		Location:              loc,
		DetectionRadiusMeters: radius,
		MaxAge:                maxAge,
		Limit:                 limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]whispers.Whisper, len(found))
	for i, w := range found {
		out[i] = w.Public()
	}
	return out, nil
}

// swagger:route POST /whispers Whispers whispersCreate
// @Summary Pin a new audio whisper to a location
// @Tags Whispers
// @Accept mpfd
// @Produce json
// @Success 201 type whispers.Whisper created
// @Router /whispers [post]
func (h *handlers) create(r *stdhttp.Request) (any, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, perr.Validationf("multipart form required")
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, perr.Validationf("audio file is required")
	}
	defer file.Close()

	lat, err := parseFormFloat(r, "latitude")
	if err != nil {
		return nil, err
	}
	lng, err := parseFormFloat(r, "longitude")
	if err != nil {
		return nil, err
	}

	var days int
	if s := r.FormValue("expirationDays"); s != "" {
		if days, err = strconv.Atoi(s); err != nil {
			return nil, perr.Validationf("expirationDays must be an integer")
		}
	}
	var radius float64
	if s := r.FormValue("radius"); s != "" {
		if radius, err = parseFloat("radius", s); err != nil {
			return nil, err
		}
	}

	ownerID := r.FormValue("userId")
	if ownerID == "" {
		ownerID = wmnet.UserID(r.Context())
	}

	audioURL, err := h.deps.Audio.Save(r.Context(), header.Filename, file)
	if err != nil {
		return nil, err
	}

	created, err := h.deps.Writer.Insert(r.Context(), whispers.CreateInput{
		Location:     geo.Location{Lat: lat, Lng: lng},
		AudioURL:     audioURL,
		Category:     whispers.Category(r.FormValue("category")),
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		LifetimeDays: days,
		IsAnonymous:  r.FormValue("isAnonymous") == "true",
		OwnerID:      ownerID,
		RadiusMeters: radius,
		Premium:      r.Header.Get("X-Premium") == "true",
	})
	if err != nil {
		// the payload was saved before validation; take it back so a
		// rejected create leaves no orphan on disk
		_ = h.deps.Audio.Remove(r.Context(), audioURL)
		return nil, err
	}
	return httpkit.Created(created.Public()), nil
}

// swagger:route GET /whispers/{id} Whispers whispersByID
// @Summary One whisper with its replies
// @Tags Whispers
// @Produce json
// @Success 200 type whispers.Whisper ok
// @Failure 404 type httpkit.Envelope "not found or expired"
// @Router /whispers/{id} [get]
func (h *handlers) byID(r *stdhttp.Request) (any, error) {
	w, err := h.deps.Reader.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return w.Public(), nil
}

// swagger:route GET /whispers/user/{userId} Whispers whispersByUser
// @Summary Whispers owned by a user, excluding anonymous ones
// @Tags Whispers
// @Produce json
// @Success 200 {array} whispers.Whisper ok
// @Router /whispers/user/{userId} [get]
func (h *handlers) byUser(r *stdhttp.Request) (any, error) {
	return h.deps.Reader.ByUser(r.Context(), chi.URLParam(r, "userId"))
}

// swagger:route POST /whispers/{id}/replies Whispers whispersReply
// @Summary Attach a reply to a live whisper
// @Tags Whispers
// @Accept json
// @Produce json
// @Param payload body domain.ReplyRequest true "Reply"
// @Success 201 type whispers.Reply created
// @Router /whispers/{id}/replies [post]
func (h *handlers) reply(r *stdhttp.Request, in apidomain.ReplyRequest) (any, error) {
	reply, err := h.deps.Writer.AppendReply(r.Context(), chi.URLParam(r, "id"), whispers.ReplyInput{
		AudioURL:    in.AudioURL,
		Text:        in.Text,
		OwnerID:     wmnet.UserID(r.Context()),
		IsAnonymous: in.IsAnonymous,
	})
	if err != nil {
		return nil, err
	}
	return httpkit.Created(reply), nil
}

// queryLocation parses the required lat and lng query params
func queryLocation(r *stdhttp.Request) (*geo.Location, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" {
		return nil, perr.Validationf("lat and lng are required")
	}
	lat, err := parseFloat("lat", q.Get("lat"))
	if err != nil {
		return nil, err
	}
	lng, err := parseFloat("lng", q.Get("lng"))
	if err != nil {
		return nil, err
	}
	return &geo.Location{Lat: lat, Lng: lng}, nil
}

func parseFloat(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, perr.Validationf("%s must be a number", name)
	}
	return f, nil
}

func parseFormFloat(r *stdhttp.Request, name string) (float64, error) {
	s := r.FormValue(name)
	if s == "" {
		return 0, perr.Validationf("%s is required", name)
	}
	return parseFloat(name, s)
}
