// Package http provides the live nearby-whisper websocket endpoint
package http

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"whispermap/internal/core/geo"
	"whispermap/internal/modkit/httpkit"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/platform/logger"
	phttp "whispermap/internal/platform/net/http"
	"whispermap/internal/platform/msg"
	whispers "whispermap/internal/services/whispers/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API is CORS-open; the stream follows the same policy
	CheckOrigin: func(*stdhttp.Request) bool { return true },
}

// Deps are the handler dependencies
type Deps struct {
	Bus     msg.Bus
	Enabled bool
	Log     logger.Logger
}

type handlers struct{ deps Deps }

// Register mounts the stream endpoints
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}
	r.Get("/nearby", h.nearby)
}

// client is one websocket consumer with its geographic filter
// send is never closed: a bus callback may still be mid-dispatch when
// the consumer goes away, and a send on a closed channel would panic
// inside the bus goroutine. done signals teardown instead
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	center geo.Location
	radius float64
	log    logger.Logger
}

// swagger:route GET /stream/nearby Stream streamNearby
// @Summary Live websocket feed of whispers created within a radius
// @Tags Stream
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius query number false "Detection radius in meters"
// @Router /stream/nearby [get]
func (h *handlers) nearby(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.deps.Enabled || h.deps.Bus == nil {
		phttp.RespondError(w, r, perr.Unavailablef("streaming is disabled"))
		return
	}

	center, radius, err := parseFilter(r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.deps.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		center: center,
		radius: radius,
		log:    h.deps.Log,
	}

	sub, err := h.deps.Bus.Subscribe(whispers.SubjectWhisperCreated, c.onCreated)
	if err != nil {
		h.deps.Log.Error().Err(err).Msg("stream subscribe failed")
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()

	_ = sub.Unsubscribe()
	close(c.done)
}

// onCreated filters a creation event against the client's circle and
// queues it for delivery; a full send buffer drops the event, slow
// consumers never block the bus callback
func (c *client) onCreated(_ string, data []byte) {
	var ev whispers.CreatedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn().Err(err).Msg("malformed created event")
		return
	}
	if !geo.WithinRadius(c.center, ev.Location, c.radius) {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

// readPump consumes control frames until the peer goes away
func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued events and keeps the connection alive
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func parseFilter(r *stdhttp.Request) (geo.Location, float64, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lng") == "" {
		return geo.Location{}, 0, perr.Validationf("lat and lng are required")
	}

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return geo.Location{}, 0, perr.Validationf("lat must be a number")
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return geo.Location{}, 0, perr.Validationf("lng must be a number")
	}

	radius := 1000.0
	if s := q.Get("radius"); s != "" {
		if radius, err = strconv.ParseFloat(s, 64); err != nil {
			return geo.Location{}, 0, perr.Validationf("radius must be a number")
		}
	}
	return geo.Location{Lat: lat, Lng: lng}, radius, nil
}
