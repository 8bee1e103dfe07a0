// Package msg provides a small publish and subscribe seam over NATS
// so services never touch the client library directly
package msg

import (
	"time"

	"whispermap/internal/platform/logger"

	"github.com/nats-io/nats.go"
)

// Bus is the publish and subscribe surface services depend on
// implementations must be nil-safe so callers can skip wiring checks
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error)
	Close()
}

// Subscription can be released when a consumer goes away
type Subscription interface {
	Unsubscribe() error
}

// Config configures the NATS connection
type Config struct {
	URL            string
	Name           string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// Connect dials NATS with reconnect handlers wired to the logger
func Connect(cfg Config, log logger.Logger) (Bus, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &natsBus{nc: nc}, nil
}

type natsBus struct{ nc *nats.Conn }

func (b *natsBus) Publish(subject string, data []byte) error {
	if b == nil || b.nc == nil {
		return nil
	}
	return b.nc.Publish(subject, data)
}

func (b *natsBus) Subscribe(subject string, handler func(string, []byte)) (Subscription, error) {
	if b == nil || b.nc == nil {
		return noopSub{}, nil
	}
	sub, err := b.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Subject, m.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *natsBus) Close() {
	if b != nil && b.nc != nil {
		_ = b.nc.Drain()
	}
}

// Noop is a Bus that drops publishes and delivers nothing
// used when messaging is disabled by config
type Noop struct{}

// Publish implements Bus
func (Noop) Publish(string, []byte) error { return nil }

// Subscribe implements Bus
func (Noop) Subscribe(string, func(string, []byte)) (Subscription, error) {
	return noopSub{}, nil
}

// Close implements Bus
func (Noop) Close() {}

type noopSub struct{}

func (noopSub) Unsubscribe() error { return nil }
