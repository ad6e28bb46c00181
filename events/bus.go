package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"stories-service/cache"
	"stories-service/metrics"
)

const InvalidationSubject = "stories.cache.invalidate"

// InvalidationMessage is published after a replica drops cached responses.
type InvalidationMessage struct {
	Origin    string       `json:"origin"`
	Keys      cache.KeySet `json:"keys"`
	Timestamp time.Time    `json:"timestamp"`
}

// Invalidator is the part of the response cache peers act on.
type Invalidator interface {
	Invalidate(m cache.Matcher) int
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Bus shares cache invalidations between replicas over core NATS. Delivery is
// best effort; entries missed by a replica still expire by TTL.
type Bus struct {
	nc       *nats.Conn
	pub      publisher
	sub      *nats.Subscription
	instance string
	logger   *slog.Logger
}

func Connect(url, instance string, logger *slog.Logger) (*Bus, error) {
	logger = logger.With("component", "events.Bus")

	nc, err := nats.Connect(url,
		nats.Name("stories-service"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS connection lost", "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b := newBus(nc, instance, logger)
	b.nc = nc
	return b, nil
}

func newBus(pub publisher, instance string, logger *slog.Logger) *Bus {
	if instance == "" {
		instance = uuid.NewString()
	}
	return &Bus{pub: pub, instance: instance, logger: logger}
}

func (b *Bus) Instance() string {
	return b.instance
}

// Broadcast tells peers to drop keys. Failures are logged, never returned:
// the local invalidation already happened.
func (b *Bus) Broadcast(keys cache.KeySet) {
	if keys.Empty() {
		return
	}

	data, err := json.Marshal(InvalidationMessage{
		Origin:    b.instance,
		Keys:      keys,
		Timestamp: time.Now().UTC(),
	})
	if err == nil {
		err = b.pub.Publish(InvalidationSubject, data)
	}
	if err != nil {
		metrics.InvalidationMessages.WithLabelValues("out", "error").Inc()
		b.logger.Error("failed to publish invalidation", "error", err)
		return
	}
	metrics.InvalidationMessages.WithLabelValues("out", "ok").Inc()
}

// Listen applies invalidations published by other replicas to target.
func (b *Bus) Listen(target Invalidator) error {
	if b.nc == nil {
		return fmt.Errorf("bus is not connected")
	}

	sub, err := b.nc.Subscribe(InvalidationSubject, func(msg *nats.Msg) {
		b.apply(msg.Data, target)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", InvalidationSubject, err)
	}
	b.sub = sub
	b.logger.Info("listening for peer invalidations", "subject", InvalidationSubject, "instance", b.instance)
	return nil
}

func (b *Bus) apply(data []byte, target Invalidator) int {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.InvalidationMessages.WithLabelValues("in", "malformed").Inc()
		b.logger.Warn("dropping malformed invalidation", "error", err)
		return 0
	}
	if msg.Origin == b.instance {
		return 0
	}

	removed := target.Invalidate(msg.Keys.Matcher())
	metrics.InvalidationMessages.WithLabelValues("in", "ok").Inc()
	b.logger.Debug("applied peer invalidation", "origin", msg.Origin, "removed", removed)
	return removed
}

// Close unsubscribes and drains the connection.
func (b *Bus) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
	}
}
