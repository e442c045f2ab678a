package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lukashofer/reisekosten/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream. Calculation
// events fan out to downstream consumers (reporting, approval workflow);
// cache events let other instances drop their hot tiers.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

type cacheEvent struct {
	Scope   string    `json:"scope"`
	Deleted int       `json:"deleted"`
	At      time.Time `json:"at"`
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "TRAVEL_CALCULATIONS",
			Subjects:  []string{"travel.calc.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "TRAVEL_CACHE",
			Subjects:  []string{"travel.cache.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishCalculation publishes one audit record as a calculation event.
func (p *Publisher) PublishCalculation(ctx context.Context, rec *domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("travel.calc."+string(rec.CalculationType), data)
	return err
}

// PublishCacheInvalidation announces a targeted invalidation.
func (p *Publisher) PublishCacheInvalidation(ctx context.Context, scope string, deleted int) error {
	data, err := json.Marshal(cacheEvent{Scope: scope, Deleted: deleted, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("travel.cache.invalidated", data)
	return err
}

// PublishCacheCleanup announces an expiry sweep.
func (p *Publisher) PublishCacheCleanup(ctx context.Context, deleted int) error {
	data, err := json.Marshal(cacheEvent{Scope: "expired", Deleted: deleted, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("travel.cache.cleaned", data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
