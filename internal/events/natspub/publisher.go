// Package natspub bridges save lifecycle events from the in-process
// bus onto a NATS subject, so external systems can observe persistence
// activity without touching the coordinator.
package natspub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kruplan/kruplan/internal/events"
	"github.com/kruplan/kruplan/internal/fault"
)

// Conn is the minimal NATS surface the publisher needs. *nats.Conn
// satisfies it.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Envelope is the wire format for outbound events.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Publisher forwards save lifecycle events to a NATS subject.
type Publisher struct {
	conn    Conn
	subject string
	bus     *events.Bus
	logger  *slog.Logger
}

// Connect dials NATS and returns a publisher bound to the subject.
func Connect(url, subject string, bus *events.Bus, logger *slog.Logger) (*Publisher, *nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("kruplan"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fault.RemoteError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	pub, err := NewPublisher(conn, subject, bus, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return pub, conn, nil
}

func NewPublisher(conn Conn, subject string, bus *events.Bus, logger *slog.Logger) (*Publisher, error) {
	if conn == nil {
		return nil, fault.ValidationError("nats connection is required").Build()
	}
	if subject == "" {
		return nil, fault.ValidationError("subject is required").Build()
	}
	if bus == nil {
		return nil, fault.ValidationError("bus is required").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:    conn,
		subject: subject,
		bus:     bus,
		logger:  logger.With("component", "natspub"),
	}, nil
}

// Run forwards events until ctx is canceled. Publish failures are
// logged and dropped; the bridge never pushes back on the bus.
func (p *Publisher) Run(ctx context.Context) error {
	completed, unsubCompleted := events.Subscribe[events.SaveCompleted](p.bus, 16)
	defer unsubCompleted()
	failed, unsubFailed := events.Subscribe[events.SaveFailed](p.bus, 16)
	defer unsubFailed()
	status, unsubStatus := events.Subscribe[events.StatusChanged](p.bus, 16)
	defer unsubStatus()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-completed:
			if !ok {
				return nil
			}
			p.publish("save_completed", evt)
		case evt, ok := <-failed:
			if !ok {
				return nil
			}
			p.publish("save_failed", evt)
		case evt, ok := <-status:
			if !ok {
				return nil
			}
			p.publish("status_changed", evt)
		}
	}
}

func (p *Publisher) publish(eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal outbound event", "type", eventType, "error", err)
		return
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   body,
		EmittedAt: time.Now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("Failed to marshal event envelope", "type", eventType, "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("Failed to publish event to NATS", "type", eventType, "error", err)
		return
	}
	p.logger.Debug("Published event", "type", eventType, "subject", p.subject)
}
