// Package events publishes game events to NATS so other processes can follow
// sessions. Each event is one JSON message on {prefix}.sessions.{id}.events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// DefaultPrefix is the subject prefix used when none is configured
const DefaultPrefix = "memorygame"

// NATSPublisher implements service.EventPublisher on a NATS connection
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials url and returns a publisher owning the connection
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("memorygame"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return NewNATSPublisher(conn, prefix, logger), nil
}

// NewNATSPublisher wraps an existing connection
func NewNATSPublisher(conn *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject events of sessionID are published on
func (p *NATSPublisher) Subject(sessionID string) string {
	return fmt.Sprintf("%s.sessions.%s.events", p.prefix, sessionID)
}

// Publish sends every event in order. It stops at the first failure.
func (p *NATSPublisher) Publish(ctx context.Context, sessionID string, events []service.GameEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := p.Subject(sessionID)
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := p.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
		}
	}

	p.logger.Debug("published game events",
		zap.String("subject", subject),
		zap.Int("count", len(events)))
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

var _ service.EventPublisher = (*NATSPublisher)(nil)
