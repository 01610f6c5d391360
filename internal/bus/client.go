// Package bus publishes controller state, utterances, and fallback requests to NATS.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/pandagg110/speach-recognition/internal/config"
	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/session"
)

// ErrNoServers is returned by Connect when no NATS servers are configured.
var ErrNoServers = errors.New("no NATS servers configured")

// Subjects published below the configured prefix.
const (
	SubjectState     = "state"
	SubjectUtterance = "utterance"
)

// Client wraps a NATS connection with speach-specific publish helpers.
type Client struct {
	conn            *nats.Conn
	prefix          string
	fallbackSubject string
	log             *slog.Logger
	now             func() time.Time
}

// Connect dials the configured servers. fallbackSubject is relative to the
// subject prefix.
func Connect(ctx context.Context, cfg config.BusConfig, fallbackSubject string, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := []nats.Option{
		nats.Name("speach"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return newClient(conn, cfg.SubjectPrefix, fallbackSubject, log), nil
}

func newClient(conn *nats.Conn, prefix string, fallbackSubject string, log *slog.Logger) *Client {
	if strings.TrimSpace(fallbackSubject) == "" {
		fallbackSubject = "fallback.request"
	}
	return &Client{
		conn:            conn,
		prefix:          strings.Trim(strings.TrimSpace(prefix), "."),
		fallbackSubject: strings.Trim(fallbackSubject, "."),
		log:             log,
		now:             time.Now,
	}
}

// Subject joins name below the client's prefix.
func (c *Client) Subject(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "." + name
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	_ = c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// StateMessage is published whenever the controller state or active error changes.
type StateMessage struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Event    string           `json:"event"`
	At       time.Time        `json:"at"`
}

// UtteranceMessage is published once per recorded utterance.
type UtteranceMessage struct {
	SessionID  string    `json:"session_id,omitempty"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// Observe publishes state transitions and recorded utterances. Publishing is
// buffered by the NATS client and never waits on the network.
func (c *Client) Observe(change session.Change) {
	at := c.now()
	for _, u := range change.Recorded {
		c.publish(SubjectUtterance, UtteranceMessage{
			SessionID:  change.Snapshot.SessionID,
			Text:       u.Text,
			Confidence: u.Confidence,
			At:         at,
		})
	}

	if change.Previous == change.Current {
		return
	}
	c.publish(SubjectState, StateMessage{
		Snapshot: change.Snapshot,
		Event:    string(change.Event),
		At:       at,
	})
}

// RequestFallback announces that a server-side recognizer should take over.
func (c *Client) RequestFallback(_ context.Context, req fallback.Request) {
	c.publish(c.fallbackSubject, req)
}

func (c *Client) publish(name string, payload any) {
	subject := c.Subject(name)
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("encode bus payload", "subject", subject, "error", err.Error())
		return
	}
	if err := c.conn.Publish(subject, data); err != nil {
		c.log.Warn("publish to NATS failed", "subject", subject, "error", err.Error())
	}
}
