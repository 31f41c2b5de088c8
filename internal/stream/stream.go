// Package stream pushes live run data over WebSocket to the telemetry
// dashboard. Frames and impacts are fire-and-forget; run lifecycle
// messages wait for a server ack.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stuntrig/vdyn/pkg/streaming"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL    string
	Secret string
}

// Client streams run data to the dashboard server.
type Client struct {
	conn *connection
	cfg  Config
}

// New creates a new streaming client.
func New(cfg Config) *Client {
	return &Client{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (c *Client) Init() error {
	return c.conn.dial(c.cfg.URL, c.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (c *Client) Close() error {
	return c.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (c *Client) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	c.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (c *Client) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return c.conn.sendAndWait(data, msgType, ackTimeout)
}

// SendRunStart announces a run and waits for the server ack. The message
// is cached so a reconnect can replay it before resuming frames.
func (c *Client) SendRunStart(p streaming.RunStartPayload) error {
	data, err := marshalEnvelope(streaming.TypeRunStart, p)
	if err != nil {
		return err
	}

	c.conn.mu.Lock()
	c.conn.cachedRunStart = data
	c.conn.mu.Unlock()

	return c.conn.sendAndWait(data, streaming.TypeRunStart, ackTimeout)
}

// SendRunEnd closes the run and waits for the server ack.
func (c *Client) SendRunEnd(p streaming.RunEndPayload) error {
	err := c.sendEnvelopeAndWait(streaming.TypeRunEnd, p)

	// Clear cached state regardless of error.
	c.conn.mu.Lock()
	c.conn.cachedRunStart = nil
	c.conn.mu.Unlock()

	return err
}

// SendFrame streams one sampled telemetry tick.
func (c *Client) SendFrame(p streaming.TelemetryFramePayload) error {
	return c.sendEnvelope(streaming.TypeTelemetryFrame, p)
}

// SendImpact streams a collision event.
func (c *Client) SendImpact(p streaming.ImpactEventPayload) error {
	return c.sendEnvelope(streaming.TypeImpactEvent, p)
}
