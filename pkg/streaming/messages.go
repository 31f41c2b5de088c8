package streaming

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Message type constants matching the streaming protocol.
const (
	TypeRunStart       = "run_start"
	TypeTelemetryFrame = "telemetry_frame"
	TypeImpactEvent    = "impact_event"
	TypeRunEnd         = "run_end"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the dashboard's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// RunStartPayload announces a new simulation run.
type RunStartPayload struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	Preset    string    `json:"preset"`
	TickRate  float64   `json:"tick_rate"`
	StartedAt time.Time `json:"started_at"`
}

// TelemetryFramePayload carries one sampled simulation tick.
type TelemetryFramePayload struct {
	RunID     string            `json:"run_id"`
	Telemetry vehicle.Telemetry `json:"telemetry"`
}

// ImpactEventPayload reports a classified collision and the damage state
// after it was applied.
type ImpactEventPayload struct {
	RunID    string              `json:"run_id"`
	Tick     uint64              `json:"tick"`
	Impulse  float64             `json:"impulse"`
	Normal   mgl64.Vec3          `json:"normal"`
	Severity string              `json:"severity"`
	Damage   vehicle.DamageState `json:"damage"`
}

// RunEndPayload closes a run with its summary numbers. Digest is the
// SHA-256 of the final state, used to compare runs for determinism.
type RunEndPayload struct {
	RunID      string              `json:"run_id"`
	EndedAt    time.Time           `json:"ended_at"`
	Ticks      uint64              `json:"ticks"`
	Digest     string              `json:"digest"`
	TopSpeed   float64             `json:"top_speed"`
	PeakGForce float64             `json:"peak_g_force"`
	Damage     vehicle.DamageState `json:"damage"`
}
