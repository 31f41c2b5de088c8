package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// ArchiveModels is a list of all the structs exported here which represent
// tables in the database schema.
var ArchiveModels = []interface{}{
	&RunRecord{},
	&SampleRecord{},
	&ImpactRecord{},
}

// RunRecord is one simulation run. Identity fields are written at run
// start; the outcome fields are filled in by EndRun.
type RunRecord struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	RunID     string    `json:"runId" gorm:"size:36;uniqueIndex:idx_run_run_id"`
	Scenario  string    `json:"scenario" gorm:"size:64"`
	Preset    string    `json:"preset" gorm:"size:64"`
	TickRate  float64   `json:"tickRate"`
	StartedAt time.Time `json:"startedAt" gorm:"index:idx_run_started_at"`

	EndedAt       time.Time      `json:"endedAt"`
	Ticks         uint64         `json:"ticks"`
	Digest        string         `json:"digest" gorm:"size:64"` // SHA-256 of the final state
	TopSpeed      float64        `json:"topSpeed"`
	PeakGForce    float64        `json:"peakGForce"`
	DamageOverall float64        `json:"damageOverall"`
	Summary       datatypes.JSON `json:"summary"`

	Samples []SampleRecord `json:"-" gorm:"foreignKey:RunID;references:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Impacts []ImpactRecord `json:"-" gorm:"foreignKey:RunID;references:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (*RunRecord) TableName() string {
	return "runs"
}

// SampleRecord is one archived telemetry tick.
type SampleRecord struct {
	ID    uint   `json:"id" gorm:"primarykey;autoIncrement"`
	RunID string `json:"runId" gorm:"size:36;index:idx_sample_run_id"`
	Tick  uint64 `json:"tick" gorm:"index:idx_sample_tick"`

	State         string         `json:"state" gorm:"size:16"`
	PosX          float64        `json:"posX"`
	PosY          float64        `json:"posY"`
	PosZ          float64        `json:"posZ"`
	Speed         float64        `json:"speed"`
	ForwardSpeed  float64        `json:"forwardSpeed"`
	GForce        float64        `json:"gForce"`
	Gear          int            `json:"gear"`
	RPM           float64        `json:"rpm"`
	DamageOverall float64        `json:"damageOverall"`
	Wheels        datatypes.JSON `json:"wheels"` // per-corner state as JSON array
}

func (*SampleRecord) TableName() string {
	return "run_samples"
}

// ImpactRecord is one archived collision.
type ImpactRecord struct {
	ID    uint   `json:"id" gorm:"primarykey;autoIncrement"`
	RunID string `json:"runId" gorm:"size:36;index:idx_impact_run_id"`
	Tick  uint64 `json:"tick" gorm:"index:idx_impact_tick"`

	Impulse          float64 `json:"impulse"`
	NormalX          float64 `json:"normalX"`
	NormalY          float64 `json:"normalY"`
	NormalZ          float64 `json:"normalZ"`
	Severity         string  `json:"severity" gorm:"size:16"`
	DamageStructural float64 `json:"damageStructural"`
	DamageCosmetic   float64 `json:"damageCosmetic"`
	DamageMechanical float64 `json:"damageMechanical"`
	DamageOverall    float64 `json:"damageOverall"`
	CrashCount       int     `json:"crashCount"`
}

func (*ImpactRecord) TableName() string {
	return "run_impacts"
}

// NewRunRecord builds the start-of-run record from the run identity.
func NewRunRecord(runID string, rs *dispatcher.RunSummary) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		Scenario:  rs.Scenario,
		Preset:    rs.Preset,
		TickRate:  rs.TickRate,
		StartedAt: rs.StartedAt,
	}
}

// ApplyOutcome copies the end-of-run summary onto the record, including
// the full summary as JSON.
func (r *RunRecord) ApplyOutcome(rs *dispatcher.RunSummary) error {
	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	r.EndedAt = rs.EndedAt
	r.Ticks = rs.Ticks
	r.Digest = rs.Digest
	r.TopSpeed = rs.TopSpeed
	r.PeakGForce = rs.PeakGForce
	r.DamageOverall = rs.Damage.Overall
	r.Summary = datatypes.JSON(raw)
	return nil
}

// NewSampleRecord converts a telemetry snapshot into its archive row.
func NewSampleRecord(runID string, t *vehicle.Telemetry) (*SampleRecord, error) {
	wheels, err := json.Marshal(t.Wheels)
	if err != nil {
		return nil, fmt.Errorf("marshal wheel state: %w", err)
	}

	return &SampleRecord{
		RunID:         runID,
		Tick:          t.Tick,
		State:         t.State.String(),
		PosX:          t.Position.X(),
		PosY:          t.Position.Y(),
		PosZ:          t.Position.Z(),
		Speed:         t.Speed,
		ForwardSpeed:  t.ForwardSpeed,
		GForce:        t.GForce,
		Gear:          t.Gear,
		RPM:           t.RPM,
		DamageOverall: t.Damage.Overall,
		Wheels:        datatypes.JSON(wheels),
	}, nil
}

// NewImpactRecord converts a collision event into its archive row.
func NewImpactRecord(runID string, imp *dispatcher.Impact) *ImpactRecord {
	return &ImpactRecord{
		RunID:            runID,
		Tick:             imp.Tick,
		Impulse:          imp.Impulse,
		NormalX:          imp.Normal.X(),
		NormalY:          imp.Normal.Y(),
		NormalZ:          imp.Normal.Z(),
		Severity:         imp.Severity.String(),
		DamageStructural: imp.Damage.Structural,
		DamageCosmetic:   imp.Damage.Cosmetic,
		DamageMechanical: imp.Damage.Mechanical,
		DamageOverall:    imp.Damage.Overall,
		CrashCount:       imp.Damage.CrashCount,
	}
}
