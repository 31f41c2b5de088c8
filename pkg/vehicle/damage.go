package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ImpactSeverity classes a collision impulse for damage pricing and for
// downstream event reporting.
type ImpactSeverity uint8

const (
	ImpactNone ImpactSeverity = iota
	ImpactMinor
	ImpactMajor
	ImpactCatastrophic
)

func (s ImpactSeverity) String() string {
	switch s {
	case ImpactNone:
		return "none"
	case ImpactMinor:
		return "minor"
	case ImpactMajor:
		return "major"
	case ImpactCatastrophic:
		return "catastrophic"
	}
	return "unknown"
}

// Channel mix for one impact. Alignment is |impact normal . forward|, so a
// head-on hit loads the frame while a glancing scrape mostly costs paint.
// Mechanical damage does not care which way the car was pointing.
const (
	structuralAlignGain = 0.5
	cosmeticAlignLoss   = 0.6
	mechanicalShare     = 0.8
)

// DamageState holds the accumulated damage channels, each in [0,1], and
// the number of impacts that priced into them. It survives Reset and is
// only cleared explicitly.
type DamageState struct {
	Structural float64 `json:"structural"`
	Cosmetic   float64 `json:"cosmetic"`
	Mechanical float64 `json:"mechanical"`
	Overall    float64 `json:"overall"`
	CrashCount int     `json:"crash_count"`
}

// classify buckets an impulse magnitude into a severity class and its base
// damage delta. Impulses below the minor threshold are ignored entirely.
func (c *DamageConfig) classify(impulse float64) (ImpactSeverity, float64) {
	switch {
	case impulse >= c.CatastrophicImpulse:
		return ImpactCatastrophic, c.CatastrophicDelta
	case impulse >= c.MajorImpulse:
		return ImpactMajor, c.MajorDelta
	case impulse >= c.MinorImpulse:
		return ImpactMinor, c.MinorDelta
	}
	return ImpactNone, 0
}

// applyImpact folds one collision into the channels and returns its
// severity. normal and forward must be unit length.
func (s *DamageState) applyImpact(c *DamageConfig, impulse float64, normal, forward mgl64.Vec3) ImpactSeverity {
	sev, base := c.classify(impulse)
	if sev == ImpactNone {
		return ImpactNone
	}

	align := math.Abs(normal.Dot(forward))
	s.Structural = clamp(s.Structural+base*(1-structuralAlignGain+structuralAlignGain*align), 0, 1)
	s.Cosmetic = clamp(s.Cosmetic+base*(1-cosmeticAlignLoss*align), 0, 1)
	s.Mechanical = clamp(s.Mechanical+base*mechanicalShare, 0, 1)
	s.CrashCount++
	s.recompute(c)
	return sev
}

func (s *DamageState) recompute(c *DamageConfig) {
	s.Overall = clamp(
		c.StructuralWeight*s.Structural+
			c.CosmeticWeight*s.Cosmetic+
			c.MechanicalWeight*s.Mechanical, 0, 1)
}

func (s *DamageState) clear() {
	*s = DamageState{}
}

// enginePenalty is the fraction of engine torque lost to accumulated damage.
func (s *DamageState) enginePenalty(c *DamageConfig) float64 {
	return s.Overall * c.EnginePenaltyMax
}

// gripPenalty is the fraction of tire grip lost to accumulated damage.
func (s *DamageState) gripPenalty(c *DamageConfig) float64 {
	return s.Overall * c.GripPenaltyMax
}
