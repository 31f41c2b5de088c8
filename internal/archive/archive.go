// Package archive persists finished runs so they can be compared and
// replayed later. Backends share one record schema; the gorm-backed ones
// differ only in how the database is opened.
package archive

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stuntrig/vdyn/internal/config"
)

// ErrUnknownBackend is returned for archive backend names the factory
// does not recognize.
var ErrUnknownBackend = errors.New("unknown archive backend")

// ErrRunNotFound is returned when a run ID has no archived record.
var ErrRunNotFound = errors.New("run not found")

// Backend is the interface all archive implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *RunRecord) error
	EndRun(run *RunRecord) error

	// Recording
	RecordSample(s *SampleRecord) error
	RecordImpact(i *ImpactRecord) error

	// Retrieval
	RunByID(runID string) (*RunRecord, error)
	Samples(runID string) ([]SampleRecord, error)
	Impacts(runID string) ([]ImpactRecord, error)
}

// NewBackend creates an archive backend based on configuration.
// A failed Postgres connection falls back to SQLite so a run is never
// lost to a database outage.
func NewBackend(cfg config.ArchiveConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "postgres":
		b, err := newPostgresBackend(cfg.DSN, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Postgres archive, falling back to SQLite")
			return newSqliteBackend(cfg.Dir, log)
		}
		return b, nil
	case "sqlite":
		return newSqliteBackend(cfg.Dir, log)
	case "memory":
		return newMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
