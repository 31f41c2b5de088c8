package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormBackend implements Backend on top of a gorm.DB. Postgres and SQLite
// share it; they differ only in how the database is opened.
type gormBackend struct {
	db  *gorm.DB
	log zerolog.Logger
}

func newPostgresBackend(dsn string, log zerolog.Logger) (*gormBackend, error) {
	log.Debug().Str("dsn", dsn).Msg("Connecting to Postgres archive")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %s", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %s", err)
	}
	sqlDB.SetMaxOpenConns(10)

	log.Info().Msg("Connected to Postgres archive")
	return &gormBackend{db: db, log: log}, nil
}

func newSqliteBackend(dir string, log zerolog.Logger) (*gormBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating archive directory: %s", err)
	}
	path := filepath.Join(dir, "vdyn_runs.db")

	db, err := openSqlite(path)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("Using local SQLite archive")
	return &gormBackend{db: db, log: log}, nil
}

// openSqlite opens a SQLite database. If path is empty, uses an in-memory
// database.
func openSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// set PRAGMAS
	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}

// Init migrates the archive schema.
func (b *gormBackend) Init() error {
	if err := b.db.AutoMigrate(ArchiveModels...); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %s", err)
	}
	b.log.Debug().Msg("Archive schema migrated")
	return nil
}

// Close closes the underlying database connection.
func (b *gormBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartRun inserts the start-of-run record.
func (b *gormBackend) StartRun(run *RunRecord) error {
	return b.db.Create(run).Error
}

// EndRun writes the outcome fields onto the existing run row. The columns
// are selected explicitly so zero values (a run that never moved) are
// still written.
func (b *gormBackend) EndRun(run *RunRecord) error {
	res := b.db.Model(&RunRecord{}).
		Where("run_id = ?", run.RunID).
		Select("ended_at", "ticks", "digest", "top_speed", "peak_g_force", "damage_overall", "summary").
		Updates(run)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
	}
	return nil
}

// RecordSample inserts one telemetry row.
func (b *gormBackend) RecordSample(s *SampleRecord) error {
	return b.db.Create(s).Error
}

// RecordImpact inserts one collision row.
func (b *gormBackend) RecordImpact(i *ImpactRecord) error {
	return b.db.Create(i).Error
}

// RunByID returns the archived run with the given run ID.
func (b *gormBackend) RunByID(runID string) (*RunRecord, error) {
	var run RunRecord
	err := b.db.Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Samples returns the archived telemetry rows for a run in tick order.
func (b *gormBackend) Samples(runID string) ([]SampleRecord, error) {
	var samples []SampleRecord
	err := b.db.Where("run_id = ?", runID).Order("tick asc").Find(&samples).Error
	return samples, err
}

// Impacts returns the archived collisions for a run in tick order.
func (b *gormBackend) Impacts(runID string) ([]ImpactRecord, error) {
	var impacts []ImpactRecord
	err := b.db.Where("run_id = ?", runID).Order("tick asc").Find(&impacts).Error
	return impacts, err
}
