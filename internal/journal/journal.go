// Package journal persists the override event history, so a session can be
// reviewed after the fact. It writes to Postgres when one is reachable and
// falls back to an in-memory SQLite database dumped to disk on demand.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
)

// Recorder is the journaling surface the control side talks to.
type Recorder interface {
	RecordGrant(agent, light uint64, kind string, pos geo.Position, at time.Time)
	RecordExtend(agent, light uint64, kind string, pos geo.Position, at time.Time)
	RecordRelease(light uint64, at time.Time)
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) RecordGrant(agent, light uint64, kind string, pos geo.Position, at time.Time)  {}
func (Nop) RecordExtend(agent, light uint64, kind string, pos geo.Position, at time.Time) {}
func (Nop) RecordRelease(light uint64, at time.Time)                                      {}

// Manager handles database connections and override event writes.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger

	sessionID uint
}

// NewManager creates a new journal manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid:         false,
		ShouldSaveLocal: false,
		Logger:          log,
	}
}

// Connect establishes a database connection, falling back to SQLite if
// Postgres fails.
func (m *Manager) Connect() error {
	var err error

	m.DB, err = m.GetPostgresDB()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		m.DB, err = m.GetSqliteDB("")
		if err != nil || m.DB == nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %s", err)
		}
		m.IsValid = true
	}

	// test connection
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %s", err)
	}

	err = m.SqlDB.Ping()
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to validate connection, trying SQLite")
		m.ShouldSaveLocal = true
		m.DB, err = m.GetSqliteDB("")
		if err != nil || m.DB == nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %s", err)
		}
		m.IsValid = true
	} else {
		m.Logger.Info().Msg("Connected to database")
		m.IsValid = true
	}

	if !m.IsValid {
		return fmt.Errorf("db not valid. not saving")
	}

	if !m.ShouldSaveLocal {
		m.SqlDB.SetMaxOpenConns(10)
	}

	return nil
}

// GetPostgresDB returns a connection to the Postgres database.
func (m *Manager) GetPostgresDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)

	m.Logger.Debug().Msgf("Connecting to Postgres DB at '%s'", dsn)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses an in-memory database.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		m.IsValid = false
		return nil, err
	}

	if path != "" {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory with disk dump on close")
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

// Setup migrates the schema. On Postgres the PostGIS extension is required
// for the position columns.
func (m *Manager) Setup() error {
	if m.DB.Dialector.Name() == "postgres" {
		err := m.DB.Exec(`CREATE EXTENSION IF NOT EXISTS postgis;`).Error
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to create PostGIS extension: %s", err)
		}
		m.Logger.Info().Msg("PostGIS extension created")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %s", err)
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// StartSession creates the session row subsequent events attach to.
func (m *Manager) StartSession(name string, startedAt time.Time) error {
	if !m.IsValid {
		return fmt.Errorf("journal not connected")
	}

	session := Session{Name: name, StartedAt: startedAt}
	if err := m.DB.Create(&session).Error; err != nil {
		return fmt.Errorf("failed to create session: %s", err)
	}
	m.sessionID = session.ID

	m.Logger.Info().Str("session", name).Uint("id", session.ID).Msg("Journal session started")
	return nil
}

// SessionID returns the active session row ID, 0 if none.
func (m *Manager) SessionID() uint {
	return m.sessionID
}

func (m *Manager) record(event string, agent, light uint64, kind string, pos geo.Position, at time.Time) {
	if !m.IsValid || m.sessionID == 0 {
		return
	}

	meta, _ := json.Marshal(map[string]any{
		"elevation": pos.Z,
	})

	row := OverrideEvent{
		Time:      at,
		SessionID: m.sessionID,
		Event:     event,
		Agent:     agent,
		Light:     light,
		LightKind: kind,
		Position:  geo.Point3857(pos),
		Metadata:  meta,
	}

	if err := m.DB.Create(&row).Error; err != nil {
		m.Logger.Error().Err(err).Str("event", event).Msg("Failed to write override event")
	}
}

// RecordGrant journals a fresh override.
func (m *Manager) RecordGrant(agent, light uint64, kind string, pos geo.Position, at time.Time) {
	m.record(EventGrant, agent, light, kind, pos, at)
}

// RecordExtend journals a lease renewal.
func (m *Manager) RecordExtend(agent, light uint64, kind string, pos geo.Position, at time.Time) {
	m.record(EventExtend, agent, light, kind, pos, at)
}

// RecordRelease journals an override returning to default control. The
// sweep only knows the handle, so agent and position are absent.
func (m *Manager) RecordRelease(light uint64, at time.Time) {
	if !m.IsValid || m.sessionID == 0 {
		return
	}

	row := OverrideEvent{
		Time:      at,
		SessionID: m.sessionID,
		Event:     EventRelease,
		Light:     light,
	}

	if err := m.DB.Create(&row).Error; err != nil {
		m.Logger.Error().Err(err).Msg("Failed to write release event")
	}
}

// ExportedEvent is an override event with its position converted to
// latitude/longitude for external tooling.
type ExportedEvent struct {
	Time      time.Time `json:"time"`
	Event     string    `json:"event"`
	Agent     uint64    `json:"agent"`
	Light     uint64    `json:"light"`
	LightKind string    `json:"lightKind"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// ExportSession returns all events of a session ordered by time, with
// positions reprojected from Web Mercator to WGS84.
func (m *Manager) ExportSession(sessionID uint) ([]ExportedEvent, error) {
	if !m.IsValid {
		return nil, fmt.Errorf("journal not connected")
	}

	var rows []OverrideEvent
	err := m.DB.Where("session_id = ?", sessionID).Order("time ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %s", err)
	}

	out := make([]ExportedEvent, 0, len(rows))
	for _, row := range rows {
		var long, lat float64
		if xy, ok := row.Position.XY(); ok {
			long, lat = geo.LatLongFrom3857(geo.Position{X: xy.X, Y: xy.Y})
		}
		out = append(out, ExportedEvent{
			Time:      row.Time,
			Event:     row.Event,
			Agent:     row.Agent,
			Light:     row.Light,
			LightKind: row.LightKind,
			Latitude:  lat,
			Longitude: long,
		})
	}
	return out, nil
}

// DumpMemoryToDisk vacuums the in-memory database to a file.
func (m *Manager) DumpMemoryToDisk() error {
	if m.SqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	// remove existing file if it exists
	if exists, err := os.Stat(m.SqliteFilePath); err == nil && exists != nil {
		if err := os.Remove(m.SqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %s", err)
		}
	}

	start := time.Now()
	err := m.DB.Exec("VACUUM INTO 'file:" + m.SqliteFilePath + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %s", err)
	}

	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close flushes the in-memory database to disk when configured and closes
// the underlying connection.
func (m *Manager) Close() error {
	if m.ShouldSaveLocal && m.SqliteFilePath != "" {
		if err := m.DumpMemoryToDisk(); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to dump journal to disk")
		}
	}
	if m.SqlDB != nil {
		return m.SqlDB.Close()
	}
	return nil
}
