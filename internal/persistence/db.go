// Package persistence provides a SQLite run journal: which days were
// started and what happened in them. The journal is write-mostly and is
// never used to restore simulation state.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/engine"
	"github.com/talgya/daysim/internal/timecode"
)

// DB wraps a SQLite connection for the run journal.
type DB struct {
	conn *sqlx.DB
}

// DayRecord is one journaled "start day" action.
type DayRecord struct {
	ID          string    `db:"id" json:"id"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	StartTime   string    `db:"start_time" json:"start_time"`
	AgentCount  int       `db:"agent_count" json:"agent_count"`
	Source      string    `db:"source" json:"source"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS days (
		id TEXT PRIMARY KEY,
		start_minute INTEGER NOT NULL,
		start_time TEXT NOT NULL,
		agent_count INTEGER NOT NULL,
		source TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day_id TEXT NOT NULL REFERENCES days(id),
		minute INTEGER NOT NULL,
		time TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(day_id);
	CREATE INDEX IF NOT EXISTS idx_days_created ON days(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordDay journals a started day.
func (db *DB) RecordDay(day *engine.Day) error {
	_, err := db.conn.Exec(`INSERT INTO days
		(id, start_minute, start_time, agent_count, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		day.ID.String(), day.StartMinute, timecode.Format(day.StartMinute),
		day.Population.Len(), day.Source, day.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert day %s: %w", day.ID, err)
	}
	return nil
}

// RecordEvents appends events for a day.
func (db *DB) RecordEvents(dayID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO events
		(day_id, minute, time, agent_id, description, category)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(dayID, e.Minute, e.Time, string(e.AgentID), e.Description, e.Category); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// RecentDays returns the most recently started days, newest first.
func (db *DB) RecentDays(limit int) ([]DayRecord, error) {
	var days []DayRecord
	err := db.conn.Select(&days,
		`SELECT id, start_minute, start_time, agent_count, source, created_at
		 FROM days ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	return days, err
}

// DayEvents returns the most recent N events of a day, oldest first.
func (db *DB) DayEvents(dayID string, limit int) ([]engine.Event, error) {
	var rows []struct {
		Minute      int    `db:"minute"`
		Time        string `db:"time"`
		AgentID     string `db:"agent_id"`
		Description string `db:"description"`
		Category    string `db:"category"`
	}
	err := db.conn.Select(&rows,
		`SELECT minute, time, agent_id, description, category FROM (
			SELECT id, minute, time, agent_id, description, category
			FROM events WHERE day_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		dayID, limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, engine.Event{
			Minute:      r.Minute,
			Time:        r.Time,
			AgentID:     agents.AgentID(r.AgentID),
			Description: r.Description,
			Category:    r.Category,
		})
	}
	return events, nil
}

// Attach wires the journal into a simulation's day and event hooks.
// Journal failures are logged, never surfaced to the simulation.
func (db *DB) Attach(sim *engine.Simulation) {
	sim.OnDayStart = func(day *engine.Day) {
		if err := db.RecordDay(day); err != nil {
			slog.Error("journal day failed", "day", day.ID, "error", err)
		}
	}
	sim.OnEvents = func(day *engine.Day, events []engine.Event) {
		if err := db.RecordEvents(day.ID.String(), events); err != nil {
			slog.Error("journal events failed", "day", day.ID, "count", len(events), "error", err)
		}
	}
}
