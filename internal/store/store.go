// Package store persists optimization runs in a SQLite file so schedules and
// summaries remain retrievable after the response is gone.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bess-dispatch/internal/model"
)

// ErrNotFound reports an unknown run id.
var ErrNotFound = errors.New("run not found")

// Store wraps the SQLite connection.
type Store struct {
	sql *sql.DB
}

// RunRecord is the persisted metadata of one optimization run.
type RunRecord struct {
	ID        string
	CreatedAt time.Time

	Area    string
	Voltage string

	PowerKW     float64
	CapacityKWh float64

	Windows        int
	SkippedWindows int
	FinalSoC       float64
	CyclesUsed     float64

	TotalPnL  float64
	NetProfit float64
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{sql: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				id           TEXT PRIMARY KEY,
				created_at   TEXT NOT NULL,
				area         TEXT NOT NULL,
				voltage      TEXT NOT NULL,
				power_kw     REAL NOT NULL,
				capacity_kwh REAL NOT NULL,
				windows      INTEGER NOT NULL,
				skipped      INTEGER NOT NULL DEFAULT 0,
				final_soc    REAL NOT NULL,
				cycles_used  REAL NOT NULL,
				total_pnl    REAL NOT NULL,
				net_profit   REAL NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

			CREATE TABLE IF NOT EXISTS decisions (
				run_id          TEXT NOT NULL REFERENCES runs(id),
				idx             INTEGER NOT NULL,
				date            TEXT NOT NULL,
				slot            INTEGER NOT NULL,
				action          TEXT NOT NULL,
				charge_kwh      REAL NOT NULL,
				discharge_kwh   REAL NOT NULL,
				eprx3_kwh       REAL NOT NULL,
				loss_kwh        REAL NOT NULL,
				soc_kwh         REAL NOT NULL,
				eprx3_activated INTEGER NOT NULL,
				jepx_actual     REAL NOT NULL,
				eprx1_actual    REAL NOT NULL,
				eprx3_actual    REAL NOT NULL,
				imbalance       REAL NOT NULL,
				jepx_pnl        REAL NOT NULL,
				eprx1_pnl       REAL NOT NULL,
				eprx3_pnl       REAL NOT NULL,
				total_pnl       REAL NOT NULL,
				PRIMARY KEY (run_id, idx)
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	return nil
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// SaveRun stores the run metadata and its schedule in one transaction.
func (s *Store) SaveRun(rec RunRecord, decisions []model.SlotDecision) error {
	tx, err := s.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, created_at, area, voltage, power_kw, capacity_kwh,
			windows, skipped, final_soc, cycles_used, total_pnl, net_profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339), rec.Area, rec.Voltage,
		rec.PowerKW, rec.CapacityKWh, rec.Windows, rec.SkippedWindows,
		rec.FinalSoC, rec.CyclesUsed, rec.TotalPnL, rec.NetProfit)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO decisions (run_id, idx, date, slot, action,
			charge_kwh, discharge_kwh, eprx3_kwh, loss_kwh, soc_kwh, eprx3_activated,
			jepx_actual, eprx1_actual, eprx3_actual, imbalance,
			jepx_pnl, eprx1_pnl, eprx3_pnl, total_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare decisions: %w", err)
	}
	defer stmt.Close()

	for i, d := range decisions {
		_, err := stmt.Exec(rec.ID, i, d.Date.Format("2006-01-02"), d.Slot, string(d.Action),
			d.ChargeKWh, d.DischargeKWh, d.EPRX3KWh, d.LossKWh, d.SoCKWh, d.EPRX3Activated,
			d.JEPXActual, d.EPRX1Actual, d.EPRX3Actual, d.Imbalance,
			d.JEPXPnL, d.EPRX1PnL, d.EPRX3PnL, d.TotalPnL)
		if err != nil {
			return fmt.Errorf("insert decision %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]RunRecord, error) {
	rows, err := s.sql.Query(`
		SELECT id, created_at, area, voltage, power_kw, capacity_kwh,
			windows, skipped, final_soc, cycles_used, total_pnl, net_profit
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun returns one run's metadata, or ErrNotFound.
func (s *Store) GetRun(id string) (RunRecord, error) {
	row := s.sql.QueryRow(`
		SELECT id, created_at, area, voltage, power_kw, capacity_kwh,
			windows, skipped, final_soc, cycles_used, total_pnl, net_profit
		FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	return rec, err
}

// GetSchedule returns one run's decisions in slot order, or ErrNotFound.
func (s *Store) GetSchedule(id string) ([]model.SlotDecision, error) {
	if _, err := s.GetRun(id); err != nil {
		return nil, err
	}
	rows, err := s.sql.Query(`
		SELECT date, slot, action, charge_kwh, discharge_kwh, eprx3_kwh, loss_kwh,
			soc_kwh, eprx3_activated, jepx_actual, eprx1_actual, eprx3_actual,
			imbalance, jepx_pnl, eprx1_pnl, eprx3_pnl, total_pnl
		FROM decisions WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	defer rows.Close()

	var out []model.SlotDecision
	for rows.Next() {
		var d model.SlotDecision
		var date, action string
		if err := rows.Scan(&date, &d.Slot, &action,
			&d.ChargeKWh, &d.DischargeKWh, &d.EPRX3KWh, &d.LossKWh,
			&d.SoCKWh, &d.EPRX3Activated, &d.JEPXActual, &d.EPRX1Actual,
			&d.EPRX3Actual, &d.Imbalance,
			&d.JEPXPnL, &d.EPRX1PnL, &d.EPRX3PnL, &d.TotalPnL); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parse decision date: %w", err)
		}
		d.Date = t
		d.Action = model.Action(action)
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	var created string
	err := row.Scan(&rec.ID, &created, &rec.Area, &rec.Voltage,
		&rec.PowerKW, &rec.CapacityKWh, &rec.Windows, &rec.SkippedWindows,
		&rec.FinalSoC, &rec.CyclesUsed, &rec.TotalPnL, &rec.NetProfit)
	if err != nil {
		return rec, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return rec, fmt.Errorf("parse run timestamp: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}
