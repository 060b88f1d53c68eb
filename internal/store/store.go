package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eoscoord/eoscoord/internal/core/domain"
	"github.com/eoscoord/eoscoord/internal/core/service"

	_ "modernc.org/sqlite"
)

// Store persists savings bookkeeping and decision history in SQLite. It is
// diagnostic storage only; control state is rebuilt from live data on start.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS savings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		snapshot TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode INTEGER NOT NULL,
		ac_charge_demand_w REAL NOT NULL,
		dc_charge_demand_w REAL NOT NULL,
		discharge_allowed INTEGER NOT NULL,
		override_active INTEGER NOT NULL,
		source TEXT NOT NULL,
		state TEXT NOT NULL,
		computed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_computed_at ON decisions(computed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSavings replaces the savings snapshot singleton row.
func (s *Store) SaveSavings(snap service.SavingsSnapshot) error {
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	query := `INSERT OR REPLACE INTO savings (id, snapshot, updated_at) VALUES (1, ?, ?)`
	_, err = s.db.Exec(query, string(snapJSON), time.Now())
	return err
}

// LoadSavings returns the persisted snapshot, or nil when none exists yet.
func (s *Store) LoadSavings() (*service.SavingsSnapshot, error) {
	var snapJSON string
	err := s.db.QueryRow(`SELECT snapshot FROM savings WHERE id = 1`).Scan(&snapJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap service.SavingsSnapshot
	if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) RecordDecision(dec domain.ControlDecision) error {
	query := `INSERT INTO decisions
		(mode, ac_charge_demand_w, dc_charge_demand_w, discharge_allowed, override_active, source, state, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, int(dec.Mode), dec.ACChargeDemandW, dec.DCChargeDemandW,
		boolToInt(dec.DischargeAllowed), boolToInt(dec.OverrideActive),
		string(dec.Source), string(dec.State), dec.ComputedAt.Format(time.RFC3339))
	return err
}

// RecentDecisions returns the latest decisions, newest first.
func (s *Store) RecentDecisions(limit int) ([]domain.ControlDecision, error) {
	query := `SELECT mode, ac_charge_demand_w, dc_charge_demand_w, discharge_allowed, override_active, source, state, computed_at
		FROM decisions ORDER BY id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decisions := []domain.ControlDecision{}
	for rows.Next() {
		var d domain.ControlDecision
		var mode, dischargeInt, overrideInt int
		var source, state, computedAtStr string

		err := rows.Scan(&mode, &d.ACChargeDemandW, &d.DCChargeDemandW, &dischargeInt,
			&overrideInt, &source, &state, &computedAtStr)
		if err != nil {
			return nil, err
		}

		d.Mode = domain.InverterMode(mode)
		d.DischargeAllowed = dischargeInt == 1
		d.OverrideActive = overrideInt == 1
		d.Source = domain.DecisionSource(source)
		d.State = domain.CoordinatorState(state)
		d.ComputedAt, _ = time.Parse(time.RFC3339, computedAtStr)

		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
