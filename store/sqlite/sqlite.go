/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements comp.Store and comp.CatalogStore using SQLite. In production
  the same patterns apply to PostgreSQL - only minor dialect differences.

KEY TABLES:
  structures:         Every structure version ever submitted. Append-only
                      by contract: rows are inserted, the single
                      pending -> terminal status flip is the only update,
                      and no delete path exists. This table IS the
                      history ledger.
  current_structures: One row per employee pointing at the structure
                      presently in effect. "Current" is an explicit
                      pointer updated atomically with the approval, NOT a
                      most-recent-approved-by-timestamp query, which
                      would be race-prone under concurrent approvals.
  catalog_config:     The stored component catalog JSON (single row).

CONCURRENCY INVARIANTS:
  - Partial unique index on (employee_id, effective_month) over
    non-rejected rows makes Submit's duplicate check an atomic
    insert-if-absent.
  - Approval runs in one database transaction: the status flip and a
    compare-and-set on current_structures either both commit or neither
    does. A lost CAS surfaces as comp.ErrCurrentConflict.

WAL MODE:
  Opened with WAL for reader/writer concurrency and better crash
  recovery. A sync.RWMutex serializes writers in-process; with
  PostgreSQL the database would handle this instead.

SEE ALSO:
  - comp/store.go: Interface definitions and the atomicity contract
  - comp/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/comp"
)

// Store implements comp.Store and comp.CatalogStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Structure versions (the history ledger; append-only by contract)
	CREATE TABLE IF NOT EXISTS structures (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		effective_month TEXT NOT NULL,
		annual_ctc TEXT NOT NULL,
		retention_bonus TEXT NOT NULL,
		retention_vesting_months INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		overrides_json TEXT,
		resolved_json TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL,
		decided_by TEXT,
		decided_at TEXT,
		remarks TEXT,
		rejection_reason TEXT,
		previous_structure_id TEXT
	);

	-- CRITICAL: one non-rejected structure per employee and month.
	-- Makes Submit's duplicate check an atomic insert-if-absent.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_structures_employee_month
		ON structures(employee_id, effective_month)
		WHERE status != 'rejected';

	CREATE INDEX IF NOT EXISTS idx_structures_employee
		ON structures(employee_id, effective_month);
	CREATE INDEX IF NOT EXISTS idx_structures_status
		ON structures(status, created_at);

	-- Current structure pointer, one row per employee
	CREATE TABLE IF NOT EXISTS current_structures (
		employee_id TEXT PRIMARY KEY,
		structure_id TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Stored component catalog (single row)
	CREATE TABLE IF NOT EXISTS catalog_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STRUCTURE STORE (comp.Store interface)
// =============================================================================

// InsertStructure persists a new structure. The partial unique index
// turns a racing duplicate submission into a constraint error, mapped to
// comp.ErrDuplicateEffectiveMonth.
func (s *Store) InsertStructure(ctx context.Context, cs *comp.CompensationStructure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overridesJSON, err := json.Marshal(cs.Overrides)
	if err != nil {
		return fmt.Errorf("failed to encode overrides: %w", err)
	}
	resolvedJSON, err := json.Marshal(cs.Resolved)
	if err != nil {
		return fmt.Errorf("failed to encode resolved snapshot: %w", err)
	}

	query := `
		INSERT INTO structures
		(id, employee_id, effective_month, annual_ctc, retention_bonus,
		 retention_vesting_months, status, overrides_json, resolved_json,
		 created_by, created_at, decided_by, decided_at, remarks,
		 rejection_reason, previous_structure_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		cs.ID,
		cs.EmployeeID,
		cs.EffectiveMonth.String(),
		cs.AnnualCTC.Value.String(),
		cs.RetentionBonus.Value.String(),
		cs.RetentionVestingMonths,
		cs.Status,
		string(overridesJSON),
		string(resolvedJSON),
		cs.CreatedBy,
		cs.CreatedAt.UTC().Format(time.RFC3339),
		cs.DecidedBy,
		nullTime(cs.DecidedAt),
		cs.Remarks,
		cs.RejectionReason,
		nullStructureID(cs.PreviousStructureID),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return comp.ErrDuplicateEffectiveMonth
		}
		return fmt.Errorf("failed to insert structure: %w", err)
	}
	return nil
}

func (s *Store) GetStructure(ctx context.Context, id comp.StructureID) (*comp.CompensationStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectStructure+" WHERE id = ?", id)
	return scanStructure(row)
}

// MarkSubmitted moves a draft to pending_approval. The conditional UPDATE
// keeps the transition race-free without a read-modify-write.
func (s *Store) MarkSubmitted(ctx context.Context, id comp.StructureID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE structures SET status = ? WHERE id = ? AND status = ?`,
		comp.StatusPending, id, comp.StatusDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to submit draft: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missOrWrongState(ctx, s.db, id, comp.ErrNotDraft)
	}
	return nil
}

// MarkApproved flips pending_approval -> approved and compare-and-sets the
// employee's current pointer, all in one database transaction.
func (s *Store) MarkApproved(ctx context.Context, id comp.StructureID, decidedBy string, at time.Time, remarks string, expectedPrevious *comp.StructureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE structures
		SET status = ?, decided_by = ?, decided_at = ?,
		    remarks = CASE WHEN ? != '' THEN ? ELSE remarks END
		WHERE id = ? AND status = ?`,
		comp.StatusApproved, decidedBy, at.UTC().Format(time.RFC3339),
		remarks, remarks,
		id, comp.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to approve structure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missOrWrongState(ctx, tx, id, comp.ErrNotPending)
	}

	var employeeID comp.EmployeeID
	if err := tx.QueryRowContext(ctx,
		`SELECT employee_id FROM structures WHERE id = ?`, id,
	).Scan(&employeeID); err != nil {
		return fmt.Errorf("failed to read structure employee: %w", err)
	}

	now := at.UTC().Format(time.RFC3339)
	if expectedPrevious == nil {
		// First structure for this employee: insert-if-absent. A conflict
		// means another approval set the pointer since submission.
		res, err = tx.ExecContext(ctx, `
			INSERT INTO current_structures (employee_id, structure_id, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (employee_id) DO NOTHING`,
			employeeID, id, now,
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE current_structures SET structure_id = ?, updated_at = ?
			WHERE employee_id = ? AND structure_id = ?`,
			id, now, employeeID, *expectedPrevious,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update current pointer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return comp.ErrCurrentConflict
	}

	return tx.Commit()
}

func (s *Store) MarkRejected(ctx context.Context, id comp.StructureID, decidedBy string, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE structures
		SET status = ?, decided_by = ?, decided_at = ?, rejection_reason = ?
		WHERE id = ? AND status = ?`,
		comp.StatusRejected, decidedBy, at.UTC().Format(time.RFC3339), reason,
		id, comp.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to reject structure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missOrWrongState(ctx, s.db, id, comp.ErrNotPending)
	}
	return nil
}

func (s *Store) CurrentStructureID(ctx context.Context, employeeID comp.EmployeeID) (*comp.StructureID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id comp.StructureID
	err := s.db.QueryRowContext(ctx,
		`SELECT structure_id FROM current_structures WHERE employee_id = ?`,
		employeeID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current pointer: %w", err)
	}
	return &id, nil
}

func (s *Store) ListByStatus(ctx context.Context, status comp.Status) ([]*comp.CompensationStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryStructures(ctx,
		selectStructure+" WHERE status = ? ORDER BY created_at ASC, id ASC", status)
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID comp.EmployeeID) ([]*comp.CompensationStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryStructures(ctx,
		selectStructure+" WHERE employee_id = ? ORDER BY effective_month ASC, created_at ASC", employeeID)
}

func (s *Store) CountByStatus(ctx context.Context) (map[comp.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM structures GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count structures: %w", err)
	}
	defer rows.Close()

	counts := make(map[comp.Status]int)
	for rows.Next() {
		var status comp.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// CATALOG STORE (comp.CatalogStore interface)
// =============================================================================

func (s *Store) SaveCatalog(ctx context.Context, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_config (id, config_json, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`,
		configJSON, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

func (s *Store) LoadCatalog(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT config_json FROM catalog_config WHERE id = 1`).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load catalog: %w", err)
	}
	return configJSON, nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

const selectStructure = `
	SELECT id, employee_id, effective_month, annual_ctc, retention_bonus,
	       retention_vesting_months, status, overrides_json, resolved_json,
	       created_by, created_at, decided_by, decided_at, remarks,
	       rejection_reason, previous_structure_id
	FROM structures`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStructure(row rowScanner) (*comp.CompensationStructure, error) {
	var (
		cs            comp.CompensationStructure
		month         string
		annualCTC     string
		retention     string
		overridesJSON sql.NullString
		resolvedJSON  string
		createdAt     string
		decidedAt     sql.NullString
		previousID    sql.NullString
	)

	err := row.Scan(
		&cs.ID, &cs.EmployeeID, &month, &annualCTC, &retention,
		&cs.RetentionVestingMonths, &cs.Status, &overridesJSON, &resolvedJSON,
		&cs.CreatedBy, &createdAt, &cs.DecidedBy, &decidedAt, &cs.Remarks,
		&cs.RejectionReason, &previousID,
	)
	if err == sql.ErrNoRows {
		return nil, comp.ErrStructureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan structure: %w", err)
	}

	if cs.EffectiveMonth, err = comp.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("corrupt effective_month: %w", err)
	}
	if cs.AnnualCTC.Value, err = decimal.NewFromString(annualCTC); err != nil {
		return nil, fmt.Errorf("corrupt annual_ctc: %w", err)
	}
	if cs.RetentionBonus.Value, err = decimal.NewFromString(retention); err != nil {
		return nil, fmt.Errorf("corrupt retention_bonus: %w", err)
	}
	if overridesJSON.Valid && overridesJSON.String != "" {
		if err := json.Unmarshal([]byte(overridesJSON.String), &cs.Overrides); err != nil {
			return nil, fmt.Errorf("corrupt overrides: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(resolvedJSON), &cs.Resolved); err != nil {
		return nil, fmt.Errorf("corrupt resolved snapshot: %w", err)
	}
	if cs.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}
	if decidedAt.Valid && decidedAt.String != "" {
		t, err := time.Parse(time.RFC3339, decidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt decided_at: %w", err)
		}
		cs.DecidedAt = &t
	}
	if previousID.Valid && previousID.String != "" {
		prev := comp.StructureID(previousID.String)
		cs.PreviousStructureID = &prev
	}
	return &cs, nil
}

func (s *Store) queryStructures(ctx context.Context, query string, args ...any) ([]*comp.CompensationStructure, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query structures: %w", err)
	}
	defer rows.Close()

	var out []*comp.CompensationStructure
	for rows.Next() {
		cs, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// missOrWrongState distinguishes "no such row" from "row in the wrong
// state" after a conditional UPDATE affected zero rows.
func (s *Store) missOrWrongState(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id comp.StructureID, stateErr error) error {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM structures WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return comp.ErrStructureNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check structure: %w", err)
	}
	return stateErr
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullStructureID(id *comp.StructureID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
