package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Resinat/Inlay/internal/model"
)

// DisplayStateRepo wraps display_state.db.
type DisplayStateRepo struct {
	db *sql.DB
}

// NewDisplayStateRepo creates a repo for an opened and migrated database.
func NewDisplayStateRepo(db *sql.DB) *DisplayStateRepo {
	return &DisplayStateRepo{db: db}
}

// LoadAll reads every persisted display state.
func (r *DisplayStateRepo) LoadAll() ([]model.DisplayStateRow, error) {
	rows, err := r.db.Query(`
		SELECT block_id, last_displayed_ns, display_count, last_interacted_ns, interact_count
		FROM display_states`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.DisplayStateRow
	for rows.Next() {
		var row model.DisplayStateRow
		if err := rows.Scan(
			&row.BlockID,
			&row.LastDisplayedNs,
			&row.DisplayCount,
			&row.LastInteractedNs,
			&row.InteractCount,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Get reads one display state. Returns ErrNotFound when absent.
func (r *DisplayStateRepo) Get(blockID string) (model.DisplayStateRow, error) {
	row := model.DisplayStateRow{BlockID: blockID}
	err := r.db.QueryRow(`
		SELECT last_displayed_ns, display_count, last_interacted_ns, interact_count
		FROM display_states WHERE block_id = ?`, blockID).
		Scan(&row.LastDisplayedNs, &row.DisplayCount, &row.LastInteractedNs, &row.InteractCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DisplayStateRow{}, ErrNotFound
	}
	if err != nil {
		return model.DisplayStateRow{}, err
	}
	return row, nil
}

// FlushTx upserts and deletes in a single transaction. Upserts run first.
func (r *DisplayStateRepo) FlushTx(upserts []model.DisplayStateRow, deletes []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bulkExecTx(tx, upsertDisplayStateSQL, len(upserts), func(s *sql.Stmt, i int) error {
		row := upserts[i]
		_, err := s.Exec(row.BlockID, row.LastDisplayedNs, row.DisplayCount, row.LastInteractedNs, row.InteractCount)
		return err
	}); err != nil {
		return fmt.Errorf("upsert_display_states: %w", err)
	}
	if err := bulkExecTx(tx, deleteDisplayStateSQL, len(deletes), func(s *sql.Stmt, i int) error {
		_, err := s.Exec(deletes[i])
		return err
	}); err != nil {
		return fmt.Errorf("delete_display_states: %w", err)
	}

	return tx.Commit()
}

// DeleteAll removes every persisted display state.
func (r *DisplayStateRepo) DeleteAll() error {
	_, err := r.db.Exec("DELETE FROM display_states")
	return err
}

// bulkExecTx runs a prepared statement n times inside tx.
func bulkExecTx(tx *sql.Tx, query string, n int, execFn func(stmt *sql.Stmt, i int) error) error {
	if n == 0 {
		return nil
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := execFn(stmt, i); err != nil {
			return fmt.Errorf("exec row %d: %w", i, err)
		}
	}
	return nil
}

const (
	upsertDisplayStateSQL = `INSERT INTO display_states (
			block_id, last_displayed_ns, display_count, last_interacted_ns, interact_count
		)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(block_id) DO UPDATE SET
			last_displayed_ns  = excluded.last_displayed_ns,
			display_count      = excluded.display_count,
			last_interacted_ns = excluded.last_interacted_ns,
			interact_count     = excluded.interact_count`

	deleteDisplayStateSQL = "DELETE FROM display_states WHERE block_id = ?"
)
