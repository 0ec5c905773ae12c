package state

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PersistenceBootstrap opens and migrates display_state.db under stateDir,
// loads every persisted row, and returns a ready DisplayStore plus an io.Closer
// for the database handle.
func PersistenceBootstrap(stateDir string) (store *DisplayStore, closer io.Closer, err error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir %s: %w", stateDir, err)
	}

	db, err := OpenDB(filepath.Join(stateDir, DisplayStateDBFilename))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", DisplayStateDBFilename, err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if err := MigrateDisplayStateDB(db); err != nil {
		return nil, nil, err
	}

	repo := NewDisplayStateRepo(db)
	rows, err := repo.LoadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("load display states: %w", err)
	}

	store = NewDisplayStore(repo)
	store.Load(rows)
	return store, dbCloser{db: db}, nil
}

type dbCloser struct {
	db *sql.DB
}

func (c dbCloser) Close() error {
	return c.db.Close()
}
