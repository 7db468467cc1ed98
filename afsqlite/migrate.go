package afsqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS migrations(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  version INTEGER
);`,
	); err != nil {
		return fmt.Errorf("error creating migrations table: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO migrations(id, version) VALUES (0, 0)`,
	); err != nil {
		return fmt.Errorf("error setting initial migration version: %w", err)
	}

	var version int
	if err := tx.QueryRowContext(
		ctx, `SELECT version FROM migrations WHERE id=0;`,
	).Scan(&version); err != nil {
		return fmt.Errorf("failed to scan migration version: %w", err)
	}

	if err := migrateFrom(ctx, tx, version); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func migrateFrom(ctx context.Context, tx *sql.Tx, version int) error {
	switch version {
	case 0:
		if err := migrateInitial(ctx, tx); err != nil {
			return fmt.Errorf("initial migration: %w", err)
		}
		if err := setMigrationVersion(ctx, tx, 1); err != nil {
			return err
		}
	case 1:
		// Up to date.
		return nil
	default:
		return fmt.Errorf("unknown migration version %d", version)
	}

	// https://sqlite.org/pragma.html#pragma_optimize recommends
	// running optimize after any schema change.
	if _, err := tx.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to run PRAGMA optimize after migration: %w", err)
	}

	return nil
}

func migrateInitial(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(
		ctx,
		// Every known header, canonical or not.
		// The genesis header has a NULL parent_hash.
		`
CREATE TABLE headers(
  hash BLOB PRIMARY KEY NOT NULL,
  parent_hash BLOB,
  number INTEGER NOT NULL CHECK (number >= 0),
  digest BLOB
);
CREATE INDEX headers_by_parent ON headers(parent_hash);`+

			// Canonical chain index, from genesis up to the best block.
			`
CREATE TABLE canonical(
  number INTEGER PRIMARY KEY NOT NULL,
  hash BLOB NOT NULL REFERENCES headers(hash)
);`+

			// Raw justifications, opaque to the store.
			`
CREATE TABLE justifications(
  hash BLOB PRIMARY KEY NOT NULL REFERENCES headers(hash),
  raw BLOB
);`+

			// Single row holding the chain heads.
			// All three are NULL until the genesis header is saved.
			`
CREATE TABLE heads(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  genesis_hash BLOB REFERENCES headers(hash),
  best_hash BLOB REFERENCES headers(hash),
  finalized_hash BLOB REFERENCES headers(hash)
);
INSERT INTO heads VALUES(0, NULL, NULL, NULL);`,
	)
	return err
}

func setMigrationVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(
		ctx, `UPDATE migrations SET version = ? WHERE id = 0`, version,
	); err != nil {
		return fmt.Errorf("failed to set migration version to %d: %w", version, err)
	}
	return nil
}
