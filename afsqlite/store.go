// Package afsqlite contains a SQLite-backed [afstore.ChainStore].
//
// The driver is chosen by build tags:
// mattn/go-sqlite3 when cgo is available,
// or modernc.org/sqlite with the purego tag or without cgo.
package afsqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"

	"github.com/fruitbox12/validator-azero/afchain"
	"github.com/fruitbox12/validator-azero/afstore"
)

// ChainStore is an [afstore.ChainStore] persisted in SQLite.
type ChainStore struct {
	// The string "purego" or "cgo" depending on build tags.
	BuildType string

	// Separate pools so that readers never queue behind the single writer
	// on an on-disk database.
	// The in-memory store shares one pool for both.
	ro, rw *sql.DB
}

func NewOnDiskStore(ctx context.Context, dbPath string) (*ChainStore, error) {
	dbPath = filepath.Clean(dbPath)
	if _, err := os.Stat(dbPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat path %q: %w", dbPath, err)
		}

		// Startup pragmas fail against a missing file.
		// O_EXCL instead of os.Create so an existing database is never truncated.
		f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty database file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close new empty database file: %w", err)
		}
	}

	uri := "file:" + dbPath + "?mode=rw"
	rw, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-write database: %w", err)
	}

	// One writer at a time; other writers wait for the connection
	// instead of failing with "database is locked".
	rw.SetMaxOpenConns(1)

	if _, err := rw.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}
	if err := pragmas(ctx, rw); err != nil {
		return nil, err
	}
	if err := migrate(ctx, rw); err != nil {
		return nil, err
	}

	// Swap the trailing mode=rw for mode=ro.
	uri = uri[:len(uri)-1] + "o"
	ro, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening read-only database: %w", err)
	}
	if err := pragmas(ctx, ro); err != nil {
		return nil, err
	}

	return &ChainStore{
		BuildType: sqliteBuildType,

		ro: ro,
		rw: rw,
	}, nil
}

var inMemNameCounter uint32

func NewInMemStore(ctx context.Context) (*ChainStore, error) {
	// A unique name per store, with a shared cache,
	// so every connection in the pool sees the same database.
	uri := fmt.Sprintf(
		"file:afchain%d?mode=memory&cache=shared&_txlock=immediate",
		atomic.AddUint32(&inMemNameCounter, 1),
	)

	db, err := sql.Open(sqliteDriverType, uri)
	if err != nil {
		return nil, fmt.Errorf("error opening in-memory database: %w", err)
	}

	// Without a single connection, concurrent access to a shared-cache
	// database reports "table is locked" rather than waiting.
	db.SetMaxOpenConns(1)

	if err := pragmas(ctx, db); err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}

	return &ChainStore{
		BuildType: sqliteBuildType,

		ro: db,
		rw: db,
	}, nil
}

func (s *ChainStore) Close() error {
	if s.ro == s.rw {
		return s.rw.Close()
	}

	errRO := s.ro.Close()
	if errRO != nil {
		errRO = fmt.Errorf("error closing read-only database: %w", errRO)
	}
	errRW := s.rw.Close()
	if errRW != nil {
		errRW = fmt.Errorf("error closing read-write database: %w", errRW)
	}
	return errors.Join(errRO, errRW)
}

func (s *ChainStore) SaveHeader(ctx context.Context, h afchain.Header) error {
	defer trace.StartRegion(ctx, "SaveHeader").End()

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	getHeader := headerLookup(ctx, tx)

	_, err = getHeader(h.Hash)
	if err == nil {
		return afstore.HashAlreadyExistsError{Hash: bytes.Clone(h.Hash)}
	}
	var hue afchain.HashUnknownError
	if !errors.As(err, &hue) {
		return err
	}

	if h.Number == 0 {
		var genesis []byte
		if err := tx.QueryRowContext(
			ctx, `SELECT genesis_hash FROM heads WHERE id=0`,
		).Scan(&genesis); err != nil {
			return fmt.Errorf("failed to check genesis: %w", err)
		}
		if genesis != nil {
			return afstore.GenesisAlreadyExistsError{Existing: genesis}
		}
	}

	if err := afstore.CheckParent(getHeader, h); err != nil {
		return err
	}

	var parent []byte
	if h.Number > 0 {
		parent = h.ParentHash
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO headers(hash, parent_hash, number, digest) VALUES(?, ?, ?, ?)`,
		h.Hash, parent, h.Number, h.Digest,
	); err != nil {
		return fmt.Errorf("failed to insert header: %w", err)
	}

	if h.Number == 0 {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE heads SET genesis_hash = ?1, best_hash = ?1, finalized_hash = ?1 WHERE id=0`,
			h.Hash,
		); err != nil {
			return fmt.Errorf("failed to set genesis heads: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx, `INSERT INTO canonical(number, hash) VALUES(0, ?)`, h.Hash,
		); err != nil {
			return fmt.Errorf("failed to index genesis: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit header: %w", err)
	}
	return nil
}

func (s *ChainStore) SetBest(ctx context.Context, hash []byte) error {
	defer trace.StartRegion(ctx, "SetBest").End()

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	h, err := headerLookup(ctx, tx)(hash)
	if err != nil {
		return err
	}
	if err := setBestInTx(ctx, tx, h); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit best block: %w", err)
	}
	return nil
}

func setBestInTx(ctx context.Context, tx *sql.Tx, h afchain.Header) error {
	route, err := afstore.CanonicalRoute(headerLookup(ctx, tx), canonicalLookup(ctx, tx), h)
	if err != nil {
		return fmt.Errorf("failed to compute canonical route: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx, `DELETE FROM canonical WHERE number > ?`, h.Number,
	); err != nil {
		return fmt.Errorf("failed to trim canonical index: %w", err)
	}
	for _, id := range route {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO canonical(number, hash) VALUES(?, ?)`,
			id.Number, id.Hash,
		); err != nil {
			return fmt.Errorf("failed to write canonical entry at %d: %w", id.Number, err)
		}
	}

	if _, err := tx.ExecContext(
		ctx, `UPDATE heads SET best_hash = ? WHERE id=0`, h.Hash,
	); err != nil {
		return fmt.Errorf("failed to set best hash: %w", err)
	}
	return nil
}

func (s *ChainStore) Finalize(ctx context.Context, hash, justification []byte) error {
	defer trace.StartRegion(ctx, "Finalize").End()

	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	getHeader := headerLookup(ctx, tx)
	h, err := getHeader(hash)
	if err != nil {
		return err
	}

	var fin afchain.BlockID
	if err := tx.QueryRowContext(
		ctx,
		`SELECT headers.hash, headers.number FROM heads
  JOIN headers ON headers.hash = heads.finalized_hash
  WHERE heads.id = 0`,
	).Scan(&fin.Hash, &fin.Number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return afstore.ErrStoreUninitialized
		}
		return fmt.Errorf("failed to load finalized block: %w", err)
	}

	if err := afstore.CheckFinalizable(getHeader, fin, h); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO justifications(hash, raw) VALUES(?, ?)`,
		h.Hash, justification,
	); err != nil {
		return fmt.Errorf("failed to save justification: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx, `UPDATE heads SET finalized_hash = ? WHERE id=0`, h.Hash,
	); err != nil {
		return fmt.Errorf("failed to set finalized hash: %w", err)
	}

	canon, err := canonicalLookup(ctx, tx)(h.Number)
	if err != nil {
		return err
	}
	if !bytes.Equal(canon, h.Hash) {
		if err := setBestInTx(ctx, tx, h); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit finalization: %w", err)
	}
	return nil
}

func (s *ChainStore) HeaderByHash(ctx context.Context, hash []byte) (afchain.Header, error) {
	defer trace.StartRegion(ctx, "HeaderByHash").End()

	return headerLookup(ctx, s.ro)(hash)
}

func (s *ChainStore) HashByNumber(ctx context.Context, number uint64) ([]byte, error) {
	defer trace.StartRegion(ctx, "HashByNumber").End()

	hash, err := canonicalLookup(ctx, s.ro)(number)
	if err != nil {
		return nil, err
	}
	if hash == nil {
		return nil, afchain.HeightUnknownError{Want: number}
	}
	return hash, nil
}

func (s *ChainStore) Children(ctx context.Context, hash []byte) ([][]byte, error) {
	defer trace.StartRegion(ctx, "Children").End()

	rows, err := s.ro.QueryContext(
		ctx, `SELECT hash FROM headers WHERE parent_hash = ?`, hash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var c []byte
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan child hash: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate children: %w", err)
	}
	return out, nil
}

func (s *ChainStore) Justification(ctx context.Context, hash []byte) ([]byte, error) {
	defer trace.StartRegion(ctx, "Justification").End()

	var raw []byte
	err := s.ro.QueryRowContext(
		ctx, `SELECT raw FROM justifications WHERE hash = ?`, hash,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, afchain.JustificationUnknownError{Hash: bytes.Clone(hash)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query justification: %w", err)
	}
	return raw, nil
}

func (s *ChainStore) Info(ctx context.Context) (afchain.Info, error) {
	defer trace.StartRegion(ctx, "Info").End()

	var info afchain.Info
	err := s.ro.QueryRowContext(
		ctx,
		`SELECT g.hash, b.hash, b.number, f.hash, f.number FROM heads
  JOIN headers g ON g.hash = heads.genesis_hash
  JOIN headers b ON b.hash = heads.best_hash
  JOIN headers f ON f.hash = heads.finalized_hash
  WHERE heads.id = 0`,
	).Scan(
		&info.GenesisHash,
		&info.BestHash, &info.BestNumber,
		&info.FinalizedHash, &info.FinalizedNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return afchain.Info{}, afstore.ErrStoreUninitialized
	}
	if err != nil {
		return afchain.Info{}, fmt.Errorf("failed to query chain info: %w", err)
	}
	return info, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func headerLookup(ctx context.Context, q querier) afstore.HeaderLookup {
	return func(hash []byte) (afchain.Header, error) {
		var h afchain.Header
		err := q.QueryRowContext(
			ctx,
			`SELECT hash, parent_hash, number, digest FROM headers WHERE hash = ?`,
			hash,
		).Scan(&h.Hash, &h.ParentHash, &h.Number, &h.Digest)
		if errors.Is(err, sql.ErrNoRows) {
			return afchain.Header{}, afchain.HashUnknownError{Got: bytes.Clone(hash)}
		}
		if err != nil {
			return afchain.Header{}, fmt.Errorf("failed to query header %x: %w", hash, err)
		}
		return h, nil
	}
}

func canonicalLookup(ctx context.Context, q querier) afstore.CanonicalLookup {
	return func(number uint64) ([]byte, error) {
		var hash []byte
		err := q.QueryRowContext(
			ctx, `SELECT hash FROM canonical WHERE number = ?`, number,
		).Scan(&hash)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query canonical hash at %d: %w", number, err)
		}
		return hash, nil
	}
}

func pragmas(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		return fmt.Errorf("failed to set foreign keys on: %w", err)
	}
	return nil
}
