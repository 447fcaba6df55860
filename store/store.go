// Package store archives formulas in a SQLite database, together with the
// parent each one was mutated from.
//
// Formulas are kept in their 288-byte binary encoding, so an archive can be
// read by anything that speaks that format.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/genart"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a formula id does not exist.
var ErrNotFound = errors.New("store: formula not found")

// Record is one archived formula.
type Record struct {
	ID          int64
	ParentID    int64 // 0 for a root formula
	Formula     genart.Formula
	Fingerprint uint64
	Note        string
	Created     time.Time
}

// Store is a formula archive. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// migrations are applied in order; PRAGMA user_version records how many
// have run.
var migrations = []string{
	`CREATE TABLE formulas(
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_id   INTEGER REFERENCES formulas(id),
		formula     BLOB    NOT NULL,
		fingerprint INTEGER NOT NULL,
		note        TEXT    NOT NULL DEFAULT '',
		created     INTEGER NOT NULL
	)`,
	`CREATE INDEX formulas_fingerprint ON formulas(fingerprint)`,
	`CREATE INDEX formulas_parent ON formulas(parent_id)`,
}

// Open opens or creates the archive at path and brings its schema up to
// date. Use ":memory:" for a throwaway archive.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive across queries and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("store: migration %d: %w", i+1, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, len(migrations))); err != nil {
		return fmt.Errorf("store: set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	genart.Logger().Debug("store: schema migrated", "from", version, "to", len(migrations))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives f and returns its id. parentID names the formula f was
// mutated from, or 0 for none; a non-zero parent must exist.
func (s *Store) Save(ctx context.Context, f genart.Formula, parentID int64, note string) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("store: save: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var parent sql.NullInt64
	if parentID != 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM formulas WHERE id = ?`, parentID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("store: parent %d: %w", parentID, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("store: save: %w", err)
		}
		parent = sql.NullInt64{Int64: parentID, Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO formulas(parent_id, formula, fingerprint, note, created) VALUES(?, ?, ?, ?, ?)`,
		parent, genart.MarshalGimp(f), int64(f.Fingerprint()), note, s.now().UnixMilli()) //nolint:gosec // fingerprint bits stored as signed
	if err != nil {
		return 0, fmt.Errorf("store: save: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: save: %w", err)
	}
	return id, nil
}

const recordColumns = `id, parent_id, formula, fingerprint, note, created`

// Get returns the formula with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM formulas WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("store: id %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns up to limit formulas, newest first. A non-positive limit
// returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM formulas ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return collect(rows)
}

// Lineage returns the formula with the given id followed by its parent, its
// parent's parent and so on up to the root.
func (s *Store) Lineage(ctx context.Context, id int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE lineage(id, depth) AS (
			SELECT id, 0 FROM formulas WHERE id = ?
			UNION ALL
			SELECT f.parent_id, l.depth + 1
			FROM formulas f JOIN lineage l ON f.id = l.id
			WHERE f.parent_id IS NOT NULL
		)
		SELECT f.id, f.parent_id, f.formula, f.fingerprint, f.note, f.created
		FROM lineage l JOIN formulas f ON f.id = l.id
		ORDER BY l.depth`, id)
	if err != nil {
		return nil, fmt.Errorf("store: lineage: %w", err)
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("store: id %d: %w", id, ErrNotFound)
	}
	return recs, nil
}

// FindByFingerprint returns every archived copy of the formula with the
// given fingerprint, oldest first.
func (s *Store) FindByFingerprint(ctx context.Context, fp uint64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM formulas WHERE fingerprint = ? ORDER BY id`,
		int64(fp)) //nolint:gosec // fingerprint bits stored as signed
	if err != nil {
		return nil, fmt.Errorf("store: find: %w", err)
	}
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec     Record
		parent  sql.NullInt64
		blob    []byte
		fp      int64
		created int64
	)
	if err := sc.Scan(&rec.ID, &parent, &blob, &fp, &rec.Note, &created); err != nil {
		return Record{}, err
	}
	f, err := genart.UnmarshalGimp(blob)
	if err != nil {
		return Record{}, fmt.Errorf("store: id %d: %w", rec.ID, err)
	}
	rec.ParentID = parent.Int64
	rec.Formula = f
	rec.Fingerprint = uint64(fp) //nolint:gosec // fingerprint bits stored as signed
	rec.Created = time.UnixMilli(created)
	return rec, nil
}

func collect(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return recs, nil
}
