package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tunebook/tunebook/internal/catalog"
	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the catalog database at path.
// If path is empty, an in-memory database is used.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to open database", err)
	}

	// Single connection: the in-memory database lives on it, and a single
	// writer avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("store_opened", slog.String("path", path))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS tunes (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		type        TEXT NOT NULL,
		meter       TEXT,
		mode        TEXT,
		abc         TEXT,
		aliases     TEXT,
		popularity  INTEGER,
		search_text TEXT NOT NULL DEFAULT '',
		created_at  TEXT,
		updated_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tunes_type ON tunes(type);
	CREATE INDEX IF NOT EXISTS idx_tunes_meter ON tunes(meter);
	CREATE INDEX IF NOT EXISTS idx_tunes_mode ON tunes(mode);
	CREATE INDEX IF NOT EXISTS idx_tunes_title ON tunes(title);
	CREATE INDEX IF NOT EXISTS idx_tunes_popularity ON tunes(popularity);
	CREATE INDEX IF NOT EXISTS idx_tunes_created_at ON tunes(created_at);
	CREATE INDEX IF NOT EXISTS idx_tunes_updated_at ON tunes(updated_at);

	CREATE TABLE IF NOT EXISTS recordings (
		id         TEXT PRIMARY KEY,
		tune_id    TEXT NOT NULL,
		artist     TEXT,
		album      TEXT,
		track      TEXT,
		source_ref TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_tune_id ON recordings(tune_id);
	CREATE INDEX IF NOT EXISTS idx_recordings_artist ON recordings(artist);

	CREATE TABLE IF NOT EXISTS aliases (
		id      TEXT PRIMARY KEY,
		tune_id TEXT NOT NULL,
		alias   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_aliases_tune_id ON aliases(tune_id);
	CREATE INDEX IF NOT EXISTS idx_aliases_alias ON aliases(alias);

	CREATE TABLE IF NOT EXISTS popularity (
		tune_id   TEXT PRIMARY KEY,
		tunebooks INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sets (
		id       TEXT PRIMARY KEY,
		name     TEXT,
		tune_ids TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sets_name ON sets(name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to initialize schema", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to read schema version", err)
	}
	if version.Valid && version.Int64 > SchemaVersion {
		return tberrors.New(tberrors.ErrCodeSchemaVersion,
			fmt.Sprintf("database schema version %d is newer than supported version %d", version.Int64, SchemaVersion), nil).
			WithSuggestion("upgrade tunebook or remove the database and re-ingest")
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreOpen, "failed to record schema version", err)
	}
	return nil
}

// tables maps each kind to its table name.
var tables = map[catalog.Kind]string{
	catalog.KindTunes:      "tunes",
	catalog.KindRecordings: "recordings",
	catalog.KindAliases:    "aliases",
	catalog.KindPopularity: "popularity",
	catalog.KindSets:       "sets",
}

// ReplaceAll writes the batch in one transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, batch *catalog.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.closedError()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(batch.Tunes) > 0 {
		if err := replaceTunes(ctx, tx, batch.Tunes); err != nil {
			return err
		}
	}
	if len(batch.Recordings) > 0 {
		if err := replaceRecordings(ctx, tx, batch.Recordings); err != nil {
			return err
		}
	}
	if len(batch.Aliases) > 0 {
		if err := replaceAliases(ctx, tx, batch.Aliases); err != nil {
			return err
		}
	}
	if len(batch.Popularity) > 0 {
		if err := replacePopularity(ctx, tx, batch.Popularity); err != nil {
			return err
		}
	}
	if len(batch.Sets) > 0 {
		if err := replaceSets(ctx, tx, batch.Sets); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to commit", err)
	}
	return nil
}

func clearTable(ctx context.Context, tx *sql.Tx, kind catalog.Kind) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+tables[kind]); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite,
			fmt.Sprintf("failed to clear %s", kind), err)
	}
	return nil
}

func writeError(kind catalog.Kind, id string, err error) error {
	return tberrors.StoreError(tberrors.ErrCodeStoreWrite,
		fmt.Sprintf("failed to write %s row %s", kind, id), err)
}

func replaceTunes(ctx context.Context, tx *sql.Tx, tunes []catalog.Tune) error {
	if err := clearTable(ctx, tx, catalog.KindTunes); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO tunes
			(id, title, type, meter, mode, abc, aliases, popularity, search_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to prepare tune insert", err)
	}
	defer stmt.Close()

	for i := range tunes {
		t := &tunes[i]
		aliases, err := encodeStrings(t.Aliases)
		if err != nil {
			return writeError(catalog.KindTunes, t.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			t.ID, t.Title, string(t.Type),
			nullString(string(t.Meter)), nullString(string(t.Mode)), nullString(t.ABC),
			aliases, nullInt(t.Popularity), t.SearchText,
			nullTime(t.CreatedAt), nullTime(t.UpdatedAt))
		if err != nil {
			return writeError(catalog.KindTunes, t.ID, err)
		}
	}
	return nil
}

func replaceRecordings(ctx context.Context, tx *sql.Tx, recs []catalog.Recording) error {
	if err := clearTable(ctx, tx, catalog.KindRecordings); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO recordings (id, tune_id, artist, album, track, source_ref)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to prepare recording insert", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx, r.ID, r.TuneID,
			nullString(r.Artist), nullString(r.Album), nullString(r.Track), nullString(r.SourceRef))
		if err != nil {
			return writeError(catalog.KindRecordings, r.ID, err)
		}
	}
	return nil
}

func replaceAliases(ctx context.Context, tx *sql.Tx, aliases []catalog.Alias) error {
	if err := clearTable(ctx, tx, catalog.KindAliases); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO aliases (id, tune_id, alias) VALUES (?, ?, ?)`)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to prepare alias insert", err)
	}
	defer stmt.Close()

	for _, a := range aliases {
		if _, err := stmt.ExecContext(ctx, a.ID, a.TuneID, a.Alias); err != nil {
			return writeError(catalog.KindAliases, a.ID, err)
		}
	}
	return nil
}

func replacePopularity(ctx context.Context, tx *sql.Tx, pops []catalog.Popularity) error {
	if err := clearTable(ctx, tx, catalog.KindPopularity); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO popularity (tune_id, tunebooks) VALUES (?, ?)`)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to prepare popularity insert", err)
	}
	defer stmt.Close()

	for _, p := range pops {
		if _, err := stmt.ExecContext(ctx, p.TuneID, p.Tunebooks); err != nil {
			return writeError(catalog.KindPopularity, p.TuneID, err)
		}
	}
	return nil
}

func replaceSets(ctx context.Context, tx *sql.Tx, sets []catalog.TuneSet) error {
	if err := clearTable(ctx, tx, catalog.KindSets); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sets (id, name, tune_ids) VALUES (?, ?, ?)`)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to prepare set insert", err)
	}
	defer stmt.Close()

	for _, set := range sets {
		ids := set.TuneIDs
		if ids == nil {
			ids = []string{}
		}
		encoded, err := json.Marshal(ids)
		if err != nil {
			return writeError(catalog.KindSets, set.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, set.ID, nullString(set.Name), string(encoded)); err != nil {
			return writeError(catalog.KindSets, set.ID, err)
		}
	}
	return nil
}

// Clear empties every table in one transaction.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.closedError()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, kind := range catalog.AllKinds {
		if err := clearTable(ctx, tx, kind); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite, "failed to commit", err)
	}
	return nil
}

// ClearKind empties a single table.
func (s *SQLiteStore) ClearKind(ctx context.Context, kind catalog.Kind) error {
	table, ok := tables[kind]
	if !ok {
		return tberrors.ValidationError(fmt.Sprintf("unknown kind %q", kind), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.closedError()
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return tberrors.StoreError(tberrors.ErrCodeStoreWrite,
			fmt.Sprintf("failed to clear %s", kind), err)
	}
	return nil
}

const tuneColumns = `id, title, type, meter, mode, abc, aliases, popularity, search_text, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTune(row rowScanner) (*catalog.Tune, error) {
	var (
		t                         catalog.Tune
		tuneType                  string
		meter, mode, abc, aliases sql.NullString
		createdAt, updatedAt      sql.NullString
		popularity                sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Title, &tuneType, &meter, &mode, &abc, &aliases,
		&popularity, &t.SearchText, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Type = catalog.TuneType(tuneType)
	t.Meter = catalog.Meter(meter.String)
	t.Mode = catalog.Mode(mode.String)
	t.ABC = abc.String
	if aliases.Valid && aliases.String != "" {
		if err := json.Unmarshal([]byte(aliases.String), &t.Aliases); err != nil {
			return nil, fmt.Errorf("decode aliases of %s: %w", t.ID, err)
		}
	}
	if popularity.Valid {
		p := int(popularity.Int64)
		t.Popularity = &p
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTune returns the tune with id, or nil if absent.
func (s *SQLiteStore) GetTune(ctx context.Context, id string) (*catalog.Tune, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+tuneColumns+` FROM tunes WHERE id = ?`, id)
	t, err := scanTune(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to get tune "+id, err)
	}
	return t, nil
}

// ScanTunes returns tunes ordered by opts.OrderBy. Rows with no value in
// the order column sort last; ties break on id.
func (s *SQLiteStore) ScanTunes(ctx context.Context, opts ScanOptions) ([]*catalog.Tune, error) {
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = OrderTitle
	}
	column, ok := orderColumns[orderBy]
	if !ok {
		_, err := ParseOrderField(string(orderBy))
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if opts.Filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(opts.Filter.Type))
	}
	if opts.Filter.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, string(opts.Filter.Mode))
	}
	if opts.Filter.Meter != "" {
		where = append(where, "meter = ?")
		args = append(args, string(opts.Filter.Meter))
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + tuneColumns + ` FROM tunes`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}
	fmt.Fprintf(&q, " ORDER BY (%s IS NULL), %s %s, id ASC", column, column, dir)

	// Without a Go-side predicate the page can be cut in SQL.
	if opts.Predicate == nil {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		q.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, max(opts.Offset, 0))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to scan tunes", err)
	}
	defer rows.Close()

	results := make([]*catalog.Tune, 0)
	skipped := 0
	for rows.Next() {
		t, err := scanTune(rows)
		if err != nil {
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to decode tune", err)
		}
		if opts.Predicate != nil {
			if !opts.Predicate(t) {
				continue
			}
			if skipped < opts.Offset {
				skipped++
				continue
			}
			if opts.Limit > 0 && len(results) >= opts.Limit {
				break
			}
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to scan tunes", err)
	}
	return results, nil
}

// AllTunes returns every tune ordered by id.
func (s *SQLiteStore) AllTunes(ctx context.Context) ([]*catalog.Tune, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+tuneColumns+` FROM tunes ORDER BY id`)
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to read tunes", err)
	}
	defer rows.Close()

	var tunes []*catalog.Tune
	for rows.Next() {
		t, err := scanTune(rows)
		if err != nil {
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to decode tune", err)
		}
		tunes = append(tunes, t)
	}
	return tunes, rows.Err()
}

// RecordingsForTune returns a tune's recordings ordered by artist then id.
func (s *SQLiteStore) RecordingsForTune(ctx context.Context, tuneID string) ([]*catalog.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tune_id, artist, album, track, source_ref
		FROM recordings WHERE tune_id = ?
		ORDER BY artist, id`, tuneID)
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to read recordings", err)
	}
	defer rows.Close()

	recs := make([]*catalog.Recording, 0)
	for rows.Next() {
		var (
			r                               catalog.Recording
			artist, album, track, sourceRef sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TuneID, &artist, &album, &track, &sourceRef); err != nil {
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to decode recording", err)
		}
		r.Artist, r.Album, r.Track, r.SourceRef = artist.String, album.String, track.String, sourceRef.String
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// GetSet returns the set with id, or nil if absent.
func (s *SQLiteStore) GetSet(ctx context.Context, id string) (*catalog.TuneSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	var (
		set     catalog.TuneSet
		name    sql.NullString
		tuneIDs string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, tune_ids FROM sets WHERE id = ?`, id).
		Scan(&set.ID, &name, &tuneIDs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to get set "+id, err)
	}
	set.Name = name.String
	if err := json.Unmarshal([]byte(tuneIDs), &set.TuneIDs); err != nil {
		return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead, "failed to decode set "+id, err)
	}
	return &set, nil
}

// Counts returns the row count of every table.
func (s *SQLiteStore) Counts(ctx context.Context) (map[catalog.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, s.closedError()
	}

	counts := make(map[catalog.Kind]int, len(catalog.AllKinds))
	for _, kind := range catalog.AllKinds {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tables[kind]).Scan(&n); err != nil {
			return nil, tberrors.StoreError(tberrors.ErrCodeStoreRead,
				fmt.Sprintf("failed to count %s", kind), err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

func (s *SQLiteStore) closedError() error {
	return tberrors.StoreError(tberrors.ErrCodeStoreRead, "store is closed", nil)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", ns.String, err)
	}
	return &t, nil
}

func encodeStrings(ss []string) (sql.NullString, error) {
	if len(ss) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
