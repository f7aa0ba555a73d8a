package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // database/sql driver

	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents (collection, seq);
`

var indexNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SQLiteStore keeps documents as JSON bodies in a single SQLite table. Every
// declared index becomes a json_extract expression index, so filtered reads
// are served by SQLite rather than a scan.
type SQLiteStore struct {
	db       *sql.DB
	indexes  indexSet
	feed     *Feed
	closed   atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o, idx, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:       db,
		indexes:  idx,
		feed:     o.feed,
		stopChan: make(chan struct{}),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	startMetricsUpdater(ctx, s, o.metricsUpdateInterval, s.stopChan)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	for collection, fields := range s.indexes {
		for field := range fields {
			name := indexNameSanitizer.ReplaceAllString("idx_"+collection+"_"+field, "_")
			stmt := fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON documents (collection, %s)",
				name, jsonPath(field))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create index %s: %w", name, err)
			}
		}
	}
	return nil
}

// jsonPath renders the extraction expression for a validated field name.
func jsonPath(field string) string {
	return "json_extract(body, '$." + field + "')"
}

// Feed returns the change feed the store publishes to.
func (s *SQLiteStore) Feed() *Feed { return s.feed }

func (s *SQLiteStore) guard(collection string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return checkCollection(collection)
}

// Fetch returns the documents of collection in insertion order.
func (s *SQLiteStore) Fetch(ctx context.Context, collection string, filter *Filter) ([]Document, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreReadLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := s.guard(collection); err != nil {
		return nil, err
	}
	if err := s.indexes.check(collection, filter); err != nil {
		return nil, err
	}

	query := "SELECT id, body FROM documents WHERE collection = ?"
	args := []any{collection}
	if filter != nil {
		query += " AND " + jsonPath(filter.Field) + " = ?"
		args = append(args, sqlValue(filter.Value))
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		data, err := decodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return out, nil
}

// Get returns one document.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := s.guard(collection); err != nil {
		return Document{}, err
	}
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := decodeBody(body)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: data}, nil
}

// Push stores data under a new uuid key.
func (s *SQLiteStore) Push(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or replaces the document at id. Replacing keeps the original
// insertion position.
func (s *SQLiteStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}
	body, err := json.Marshal(cloneData(data))
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}

	op := model.OpCreate
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			op = model.OpUpdate
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			collection, id, string(body), time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	s.published(ctx, collection, id, op)
	return nil
}

// Update merges patch into an existing document.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var body string
		err := tx.QueryRowContext(ctx,
			"SELECT body FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err := decodeBody(body)
		if err != nil {
			return err
		}
		for k, v := range patch {
			data[k] = cloneValue(v)
		}
		merged, err := json.Marshal(data)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
			string(merged), time.Now().UnixMilli(), collection, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	s.published(ctx, collection, id, model.OpUpdate)
	return nil
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.guard(collection); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	s.published(ctx, collection, id, model.OpDelete)
	return nil
}

// Subscribe watches collection, optionally narrowed by an indexed filter.
func (s *SQLiteStore) Subscribe(ctx context.Context, collection string, filter *Filter, onChange ChangeFunc) (CancelFunc, error) {
	if err := s.guard(collection); err != nil {
		return nil, err
	}
	if err := s.indexes.check(collection, filter); err != nil {
		return nil, err
	}
	read := func(ctx context.Context) ([]Document, error) {
		return s.Fetch(ctx, collection, filter)
	}
	return s.feed.Watch(ctx, collection, read, onChange), nil
}

// Count returns the number of documents in collection, or 0 on error.
func (s *SQLiteStore) Count(ctx context.Context, collection string) int {
	if s.closed.Load() {
		return 0
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM documents WHERE collection = ?", collection).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close stops background work and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopChan)
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) published(ctx context.Context, collection, id string, op model.ChangeOp) {
	metrics.RecordStoreWrite(collection, string(op))
	s.feed.Publish(ctx, model.ChangeEvent{Collection: collection, DocumentID: id, Op: op, TS: time.Now()})
}

func decodeBody(body string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	data := map[string]any{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// sqlValue converts a filter value into something json_extract compares
// equal to: JSON booleans come back from SQLite as 0 or 1.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
