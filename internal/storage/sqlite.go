package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"controljm/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store over a single schema-versioned SQLite file.
// Records are kept as their canonical JSON body keyed by (collection, id);
// the store is deliberately a dumb persistent map.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, collection core.Collection) ([]core.Record, error) {
	if !collection.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM records WHERE collection = ?`, string(collection))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		rec, err := core.Decode(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s record: %w", collection, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", collection, err)
	}

	return records, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection core.Collection, record core.Record) error {
	if !collection.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	id := record.ID()
	if id == "" {
		return ErrMissingID
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, userid, body, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (collection, id) DO UPDATE SET
		   userid = excluded.userid,
		   body = excluded.body,
		   updated_at = CURRENT_TIMESTAMP`,
		string(collection), id, record.UserID(), string(body))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}

	slog.DebugContext(ctx, "Record stored",
		"collection", collection,
		"id", id,
		"user_id", record.UserID())

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, collection core.Collection, id string) error {
	if !collection.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`,
		string(collection), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	return nil
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}
