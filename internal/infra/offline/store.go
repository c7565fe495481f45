// Package offline хранит последние известные документы на диске, чтобы чтения
// переживали потерю связи с удалённым хранилищем.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chronoplan/internal/domain"
)

// Store: локальный кэш документов на SQLite.
type Store struct {
	db *sql.DB
}

// Open открывает (или создаёт) файл кэша.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open offline cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path       TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		data       TEXT NOT NULL,
		cached_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents(collection);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate offline cache: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory открывает кэш в памяти для тестов.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put сохраняет снимок документа.
func (s *Store) Put(ctx context.Context, collection, path, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents(path, collection, doc_id, data, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at`,
		path, collection, id, string(raw), time.Now().UnixMilli())
	return err
}

// Get возвращает документ из кэша. ok=false, если его нет.
func (s *Store) Get(ctx context.Context, path string) (domain.Document, bool, error) {
	var id, raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc_id, data FROM documents WHERE path = ?`, path).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, err
	}
	doc, err := decode(id, raw)
	if err != nil {
		return domain.Document{}, false, err
	}
	return doc, true, nil
}

// Delete удаляет документ из кэша.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

// List возвращает закэшированные документы коллекции.
func (s *Store) List(ctx context.Context, collection string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc_id, data FROM documents WHERE collection = ? ORDER BY doc_id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []domain.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ReplaceCollection заменяет закэшированную коллекцию свежим снимком.
func (s *Store) ReplaceCollection(ctx context.Context, collection string, docs []domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, collection); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for _, d := range docs {
		raw, err := json.Marshal(d.Data)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents(path, collection, doc_id, data, cached_at) VALUES (?, ?, ?, ?, ?)`,
			collection+"/"+d.ID, collection, d.ID, string(raw), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func decode(id, raw string) (domain.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return domain.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return domain.Document{ID: id, Data: data}, nil
}
