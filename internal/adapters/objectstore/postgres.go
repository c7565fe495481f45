package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/db"
	"chronoplan/internal/infra/metrics"
)

// Postgres хранит вложения в bytea. Файлы раздаёт HTTP-адаптер по PublicURL.
type Postgres struct {
	pool    *pgxpool.Pool
	baseURL string
}

var (
	_ domain.ObjectStore = (*Postgres)(nil)
	_ Reader             = (*Postgres)(nil)
)

// NewPostgres создаёт хранилище вложений.
func NewPostgres(pool *pgxpool.Pool, baseURL string) *Postgres {
	return &Postgres{pool: pool, baseURL: baseURL}
}

// Put сохраняет вложение. Существующий путь перезаписывается.
func (p *Postgres) Put(ctx context.Context, path string, body io.Reader, contentType string) (err error) {
	if !validPath(path) {
		return domain.Invalid("put object", "invalid object path")
	}
	data, err := readAll(body)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("postgres", "put", "objects", start, err) }()
	_, err = p.pool.Exec(ctx, `INSERT INTO objects (path, content_type, data) VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data`,
		path, contentType, data)
	return db.Classify("put object", err)
}

// DownloadURL проверяет наличие вложения и возвращает его адрес.
func (p *Postgres) DownloadURL(ctx context.Context, path string) (url string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("postgres", "download_url", "objects", start, err) }()
	var exists bool
	if err = p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM objects WHERE path = $1)`, path).Scan(&exists); err != nil {
		return "", db.Classify("download url", err)
	}
	if !exists {
		return "", domain.E(domain.KindNotFound, "download url", nil)
	}
	return PublicURL(p.baseURL, path), nil
}

// Open читает вложение.
func (p *Postgres) Open(ctx context.Context, path string) (obj Object, err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("postgres", "open", "objects", start, err) }()
	err = p.pool.QueryRow(ctx, `SELECT content_type, data FROM objects WHERE path = $1`, path).Scan(&obj.ContentType, &obj.Data)
	if err != nil {
		return Object{}, db.Classify("open object", err)
	}
	return obj, nil
}
