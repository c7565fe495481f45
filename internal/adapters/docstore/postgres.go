package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/db"
	"chronoplan/internal/infra/metrics"
)

// Postgres хранит документы в JSONB и оповещает слушателей через LISTEN/NOTIFY.
// Полезная нагрузка уведомления: путь коллекции.
type Postgres struct {
	pool    *pgxpool.Pool
	channel string
	log     zerolog.Logger
}

var _ domain.DocumentStore = (*Postgres)(nil)

// NewPostgres создаёт хранилище поверх пула.
func NewPostgres(pool *pgxpool.Pool, channel string, logger zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, channel: channel, log: logger.With().Str("component", "docstore").Logger()}
}

func (p *Postgres) observe(op string, start time.Time, err error) {
	metrics.ObserveNetworkRequest("postgres", op, "documents", start, err)
}

// Get возвращает документ по пути.
func (p *Postgres) Get(ctx context.Context, path string) (doc domain.Document, err error) {
	start := time.Now()
	defer func() { p.observe("get", start, err) }()

	var data map[string]any
	err = p.pool.QueryRow(ctx, `SELECT doc_id, data FROM documents WHERE path = $1`, path).Scan(&doc.ID, &data)
	if err != nil {
		return domain.Document{}, db.Classify("get document", err)
	}
	doc.Data = data
	return doc, nil
}

// Set перезаписывает документ и оповещает слушателей коллекции.
func (p *Postgres) Set(ctx context.Context, path string, data map[string]any) (err error) {
	start := time.Now()
	defer func() { p.observe("set", start, err) }()

	collection, id := SplitPath(path)
	return db.Classify("set document", p.write(ctx, collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO documents (path, collection, doc_id, data, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			path, collection, id, data)
		return err
	}))
}

// Add создаёт документ с идентификатором UUID.
func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := p.Set(ctx, collection+"/"+id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Delete удаляет документ.
func (p *Postgres) Delete(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { p.observe("delete", start, err) }()

	collection, _ := SplitPath(path)
	return db.Classify("delete document", p.write(ctx, collection, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
		return err
	}))
}

func (p *Postgres) write(ctx context.Context, collection string, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, p.channel, collection); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return tx.Commit(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func list(ctx context.Context, q querier, collection string) ([]domain.Document, error) {
	rows, err := q.Query(ctx, `SELECT doc_id, data FROM documents WHERE collection = $1 ORDER BY doc_id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []domain.Document{}
	for rows.Next() {
		var (
			id   string
			data map[string]any
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// Listen держит выделенное соединение с LISTEN и после каждого уведомления по коллекции
// перечитывает её целиком.
func (p *Postgres) Listen(ctx context.Context, collection string, fn domain.SnapshotFunc) (domain.ListenerRegistration, error) {
	start := time.Now()
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		p.observe("listen", start, err)
		return nil, db.Classify("listen collection", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.channel}.Sanitize()); err != nil {
		conn.Release()
		p.observe("listen", start, err)
		return nil, db.Classify("listen collection", err)
	}
	p.observe("listen", start, nil)
	metrics.ListenerStarted(kind(collection))

	lctx, cancel := context.WithCancel(context.Background())
	reg := &pgRegistration{conn: conn, cancel: cancel, done: make(chan struct{}), channel: p.channel, collection: collection}
	logger := p.log.With().Str("collection", collection).Logger()

	go func() {
		defer close(reg.done)
		docs, err := list(lctx, conn, collection)
		if err != nil {
			if lctx.Err() == nil {
				fn(nil, db.Classify("listen collection", err))
			}
			return
		}
		fn(docs, nil)
		for {
			n, err := conn.Conn().WaitForNotification(lctx)
			if err != nil {
				if lctx.Err() != nil {
					return
				}
				logger.Warn().Err(err).Msg("docstore: listener stopped")
				fn(nil, db.Classify("listen collection", err))
				return
			}
			if n.Payload != collection {
				continue
			}
			docs, err := list(lctx, conn, collection)
			if err != nil {
				if lctx.Err() != nil {
					return
				}
				fn(nil, db.Classify("listen collection", err))
				return
			}
			fn(docs, nil)
		}
	}()
	return reg, nil
}

type pgRegistration struct {
	conn       *pgxpool.Conn
	cancel     context.CancelFunc
	done       chan struct{}
	channel    string
	collection string
	once       sync.Once
}

// Remove останавливает слушателя и возвращает соединение в пул.
func (r *pgRegistration) Remove() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if !r.conn.Conn().IsClosed() {
			_, _ = r.conn.Exec(ctx, "UNLISTEN "+pgx.Identifier{r.channel}.Sanitize())
		}
		r.conn.Release()
		metrics.ListenerStopped(kind(r.collection))
	})
}
