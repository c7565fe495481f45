package docstore

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/offline"
)

// Cached дополняет удалённое хранилище локальным кэшем: успешные чтения и записи
// сохраняются на диск, а при ошибке сети чтения обслуживаются из кэша.
type Cached struct {
	remote domain.DocumentStore
	local  *offline.Store
	log    zerolog.Logger
}

var _ domain.DocumentStore = (*Cached)(nil)

// NewCached оборачивает remote.
func NewCached(remote domain.DocumentStore, local *offline.Store, logger zerolog.Logger) *Cached {
	return &Cached{remote: remote, local: local, log: logger.With().Str("component", "offline_cache").Logger()}
}

func offlineErr(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}

// Get читает документ, при недоступности сети: из кэша.
func (c *Cached) Get(ctx context.Context, path string) (domain.Document, error) {
	doc, err := c.remote.Get(ctx, path)
	collection, _ := SplitPath(path)
	switch {
	case err == nil:
		if perr := c.local.Put(ctx, collection, path, doc.ID, doc.Data); perr != nil {
			c.log.Warn().Err(perr).Str("path", path).Msg("offline cache: put failed")
		}
		return doc, nil
	case errors.Is(err, domain.ErrNotFound):
		_ = c.local.Delete(ctx, path)
		return doc, err
	case offlineErr(err):
		cached, ok, cerr := c.local.Get(ctx, path)
		if cerr == nil && ok {
			c.log.Debug().Str("path", path).Msg("offline cache: served cached document")
			return cached, nil
		}
	}
	return doc, err
}

// Set записывает документ и обновляет кэш.
func (c *Cached) Set(ctx context.Context, path string, data map[string]any) error {
	if err := c.remote.Set(ctx, path, data); err != nil {
		return err
	}
	collection, id := SplitPath(path)
	if err := c.local.Put(ctx, collection, path, id, data); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("offline cache: put failed")
	}
	return nil
}

// Add создаёт документ и сохраняет его в кэш.
func (c *Cached) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, err := c.remote.Add(ctx, collection, data)
	if err != nil {
		return "", err
	}
	if err := c.local.Put(ctx, collection, collection+"/"+id, id, data); err != nil {
		c.log.Warn().Err(err).Str("collection", collection).Msg("offline cache: put failed")
	}
	return id, nil
}

// Delete удаляет документ и его копию в кэше.
func (c *Cached) Delete(ctx context.Context, path string) error {
	if err := c.remote.Delete(ctx, path); err != nil {
		return err
	}
	if err := c.local.Delete(ctx, path); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("offline cache: delete failed")
	}
	return nil
}

// Listen подписывается на коллекцию и кэширует каждый снимок. Если удалённое хранилище
// недоступно при подписке, слушатель получает закэшированный снимок.
func (c *Cached) Listen(ctx context.Context, collection string, fn domain.SnapshotFunc) (domain.ListenerRegistration, error) {
	reg, err := c.remote.Listen(ctx, collection, func(docs []domain.Document, err error) {
		if err == nil {
			if cerr := c.local.ReplaceCollection(context.Background(), collection, docs); cerr != nil {
				c.log.Warn().Err(cerr).Str("collection", collection).Msg("offline cache: replace failed")
			}
		}
		fn(docs, err)
	})
	if err == nil {
		return reg, nil
	}
	if !offlineErr(err) {
		return nil, err
	}
	docs, cerr := c.local.List(ctx, collection)
	if cerr != nil {
		return nil, err
	}
	c.log.Info().Str("collection", collection).Int("docs", len(docs)).Msg("offline cache: serving cached collection")
	if docs == nil {
		docs = []domain.Document{}
	}
	fn(docs, nil)
	return noopRegistration{}, nil
}

type noopRegistration struct{}

func (noopRegistration) Remove() {}
