package credential

import (
	"context"
	"errors"
	"log/slog"

	"sms-console/internal/model"
)

type store interface {
	Get(ctx context.Context) (model.GatewayCredentials, error)
	Save(ctx context.Context, creds model.GatewayCredentials) error
}

// Loader reads gateway credentials through a cache in front of the settings store.
type Loader struct {
	store  store
	cache  Cache
	logger *slog.Logger
}

func NewLoader(s store, c Cache, logger *slog.Logger) *Loader {
	return &Loader{store: s, cache: c, logger: logger}
}

func (l *Loader) Load(ctx context.Context) (model.GatewayCredentials, error) {
	if l.cache != nil {
		creds, err := l.cache.Get(ctx)
		if err == nil && creds.Complete() {
			return creds, nil
		}
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			l.logger.Warn("credentials cache read failed", "err", err)
		}
	}

	creds, err := l.store.Get(ctx)
	if err != nil {
		return model.GatewayCredentials{}, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, creds); err != nil {
			l.logger.Warn("credentials cache write failed", "err", err)
		}
	}
	return creds, nil
}

func (l *Loader) Save(ctx context.Context, creds model.GatewayCredentials) error {
	if !creds.Complete() {
		return ErrNotConfigured
	}
	if err := l.store.Save(ctx, creds); err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.Del(ctx); err != nil {
			l.logger.Warn("credentials cache invalidate failed", "err", err)
		}
	}
	return nil
}
