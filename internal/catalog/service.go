// AngelaMos | 2026
// service.go

package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/cache"
	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
)

// Upstream is the slice of the remote API the public catalogue needs.
type Upstream interface {
	ListProperties(ctx context.Context) ([]backend.Property, error)
	GetProperty(ctx context.Context, id string) (*backend.Property, error)
	SearchProperties(ctx context.Context, params backend.SearchParams) ([]backend.Property, error)
	PropertyOptions(ctx context.Context) (*backend.PropertyOptions, error)
	ContactOwner(ctx context.Context, creds backend.Credentials, req backend.ContactRequest) (*backend.ContactResponse, error)
}

type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type LookupObserver interface {
	ObserveCacheLookup(hit bool)
}

type Service struct {
	upstream Upstream
	store    Store
	observer LookupObserver
	cfg      config.CacheConfig
	logger   *slog.Logger
}

func NewService(
	upstream Upstream,
	store Store,
	observer LookupObserver,
	cfg config.CacheConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		store = nil
	}

	return &Service{
		upstream: upstream,
		store:    store,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Service) ListProperties(ctx context.Context) ([]backend.Property, error) {
	return cached(ctx, s, cache.Key("properties"), s.cfg.ListingTTL, s.upstream.ListProperties)
}

func (s *Service) GetProperty(ctx context.Context, id string) (*backend.Property, error) {
	return cached(ctx, s, cache.Key("property", id), s.cfg.ListingTTL,
		func(ctx context.Context) (*backend.Property, error) {
			return s.upstream.GetProperty(ctx, id)
		})
}

func (s *Service) PropertyOptions(ctx context.Context) (*backend.PropertyOptions, error) {
	return cached(ctx, s, cache.Key("property-options"), s.cfg.OptionsTTL, s.upstream.PropertyOptions)
}

// Search always goes upstream; filter combinations are too sparse to
// cache usefully.
func (s *Service) Search(ctx context.Context, params backend.SearchParams) ([]backend.Property, error) {
	return s.upstream.SearchProperties(ctx, params)
}

func (s *Service) ContactOwner(
	ctx context.Context,
	creds backend.Credentials,
	req backend.ContactRequest,
) (*backend.ContactResponse, error) {
	return s.upstream.ContactOwner(ctx, creds, req)
}

// cached reads through the store. Store failures are logged and treated
// as misses so redis trouble never takes the catalogue down.
func cached[T any](
	ctx context.Context,
	s *Service,
	key string,
	ttl time.Duration,
	load func(context.Context) (T, error),
) (T, error) {
	if s.store == nil {
		return load(ctx)
	}

	var hit T
	found, err := s.store.Get(ctx, key, &hit)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if found {
		s.observe(true)
		return hit, nil
	}
	s.observe(false)

	fresh, err := load(ctx)
	if err != nil {
		return fresh, err
	}

	if err := s.store.Set(ctx, key, fresh, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}

	return fresh, nil
}

func (s *Service) observe(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCacheLookup(hit)
	}
}
