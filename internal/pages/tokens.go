package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// TokenResolver resolves the page access token used for analytics calls.
// An empty token with a nil error means no credentials exist for the page;
// errors indicate backend failures.
type TokenResolver interface {
	Resolve(ctx context.Context, pageID string) (string, error)
}

// Config selects and parameterizes a token backend.
type Config struct {
	Backend  string // "memory", "postgres" or "redis"
	Tokens   map[string]string
	DB       *sql.DB
	Redis    *redis.Client
	Prefix   string
	CacheTTL time.Duration // resolved-token cache TTL (default: 5m)
}

// NewTokenResolver builds the configured backend wrapped in a short-TTL
// cache, so repeated insights requests don't hit the backing store.
func NewTokenResolver(cfg Config) (TokenResolver, error) {
	var inner TokenResolver
	switch cfg.Backend {
	case "postgres":
		if cfg.DB == nil {
			return nil, errors.New("postgres token backend requires a DB handle")
		}
		inner = &postgresTokens{db: cfg.DB}
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis token backend requires a redis client")
		}
		inner = &redisTokens{client: cfg.Redis, prefix: cfg.Prefix}
	default:
		inner = StaticTokens(cfg.Tokens)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedTokens{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}, nil
}

// StaticTokens resolves tokens from a fixed map. Used for dev setups seeded
// from the environment, and in tests.
type StaticTokens map[string]string

func (t StaticTokens) Resolve(_ context.Context, pageID string) (string, error) {
	return t[pageID], nil
}

// postgresTokens reads tokens from the pages table.
type postgresTokens struct {
	db *sql.DB
}

func (t *postgresTokens) Resolve(ctx context.Context, pageID string) (string, error) {
	var token string
	err := t.db.QueryRowContext(ctx,
		"SELECT access_token FROM pages WHERE page_id = $1 AND access_token IS NOT NULL",
		pageID,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query page token: %w", err)
	}
	return token, nil
}

// redisTokens reads tokens stored at <prefix>:token:<page_id>.
type redisTokens struct {
	client *redis.Client
	prefix string
}

func (t *redisTokens) key(pageID string) string {
	if t.prefix == "" {
		return "token:" + pageID
	}
	return t.prefix + ":token:" + pageID
}

func (t *redisTokens) Resolve(ctx context.Context, pageID string) (string, error) {
	token, err := t.client.Get(ctx, t.key(pageID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return token, nil
}

// cachedTokens fronts a backend with a TTL cache. Only non-empty tokens are
// cached; a page without credentials is re-checked every time so that newly
// provisioned tokens show up promptly.
type cachedTokens struct {
	inner TokenResolver
	cache *gocache.Cache
}

func (c *cachedTokens) Resolve(ctx context.Context, pageID string) (string, error) {
	if cached, ok := c.cache.Get(pageID); ok {
		return cached.(string), nil
	}

	token, err := c.inner.Resolve(ctx, pageID)
	if err != nil {
		return "", err
	}
	if token != "" {
		c.cache.SetDefault(pageID, token)
	}
	return token, nil
}
