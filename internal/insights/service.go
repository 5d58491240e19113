package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatpulse-insights/internal/graph"
	"chatpulse-insights/internal/metrics"
)

// ErrMissingPageID is returned when a request carries no page identifier.
// Maps to a 400; no cache or in-flight state is touched.
var ErrMissingPageID = errors.New("missing page_id in request")

// NoTokenError is returned when no access token exists for a page. Also a
// 400: the caller picked a page this deployment has no credentials for.
type NoTokenError struct {
	PageID string
}

func (e *NoTokenError) Error() string {
	return fmt.Sprintf("no access token found for page %s", e.PageID)
}

// MetricsAPI is the slice of the Graph client the coordinator uses.
type MetricsAPI interface {
	ActiveThreads(ctx context.Context, pageID, token string, since, until time.Time) (*graph.ThreadSeries, error)
	ListConversations(ctx context.Context, pageID, token string) ([]graph.Conversation, error)
}

// TokenResolver resolves the access token for a canonical page id. An empty
// token with a nil error means the page is unknown.
type TokenResolver interface {
	Resolve(ctx context.Context, pageID string) (string, error)
}

// SentimentSource supplies the 5-rank sentiment distribution for a page over
// a window of days.
type SentimentSource interface {
	Distribution(ctx context.Context, pageID string, days int) ([]SentimentBucket, error)
}

// Aliaser maps alternate platform identifiers (e.g. an Instagram business
// account id) to the canonical page id.
type Aliaser interface {
	CanonicalID(id string) string
}

// Request is one insights query.
type Request struct {
	PageID  string
	Days    int
	Refresh bool
}

// Result is a payload plus an optional status flag. Status is "processing"
// when the payload is the placeholder served during an in-flight refresh.
type Result struct {
	Payload Payload
	Status  string
}

const defaultDays = 7

// Service coordinates the cache, the in-flight table, and the
// fetch/reconcile/synthesize pipeline for insights requests.
type Service struct {
	store     *Store
	api       MetricsAPI
	tokens    TokenResolver
	sentiment SentimentSource
	aliases   Aliaser
	logger    *zap.Logger
}

func NewService(store *Store, api MetricsAPI, tokens TokenResolver, sentiment SentimentSource, aliases Aliaser, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		api:       api,
		tokens:    tokens,
		sentiment: sentiment,
		aliases:   aliases,
		logger:    logger.Named("insights"),
	}
}

// Insights serves one request. Per cache key it either returns the fresh
// cached payload, coalesces onto an in-flight fetch (stale entry if any,
// placeholder otherwise), or claims the key and fetches. The in-flight
// marker is released on every exit path of a claimed fetch, panics included.
func (s *Service) Insights(ctx context.Context, req Request) (Result, error) {
	if req.PageID == "" {
		return Result{}, ErrMissingPageID
	}

	days := req.Days
	if days <= 0 {
		days = defaultDays
	}

	// All cache and in-flight bookkeeping is keyed by the canonical id.
	canonical := s.aliases.CanonicalID(req.PageID)
	if canonical != req.PageID {
		s.logger.Info("mapped alternate page id",
			zap.String("page_id", req.PageID),
			zap.String("canonical_id", canonical),
		)
	}
	key := Key{PageID: canonical, Days: days}

	if req.Refresh {
		s.logger.Info("forced refresh, dropping cached state",
			zap.String("page_id", canonical),
		)
		s.store.Invalidate(canonical)
	}

	if payload, ok := s.store.Fresh(key); ok {
		metrics.CacheHitsTotal.Inc()
		s.logger.Debug("serving cached insights",
			zap.String("page_id", canonical),
			zap.Int("days", days),
		)
		return Result{Payload: payload}, nil
	}

	release, claimed := s.store.BeginFetch(key)
	if !claimed {
		metrics.InflightCoalescedTotal.Inc()
		s.logger.Info("fetch already in flight, coalescing",
			zap.String("page_id", canonical),
			zap.Int("days", days),
		)
		if payload, ok := s.store.Stale(key); ok {
			return Result{Payload: payload}, nil
		}
		return Result{Payload: Placeholder(), Status: "processing"}, nil
	}
	defer release()

	token, err := s.tokens.Resolve(ctx, canonical)
	if err != nil {
		s.logger.Warn("token resolution failed",
			zap.String("page_id", canonical),
			zap.Error(err),
		)
	}
	if token == "" {
		return Result{}, &NoTokenError{PageID: canonical}
	}

	payload, err := s.fetch(ctx, canonical, token, days)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get insights: %w", err)
	}

	s.store.Put(key, payload)
	return Result{Payload: payload}, nil
}

// fetch runs the remote pipeline: primary metric, fallback listing on its
// failure, sentiment lookup, reconcile, synthesize. Transport failures are
// recovered locally; only context cancellation aborts the request.
func (s *Service) fetch(ctx context.Context, pageID, token string, days int) (Payload, error) {
	now := s.store.clock.Now()
	start := now.AddDate(0, 0, -days)

	series, err := s.api.ActiveThreads(ctx, pageID, token, start, now)
	var conversations []graph.Conversation
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Payload{}, ctxErr
		}
		metrics.RemoteFallbacksTotal.Inc()
		s.logger.Warn("metrics endpoint failed, trying conversation listing",
			zap.String("page_id", pageID),
			zap.Error(err),
		)
		series = nil

		conversations, err = s.api.ListConversations(ctx, pageID, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Payload{}, ctxErr
			}
			s.logger.Warn("conversation listing failed",
				zap.String("page_id", pageID),
				zap.Error(err),
			)
			conversations = nil
		}
	}

	rec := Reconcile(pageID, series, conversations, start, days)

	// Sentiment failure never aborts the request; zeros stand in.
	distribution, err := s.sentiment.Distribution(ctx, pageID, days)
	if err != nil || len(distribution) != 5 {
		if err != nil {
			s.logger.Warn("sentiment lookup failed, substituting zeros",
				zap.String("page_id", pageID),
				zap.Error(err),
			)
		}
		distribution = ZeroSentiment()
	}

	return Synthesize(rec, distribution), nil
}
