package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/pkg/metrics"
)

const maxGeocodeResults = 10

// GeocodeService resolves place queries through an upstream geocoder with
// read-through caching. Identical concurrent lookups share one upstream call.
type GeocodeService struct {
	upstream    ports.Geocoder
	cache       ports.CacheService
	ttl         int
	negativeTTL int
	timeout     time.Duration
	group       singleflight.Group
}

// NewGeocodeService creates a new GeocodeService. cache may be nil.
// A shared upstream lookup is detached from the callers that joined it and
// bounded by lookupTimeout instead; zero leaves it unbounded.
func NewGeocodeService(upstream ports.Geocoder, cache ports.CacheService, ttl, negativeTTL, lookupTimeout time.Duration) *GeocodeService {
	return &GeocodeService{
		upstream:    upstream,
		cache:       cache,
		ttl:         int(ttl / time.Second),
		negativeTTL: int(negativeTTL / time.Second),
		timeout:     lookupTimeout,
	}
}

// Resolve implements ports.Geocoder.
func (s *GeocodeService) Resolve(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, domain.ErrEmptyInput
	}
	if maxResults <= 0 || maxResults > maxGeocodeResults {
		maxResults = 1
	}

	ctx, span := otel.Tracer("placemap/geocode").Start(ctx, "geocode.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("geocode.query", query), attribute.Int("geocode.limit", maxResults))

	cacheKey := fmt.Sprintf("geocode:%d:%s", maxResults, strings.ToLower(query))
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				span.SetAttributes(attribute.Bool("geocode.cached", true))
				return places, nil
			}
			// Unreadable entry, drop it so the refill below replaces it.
			_ = s.cache.Delete(ctx, cacheKey)
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	// The flight outlives any single caller: a caller whose context ends
	// leaves, the others keep waiting for the shared result.
	flight := s.group.DoChan(cacheKey, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		places, err := s.upstream.Resolve(fctx, query, maxResults)
		metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
		return places, err
	})

	var v interface{}
	var err error
	select {
	case res := <-flight:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream geocode failed")
		return nil, err
	}

	places := v.([]domain.Place)
	result := "match"
	ttl := s.ttl
	if len(places) == 0 {
		result = "no_match"
		ttl = s.negativeTTL
	}
	metrics.GeocodeRequests.WithLabelValues(result).Inc()
	span.SetAttributes(attribute.Int("geocode.results", len(places)))

	if s.cache != nil && ttl > 0 {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, ttl)
		}
	}

	return places, nil
}
