package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/usecases"
)

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte), ttls: make(map[string]int)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func TestGeocodeService_EmptyQuery(t *testing.T) {
	geo := gazetteer()
	svc := usecases.NewGeocodeService(geo, nil, time.Hour, time.Minute, 0)

	if _, err := svc.Resolve(context.Background(), "   ", 1); !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if len(geo.calls()) != 0 {
		t.Error("upstream must not be called")
	}
}

func TestGeocodeService_ClampLimit(t *testing.T) {
	var got []int
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		got = append(got, maxResults)
		return nil, nil
	}}
	svc := usecases.NewGeocodeService(geo, nil, time.Hour, time.Minute, 0)
	ctx := context.Background()

	svc.Resolve(ctx, "a", 0)
	svc.Resolve(ctx, "b", 50)
	svc.Resolve(ctx, "c", 5)

	want := []int{1, 1, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected limit %d, got %d", i, want[i], got[i])
		}
	}
}

func TestGeocodeService_CachesMatches(t *testing.T) {
	geo := gazetteer()
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, 24*time.Hour, 5*time.Minute, 0)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "Paris", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Resolve(ctx, "Paris", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(geo.calls()) != 1 {
		t.Errorf("expected one upstream call, got %d", len(geo.calls()))
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
	for _, ttl := range cache.ttls {
		if ttl != 86400 {
			t.Errorf("expected 24h TTL, got %d", ttl)
		}
	}
}

func TestGeocodeService_CacheKeyIgnoresCase(t *testing.T) {
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		return []domain.Place{paris}, nil
	}}
	svc := usecases.NewGeocodeService(geo, newMockCache(), time.Hour, time.Minute, 0)
	ctx := context.Background()

	svc.Resolve(ctx, "Paris", 1)
	svc.Resolve(ctx, "  PARIS ", 1)
	if len(geo.calls()) != 1 {
		t.Errorf("expected one upstream call, got %d", len(geo.calls()))
	}
}

func TestGeocodeService_CacheKeyIncludesLimit(t *testing.T) {
	geo := gazetteer()
	svc := usecases.NewGeocodeService(geo, newMockCache(), time.Hour, time.Minute, 0)
	ctx := context.Background()

	svc.Resolve(ctx, "Paris", 1)
	svc.Resolve(ctx, "Paris", 3)
	if len(geo.calls()) != 2 {
		t.Errorf("expected separate lookups per limit, got %d", len(geo.calls()))
	}
}

func TestGeocodeService_NegativeCaching(t *testing.T) {
	geo := gazetteer()
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, time.Hour, 5*time.Minute, 0)
	ctx := context.Background()

	places, err := svc.Resolve(ctx, "Nowhere12345xyz", 1)
	if err != nil || len(places) != 0 {
		t.Fatalf("expected empty result, got %+v %v", places, err)
	}
	svc.Resolve(ctx, "Nowhere12345xyz", 1)

	if len(geo.calls()) != 1 {
		t.Errorf("expected no-match to be cached, got %d upstream calls", len(geo.calls()))
	}
	for _, ttl := range cache.ttls {
		if ttl != 300 {
			t.Errorf("expected 5m negative TTL, got %d", ttl)
		}
	}
}

func TestGeocodeService_NegativeCachingDisabled(t *testing.T) {
	geo := gazetteer()
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, time.Hour, 0, 0)

	svc.Resolve(context.Background(), "Nowhere12345xyz", 1)
	if cache.size() != 0 {
		t.Error("no-match must not be cached with zero negative TTL")
	}
}

func TestGeocodeService_ErrorsAreNotCached(t *testing.T) {
	upstreamErr := errors.New("boom")
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		return nil, upstreamErr
	}}
	cache := newMockCache()
	svc := usecases.NewGeocodeService(geo, cache, time.Hour, time.Minute, 0)

	_, err := svc.Resolve(context.Background(), "Paris", 1)
	if !errors.Is(err, upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if cache.size() != 0 {
		t.Error("errors must not be cached")
	}
}

func TestGeocodeService_CoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []domain.Place{paris}, nil
	}}
	svc := usecases.NewGeocodeService(geo, nil, time.Hour, time.Minute, 0)

	var wg sync.WaitGroup
	results := make([][]domain.Place, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Resolve(context.Background(), "Paris", 1)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 upstream call, got %d", n)
	}
	for i, r := range results {
		if len(r) != 1 || r[0] != paris {
			t.Errorf("result %d: unexpected %+v", i, r)
		}
	}
}

func TestGeocodeService_ReplacesCorruptEntry(t *testing.T) {
	geo := gazetteer()
	cache := newMockCache()
	cache.data["geocode:1:paris"] = []byte("{not json")
	svc := usecases.NewGeocodeService(geo, cache, time.Hour, time.Minute, 0)

	places, err := svc.Resolve(context.Background(), "Paris", 1)
	if err != nil || len(places) != 1 {
		t.Fatalf("expected upstream result, got %+v %v", places, err)
	}
	if len(geo.calls()) != 1 {
		t.Errorf("expected upstream lookup, got %d", len(geo.calls()))
	}
	if string(cache.data["geocode:1:paris"]) == "{not json" {
		t.Error("corrupt entry should be replaced")
	}
}

func TestGeocodeService_SharedLookupSurvivesCallerDeadline(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return []domain.Place{paris}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	svc := usecases.NewGeocodeService(geo, nil, time.Hour, time.Minute, 5*time.Second)

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Resolve(shortCtx, "Paris", 1)
		firstErr <- err
	}()
	<-started

	type result struct {
		places []domain.Place
		err    error
	}
	second := make(chan result, 1)
	go func() {
		places, err := svc.Resolve(context.Background(), "Paris", 1)
		second <- result{places, err}
	}()

	if err := <-firstErr; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the first caller to hit its own deadline, got %v", err)
	}
	close(release)

	select {
	case r := <-second:
		if r.err != nil {
			t.Fatalf("second caller failed with the first caller's deadline: %v", r.err)
		}
		if len(r.places) != 1 || r.places[0] != paris {
			t.Errorf("unexpected result %+v", r.places)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected one shared upstream call, got %d", n)
	}
}

func TestGeocodeService_LookupTimeout(t *testing.T) {
	geo := &mockGeocoder{resolveFn: func(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	svc := usecases.NewGeocodeService(geo, nil, time.Hour, time.Minute, 50*time.Millisecond)

	_, err := svc.Resolve(context.Background(), "Paris", 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected lookup timeout, got %v", err)
	}
}
