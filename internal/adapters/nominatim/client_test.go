package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/placemap/internal/core/domain"
)

const parisBody = `[
  {"place_id": 1, "lat": "48.8588897", "lon": "2.3200410", "display_name": "Paris, Île-de-France, France"},
  {"place_id": 2, "lat": "33.6617962", "lon": "-95.5555130", "display_name": "Paris, Lamar County, Texas, United States"}
]`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_Success(t *testing.T) {
	var gotQuery, gotUA, gotLang string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, parisBody)
	})

	c := New(Options{BaseURL: srv.URL + "/", UserAgent: "PlaceMapTest/1.0", AcceptLanguage: "en", Timeout: time.Second})
	places, err := c.Resolve(context.Background(), "Paris", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("expected 1 place, got %d", len(places))
	}
	want := domain.Place{Location: domain.Coordinate{Lat: 48.8588897, Lon: 2.3200410}, Label: "Paris, Île-de-France, France"}
	if places[0] != want {
		t.Errorf("expected %+v, got %+v", want, places[0])
	}
	if gotUA != "PlaceMapTest/1.0" {
		t.Errorf("expected user agent, got %q", gotUA)
	}
	if gotLang != "en" {
		t.Errorf("expected accept-language en, got %q", gotLang)
	}
	if gotQuery != "format=jsonv2&limit=1&q=Paris" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestResolve_MultipleResults(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, parisBody)
	})

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second})
	places, err := c.Resolve(context.Background(), "Paris", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(places))
	}
}

func TestResolve_CountryCodes(t *testing.T) {
	var got string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("countrycodes")
		fmt.Fprint(w, `[]`)
	})

	c := New(Options{BaseURL: srv.URL, CountryCodes: "fr,de", Timeout: time.Second})
	c.Resolve(context.Background(), "Paris", 1)
	if got != "fr,de" {
		t.Errorf("expected countrycodes fr,de, got %q", got)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second})
	places, err := c.Resolve(context.Background(), "Nowhere12345xyz", 1)
	if err != nil {
		t.Fatalf("no match is not an error, got %v", err)
	}
	if len(places) != 0 {
		t.Errorf("expected no places, got %+v", places)
	}
}

func TestResolve_SkipsBadCoordinates(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
		  {"lat": "abc", "lon": "2.0", "display_name": "broken"},
		  {"lat": "95.0", "lon": "2.0", "display_name": "out of range"},
		  {"lat": "48.85", "lon": "2.35", "display_name": "Paris"}
		]`)
	})

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second})
	places, err := c.Resolve(context.Background(), "Paris", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(places) != 1 || places[0].Label != "Paris" {
		t.Errorf("expected only the valid result, got %+v", places)
	}
}

func TestResolve_UpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>maintenance</html>`)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.handler)
			c := New(Options{BaseURL: srv.URL, Timeout: time.Second})

			_, err := c.Resolve(context.Background(), "Paris", 1)
			if !errors.Is(err, domain.ErrGeocoderUnavailable) {
				t.Fatalf("expected ErrGeocoderUnavailable, got %v", err)
			}
		})
	}
}

func TestResolve_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := New(Options{BaseURL: addr, Timeout: time.Second})
	_, err := c.Resolve(context.Background(), "Paris", 1)
	if !errors.Is(err, domain.ErrGeocoderUnavailable) {
		t.Fatalf("expected ErrGeocoderUnavailable, got %v", err)
	}
}

func TestResolve_Timeout(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `[]`)
	})

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Resolve(context.Background(), "Paris", 1)
	if !errors.Is(err, domain.ErrGeocoderUnavailable) {
		t.Fatalf("expected ErrGeocoderUnavailable on timeout, got %v", err)
	}
}

func TestResolve_Throttled(t *testing.T) {
	var hits int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, `[]`)
	})

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSecond: 1})
	if _, err := c.Resolve(context.Background(), "first", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The next token is a second away; a short deadline cannot wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Resolve(ctx, "second", 1)
	if !errors.Is(err, domain.ErrGeocoderUnavailable) {
		t.Fatalf("expected throttled request to fail, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("expected 1 upstream hit, got %d", n)
	}
}

func TestBuildPlace(t *testing.T) {
	if _, ok := buildPlace(searchResult{Lat: "1", Lon: "x"}); ok {
		t.Error("unparsable lon must be rejected")
	}
	if _, ok := buildPlace(searchResult{Lat: "-34", Lon: "181"}); ok {
		t.Error("out-of-range lon must be rejected")
	}
	p, ok := buildPlace(searchResult{Lat: "-34", Lon: "151", DisplayName: "Sydney"})
	if !ok || p.Location.Lat != -34 || p.Location.Lon != 151 || p.Label != "Sydney" {
		t.Errorf("unexpected place %+v", p)
	}
}
