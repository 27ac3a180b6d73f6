// Command geocode resolves a place query with the configured geocoder and
// prints the matches as JSON. It is meant for checking upstream
// connectivity and cache behaviour from an operator shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/samirrijal/placemap/internal/adapters/nominatim"
	"github.com/samirrijal/placemap/internal/adapters/valkey"
	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/core/usecases"
	"github.com/samirrijal/placemap/internal/pkg/config"
	"github.com/samirrijal/placemap/internal/pkg/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	limit := flag.Int("limit", 1, "maximum number of matches (1-10)")
	noCache := flag.Bool("no-cache", false, "bypass the valkey cache")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: geocode [-limit n] [-no-cache] <query>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load("placemap-geocode")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, "text"))

	var cache ports.CacheService
	if cfg.Valkey.Enabled && !*noCache {
		c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			slog.Warn("valkey unavailable, querying upstream directly", "error", err)
		} else {
			defer c.Close()
			cache = c
		}
	}

	upstream := nominatim.New(nominatim.Options{
		BaseURL:           cfg.Geocoder.BaseURL,
		UserAgent:         cfg.Geocoder.UserAgent,
		AcceptLanguage:    cfg.Geocoder.AcceptLanguage,
		CountryCodes:      cfg.Geocoder.CountryCodes,
		Timeout:           cfg.Geocoder.Timeout,
		RequestsPerSecond: cfg.Geocoder.RequestsPerSecond,
	})
	geocoder := usecases.NewGeocodeService(upstream, cache, cfg.Geocoder.CacheTTL, cfg.Geocoder.NegativeCacheTTL, cfg.Geocoder.Timeout*2)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Geocoder.Timeout*2)
	defer cancel()

	places, err := geocoder.Resolve(ctx, query, *limit)
	if err != nil {
		if errors.Is(err, domain.ErrGeocoderUnavailable) {
			fmt.Fprintf(os.Stderr, "geocoder unavailable: %v\n", err)
			return 3
		}
		fmt.Fprintf(os.Stderr, "resolve: %v\n", err)
		return 1
	}
	if places == nil {
		places = []domain.Place{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(places); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	if len(places) == 0 {
		return 4
	}
	return 0
}
