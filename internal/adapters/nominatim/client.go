package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/pkg/metrics"
)

// DefaultBaseURL is the public OSM Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Options configures a Client.
type Options struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	CountryCodes   string
	Timeout        time.Duration
	// RequestsPerSecond throttles upstream calls. The public instance allows 1.
	RequestsPerSecond float64
}

// Client implements ports.Geocoder against a Nominatim search endpoint.
type Client struct {
	http    *fasthttp.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Nominatim client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.UserAgent == "" {
		opts.UserAgent = "PlaceMap/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		http: &fasthttp.Client{
			Name:                opts.UserAgent,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
	}
}

// searchResult mirrors the relevant parts of the search payload.
type searchResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Resolve implements ports.Geocoder.
func (c *Client) Resolve(ctx context.Context, text string, maxResults int) ([]domain.Place, error) {
	if maxResults <= 0 {
		maxResults = 1
	}

	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle: %w", domain.ErrGeocoderUnavailable, err)
	}
	metrics.GeocodeThrottleWait.Observe(time.Since(start).Seconds())

	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(maxResults))
	if c.opts.CountryCodes != "" {
		params.Set("countrycodes", c.opts.CountryCodes)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.opts.BaseURL + "/search?" + params.Encode())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(c.opts.UserAgent)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if c.opts.AcceptLanguage != "" {
		req.Header.Set(fasthttp.HeaderAcceptLanguage, c.opts.AcceptLanguage)
	}

	timeout := c.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: request: %w", domain.ErrGeocoderUnavailable, err)
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: upstream status %d", domain.ErrGeocoderUnavailable, status)
	}

	var raw []searchResult
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", domain.ErrGeocoderUnavailable, err)
	}

	places := make([]domain.Place, 0, len(raw))
	for _, r := range raw {
		place, ok := buildPlace(r)
		if !ok {
			continue
		}
		places = append(places, place)
		if len(places) == maxResults {
			break
		}
	}
	return places, nil
}

func buildPlace(r searchResult) (domain.Place, bool) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return domain.Place{}, false
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return domain.Place{}, false
	}

	place := domain.Place{
		Location: domain.Coordinate{Lat: lat, Lon: lon},
		Label:    r.DisplayName,
	}
	if place.Location.Validate() != nil {
		return domain.Place{}, false
	}
	return place, true
}
