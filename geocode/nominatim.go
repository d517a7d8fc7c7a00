/*
	VoyageAtlas
	Copyright (c) 2025 The VoyageAtlas Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// NominatimOptions configures a Nominatim client.
type NominatimOptions struct {
	// Base URL of the Nominatim service. Default: DefaultNominatimURL.
	BaseURL string

	// Required by the Nominatim usage policy.
	UserAgent string

	// Preferred response language. Default: "en".
	Language string

	// Upper bound for a single request once it is allowed through the
	// rate limiter. Default: 5s.
	Timeout time.Duration

	// The public instance allows 1 request per second. Zero or less
	// disables client-side rate limiting.
	RequestsPerSecond float64

	// Consecutive failures after which requests stop being sent for
	// BreakerCooldown. Default: 5.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Nominatim is a client for the OpenStreetMap Nominatim API. It
// implements both ReverseGeocoder and ForwardGeocoder, and is safe for
// concurrent use.
type Nominatim struct {
	baseURL   string
	userAgent string
	language  string
	timeout   time.Duration
	client    *http.Client
	limiter   *requestLimiter
	breaker   *gobreaker.CircuitBreaker[[]byte]
	logger    *zap.Logger
}

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "VoyageAtlas/1.0 (travel-journal)"
	DefaultTimeout      = 5 * time.Second
)

// NewNominatim returns a new Nominatim client.
func NewNominatim(opts NominatimOptions) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNominatimURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	logger := voyage.LoggerOrDefault(opts.Logger).Named("geocode.nominatim")

	threshold := opts.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "nominatim",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller giving up says nothing about the service's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Nominatim{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		language:  opts.Language,
		timeout:   opts.Timeout,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		limiter: newRequestLimiter(opts.RequestsPerSecond),
		breaker: breaker,
		logger:  logger,
	}
}

// Reverse implements ReverseGeocoder.
func (n *Nominatim) Reverse(ctx context.Context, coord voyage.Coordinate) (Place, bool) {
	place, err := n.reverse(ctx, coord)
	if err != nil {
		if errors.Is(err, errNoResult) {
			n.logger.Debug("no place for coordinate", zap.Stringer("coordinate", coord))
		} else {
			n.logger.Error("reverse geocoding failed", zap.Stringer("coordinate", coord), zap.Error(err))
		}
		return Place{}, false
	}
	n.logger.Debug("reverse geocoded",
		zap.Stringer("coordinate", coord),
		zap.String("city", place.City),
		zap.String("country", place.Country))
	return place, true
}

// Geocode implements ForwardGeocoder.
func (n *Nominatim) Geocode(ctx context.Context, name string) (voyage.Coordinate, bool) {
	coord, err := n.search(ctx, name)
	if err != nil {
		if errors.Is(err, errNoResult) {
			n.logger.Debug("no match for place name", zap.String("name", name))
		} else {
			n.logger.Error("geocoding failed", zap.String("name", name), zap.Error(err))
		}
		return voyage.Coordinate{}, false
	}
	return coord, true
}

func (n *Nominatim) reverse(ctx context.Context, coord voyage.Coordinate) (Place, error) {
	q := url.Values{
		"format":          {"json"},
		"lat":             {strconv.FormatFloat(coord.Latitude, 'f', -1, 64)},
		"lon":             {strconv.FormatFloat(coord.Longitude, 'f', -1, 64)},
		"addressdetails":  {"1"},
		"accept-language": {n.language},
	}

	var resp reverseResponse
	if err := n.getJSON(ctx, "/reverse", q, &resp); err != nil {
		return Place{}, err
	}
	if resp.Error != "" {
		return Place{}, fmt.Errorf("%w: %s", errNoResult, resp.Error)
	}

	place := Place{
		City:    resp.Address.cityName(),
		Country: resp.Address.Country,
	}
	if place == (Place{}) {
		return Place{}, errNoResult
	}
	return place, nil
}

func (n *Nominatim) search(ctx context.Context, name string) (voyage.Coordinate, error) {
	q := url.Values{
		"q":               {name},
		"format":          {"json"},
		"limit":           {"1"},
		"accept-language": {n.language},
	}

	var results []searchResult
	if err := n.getJSON(ctx, "/search", q, &results); err != nil {
		return voyage.Coordinate{}, err
	}
	if len(results) == 0 {
		return voyage.Coordinate{}, errNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return voyage.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return voyage.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return voyage.Coordinate{Latitude: lat, Longitude: lon}, nil
}

// getJSON performs a GET request against the API and decodes the body
// into v. Transport errors and non-200 responses count against the
// circuit breaker; an empty result, waiting for the rate limiter and
// cancellation by the caller do not.
func (n *Nominatim) getJSON(ctx context.Context, endpoint string, q url.Values, v any) error {
	if err := n.limiter.wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", errCallerDone, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := n.breaker.Execute(func() ([]byte, error) {
		body, err := n.fetch(reqCtx, endpoint, q)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return body, err
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse nominatim response: %w", err)
	}
	return nil
}

func (n *Nominatim) fetch(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// required by Nominatim usage policy
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	const maxBodySize = 1024 * 1024
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

var (
	errNoResult   = errors.New("no result")
	errCallerDone = errors.New("lookup abandoned by caller")
)

type reverseResponse struct {
	Error       string  `json:"error"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	Suburb  string `json:"suburb,omitempty"`
	City    string `json:"city,omitempty"`
	Town    string `json:"town,omitempty"`
	Village string `json:"village,omitempty"`
	Country string `json:"country,omitempty"`
}

// cityName picks the most useful settlement name, preferring larger
// settlement types.
func (a address) cityName() string {
	for _, name := range []string{a.City, a.Town, a.Village, a.Suburb} {
		if name != "" {
			return name
		}
	}
	return ""
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Interface guards
var (
	_ ReverseGeocoder = (*Nominatim)(nil)
	_ ForwardGeocoder = (*Nominatim)(nil)
)
