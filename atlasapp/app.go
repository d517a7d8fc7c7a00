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

// Package atlasapp wires the media intelligence components together
// according to a configuration, for use by the command line interface
// and by embedding programs.
package atlasapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ringsaturn/tzf"
	"github.com/voyageatlas/voyageatlas/analysis"
	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/internal/places"
	"github.com/voyageatlas/voyageatlas/itinerary"
	"github.com/voyageatlas/voyageatlas/media"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// App is a configured media intelligence pipeline.
type App struct {
	cfg *Config
	log *zap.Logger

	places    places.DB
	cache     *geocode.Cache
	forward   geocode.ForwardGeocoder
	reverse   geocode.ReverseGeocoder
	extractor *media.Extractor
	batch     *analysis.Batch
}

// New returns an App configured by cfg. The App must be closed when
// no longer needed.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		cfg = new(Config)
	}
	cfg.fillDefaults()

	a := &App{
		cfg: cfg,
		log: voyage.Log.Named("app"),
	}

	db, err := places.BuildDB()
	if err != nil {
		return nil, fmt.Errorf("loading place table: %w", err)
	}
	a.places = db

	forward := geocode.TwoStage{Table: db}
	if !cfg.Offline {
		nominatim := geocode.NewNominatim(geocode.NominatimOptions{
			BaseURL:           cfg.NominatimURL,
			UserAgent:         cfg.UserAgent,
			Language:          cfg.Language,
			Timeout:           time.Duration(cfg.Timeout),
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            voyage.Log,
		})
		forward.Remote = nominatim

		var reverse geocode.ReverseGeocoder = nominatim
		if !cfg.DisableCache {
			cache, err := geocode.OpenCache(ctx, cfg.CacheDB)
			if err != nil {
				return nil, err
			}
			a.cache = cache
			reverse = geocode.CachedReverse{Cache: cache, Next: nominatim, Logger: voyage.Log}
		}
		a.reverse = reverse
	}
	a.forward = forward

	a.extractor = &media.Extractor{
		Geocoder: a.reverse,
		Logger:   voyage.Log,
	}
	if !cfg.DisableTimeZones {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			a.log.Warn("time zone lookup unavailable", zap.Error(err))
		} else {
			a.extractor.TimeZones = finder
		}
	}

	a.batch = &analysis.Batch{
		Analyzer:   a.extractor,
		Workers:    cfg.Workers,
		Clustering: cfg.clusterOptions(),
		Logger:     voyage.Log,
	}

	a.log.Debug("application ready",
		zap.Bool("offline", cfg.Offline),
		zap.String("nominatim", cfg.NominatimURL),
		zap.Bool("cache", a.cache != nil),
		zap.Int("known_places", len(db)))

	return a, nil
}

// Close releases the resources of the app.
func (a *App) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

// AnalyzeFiles analyzes the media files at paths as one batch. Paths
// that are missing or not regular files still count as analyzed, with
// no metadata.
func (a *App) AnalyzeFiles(ctx context.Context, paths []string) (analysis.Result, error) {
	files := make([]analysis.File, 0, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil {
			a.log.Warn("media file unavailable", zap.String("filepath", p), zap.Error(err))
		} else if !info.Mode().IsRegular() {
			a.log.Warn("not a regular file", zap.String("filepath", p), zap.Stringer("mode", info.Mode()))
		}
		files = append(files, analysis.File{Path: p})
	}
	return a.batch.Run(ctx, files)
}

// Analyze extracts intelligence from a single media file.
func (a *App) Analyze(ctx context.Context, path string) voyage.MediaIntelligence {
	return a.extractor.Analyze(ctx, path)
}

// Geocode resolves a place name to a coordinate. The error wraps
// geocode.ErrPlaceNotRecognized if the place is unknown.
func (a *App) Geocode(ctx context.Context, name string) (voyage.Coordinate, error) {
	return geocode.Resolve(ctx, a.forward, name)
}

// Reverse resolves a coordinate to a place.
func (a *App) Reverse(ctx context.Context, coord voyage.Coordinate) (geocode.Place, error) {
	if a.reverse == nil {
		return geocode.Place{}, errOffline
	}
	place, ok := a.reverse.Reverse(ctx, coord)
	if !ok {
		return geocode.Place{}, fmt.Errorf("%w: %s", geocode.ErrPlaceNotRecognized, coord)
	}
	return place, nil
}

// PlanTrip plans an itinerary.
func (a *App) PlanTrip(ctx context.Context, req itinerary.Request) (*itinerary.Trip, error) {
	return itinerary.Plan(ctx, a.forward, req, voyage.Log)
}

// Config returns the effective configuration.
func (a *App) Config() *Config { return a.cfg }

var errOffline = errors.New("reverse geocoding is not available offline")
