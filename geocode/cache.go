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
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

//go:embed cache.sql
var createCacheDB string

// Cache persists reverse geocoding results in a sqlite database so
// repeated batches from the same places do not hit the network.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if necessary) the cache database at dbPath.
func OpenCache(ctx context.Context, dbPath string) (*Cache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createCacheDB); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up cache database: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached place for coord, if any.
func (c *Cache) Get(ctx context.Context, coord voyage.Coordinate) (Place, bool, error) {
	latKey, lngKey := cacheKey(coord)

	var city, country sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT city, country FROM reverse_cache WHERE lat_e4=? AND lng_e4=? LIMIT 1`,
		latKey, lngKey).Scan(&city, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return Place{}, false, nil
	}
	if err != nil {
		return Place{}, false, fmt.Errorf("querying reverse cache: %w", err)
	}

	return Place{City: city.String, Country: country.String}, true, nil
}

// Put stores place as the result for coord, replacing any previous one.
func (c *Cache) Put(ctx context.Context, coord voyage.Coordinate, place Place) error {
	latKey, lngKey := cacheKey(coord)
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reverse_cache (lat_e4, lng_e4, city, country, stored) VALUES (?, ?, ?, ?, ?)`,
		latKey, lngKey, nullString(place.City), nullString(place.Country), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("storing reverse cache entry: %w", err)
	}
	return nil
}

func cacheKey(coord voyage.Coordinate) (int64, int64) {
	const scale = 1e4
	return int64(math.Round(coord.Latitude * scale)), int64(math.Round(coord.Longitude * scale))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CachedReverse consults Cache before Next and stores Next's results.
// Misses are not cached, so a transient outage does not stick.
type CachedReverse struct {
	Cache  *Cache
	Next   ReverseGeocoder
	Logger *zap.Logger
}

// Reverse implements ReverseGeocoder.
func (cr CachedReverse) Reverse(ctx context.Context, coord voyage.Coordinate) (Place, bool) {
	logger := voyage.LoggerOrDefault(cr.Logger).Named("geocode.cache")

	if cr.Cache != nil {
		place, ok, err := cr.Cache.Get(ctx, coord)
		if err != nil {
			logger.Warn("reading reverse cache", zap.Error(err))
		} else if ok {
			return place, true
		}
	}

	if cr.Next == nil {
		return Place{}, false
	}
	place, ok := cr.Next.Reverse(ctx, coord)
	if !ok {
		return Place{}, false
	}

	if cr.Cache != nil {
		if err := cr.Cache.Put(ctx, coord, place); err != nil {
			logger.Warn("writing reverse cache", zap.Error(err))
		}
	}
	return place, true
}
