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

// Package voyage holds the records shared by the media intelligence
// pipeline: coordinates, per-file intelligence, and event suggestions.
package voyage

import (
	"fmt"
	"time"
)

// Coordinate is a decimal-degree WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", c.Latitude, c.Longitude)
}

// MediaIntelligence is the spatiotemporal metadata extracted from a
// single media file. Every field is optional. Lat and Lng are either
// both set or both nil; City and Country are only set if the
// coordinate was resolved to a place.
type MediaIntelligence struct {
	CapturedAt *time.Time `json:"captured_at"`
	Lat        *float64   `json:"lat"`
	Lng        *float64   `json:"lng"`
	City       *string    `json:"city"`
	Country    *string    `json:"country"`

	// IANA time zone at the coordinate, if known.
	TimeZone string `json:"time_zone,omitempty"`

	// Set when an image carries an embedded motion picture.
	MotionPhoto bool `json:"motion_photo,omitempty"`
}

// Coordinate returns the coordinate of the media, if it has one.
func (m MediaIntelligence) Coordinate() (Coordinate, bool) {
	if m.Lat == nil || m.Lng == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: *m.Lat, Longitude: *m.Lng}, true
}

// SetCoordinate sets both Lat and Lng.
func (m *MediaIntelligence) SetCoordinate(c Coordinate) {
	lat, lng := c.Latitude, c.Longitude
	m.Lat, m.Lng = &lat, &lng
}

// SetPlace sets City and Country. Empty values are stored as nil.
func (m *MediaIntelligence) SetPlace(city, country string) {
	m.City = stringPtr(city)
	m.Country = stringPtr(country)
}

// HasCity reports whether a non-empty city was resolved.
func (m MediaIntelligence) HasCity() bool {
	return m.City != nil && *m.City != ""
}

// EventSuggestion is a proposed travel event: media captured
// close together in time and space. Location fields belong to the
// first member that had a known city, not to a centroid.
type EventSuggestion struct {
	Title     string   `json:"title"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	City      *string  `json:"city"`
	Country   *string  `json:"country"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Files     []string `json:"files"`
}

// TimestampLayout is the ISO-8601 layout of suggestion dates.
// Capture times are camera wall-clock times, so no offset is written.
const TimestampLayout = "2006-01-02T15:04:05"

// FormatTimestamp formats t with TimestampLayout. Sub-second times get
// exactly six fractional digits.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(TimestampLayout + ".000000")
	}
	return t.Format(TimestampLayout)
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
