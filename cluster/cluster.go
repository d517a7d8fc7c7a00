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

// Package cluster groups analyzed media into suggested travel events.
//
// Clustering is a single greedy pass over the media in capture order:
// each item either joins the event of the item before it or starts a
// new event, depending on how far apart the two are in time and space.
package cluster

import (
	"slices"
	"time"

	"github.com/voyageatlas/voyageatlas/voyage"
)

// Default thresholds between consecutive items of the same event.
const (
	DefaultTimeThreshold       = 6 * time.Hour
	DefaultDistanceThresholdKm = 50.0
)

// Item is an analyzed media file.
type Item struct {
	Filename     string                   `json:"filename"`
	Intelligence voyage.MediaIntelligence `json:"intelligence"`
}

// Options configures clustering. Zero values use the defaults.
type Options struct {
	// A gap longer than this between consecutive items starts a new event.
	TimeThreshold time.Duration `json:"time_threshold,omitempty"`

	// A geodesic distance greater than this, in kilometers, between
	// consecutive items that both have coordinates starts a new event.
	DistanceThresholdKm float64 `json:"distance_threshold_km,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.TimeThreshold <= 0 {
		o.TimeThreshold = DefaultTimeThreshold
	}
	if o.DistanceThresholdKm <= 0 {
		o.DistanceThresholdKm = DefaultDistanceThresholdKm
	}
	return o
}

// Cluster groups items into event suggestions ordered by start time.
// Items without a capture time are ignored. Items with equal capture
// times keep their input order. Cluster does not modify items.
func Cluster(items []Item, opts Options) []voyage.EventSuggestion {
	opts = opts.withDefaults()

	dated := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Intelligence.CapturedAt != nil {
			dated = append(dated, it)
		}
	}
	if len(dated) == 0 {
		return []voyage.EventSuggestion{}
	}
	slices.SortStableFunc(dated, func(a, b Item) int {
		return a.Intelligence.CapturedAt.Compare(*b.Intelligence.CapturedAt)
	})

	var suggestions []voyage.EventSuggestion
	current := newEvent(dated[0])
	for i := 1; i < len(dated); i++ {
		prev, curr := dated[i-1].Intelligence, dated[i].Intelligence

		timeGap := curr.CapturedAt.Sub(*prev.CapturedAt)
		var distanceGap float64
		prevCoord, prevOK := prev.Coordinate()
		currCoord, currOK := curr.Coordinate()
		if prevOK && currOK {
			distanceGap = DistanceKm(prevCoord, currCoord)
		}

		if timeGap > opts.TimeThreshold || distanceGap > opts.DistanceThresholdKm {
			suggestions = append(suggestions, current.suggestion())
			current = newEvent(dated[i])
			continue
		}
		current.add(dated[i])
	}
	return append(suggestions, current.suggestion())
}

// event accumulates the members of one suggestion.
type event struct {
	start, end time.Time
	location   voyage.MediaIntelligence // only the place and coordinate are used
	files      []string
}

func newEvent(first Item) *event {
	return &event{
		start:    *first.Intelligence.CapturedAt,
		end:      *first.Intelligence.CapturedAt,
		location: first.Intelligence,
		files:    []string{first.Filename},
	}
}

func (e *event) add(it Item) {
	e.end = *it.Intelligence.CapturedAt
	e.files = append(e.files, it.Filename)
	// the first member with a known city names the event
	if !e.location.HasCity() && it.Intelligence.HasCity() {
		e.location = it.Intelligence
	}
}

func (e *event) suggestion() voyage.EventSuggestion {
	place := "Unknown Region"
	if e.location.HasCity() {
		place = *e.location.City
	}
	return voyage.EventSuggestion{
		Title:     "Visit to " + place,
		StartDate: voyage.FormatTimestamp(e.start),
		EndDate:   voyage.FormatTimestamp(e.end),
		City:      copyPtr(e.location.City),
		Country:   copyPtr(e.location.Country),
		Lat:       copyPtr(e.location.Lat),
		Lng:       copyPtr(e.location.Lng),
		Files:     e.files,
	}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
