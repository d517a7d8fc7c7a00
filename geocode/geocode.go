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

// Package geocode resolves coordinates to places and place names to
// coordinates. Remote lookups never fail loudly: any error is logged
// and reported as "no result".
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voyageatlas/voyageatlas/voyage"
)

// ErrPlaceNotRecognized is returned when a place name required by an
// operation could not be resolved to a coordinate.
var ErrPlaceNotRecognized = errors.New("place not recognized")

// Place is the human-readable location of a coordinate.
type Place struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// ReverseGeocoder resolves a coordinate to a place. It returns false
// if no place could be determined for any reason.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coord voyage.Coordinate) (Place, bool)
}

// ForwardGeocoder resolves a free-text place name to a coordinate. It
// returns false if the name could not be resolved for any reason.
type ForwardGeocoder interface {
	Geocode(ctx context.Context, name string) (voyage.Coordinate, bool)
}

// Table is an exact-match lookup of well-known place names.
type Table interface {
	Lookup(name string) (voyage.Coordinate, bool)
}

// ReverseFunc adapts a function to a ReverseGeocoder.
type ReverseFunc func(ctx context.Context, coord voyage.Coordinate) (Place, bool)

func (f ReverseFunc) Reverse(ctx context.Context, coord voyage.Coordinate) (Place, bool) {
	return f(ctx, coord)
}

// ForwardFunc adapts a function to a ForwardGeocoder.
type ForwardFunc func(ctx context.Context, name string) (voyage.Coordinate, bool)

func (f ForwardFunc) Geocode(ctx context.Context, name string) (voyage.Coordinate, bool) {
	return f(ctx, name)
}

// TwoStage consults Table first and falls back to Remote on a miss.
// Either stage may be nil.
type TwoStage struct {
	Table  Table
	Remote ForwardGeocoder
}

// Geocode implements ForwardGeocoder.
func (ts TwoStage) Geocode(ctx context.Context, name string) (voyage.Coordinate, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return voyage.Coordinate{}, false
	}
	if ts.Table != nil {
		if coord, ok := ts.Table.Lookup(name); ok {
			return coord, true
		}
	}
	if ts.Remote != nil {
		return ts.Remote.Geocode(ctx, name)
	}
	return voyage.Coordinate{}, false
}

// Resolve geocodes name and turns a miss into an error wrapping
// ErrPlaceNotRecognized, for operations that cannot continue without
// a coordinate.
func Resolve(ctx context.Context, g ForwardGeocoder, name string) (voyage.Coordinate, error) {
	if g == nil {
		return voyage.Coordinate{}, fmt.Errorf("%w: %q (no geocoder configured)", ErrPlaceNotRecognized, name)
	}
	coord, ok := g.Geocode(ctx, name)
	if !ok {
		return voyage.Coordinate{}, fmt.Errorf("%w: %q", ErrPlaceNotRecognized, name)
	}
	return coord, nil
}
