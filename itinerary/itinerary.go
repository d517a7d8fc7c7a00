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

// Package itinerary turns a simple itinerary (a starting city and a
// list of destinations) into travel events between resolved places.
package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// TransportPlane is the transport assumed between itinerary stops.
const TransportPlane = "plane"

// Request describes a trip by where it starts and where it goes.
type Request struct {
	Title     string    `json:"title"`
	StartCity string    `json:"start_city"`
	StartDate time.Time `json:"start_date"`
	Legs      []Leg     `json:"legs"`
}

// Leg is one destination of an itinerary.
type Leg struct {
	City    string    `json:"city_name"`
	Arrival time.Time `json:"arrival_date"`
}

// Event is travel from one resolved place to the next.
type Event struct {
	Title     string            `json:"title"`
	FromName  string            `json:"from_name"`
	ToName    string            `json:"to_name"`
	From      voyage.Coordinate `json:"from"`
	To        voyage.Coordinate `json:"to"`
	Start     time.Time         `json:"start_datetime"`
	Transport string            `json:"transport"`
}

// LegResult is the outcome of planning one leg. Exactly one of Event
// and Err is set.
type LegResult struct {
	City  string `json:"city_name"`
	Event *Event `json:"event"`
	Err   error  `json:"-"`
}

// Trip is a planned itinerary.
type Trip struct {
	Title     string            `json:"title"`
	StartCity string            `json:"start_city"`
	Start     voyage.Coordinate `json:"start"`
	StartDate time.Time         `json:"start_date"`
	Legs      []LegResult       `json:"legs"`
}

// Events returns the events of the legs that could be planned, in order.
func (t *Trip) Events() []Event {
	var events []Event
	for _, leg := range t.Legs {
		if leg.Event != nil {
			events = append(events, *leg.Event)
		}
	}
	return events
}

// Err returns the errors of legs that could not be planned, joined.
func (t *Trip) Err() error {
	var errs []error
	for _, leg := range t.Legs {
		if leg.Err != nil {
			errs = append(errs, leg.Err)
		}
	}
	return errors.Join(errs...)
}

// Plan resolves every place of the itinerary. If the starting city
// cannot be resolved, no trip is planned and the error wraps
// geocode.ErrPlaceNotRecognized. A destination that cannot be resolved
// fails only its own leg; the next leg departs from the last place
// that was resolved.
func Plan(ctx context.Context, g geocode.ForwardGeocoder, req Request, logger *zap.Logger) (*Trip, error) {
	logger = voyage.LoggerOrDefault(logger).Named("itinerary")

	startCity := strings.TrimSpace(req.StartCity)
	start, err := geocode.Resolve(ctx, g, startCity)
	if err != nil {
		return nil, fmt.Errorf("resolving start city: %w", err)
	}

	trip := &Trip{
		Title:     req.Title,
		StartCity: startCity,
		Start:     start,
		StartDate: req.StartDate,
		Legs:      make([]LegResult, 0, len(req.Legs)),
	}

	prevName, prev := startCity, start
	for i, leg := range req.Legs {
		city := strings.TrimSpace(leg.City)
		dest, err := geocode.Resolve(ctx, g, city)
		if err != nil {
			logger.Warn("skipping itinerary leg",
				zap.Int("leg", i),
				zap.String("city", city),
				zap.Error(err))
			trip.Legs = append(trip.Legs, LegResult{
				City: city,
				Err:  fmt.Errorf("leg %d: %w", i, err),
			})
			continue
		}

		trip.Legs = append(trip.Legs, LegResult{
			City: city,
			Event: &Event{
				Title:     fmt.Sprintf("Travel from %s to %s", prevName, city),
				FromName:  prevName,
				ToName:    city,
				From:      prev,
				To:        dest,
				Start:     leg.Arrival,
				Transport: TransportPlane,
			},
		})
		prevName, prev = city, dest
	}

	return trip, nil
}
