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
	"testing"

	"github.com/voyageatlas/voyageatlas/voyage"
)

type mapTable map[string]voyage.Coordinate

func (m mapTable) Lookup(name string) (voyage.Coordinate, bool) {
	c, ok := m[name]
	return c, ok
}

func TestTwoStage(t *testing.T) {
	var remoteCalls []string
	remote := ForwardFunc(func(_ context.Context, name string) (voyage.Coordinate, bool) {
		remoteCalls = append(remoteCalls, name)
		if name == "Lisbon" {
			return voyage.Coordinate{Latitude: 38.72, Longitude: -9.14}, true
		}
		return voyage.Coordinate{}, false
	})
	ts := TwoStage{
		Table:  mapTable{"Paris": {Latitude: 48.8566, Longitude: 2.3522}},
		Remote: remote,
	}

	ctx := context.Background()
	if c, ok := ts.Geocode(ctx, "Paris"); !ok || c.Latitude != 48.8566 {
		t.Errorf("Geocode(Paris) = %v, %v; want table hit", c, ok)
	}
	if len(remoteCalls) != 0 {
		t.Errorf("table hit should not call remote, got calls %v", remoteCalls)
	}
	if c, ok := ts.Geocode(ctx, "  Lisbon "); !ok || c.Longitude != -9.14 {
		t.Errorf("Geocode(Lisbon) = %v, %v; want remote hit", c, ok)
	}
	if _, ok := ts.Geocode(ctx, "Nowhere"); ok {
		t.Error("expected miss for unknown place")
	}
	if _, ok := ts.Geocode(ctx, "   "); ok {
		t.Error("expected miss for blank name")
	}
	if len(remoteCalls) != 2 {
		t.Errorf("remote calls = %v, want 2 (blank names are not looked up)", remoteCalls)
	}
}

func TestTwoStageNilStages(t *testing.T) {
	if _, ok := (TwoStage{}).Geocode(context.Background(), "Paris"); ok {
		t.Error("expected miss with no stages")
	}
}

func TestResolve(t *testing.T) {
	g := TwoStage{Table: mapTable{"Rome": {Latitude: 41.9028, Longitude: 12.4964}}}

	coord, err := Resolve(context.Background(), g, "Rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Latitude != 41.9028 {
		t.Errorf("Resolve(Rome) = %v", coord)
	}

	_, err = Resolve(context.Background(), g, "Gondor")
	if !errors.Is(err, ErrPlaceNotRecognized) {
		t.Errorf("Resolve(Gondor) error = %v, want ErrPlaceNotRecognized", err)
	}

	_, err = Resolve(context.Background(), nil, "Rome")
	if !errors.Is(err, ErrPlaceNotRecognized) {
		t.Errorf("Resolve with nil geocoder error = %v, want ErrPlaceNotRecognized", err)
	}
}
