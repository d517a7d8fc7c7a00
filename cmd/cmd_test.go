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

package vacmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voyageatlas/voyageatlas/geocode"
)

func offlineConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"offline": true, "disable_time_zones": true}`), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunGeocodeOffline(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), []string{"-config", offlineConfig(t), "geocode", "New", "York"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Join(strings.Fields(out.String()), "")
	if got != `{"lat":40.7128,"lng":-74.006}` {
		t.Errorf("output = %s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	cfg := offlineConfig(t)
	for i, tc := range []struct {
		args   []string
		target error
	}{
		{args: []string{}, target: errUsage},
		{args: []string{"-config", cfg, "teleport"}, target: errUsage},
		{args: []string{"-config", cfg, "geocode"}, target: errUsage},
		{args: []string{"-config", cfg, "reverse", "1"}, target: errUsage},
		{args: []string{"-config", cfg, "reverse", "north", "2"}, target: errUsage},
		{args: []string{"-config", cfg, "plan", "Paris@2024-01-01"}, target: errUsage},
		{args: []string{"-config", cfg, "geocode", "Atlantis"}, target: geocode.ErrPlaceNotRecognized},
		{args: []string{"-config", cfg, "plan", "-start", "Atlantis"}, target: geocode.ErrPlaceNotRecognized},
	} {
		err := Run(context.Background(), tc.args, new(bytes.Buffer))
		if !errors.Is(err, tc.target) {
			t.Errorf("Test %d: Run(%q) error = %v, want %v", i, tc.args, err, tc.target)
		}
	}
}

func TestRunPlanOffline(t *testing.T) {
	var out bytes.Buffer
	args := []string{"-config", offlineConfig(t), "plan", "-title", "Asia", "-start", "Seoul", "-date", "2024-04-01",
		"Tokyo@2024-04-02", "Atlantis@2024-04-03", "Bangkok@2024-04-05"}
	if err := Run(context.Background(), args, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Travel from Seoul to Tokyo", "Travel from Tokyo to Bangkok", `"transport": "plane"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunHelpAndVersion(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), []string{"help"}, &out); err != nil || !strings.Contains(out.String(), "analyze") {
		t.Errorf("help: err=%v output=%q", err, out.String())
	}
	out.Reset()
	if err := Run(context.Background(), []string{"version"}, &out); err != nil || !strings.HasPrefix(out.String(), "voyage ") {
		t.Errorf("version: err=%v output=%q", err, out.String())
	}
}

func TestParseLeg(t *testing.T) {
	for i, tc := range []struct {
		input   string
		city    string
		date    time.Time
		wantErr bool
	}{
		{input: "Tokyo@2024-04-02", city: "Tokyo", date: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)},
		{input: " 도쿄 @2024-04-02T15:30:00", city: "도쿄", date: time.Date(2024, 4, 2, 15, 30, 0, 0, time.UTC)},
		{input: "Paris@2024-04-02T15:30:00+02:00", city: "Paris", date: time.Date(2024, 4, 2, 13, 30, 0, 0, time.UTC)},
		{input: "Paris", wantErr: true},
		{input: "@2024-04-02", wantErr: true},
		{input: "Paris@tomorrow", wantErr: true},
	} {
		leg, err := parseLeg(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Test %d: expected error for %q, got %+v", i, tc.input, leg)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if leg.City != tc.city || !leg.Arrival.Equal(tc.date) {
			t.Errorf("Test %d: parseLeg(%q) = %+v, want %s at %v", i, tc.input, leg, tc.city, tc.date)
		}
	}
}
