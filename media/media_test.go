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

package media

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/voyage"
)

func TestKindOf(t *testing.T) {
	for input, expect := range map[string]Kind{
		"IMG_0001.JPG":        Image,
		"photo.jpeg":          Image,
		"scan.png":            Image,
		"scan.TIFF":           Image,
		"scan.tif":            Image,
		"clip.mp4":            Video,
		"clip.MOV":            Video,
		"old.avi":             Video,
		"movie.mkv":           Video,
		"notes.txt":           Unsupported,
		"IMG_0001.HEIC":       Unsupported,
		"no-extension":        Unsupported,
		"archive.jpg.zip":     Unsupported,
		"/some/dir.jpg/photo": Unsupported,
	} {
		if actual := KindOf(input); actual != expect {
			t.Errorf("KindOf(%q) = %s, want %s", input, actual, expect)
		}
	}
}

func TestClassify(t *testing.T) {
	for input, expect := range map[string]string{
		"IMG_0001.jpg":      TypeImage,
		"PANO_20230501.jpg": TypePanoImage,
		"beach-pano.mp4":    TypePanoImage,
		"clip.MOV":          TypeVideo,
		"clip.mkv":          TypeVideo,
		"document.pdf":      TypeImage,
	} {
		if actual := Classify(input); actual != expect {
			t.Errorf("Classify(%q) = %q, want %q", input, actual, expect)
		}
	}
}

func TestDMSToDecimal(t *testing.T) {
	tests := []struct {
		deg, min, sec float64
		ref           string
		expect        float64
	}{
		{40, 26, 46, "N", 40.446111},
		{40, 26, 46, "S", -40.446111},
		{79, 58, 56, "W", -79.982222},
		{79, 58, 56, "E", 79.982222},
		{79, 58, 56, "w\x00", -79.982222},
		{0, 0, 0, "S", 0},
		{12, 30, 0, "", 12.5},
	}
	for _, tt := range tests {
		actual := DMSToDecimal(tt.deg, tt.min, tt.sec, tt.ref)
		if math.Abs(actual-tt.expect) > 1e-6 {
			t.Errorf("DMSToDecimal(%v, %v, %v, %q) = %v, want %v", tt.deg, tt.min, tt.sec, tt.ref, actual, tt.expect)
		}
	}
}

// recordingGeocoder returns a fixed place and records the coordinates
// it was asked about.
type recordingGeocoder struct {
	mu    sync.Mutex
	calls []voyage.Coordinate
	place geocode.Place
	ok    bool
}

func (g *recordingGeocoder) Reverse(_ context.Context, coord voyage.Coordinate) (geocode.Place, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, coord)
	return g.place, g.ok
}

type fixedTimeZones string

func (tz fixedTimeZones) GetTimezoneName(_, _ float64) string { return string(tz) }

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeUnsupportedAndMissing(t *testing.T) {
	g := &recordingGeocoder{ok: true, place: geocode.Place{City: "X"}}
	e := &Extractor{Geocoder: g}
	ctx := context.Background()

	txt := writeFile(t, "notes.txt", []byte("2023:05:01 10:00:00"))
	if intel := e.Analyze(ctx, txt); intel != (voyage.MediaIntelligence{}) {
		t.Errorf("Analyze(txt) = %+v, want empty record", intel)
	}
	if intel := e.Analyze(ctx, filepath.Join(t.TempDir(), "missing.jpg")); intel != (voyage.MediaIntelligence{}) {
		t.Errorf("Analyze(missing) = %+v, want empty record", intel)
	}
	corrupt := writeFile(t, "corrupt.jpg", []byte("definitely not a jpeg"))
	if intel := e.Analyze(ctx, corrupt); intel.CapturedAt != nil || intel.Lat != nil {
		t.Errorf("Analyze(corrupt) = %+v, want no fields", intel)
	}
	if len(g.calls) != 0 {
		t.Errorf("geocoder should not be called without coordinates, got %v", g.calls)
	}
}

func TestAnalyzeReaderUnsupported(t *testing.T) {
	var e Extractor
	intel := e.AnalyzeReader(context.Background(), "a.gif", bytes.NewReader([]byte("GIF89a")))
	if intel != (voyage.MediaIntelligence{}) {
		t.Errorf("AnalyzeReader(gif) = %+v, want empty record", intel)
	}
}
