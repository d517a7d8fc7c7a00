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

// Package media extracts capture time and location from photo and video
// files. Extraction never fails: a file that cannot be read or parsed
// simply yields fewer (or no) fields, so one corrupt file never aborts
// a batch.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// Kind is the extraction strategy for a file, determined once from
// its extension.
type Kind int

const (
	Unsupported Kind = iota
	Image
	Video
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	}
	return "unsupported"
}

// KindOf classifies a file by its extension, case-insensitively.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".tiff", ".tif":
		return Image
	case ".mp4", ".mov", ".avi", ".mkv":
		return Video
	}
	return Unsupported
}

// Media types as stored alongside an event's media.
const (
	TypeImage     = "image"
	TypePanoImage = "pano_image"
	TypeVideo     = "video"
)

// Classify returns the display media type for a filename: names
// containing "pano" are panoramas, video extensions are videos, and
// everything else is shown as an image.
func Classify(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "pano"):
		return TypePanoImage
	case KindOf(lower) == Video:
		return TypeVideo
	}
	return TypeImage
}

// TimeZoneFinder resolves the IANA time zone at a coordinate. Note the
// longitude-first argument order.
type TimeZoneFinder interface {
	GetTimezoneName(lng, lat float64) string
}

// Extractor analyzes media files. The zero value is usable; it
// extracts timestamps and coordinates but does not resolve places.
// An Extractor holds no per-file state and is safe for concurrent use
// as long as its Geocoder and TimeZones are.
type Extractor struct {
	// If set, coordinates are resolved to a city and country.
	Geocoder geocode.ReverseGeocoder

	// If set, coordinates are annotated with their time zone.
	TimeZones TimeZoneFinder

	Logger *zap.Logger
}

// Analyze extracts intelligence from the file at path.
func (e *Extractor) Analyze(ctx context.Context, path string) voyage.MediaIntelligence {
	logger := e.logger().With(zap.String("filepath", path))

	kind := KindOf(path)
	if kind == Unsupported {
		logger.Debug("unsupported media type; skipping")
		return voyage.MediaIntelligence{}
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("opening media file", zap.Error(err))
		return voyage.MediaIntelligence{}
	}
	defer file.Close()

	return e.analyze(ctx, logger, path, kind, file)
}

// AnalyzeReader is like Analyze, but reads the media from r. The
// filename is only used to determine the kind of media.
func (e *Extractor) AnalyzeReader(ctx context.Context, filename string, r io.ReadSeeker) voyage.MediaIntelligence {
	logger := e.logger().With(zap.String("filename", filename))
	kind := KindOf(filename)
	if kind == Unsupported {
		logger.Debug("unsupported media type; skipping")
		return voyage.MediaIntelligence{}
	}
	return e.analyze(ctx, logger, filename, kind, r)
}

func (e *Extractor) analyze(ctx context.Context, logger *zap.Logger, filename string, kind Kind, r io.ReadSeeker) (intel voyage.MediaIntelligence) {
	// decoders of untrusted files can panic; keep whatever was extracted
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while extracting metadata", zap.Any("panic", rec))
		}
	}()

	var err error
	switch kind {
	case Image:
		err = extractImageMetadata(logger, filename, r, &intel)
	case Video:
		err = extractVideoMetadata(logger, filename, r, &intel)
	}
	if err != nil {
		logger.Warn("extracting metadata", zap.Stringer("kind", kind), zap.Error(err))
	}

	coord, ok := intel.Coordinate()
	if !ok {
		return intel
	}

	if e.TimeZones != nil {
		intel.TimeZone = e.TimeZones.GetTimezoneName(coord.Longitude, coord.Latitude)
	}

	if e.Geocoder != nil && ctx.Err() == nil {
		if place, ok := e.Geocoder.Reverse(ctx, coord); ok {
			intel.SetPlace(place.City, place.Country)
		}
	}

	return intel
}

func (e *Extractor) logger() *zap.Logger {
	return voyage.LoggerOrDefault(e.Logger).Named("media")
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("could not rewind file: %w", err)
	}
	return nil
}
