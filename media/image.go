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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cozy/goexif2/exif"
	"github.com/cozy/goexif2/tiff"
	"github.com/mholt/go-xmp/xmp"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// exifTimestampLayout is the layout of EXIF date/time fields.
const exifTimestampLayout = "2006:01:02 15:04:05"

// extractImageMetadata fills in the capture time and GPS coordinate of
// an image from its EXIF data, and flags motion photos from its XMP
// data. Fields are filled in as they are found, so on error intel
// holds whatever was extracted before the failure.
func extractImageMetadata(logger *zap.Logger, filename string, r io.ReadSeeker, intel *voyage.MediaIntelligence) error {
	exifSrc := io.Reader(r)
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		raw, err := pngEXIF(r)
		if err != nil {
			return fmt.Errorf("reading PNG chunks: %w", err)
		}
		if raw == nil {
			logger.Debug("no eXIf chunk in PNG")
			return nil
		}
		exifSrc = bytes.NewReader(raw)
	}

	if err := extractEXIFMetadata(logger, exifSrc, intel); err != nil {
		return err
	}

	if err := rewind(r); err != nil {
		return err
	}
	motion, err := hasMotionPhotoXMP(r)
	if err != nil {
		logger.Debug("processing XMP metadata", zap.Error(err))
		return nil
	}
	intel.MotionPhoto = motion

	return nil
}

func extractEXIFMetadata(logger *zap.Logger, r io.Reader, intel *voyage.MediaIntelligence) error {
	ex, err := exif.Decode(r)
	if err != nil && (ex == nil || exif.IsCriticalError(err)) {
		return fmt.Errorf("decoding exif: %w", err)
	}
	if err != nil {
		logger.Debug("non-critical EXIF decoding error", zap.Error(err))
	}

	// capture time; a malformed value is not fatal
	if tag, err := ex.Get(exif.DateTimeOriginal); err == nil {
		if val, err := tag.StringVal(); err == nil {
			ts, err := parseEXIFTimestamp(val)
			if err == nil {
				intel.CapturedAt = &ts
			} else {
				logger.Debug("unparseable original date/time", zap.String("value", val), zap.Error(err))
			}
		}
	}

	// GPS coordinates are all-or-nothing: both axes, or neither
	latTag, latErr := ex.Get(exif.GPSLatitude)
	lngTag, lngErr := ex.Get(exif.GPSLongitude)
	if latErr != nil || lngErr != nil {
		return nil
	}

	lat, err := decimalFromEXIF(ex, latTag, exif.GPSLatitudeRef)
	if err != nil {
		return fmt.Errorf("reading GPS latitude: %w", err)
	}
	lng, err := decimalFromEXIF(ex, lngTag, exif.GPSLongitudeRef)
	if err != nil {
		return fmt.Errorf("reading GPS longitude: %w", err)
	}
	intel.SetCoordinate(voyage.Coordinate{Latitude: lat, Longitude: lng})

	return nil
}

func parseEXIFTimestamp(val string) (time.Time, error) {
	return time.Parse(exifTimestampLayout, strings.TrimSpace(strings.Trim(val, "\x00")))
}

// decimalFromEXIF reads a degrees/minutes/seconds GPS tag and its
// hemisphere reference tag and converts them to signed decimal degrees.
func decimalFromEXIF(ex *exif.Exif, dmsTag *tiff.Tag, refField exif.FieldName) (float64, error) {
	refTag, err := ex.Get(refField)
	if err != nil {
		return 0, fmt.Errorf("missing %s: %w", refField, err)
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", refField, err)
	}

	if dmsTag.Count < 3 {
		return 0, fmt.Errorf("expected 3 rational values, got %d", dmsTag.Count)
	}
	var dms [3]float64
	for i := range dms {
		num, den, err := dmsTag.Rat2(i)
		if err != nil {
			return 0, fmt.Errorf("reading rational %d: %w", i, err)
		}
		if den == 0 {
			return 0, fmt.Errorf("rational %d has zero denominator", i)
		}
		dms[i] = float64(num) / float64(den)
	}

	return DMSToDecimal(dms[0], dms[1], dms[2], ref), nil
}

// DMSToDecimal converts degrees, minutes, and seconds to decimal
// degrees. The result is negated if ref is "S" or "W".
func DMSToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60.0 + seconds/3600.0
	switch strings.ToUpper(strings.TrimSpace(strings.Trim(ref, "\x00"))) {
	case "S", "W":
		decimal = -decimal
	}
	return decimal
}

// hasMotionPhotoXMP reports whether the XMP packets of the file declare
// an embedded motion picture. Before Android 11, Google used
// "MicroVideo"; now they use "MotionPhoto".
func hasMotionPhotoXMP(r io.Reader) (bool, error) {
	packets, err := xmp.ScanPackets(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	for _, packet := range packets {
		var doc xmp.Document
		if err := xmp.Unmarshal(packet, &doc); err != nil {
			return false, fmt.Errorf("unmarshaling XMP document: %w", err)
		}
		paths, err := doc.ListPaths()
		if err != nil {
			return false, fmt.Errorf("listing XMP paths: %w", err)
		}
		for _, p := range paths {
			switch p.Path {
			case "GCamera:MicroVideo", "GCamera:MotionPhoto":
				if strings.TrimSpace(p.Value) == "1" {
					return true, nil
				}
			}
		}
	}

	return false, nil
}

// pngEXIF returns the contents of the eXIf chunk of a PNG file, which
// is a bare TIFF structure, or nil if there is none.
func pngEXIF(r io.ReadSeeker) ([]byte, error) {
	var sig [8]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return nil, err
	}
	if string(sig[:]) != pngSignature {
		return nil, errors.New("not a PNG file")
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		chunkType := string(hdr[4:])

		switch chunkType {
		case "eXIf":
			if length > maxEXIFChunkSize {
				return nil, fmt.Errorf("eXIf chunk too large: %d bytes", length)
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, err
			}
			return data, nil
		case "IEND":
			return nil, nil
		}

		// skip chunk data and CRC
		if _, err := r.Seek(int64(length)+4, io.SeekCurrent); err != nil {
			return nil, err
		}
	}
}

const (
	pngSignature     = "\x89PNG\r\n\x1a\n"
	maxEXIFChunkSize = 16 * 1024 * 1024
)
