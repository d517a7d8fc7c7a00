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
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/remko/go-mkvparse"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// extractVideoMetadata reads the creation time and, where the container
// carries one, the recording location of a video. Support differs by
// container; missing fields are normal.
func extractVideoMetadata(logger *zap.Logger, filename string, r io.ReadSeeker, intel *voyage.MediaIntelligence) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mkv":
		return readMKVMetadata(r, intel)
	case ".avi":
		return readAVIMetadata(r, intel)
	default:
		return readMP4Metadata(logger, r, intel)
	}
}

// An ISO 6709 string is a few dozen bytes; anything much larger is not
// a location.
const maxLocationBoxSize = 4096

// readMP4Metadata walks the ISO base media (MP4/QuickTime) box tree for
// the movie creation time and the ©xyz location box.
func readMP4Metadata(logger *zap.Logger, r io.ReadSeeker, intel *voyage.MediaIntelligence) error {
	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (any, error) {
		if h.BoxInfo.IsSupportedType() && h.BoxInfo.Type.String() != "mdat" {
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading payload from handle: %w", err)
			}

			switch b := box.(type) {
			case *mp4.Mvhd: // movie header (overall declarations)
				if intel.CapturedAt == nil {
					// (only difference between V0 and V1 is bit length of integer)
					if ts, ok := isoIEC14496Timestamp(b.GetCreationTime()); ok {
						intel.CapturedAt = &ts
					}
				}

			case *mp4.Tkhd: // track header
				// in case the mvhd box didn't have this info
				if intel.CapturedAt == nil {
					if ts, ok := isoIEC14496Timestamp(b.GetCreationTime()); ok {
						intel.CapturedAt = &ts
					}
				}
			}

			// traverse child nodes
			return h.Expand()
		} else if h.BoxInfo.Context.UnderUdta && h.BoxInfo.Type == [4]byte{'©', 'x', 'y', 'z'} {
			// Google and Apple cameras store location data in this box
			if size := h.BoxInfo.Size - h.BoxInfo.HeaderSize; size > maxLocationBoxSize {
				logger.Debug("skipping oversized ©xyz box", zap.Uint64("size", size))
				return nil, nil
			}
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("reading ©xyz box data: %w", err)
			}
			coord, err := parseISO6709(buf.String())
			if err != nil {
				logger.Debug("parsing location from ©xyz",
					zap.Error(err),
					zap.String("©xyz", buf.String()))
			} else if _, ok := intel.Coordinate(); !ok {
				intel.SetCoordinate(coord)
			}
		}

		return nil, nil
	})
	return err
}

// parseISO6709 parses the location string of the ©xyz box, which is
// formatted like "+50.1234-101.1234+000.000/" (+Lat-Lon+Alt), sometimes
// with a binary length prefix and without the altitude.
func parseISO6709(raw string) (voyage.Coordinate, error) {
	matches := iso6709Regex.FindStringSubmatch(raw)
	const minMatches = 4
	if len(matches) < minMatches {
		return voyage.Coordinate{}, fmt.Errorf("lat+lon not found in expected format in input string '%s'", raw)
	}

	latStr, lonStr := matches[1], matches[3]

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return voyage.Coordinate{}, fmt.Errorf("converting latitude from '%s': %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return voyage.Coordinate{}, fmt.Errorf("converting longitude from '%s': %w", lonStr, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return voyage.Coordinate{}, fmt.Errorf("coordinate out of range: %f,%f", lat, lon)
	}

	return voyage.Coordinate{Latitude: lat, Longitude: lon}, nil
}

var iso6709Regex = regexp.MustCompile(`((\+|-)\d+\.\d+)((\+|-)\d+\.\d+)`)

// isoIEC14496Timestamp converts the number of seconds since January 1, 1904 (as
// defined by ISO/IEC 14496-12 5th Edition [2015], page 23) to a UTC time.
// Zero (and the epoch itself) mean the muxer did not record a time.
func isoIEC14496Timestamp(ts uint64) (time.Time, bool) {
	if ts <= mp4EpochToUnixEpochSeconds {
		return time.Time{}, false
	}
	unixSec := ts - mp4EpochToUnixEpochSeconds
	return time.Unix(int64(unixSec), 0).UTC(), true //nolint:gosec // creation times are far from overflowing
}

// The difference between January 1, 1904 (the epoch used by MP4 file metadata)
// and January 1, 1970 (the Unix epoch) in seconds.
const mp4EpochToUnixEpochSeconds uint64 = 2082844800

// readMKVMetadata reads the segment DateUTC of a Matroska file.
func readMKVMetadata(r io.Reader, intel *voyage.MediaIntelligence) error {
	h := new(mkvDateHandler)
	if err := mkvparse.Parse(r, h); err != nil && !errors.Is(err, errMKVDone) {
		if h.date.IsZero() {
			return fmt.Errorf("parsing matroska: %w", err)
		}
	}
	if !h.date.IsZero() {
		ts := h.date.UTC()
		intel.CapturedAt = &ts
	}
	return nil
}

var errMKVDone = errors.New("matroska date found")

// mkvDateHandler collects the DateUTC element and skips clusters,
// which hold the media data.
type mkvDateHandler struct {
	date time.Time
}

func (h *mkvDateHandler) HandleMasterBegin(id mkvparse.ElementID, _ mkvparse.ElementInfo) (bool, error) {
	if id == mkvparse.ClusterElement {
		return false, nil
	}
	return true, nil
}

func (h *mkvDateHandler) HandleMasterEnd(id mkvparse.ElementID, _ mkvparse.ElementInfo) error {
	if id == mkvparse.InfoElement && !h.date.IsZero() {
		return errMKVDone
	}
	return nil
}

func (h *mkvDateHandler) HandleDate(id mkvparse.ElementID, value time.Time, _ mkvparse.ElementInfo) error {
	if id == mkvparse.DateUTCElement {
		h.date = value
	}
	return nil
}

func (*mkvDateHandler) HandleString(mkvparse.ElementID, string, mkvparse.ElementInfo) error {
	return nil
}

func (*mkvDateHandler) HandleInteger(mkvparse.ElementID, int64, mkvparse.ElementInfo) error {
	return nil
}

func (*mkvDateHandler) HandleFloat(mkvparse.ElementID, float64, mkvparse.ElementInfo) error {
	return nil
}

func (*mkvDateHandler) HandleBinary(mkvparse.ElementID, []byte, mkvparse.ElementInfo) error {
	return nil
}

// readAVIMetadata walks the RIFF chunks of an AVI file for the
// digitization date (IDIT) or, failing that, the INFO creation date
// (ICRD). The movie data list is skipped.
func readAVIMetadata(r io.ReadSeeker, intel *voyage.MediaIntelligence) error {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(hdr[:4]) != "RIFF" || string(hdr[8:]) != "AVI " {
		return errors.New("not an AVI file")
	}
	size := int64(binary.LittleEndian.Uint32(hdr[4:8])) - 4

	var idit, icrd string
	err := walkRIFF(r, size, 0, func(id string, data []byte) {
		switch id {
		case "IDIT":
			idit = cString(data)
		case "ICRD":
			icrd = cString(data)
		}
	})
	if err != nil && idit == "" && icrd == "" {
		return err
	}

	for _, val := range []string{idit, icrd} {
		if val == "" {
			continue
		}
		if ts, ok := parseRIFFDate(val); ok {
			intel.CapturedAt = &ts
			return nil
		}
	}
	return nil
}

// walkRIFF visits the chunks within the next size bytes of r, descending
// into header and INFO lists, and calls fn for small leaf chunks.
func walkRIFF(r io.ReadSeeker, size int64, depth int, fn func(id string, data []byte)) error {
	const maxDepth, maxLeafSize = 4, 64 * 1024

	var hdr [8]byte
	for size >= int64(len(hdr)) {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(hdr[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(hdr[4:]))
		padded := chunkSize + chunkSize%2
		size -= int64(len(hdr)) + padded

		if id == "LIST" && chunkSize >= 4 && depth < maxDepth {
			var listType [4]byte
			if _, err := io.ReadFull(r, listType[:]); err != nil {
				return fmt.Errorf("reading list type: %w", err)
			}
			switch string(listType[:]) {
			case "hdrl", "INFO":
				if err := walkRIFF(r, padded-4, depth+1, fn); err != nil {
					return err
				}
				continue
			}
			if _, err := r.Seek(padded-4, io.SeekCurrent); err != nil {
				return err
			}
			continue
		}

		if (id == "IDIT" || id == "ICRD") && chunkSize <= maxLeafSize {
			data := make([]byte, padded)
			if _, err := io.ReadFull(r, data); err != nil {
				return fmt.Errorf("reading %s chunk: %w", id, err)
			}
			fn(id, data[:chunkSize])
			continue
		}

		if _, err := r.Seek(padded, io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

// parseRIFFDate parses the date formats written by cameras into IDIT
// and ICRD chunks. Most use the C asctime() format.
func parseRIFFDate(val string) (time.Time, bool) {
	val = strings.Join(strings.Fields(val), " ")
	for _, layout := range []string{
		"Mon Jan 2 15:04:05 2006",
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, val); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
