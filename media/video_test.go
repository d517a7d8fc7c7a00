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
	"encoding/binary"
	"testing"
	"time"

	"github.com/voyageatlas/voyageatlas/voyage"
)

func mp4Box(typ string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	b := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	b = append(b, typ...)
	return append(b, body...)
}

// mvhdV0 returns a version 0 movie header box payload.
func mvhdV0(creation uint32) []byte {
	be32 := binary.BigEndian.AppendUint32
	b := []byte{0, 0, 0, 0} // version, flags
	b = be32(b, creation)
	b = be32(b, creation) // modification
	b = be32(b, 1000)     // timescale
	b = be32(b, 0)        // duration
	b = be32(b, 0x00010000)
	b = binary.BigEndian.AppendUint16(b, 0x0100)
	b = append(b, make([]byte, 10)...)
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		b = be32(b, v)
	}
	b = append(b, make([]byte, 24)...)
	return be32(b, 2) // next track ID
}

func buildMP4(creation uint32) []byte {
	ftyp := mp4Box("ftyp", []byte("isom"), []byte{0, 0, 2, 0}, []byte("isom"))
	moov := mp4Box("moov", mp4Box("mvhd", mvhdV0(creation)))
	return append(ftyp, moov...)
}

func riffChunk(id string, data []byte) []byte {
	b := append([]byte(id), binary.LittleEndian.AppendUint32(nil, uint32(len(data)))...)
	b = append(b, data...)
	if len(data)%2 == 1 {
		b = append(b, 0)
	}
	return b
}

func riffList(typ string, chunks ...[]byte) []byte {
	return riffChunk("LIST", append([]byte(typ), bytes.Join(chunks, nil)...))
}

func buildAVI(chunks ...[]byte) []byte {
	body := append([]byte("AVI "), bytes.Join(chunks, nil)...)
	b := append([]byte("RIFF"), binary.LittleEndian.AppendUint32(nil, uint32(len(body)))...)
	return append(b, body...)
}

// ebml encodes an element whose ID and content are short enough for a
// one-byte size.
func ebml(id []byte, content ...[]byte) []byte {
	body := bytes.Join(content, nil)
	b := append([]byte{}, id...)
	b = append(b, 0x80|byte(len(body)))
	return append(b, body...)
}

func buildMKV(date time.Time) []byte {
	matroskaEpoch := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	dateUTC := binary.BigEndian.AppendUint64(nil, uint64(date.Sub(matroskaEpoch).Nanoseconds()))

	header := ebml([]byte{0x1A, 0x45, 0xDF, 0xA3}, ebml([]byte{0x42, 0x82}, []byte("matroska")))
	info := ebml([]byte{0x15, 0x49, 0xA9, 0x66}, ebml([]byte{0x44, 0x61}, dateUTC))
	segment := ebml([]byte{0x18, 0x53, 0x80, 0x67}, info)
	return append(header, segment...)
}

func buildMP4WithLocation(creation uint32, xyz []byte) []byte {
	ftyp := mp4Box("ftyp", []byte("isom"), []byte{0, 0, 2, 0}, []byte("isom"))
	moov := mp4Box("moov",
		mp4Box("mvhd", mvhdV0(creation)),
		mp4Box("udta", mp4Box("\xa9xyz", xyz)),
	)
	return append(ftyp, moov...)
}

func TestAnalyzeMP4Location(t *testing.T) {
	// QuickTime string: 16-bit length, 16-bit language, then the text
	location := []byte("\x00\x12\x15\xc7+48.8566+002.3522/")
	oversized := append(append([]byte{}, location...), bytes.Repeat([]byte{' '}, maxLocationBoxSize)...)

	tests := []struct {
		name   string
		xyz    []byte
		expect *voyage.Coordinate
	}{
		{
			name:   "location box",
			xyz:    location,
			expect: &voyage.Coordinate{Latitude: 48.8566, Longitude: 2.3522},
		},
		{
			name: "garbage location box",
			xyz:  []byte("nowhere"),
		},
		{
			name: "oversized location box",
			xyz:  oversized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Extractor
			intel := e.AnalyzeReader(context.Background(), "VID_0002.mp4", bytes.NewReader(buildMP4WithLocation(1, tt.xyz)))
			coord, ok := intel.Coordinate()
			switch {
			case tt.expect == nil && ok:
				t.Errorf("coordinate = %v, want absent", coord)
			case tt.expect != nil && !ok:
				t.Errorf("coordinate absent, want %v", *tt.expect)
			case tt.expect != nil && coord != *tt.expect:
				t.Errorf("coordinate = %v, want %v", coord, *tt.expect)
			}
		})
	}
}

func TestAnalyzeVideoFixtures(t *testing.T) {
	captured := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	mp4Creation := uint32(captured.Unix() + int64(mp4EpochToUnixEpochSeconds))

	tests := []struct {
		name     string
		filename string
		data     []byte
		expect   *time.Time
	}{
		{
			name:     "mp4 movie header",
			filename: "VID_0001.mp4",
			data:     buildMP4(mp4Creation),
			expect:   &captured,
		},
		{
			name:     "mov with unset creation time",
			filename: "clip.MOV",
			data:     buildMP4(0),
		},
		{
			name:     "avi IDIT",
			filename: "MVI_0001.AVI",
			data: buildAVI(
				riffList("hdrl",
					riffChunk("avih", make([]byte, 56)),
					riffChunk("IDIT", []byte("Mon May  1 10:00:00 2023\n\x00")),
				),
				riffList("movi", riffChunk("00dc", []byte{1, 2, 3})),
			),
			expect: &captured,
		},
		{
			name:     "avi INFO ICRD",
			filename: "old.avi",
			data: buildAVI(
				riffList("hdrl", riffChunk("avih", make([]byte, 56))),
				riffList("INFO", riffChunk("ICRD", []byte("2023-05-01 10:00:00\x00"))),
			),
			expect: &captured,
		},
		{
			name:     "avi without dates",
			filename: "nodate.avi",
			data:     buildAVI(riffList("hdrl", riffChunk("avih", make([]byte, 56)))),
		},
		{
			name:     "mkv DateUTC",
			filename: "movie.mkv",
			data:     buildMKV(captured),
			expect:   &captured,
		},
		{
			name:     "truncated mp4",
			filename: "broken.mp4",
			data:     []byte{0, 0, 0, 0x40, 'm', 'o', 'o', 'v'},
		},
		{
			name:     "not an avi",
			filename: "fake.avi",
			data:     []byte("RIFF\x04\x00\x00\x00WAVE"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Extractor
			intel := e.AnalyzeReader(context.Background(), tt.filename, bytes.NewReader(tt.data))
			switch {
			case tt.expect == nil && intel.CapturedAt != nil:
				t.Errorf("CapturedAt = %v, want absent", *intel.CapturedAt)
			case tt.expect != nil && intel.CapturedAt == nil:
				t.Errorf("CapturedAt absent, want %v", *tt.expect)
			case tt.expect != nil && !intel.CapturedAt.Equal(*tt.expect):
				t.Errorf("CapturedAt = %v, want %v", *intel.CapturedAt, *tt.expect)
			}
			if intel.Lat != nil || intel.Lng != nil {
				t.Errorf("unexpected coordinate in %+v", intel)
			}
		})
	}
}

func TestParseISO6709(t *testing.T) {
	for i, tc := range []struct {
		input   string
		expect  voyage.Coordinate
		wantErr bool
	}{
		{input: "+37.7858-122.4064+000.000/", expect: voyage.Coordinate{Latitude: 37.7858, Longitude: -122.4064}},
		{input: "\x00\x12\x15\xc7-33.8688+151.2093/", expect: voyage.Coordinate{Latitude: -33.8688, Longitude: 151.2093}},
		{input: "+48.8584+002.2945/", expect: voyage.Coordinate{Latitude: 48.8584, Longitude: 2.2945}},
		{input: "+95.0000+010.0000/", wantErr: true},
		{input: "no location here", wantErr: true},
		{input: "", wantErr: true},
	} {
		actual, err := parseISO6709(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Test %d: expected error for %q, got %v", i, tc.input, actual)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if actual != tc.expect {
			t.Errorf("Test %d: parseISO6709(%q) = %v, want %v", i, tc.input, actual, tc.expect)
		}
	}
}

func TestISOIEC14496Timestamp(t *testing.T) {
	if _, ok := isoIEC14496Timestamp(0); ok {
		t.Error("zero timestamp should be absent")
	}
	if _, ok := isoIEC14496Timestamp(mp4EpochToUnixEpochSeconds); ok {
		t.Error("timestamp at the Unix epoch should be absent")
	}
	ts, ok := isoIEC14496Timestamp(mp4EpochToUnixEpochSeconds + 86400)
	if !ok || !ts.Equal(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("isoIEC14496Timestamp(epoch+1d) = %v, %t", ts, ok)
	}
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", ts.Location())
	}
}

func TestParseRIFFDate(t *testing.T) {
	expect := time.Date(2008, 3, 3, 15, 4, 5, 0, time.UTC)
	for _, input := range []string{
		"Mon Mar  3 15:04:05 2008",
		"Mon Mar 3 15:04:05 2008",
		"2008:03:03 15:04:05",
		"2008-03-03 15:04:05",
		"2008/03/03 15:04:05",
	} {
		ts, ok := parseRIFFDate(input)
		if !ok || !ts.Equal(expect) {
			t.Errorf("parseRIFFDate(%q) = %v, %t; want %v", input, ts, ok, expect)
		}
	}
	if _, ok := parseRIFFDate("sometime in March"); ok {
		t.Error("expected unparseable date to fail")
	}
}
