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

// Package places is an embedded table of well-known travel destinations,
// including alternate and localized spellings of each name. It is
// consulted before any remote geocoding service.
package places

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/voyageatlas/voyageatlas/voyage"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

//go:embed places.csv
var placeData []byte

// Info describes a known place.
type Info struct {
	Name     string
	Country  string
	Location voyage.Coordinate
}

// DB maps normalized names (canonical and alternate) to places. All
// spellings of a place share one Info.
type DB map[string]Info

// BuildDB parses the embedded place table.
func BuildDB() (DB, error) {
	return parse(bytes.NewReader(placeData))
}

func parse(r io.Reader) (DB, error) {
	db := make(DB)

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return db, fmt.Errorf("unable to parse place table headers: %w", err)
	}
	headerMap := make(map[string]int)
	for i, h := range headers {
		headerMap[h] = i
	}
	for _, h := range []string{nameHeader, latHeader, lngHeader} {
		if _, ok := headerMap[h]; !ok {
			return db, fmt.Errorf("place table is missing column %q", h)
		}
	}

	field := func(record []string, header string) string {
		i, ok := headerMap[header]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return db, fmt.Errorf("unable to parse place table: %w", err)
		}

		lat, latErr := strconv.ParseFloat(field(record, latHeader), 64)
		lng, lngErr := strconv.ParseFloat(field(record, lngHeader), 64)
		if latErr != nil || lngErr != nil {
			continue
		}

		info := Info{
			Name:     field(record, nameHeader),
			Country:  field(record, countryHeader),
			Location: voyage.Coordinate{Latitude: lat, Longitude: lng},
		}
		if info.Name == "" {
			continue
		}

		db[Normalize(info.Name)] = info
		for _, alias := range strings.Split(field(record, aliasesHeader), "|") {
			if alias = strings.TrimSpace(alias); alias != "" {
				db[Normalize(alias)] = info
			}
		}
	}

	return db, nil
}

// Lookup returns the coordinate of the named place. It implements
// geocode.Table.
func (db DB) Lookup(name string) (voyage.Coordinate, bool) {
	info, ok := db.LookupInfo(name)
	return info.Location, ok
}

// LookupInfo returns everything known about the named place.
func (db DB) LookupInfo(name string) (Info, bool) {
	info, ok := db[Normalize(name)]
	return info, ok
}

// Normalize returns the lookup key for a place name: Unicode NFC,
// case-folded, with surrounding and repeated whitespace collapsed.
func Normalize(name string) string {
	name = norm.NFC.String(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Fold().String(name)
}

const (
	nameHeader    = "name"
	latHeader     = "latitude"
	lngHeader     = "longitude"
	countryHeader = "country"
	aliasesHeader = "aliases"
)
