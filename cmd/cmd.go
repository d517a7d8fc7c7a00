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

// Package vacmd facilitates the command line interface (CLI)
// and implements the main().
package vacmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/voyageatlas/voyageatlas/atlasapp"
	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/itinerary"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// Main runs the program and exits.
func Main() {
	ctx, cancel := atlasapp.TrapSignals(context.Background())
	err := Run(ctx, os.Args[1:], os.Stdout)
	cancel()
	_ = voyage.Log.Sync()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2) //nolint:mnd
	case errors.Is(err, geocode.ErrPlaceNotRecognized):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		voyage.Log.Error("command failed", zap.Error(err))
		_ = voyage.Log.Sync()
		os.Exit(1)
	}
}

// Run runs the command given by args, writing results to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("voyage", flag.ContinueOnError)
	configFile := fs.String("config", atlasapp.DefaultConfigFilePath(), "path to the config file")
	offline := fs.Bool("offline", false, "use only the built-in place table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	sub, subArgs := fs.Arg(0), fs.Args()[1:]

	switch sub {
	case "help":
		fmt.Fprint(out, usage)
		return nil
	case "version":
		fmt.Fprintln(out, "voyage", Version)
		return nil
	}

	cmd, ok := subcommands[sub]
	if !ok {
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, sub)
	}

	cfg, err := atlasapp.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	if *offline {
		cfg.Offline = true
	}

	app, err := atlasapp.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return cmd(ctx, app, subArgs, out)
}

type subcommand func(ctx context.Context, app *atlasapp.App, args []string, out io.Writer) error

var subcommands = map[string]subcommand{
	"analyze": cmdAnalyze,
	"geocode": cmdGeocode,
	"reverse": cmdReverse,
	"plan":    cmdPlan,
	"config":  cmdConfig,
}

func cmdAnalyze(ctx context.Context, app *atlasapp.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	single := fs.Bool("each", false, "print the intelligence of each file instead of clustering")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: analyze requires at least one file", errUsage)
	}

	if *single {
		records := make(map[string]voyage.MediaIntelligence, fs.NArg())
		for _, p := range fs.Args() {
			records[p] = app.Analyze(ctx, p)
		}
		return writeJSON(out, records)
	}

	result, err := app.AnalyzeFiles(ctx, fs.Args())
	if err != nil {
		return err
	}
	return writeJSON(out, result)
}

func cmdGeocode(ctx context.Context, app *atlasapp.App, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: geocode requires a place name", errUsage)
	}
	name := strings.Join(args, " ")
	coord, err := app.Geocode(ctx, name)
	if err != nil {
		return err
	}
	return writeJSON(out, coord)
}

func cmdReverse(ctx context.Context, app *atlasapp.App, args []string, out io.Writer) error {
	if len(args) != 2 { //nolint:mnd
		return fmt.Errorf("%w: reverse requires a latitude and a longitude", errUsage)
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: invalid latitude: %w", errUsage, err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: invalid longitude: %w", errUsage, err)
	}
	place, err := app.Reverse(ctx, voyage.Coordinate{Latitude: lat, Longitude: lng})
	if err != nil {
		return err
	}
	return writeJSON(out, place)
}

func cmdPlan(ctx context.Context, app *atlasapp.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	title := fs.String("title", "", "trip title")
	start := fs.String("start", "", "city the trip starts from")
	date := fs.String("date", "", "start date (YYYY-MM-DD or RFC 3339)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *start == "" {
		return fmt.Errorf("%w: plan requires -start", errUsage)
	}

	req := itinerary.Request{Title: *title, StartCity: *start}
	if *date != "" {
		ts, err := parseDate(*date)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		req.StartDate = ts
	}
	for _, arg := range fs.Args() {
		leg, err := parseLeg(arg)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		req.Legs = append(req.Legs, leg)
	}

	trip, err := app.PlanTrip(ctx, req)
	if err != nil {
		return err
	}
	for _, leg := range trip.Legs {
		if leg.Err != nil {
			voyage.Log.Warn("leg not planned", zap.String("city", leg.City), zap.Error(leg.Err))
		}
	}
	return writeJSON(out, trip)
}

func cmdConfig(_ context.Context, app *atlasapp.App, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	write := fs.String("write", "", "save the effective config to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *write != "" {
		return app.Config().Save(*write)
	}
	return writeJSON(out, app.Config())
}

// parseLeg parses a leg written as CITY@DATE.
func parseLeg(s string) (itinerary.Leg, error) {
	city, date, ok := strings.Cut(s, "@")
	city = strings.TrimSpace(city)
	if !ok || city == "" {
		return itinerary.Leg{}, fmt.Errorf("leg %q must be written as CITY@DATE", s)
	}
	ts, err := parseDate(date)
	if err != nil {
		return itinerary.Leg{}, fmt.Errorf("leg %q: %w", s, err)
	}
	return itinerary.Leg{City: city, Arrival: ts}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, voyage.TimestampLayout, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(v)
}

// Version is the program version, set at build time.
var Version = "(devel)"

var errUsage = errors.New("usage error")

const usage = `usage: voyage [-config FILE] [-offline] <command> [args]

commands:
  analyze [-each] FILE...        analyze media files and suggest travel events
  geocode NAME                   resolve a place name to a coordinate
  reverse LAT LNG                resolve a coordinate to a city and country
  plan -start CITY [-title T] [-date D] CITY@DATE...
                                 plan travel between itinerary stops
  config [-write FILE]           print or save the effective configuration
  help                           show this help
  version                        print the version
`
