// Package routes joins cached schedule tables into per-trip path geometries.
package routes

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"transitmap/internal/filecache"
	"transitmap/internal/geo"
	"transitmap/internal/ingest"
	"transitmap/internal/tabular"
)

// Spacing of the synthetic per-stop timestamps along a compiled path.
const timestampStep = 30 * time.Second

// Compiler builds TripRouteRecords from the stops, trips and stop-times
// tables, ingesting the provider's archive on a cache miss.
type Compiler struct {
	cache    *filecache.Store
	ingester *ingest.Ingester
	logger   *slog.Logger
	now      func() time.Time
}

// NewCompiler creates a Compiler over the given cache and ingester.
func NewCompiler(cache *filecache.Store, ingester *ingest.Ingester, logger *slog.Logger) *Compiler {
	return &Compiler{cache: cache, ingester: ingester, logger: logger, now: time.Now}
}

// Compile joins the provider's three schedule tables into ordered per-trip
// geometries. It never returns an error: missing tables, failed ingestion
// or unparsable rows degrade to an empty (or partial) result.
func (c *Compiler) Compile(ctx context.Context, provider, subCategory string) []TripRouteRecord {
	ld := &loader{compiler: c, provider: provider, subCategory: subCategory}

	stopsText, ok := ld.load(ctx, "stops.txt")
	if !ok {
		return nil
	}
	tripsText, ok := ld.load(ctx, "trips.txt")
	if !ok {
		return nil
	}
	stopTimesText, ok := ld.load(ctx, "stop_times.txt")
	if !ok {
		return nil
	}

	_, coords := parseStops(stopsText)
	tripRoutes := parseTrips(tripsText)
	sequences := parseStopTimes(stopTimesText)

	// Stable trip order keeps the output deterministic across passes.
	tripIDs := make([]string, 0, len(sequences))
	for tripID := range sequences {
		tripIDs = append(tripIDs, tripID)
	}
	sort.Strings(tripIDs)

	base := c.now()
	records := make([]TripRouteRecord, 0, len(tripIDs))
	for _, tripID := range tripIDs {
		var path []geo.Point
		var timestamps []int64
		for _, sq := range sequences[tripID] {
			p, ok := coords[sq.stopID]
			if !ok {
				// Dangling stop reference; the rest of the trip still counts.
				continue
			}
			timestamps = append(timestamps, base.Add(time.Duration(len(path))*timestampStep).Unix())
			path = append(path, p)
		}
		if len(path) < 2 {
			// One resolvable stop cannot represent a line.
			continue
		}
		records = append(records, TripRouteRecord{
			TripID:     tripID,
			RouteID:    tripRoutes[tripID],
			Path:       path,
			Timestamps: timestamps,
		})
	}

	c.logger.Info("routes compiled",
		"provider", provider, "sub_category", subCategory,
		"trips", len(sequences), "records", len(records))
	return records
}

// Stops parses the provider's stop table into records with usable
// coordinates. Same load-or-ingest and degrade-to-empty behavior as Compile.
func (c *Compiler) Stops(ctx context.Context, provider, subCategory string) []StopRecord {
	ld := &loader{compiler: c, provider: provider, subCategory: subCategory}
	text, ok := ld.load(ctx, "stops.txt")
	if !ok {
		return nil
	}
	stops, _ := parseStops(text)
	return stops
}

// loader fetches tables cache-first, invoking the ingester at most once
// per compile pass (one ingest populates every table at once).
type loader struct {
	compiler    *Compiler
	provider    string
	subCategory string
	ingested    bool
}

func (ld *loader) load(ctx context.Context, filename string) (string, bool) {
	c := ld.compiler
	if text, ok := c.cache.Get(ctx, ld.provider, ld.subCategory, filename); ok {
		return text, true
	}
	if !ld.ingested {
		ld.ingested = true
		c.ingester.Ingest(ctx, ld.provider, ld.subCategory)
		if text, ok := c.cache.Get(ctx, ld.provider, ld.subCategory, filename); ok {
			return text, true
		}
	}
	c.logger.Warn("schedule table unavailable",
		"provider", ld.provider, "sub_category", ld.subCategory, "table", filename)
	return "", false
}

// parseStops keeps only rows with numeric coordinates. The coordinate
// lookup is what the join consumes; the records feed the stops API.
func parseStops(text string) ([]StopRecord, map[string]geo.Point) {
	rows := tabular.Parse(text)
	stops := make([]StopRecord, 0, len(rows))
	coords := make(map[string]geo.Point, len(rows))

	for _, row := range rows {
		id := row.Get("stop_id")
		if id == "" {
			continue
		}
		lat, err := strconv.ParseFloat(row.Get("stop_lat"), 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(row.Get("stop_lon"), 64)
		if err != nil {
			continue
		}
		stops = append(stops, StopRecord{
			ID:      id,
			Name:    row.Get("stop_name"),
			Lat:     lat,
			Lng:     lng,
			Code:    row.Get("stop_code"),
			RouteID: row.Get("route_id"),
		})
		coords[id] = geo.Point{Lng: lng, Lat: lat}
	}
	return stops, coords
}

// parseTrips maps each trip to its owning route. An absent route id is
// kept as "" rather than treated as an error.
func parseTrips(text string) map[string]string {
	tripRoutes := make(map[string]string)
	for _, row := range tabular.Parse(text) {
		tripID := row.Get("trip_id")
		if tripID == "" {
			continue
		}
		tripRoutes[tripID] = row.Get("route_id")
	}
	return tripRoutes
}

type stopSeq struct {
	stopID string
	seq    int
}

// parseStopTimes groups sequenced stop references per trip and sorts each
// group by sequence number. Ties keep input order; sequence numbers are
// assumed unique per trip.
func parseStopTimes(text string) map[string][]stopSeq {
	sequences := make(map[string][]stopSeq)
	for _, row := range tabular.Parse(text) {
		tripID := row.Get("trip_id")
		stopID := row.Get("stop_id")
		if tripID == "" || stopID == "" {
			continue
		}
		seq, err := strconv.Atoi(row.Get("stop_sequence"))
		if err != nil {
			continue
		}
		sequences[tripID] = append(sequences[tripID], stopSeq{stopID: stopID, seq: seq})
	}
	for tripID := range sequences {
		sq := sequences[tripID]
		sort.SliceStable(sq, func(i, j int) bool { return sq[i].seq < sq[j].seq })
	}
	return sequences
}
