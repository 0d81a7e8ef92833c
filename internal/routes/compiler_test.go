package routes

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"transitmap/internal/filecache"
	"transitmap/internal/ingest"
)

const (
	stopsTable = "stop_id,stop_name,stop_lat,stop_lon,stop_code\n" +
		"S1,First St,44.90,-93.10,101\n" +
		"S2,Second St,44.91,-93.11,102\n" +
		"S3,Third St,44.92,-93.12,103\n"
	tripsTable = "trip_id,route_id\nT1,R1\n"
	// Out-of-order rows: sequence numbers are the sole ordering key.
	stopTimesTable = "trip_id,stop_id,stop_sequence\n" +
		"T1,S3,3\n" +
		"T1,S1,1\n" +
		"T1,S2,2\n"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newCompiler returns a compiler over a fresh store, with an ingester
// pointed at a dead endpoint so cache misses stay misses.
func newCompiler(t *testing.T) (*Compiler, *filecache.Store) {
	t.Helper()
	store := filecache.New(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	t.Cleanup(func() { store.Close() })
	ing := ingest.New("http://127.0.0.1:0", store, testLogger())
	return NewCompiler(store, ing, testLogger()), store
}

func seed(t *testing.T, store *filecache.Store, stops, trips, stopTimes string) {
	t.Helper()
	ctx := context.Background()
	for name, content := range map[string]string{
		"stops.txt":      stops,
		"trips.txt":      trips,
		"stop_times.txt": stopTimes,
	} {
		if err := store.Put(ctx, "metro", "", name, content); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func TestCompile_JoinsTablesInSequenceOrder(t *testing.T) {
	c, store := newCompiler(t)
	seed(t, store, stopsTable, tripsTable, stopTimesTable)

	records := c.Compile(context.Background(), "metro", "")
	if len(records) != 1 {
		t.Fatalf("Compile returned %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.TripID != "T1" || rec.RouteID != "R1" {
		t.Errorf("record = %s/%s, want T1/R1", rec.TripID, rec.RouteID)
	}
	if len(rec.Path) != 3 {
		t.Fatalf("path has %d points, want 3", len(rec.Path))
	}
	// S1 → S2 → S3 despite shuffled stop_times rows.
	wantLats := []float64{44.90, 44.91, 44.92}
	for i, want := range wantLats {
		if rec.Path[i].Lat != want {
			t.Errorf("path[%d].Lat = %v, want %v", i, rec.Path[i].Lat, want)
		}
	}

	if len(rec.Timestamps) != len(rec.Path) {
		t.Fatalf("timestamps length %d, path length %d", len(rec.Timestamps), len(rec.Path))
	}
	for i := 1; i < len(rec.Timestamps); i++ {
		if got := rec.Timestamps[i] - rec.Timestamps[i-1]; got != 30 {
			t.Errorf("timestamp step %d = %d s, want 30", i, got)
		}
	}
}

func TestCompile_DanglingStopReferenceIsSkipped(t *testing.T) {
	c, store := newCompiler(t)
	// S2 has no numeric coordinates, so it drops out of the lookup.
	stops := "stop_id,stop_name,stop_lat,stop_lon\n" +
		"S1,First St,44.90,-93.10\n" +
		"S2,Second St,,\n" +
		"S3,Third St,44.92,-93.12\n"
	seed(t, store, stops, tripsTable, stopTimesTable)

	records := c.Compile(context.Background(), "metro", "")
	if len(records) != 1 {
		t.Fatalf("Compile returned %d records, want 1", len(records))
	}
	if len(records[0].Path) != 2 {
		t.Fatalf("path has %d points, want 2 (S2 skipped)", len(records[0].Path))
	}
	if records[0].Path[0].Lat != 44.90 || records[0].Path[1].Lat != 44.92 {
		t.Errorf("path = %v, want S1 then S3", records[0].Path)
	}
}

func TestCompile_SingleResolvablePointDropsTrip(t *testing.T) {
	c, store := newCompiler(t)
	stops := "stop_id,stop_name,stop_lat,stop_lon\nS1,First St,44.90,-93.10\n"
	seed(t, store, stops, tripsTable, stopTimesTable)

	if records := c.Compile(context.Background(), "metro", ""); len(records) != 0 {
		t.Errorf("Compile returned %d records, want 0 (one point is not a line)", len(records))
	}
}

func TestCompile_MissingTableYieldsEmpty(t *testing.T) {
	c, store := newCompiler(t)
	ctx := context.Background()
	store.Put(ctx, "metro", "", "stops.txt", stopsTable)
	// trips.txt and stop_times.txt absent; the dead ingester cannot fill them.

	if records := c.Compile(ctx, "metro", ""); records != nil {
		t.Errorf("Compile = %v, want nil", records)
	}
}

func TestCompile_TripWithoutRouteID(t *testing.T) {
	c, store := newCompiler(t)
	seed(t, store, stopsTable, "trip_id,route_id\nT1,\n", stopTimesTable)

	records := c.Compile(context.Background(), "metro", "")
	if len(records) != 1 {
		t.Fatalf("Compile returned %d records, want 1", len(records))
	}
	if records[0].RouteID != "" {
		t.Errorf("RouteID = %q, want empty (absent route is not an error)", records[0].RouteID)
	}
}

func TestCompile_IngestsOnCacheMiss(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"stops.txt":      stopsTable,
		"trips.txt":      tripsTable,
		"stop_times.txt": stopTimesTable,
	} {
		f, _ := w.Create(name)
		f.Write([]byte(content))
	}
	w.Close()

	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fetches++
		rw.Write(buf.Bytes())
	}))
	defer srv.Close()

	store := filecache.New(filepath.Join(t.TempDir(), "cache.db"), testLogger())
	defer store.Close()
	c := NewCompiler(store, ingest.New(srv.URL, store, testLogger()), testLogger())

	records := c.Compile(context.Background(), "metro", "")
	if len(records) != 1 {
		t.Fatalf("Compile returned %d records, want 1", len(records))
	}
	if fetches != 1 {
		t.Errorf("archive fetched %d times, want 1 (one ingest fills all tables)", fetches)
	}

	// Second compile is served from cache.
	c.Compile(context.Background(), "metro", "")
	if fetches != 1 {
		t.Errorf("archive fetched %d times after warm compile, want 1", fetches)
	}
}

func TestStops(t *testing.T) {
	c, store := newCompiler(t)
	stops := "stop_id,stop_name,stop_lat,stop_lon,stop_code,route_id\n" +
		"S1,Central,44.90,-93.10,101,RAIL1\n" +
		"S2,\"Oak, North\",44.91,-93.11,,\n" +
		"S3,NoCoords,,,\n"
	seed(t, store, stops, tripsTable, stopTimesTable)

	got := c.Stops(context.Background(), "metro", "")
	if len(got) != 2 {
		t.Fatalf("Stops returned %d records, want 2", len(got))
	}
	if got[0].RouteID != "RAIL1" {
		t.Errorf("rail stop RouteID = %q, want RAIL1", got[0].RouteID)
	}
	if got[1].Name != "Oak, North" {
		t.Errorf("quoted stop name = %q, want 'Oak, North'", got[1].Name)
	}
}
