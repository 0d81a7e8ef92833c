package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Fetcher polls a GTFS-RT vehicle positions feed and updates the store.
type Fetcher struct {
	feedURL  string
	interval time.Duration
	store    *Store
	client   *http.Client
	logger   *slog.Logger
}

// NewFetcher creates a vehicle positions fetcher polling feedURL.
func NewFetcher(feedURL string, interval time.Duration, store *Store, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		feedURL:  feedURL,
		interval: interval,
		store:    store,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// Start begins polling the feed. Blocks until the context is cancelled.
func (f *Fetcher) Start(ctx context.Context) {
	// Fetch immediately on start
	f.fetchVehicles(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.fetchVehicles(ctx)
		case <-ctx.Done():
			f.logger.Info("vehicle positions fetcher stopped")
			return
		}
	}
}

func (f *Fetcher) fetchVehicles(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.feedURL, nil)
	if err != nil {
		f.logger.Error("create vehicles request", "error", err)
		return
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch vehicles failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("vehicles feed returned non-200", "status", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("read vehicles body", "error", err)
		return
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		f.logger.Error("parse vehicles protobuf", "error", err)
		return
	}

	f.store.SetVehicles(decodeVehicles(feed))
	f.logger.Info("vehicle positions updated", "count", len(f.store.All()))
}

// decodeVehicles flattens FeedMessage entities into position records,
// skipping entities with no vehicle or no position.
func decodeVehicles(feed *gtfs.FeedMessage) []VehiclePosition {
	var vehicles []VehiclePosition
	for _, entity := range feed.GetEntity() {
		v := entity.GetVehicle()
		if v == nil || v.GetPosition() == nil {
			continue
		}
		pos := v.GetPosition()

		vp := VehiclePosition{
			ID:        entity.GetId(),
			TripID:    v.GetTrip().GetTripId(),
			RouteID:   v.GetTrip().GetRouteId(),
			Lat:       float64(pos.GetLatitude()),
			Lon:       float64(pos.GetLongitude()),
			Bearing:   float64(pos.GetBearing()),
			Speed:     float64(pos.GetSpeed()),
			Timestamp: int64(v.GetTimestamp()),
		}
		if vp.ID == "" {
			vp.ID = v.GetVehicle().GetId()
		}
		vehicles = append(vehicles, vp)
	}
	return vehicles
}
