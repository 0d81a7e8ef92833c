// Package directions resolves waypoint chains to road-following paths via
// an external routing service, behind a FIFO rate-limited queue and a
// persistent response cache.
package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"transitmap/internal/filecache"
	"transitmap/internal/geo"
	"transitmap/internal/polyline"
)

// The routing service rejects requests with more than 25 waypoints;
// longer chains split into overlapping windows.
const maxWaypoints = 25

// Client resolves waypoint sequences to road-following geometries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      *filecache.Store
	queue      *queue
	logger     *slog.Logger

	mu  sync.RWMutex
	mem map[string][]geo.Point // read-through layer over the store
}

// NewClient creates a routing client. An empty apiKey disables the
// service entirely: Resolve degrades to the identity mapping.
// minInterval is the delay enforced between successive service requests.
func NewClient(baseURL, apiKey string, minInterval time.Duration, store *filecache.Store, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		store:      store,
		queue:      newQueue(minInterval, logger),
		logger:     logger,
		mem:        make(map[string][]geo.Point),
	}
}

// Resolve maps an ordered waypoint chain to a road-following path. It
// never fails: with no credential, fewer than two waypoints, or any
// service problem the result is the straight-line mapping of the inputs.
// Results are cached by waypoint fingerprint; a given chain is resolved
// against the service at most once.
func (c *Client) Resolve(ctx context.Context, waypoints []geo.Point) []geo.Point {
	if c.apiKey == "" || len(waypoints) < 2 {
		// Trivial results are not worth caching.
		return identity(waypoints)
	}

	key := cacheKey(waypoints)
	if points, ok := c.cached(ctx, key); ok {
		return points
	}

	if len(waypoints) > maxWaypoints {
		return c.resolveWindowed(ctx, key, waypoints)
	}

	done := make(chan []geo.Point, 1)
	c.queue.enqueue(&request{
		id:  uuid.NewString(),
		run: func() { done <- c.fetch(ctx, key, waypoints) },
	})
	return <-done
}

// resolveWindowed splits an oversized chain into ≤25-point windows, each
// starting on the previous window's last point, resolves them
// independently, and concatenates the results dropping every duplicated
// boundary point. The joined geometry is cached under the outer key only
// after all windows resolve.
func (c *Client) resolveWindowed(ctx context.Context, key string, waypoints []geo.Point) []geo.Point {
	var out []geo.Point
	for start := 0; start < len(waypoints)-1; start += maxWaypoints - 1 {
		end := start + maxWaypoints
		if end > len(waypoints) {
			end = len(waypoints)
		}
		segment := c.Resolve(ctx, waypoints[start:end])
		if start == 0 {
			out = append(out, segment...)
		} else if len(segment) > 1 {
			out = append(out, segment[1:]...)
		}
		if end == len(waypoints) {
			break
		}
	}
	c.storeResult(ctx, key, out)
	return out
}

// fetch issues one routing request and caches whatever it resolves to,
// road-following or fallback, so the key is never recomputed.
func (c *Client) fetch(ctx context.Context, key string, waypoints []geo.Point) []geo.Point {
	points, err := c.requestRoute(ctx, waypoints)
	if err != nil {
		fallback := identity(waypoints)
		c.logger.Warn("routing request failed, using straight line",
			"error", err,
			"waypoints", len(waypoints),
			"fallback_m", int(geo.PathLength(fallback)))
		c.storeResult(ctx, key, fallback)
		return fallback
	}
	c.storeResult(ctx, key, points)
	return points
}

func (c *Client) requestRoute(ctx context.Context, waypoints []geo.Point) ([]geo.Point, error) {
	last := len(waypoints) - 1
	q := url.Values{}
	q.Set("origin", formatWaypoint(waypoints[0]))
	q.Set("destination", formatWaypoint(waypoints[last]))
	if last > 1 {
		mids := make([]string, 0, last-1)
		for _, p := range waypoints[1:last] {
			mids = append(mids, formatWaypoint(p))
		}
		q.Set("waypoints", strings.Join(mids, "|"))
	}
	q.Set("key", c.apiKey)
	q.Set("mode", "driving")
	q.Set("alternatives", "false")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing status %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Routes []struct {
			OverviewPolyline struct {
				Points string `json:"points"`
			} `json:"overview_polyline"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode routing response: %w", err)
	}
	if body.Status != "OK" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("routing response status %q with %d routes", body.Status, len(body.Routes))
	}

	points := polyline.Decode(body.Routes[0].OverviewPolyline.Points)
	if len(points) == 0 {
		return nil, fmt.Errorf("routing response carried no polyline")
	}
	return points, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]geo.Point, bool) {
	c.mu.RLock()
	points, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return points, true
	}

	points, ok = c.store.GetGeometry(ctx, key)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.mem[key] = points
	c.mu.Unlock()
	return points, true
}

func (c *Client) storeResult(ctx context.Context, key string, points []geo.Point) {
	c.mu.Lock()
	c.mem[key] = points
	c.mu.Unlock()

	if err := c.store.PutGeometry(ctx, key, points); err != nil {
		// Degrades to re-resolving after a restart.
		c.logger.Warn("geometry cache write failed", "error", err)
	}
}

// identity is the straight-line fallback: the waypoints themselves, in
// order, as an owned slice.
func identity(waypoints []geo.Point) []geo.Point {
	out := make([]geo.Point, len(waypoints))
	copy(out, waypoints)
	return out
}

// cacheKey fingerprints a waypoint chain with coordinates rounded to six
// decimals (~0.1 m), so float noise cannot split cache entries.
func cacheKey(waypoints []geo.Point) string {
	parts := make([]string, len(waypoints))
	for i, p := range waypoints {
		parts[i] = strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," +
			strconv.FormatFloat(p.Lng, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}

func formatWaypoint(p geo.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
