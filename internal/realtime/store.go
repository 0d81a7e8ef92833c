// Package realtime polls a GTFS-RT vehicle positions feed and keeps the
// latest decoded records in memory for the API to serve. No caching and
// no parsing beyond the protobuf decode happens here.
package realtime

import "sync"

// VehiclePosition is one decoded realtime vehicle record.
type VehiclePosition struct {
	ID        string  `json:"id"`
	TripID    string  `json:"tripId,omitempty"`
	RouteID   string  `json:"routeId,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Bearing   float64 `json:"bearing"`
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

// Store holds the latest vehicle positions in a thread-safe manner.
type Store struct {
	mu       sync.RWMutex
	vehicles []VehiclePosition
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// SetVehicles replaces all vehicle positions.
func (s *Store) SetVehicles(vehicles []VehiclePosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles = vehicles
}

// All returns a copy of the current vehicle positions.
func (s *Store) All() []VehiclePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VehiclePosition, len(s.vehicles))
	copy(out, s.vehicles)
	return out
}

// ByRoute returns vehicles currently assigned to the given route.
func (s *Store) ByRoute(routeID string) []VehiclePosition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []VehiclePosition
	for _, v := range s.vehicles {
		if v.RouteID == routeID {
			result = append(result, v)
		}
	}
	return result
}
