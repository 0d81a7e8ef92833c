package routes

import "transitmap/internal/geo"

// StopRecord is one parsed stop with usable coordinates. Records are
// rebuilt on every compile pass; callers own the returned slices.
type StopRecord struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Code    string  `json:"code,omitempty"`
	RouteID string  `json:"routeId,omitempty"` // set for rail-type stops only
}

// TripRouteRecord is the ordered geometry of one trip. Path always holds
// at least two points; Timestamps runs parallel to Path and is a synthetic
// animation hint, not a measured schedule.
type TripRouteRecord struct {
	TripID     string      `json:"tripId"`
	RouteID    string      `json:"routeId,omitempty"`
	Path       []geo.Point `json:"path"`
	Timestamps []int64     `json:"timestamps"`
}
