package geo

import (
	"encoding/json"
	"fmt"
)

// Point is a WGS84 coordinate. It marshals as a [lng, lat] JSON array,
// the order map frontends expect for path geometries.
type Point struct {
	Lng float64
	Lat float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lng, p.Lat})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point must be a [lng, lat] array: %w", err)
	}
	p.Lng = pair[0]
	p.Lat = pair[1]
	return nil
}
