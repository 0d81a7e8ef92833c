// Package polyline implements the compact coordinate encoding used by
// the routing service: per-axis deltas, zig-zag signed, emitted as 5-bit
// chunks offset into printable characters.
package polyline

import (
	"math"
	"strings"

	"transitmap/internal/geo"
)

// Decode turns an encoded polyline into ordered points. Each encoded pair
// is latitude first, then longitude; the result carries standard lng/lat
// points in encoding order.
func Decode(encoded string) []geo.Point {
	var points []geo.Point
	var lat, lng int
	i := 0

	for i < len(encoded) {
		dLat, next, ok := decodeDelta(encoded, i)
		if !ok {
			break
		}
		i = next
		dLng, next, ok := decodeDelta(encoded, i)
		if !ok {
			break
		}
		i = next

		lat += dLat
		lng += dLng
		points = append(points, geo.Point{
			Lng: float64(lng) / 1e5,
			Lat: float64(lat) / 1e5,
		})
	}
	return points
}

// decodeDelta reads one zig-zag encoded value starting at i.
// Returns the delta, the next index, and whether a full value was present.
func decodeDelta(encoded string, i int) (delta, next int, ok bool) {
	var result, shift int
	for {
		if i >= len(encoded) {
			return 0, i, false
		}
		chunk := int(encoded[i]) - 63
		i++
		result |= (chunk & 0x1F) << shift
		shift += 5
		if chunk < 0x20 {
			break
		}
	}
	if result&1 == 1 {
		return ^(result >> 1), i, true
	}
	return result >> 1, i, true
}

// Encode is the exact inverse of Decode.
func Encode(points []geo.Point) string {
	var sb strings.Builder
	var prevLat, prevLng int

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))

		encodeDelta(&sb, lat-prevLat)
		encodeDelta(&sb, lng-prevLng)

		prevLat = lat
		prevLng = lng
	}
	return sb.String()
}

func encodeDelta(sb *strings.Builder, delta int) {
	value := delta << 1
	if delta < 0 {
		value = ^value
	}
	for value >= 0x20 {
		sb.WriteByte(byte((value&0x1F)|0x20) + 63)
		value >>= 5
	}
	sb.WriteByte(byte(value) + 63)
}
