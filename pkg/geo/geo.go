// Package geo validates best-effort geolocation payloads supplied by
// clients alongside workflow events. Coordinates are optional; an invalid
// payload is dropped rather than failing the business transition.
package geo

// Point is a client-reported location fix.
type Point struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Accuracy float64 `json:"accuracy"`
}

// Valid reports whether the point holds plausible WGS84 coordinates.
func (p Point) Valid() bool {
	if p.Lat < -90 || p.Lat > 90 {
		return false
	}
	if p.Lon < -180 || p.Lon > 180 {
		return false
	}
	return p.Accuracy >= 0
}

// Sanitize returns the point when valid, nil otherwise.
func Sanitize(p *Point) *Point {
	if p == nil || !p.Valid() {
		return nil
	}
	return p
}
