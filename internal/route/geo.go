package route

import (
	"encoding/json"
	"fmt"
	"math"
)

// EarthRadiusKm is the sphere radius used by Haversine.
const EarthRadiusKm = 6371.0

// DefaultSpeedKmh is assumed when no positive speed is known.
const DefaultSpeedKmh = 45.0

// DefaultMaxPoints caps the number of anchors kept by Subsample.
const DefaultMaxPoints = 120

// headingEpsilon is the smallest coordinate change, in degrees, that
// updates the heading.
const headingEpsilon = 0.00001

// Point is a coordinate in degrees. It encodes as a [lat, lng] JSON array.
type Point struct {
	Lat float64
	Lng float64
}

// MarshalJSON encodes the point as [lat, lng].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON decodes a [lat, lng] array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point: want [lat, lng], got %d values", len(pair))
	}
	p.Lat, p.Lng = pair[0], pair[1]
	return nil
}

// String formats the point for logs and CLI output.
func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Haversine returns the great-circle distance between a and b in km.
func Haversine(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// ETAMinutes returns the rounded travel time in minutes for distKm at
// speedKmh. A non-positive speed uses DefaultSpeedKmh.
func ETAMinutes(distKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(math.Round(distKm / speedKmh * 60))
}

// Heading returns the marker rotation in degrees for a move from one point
// to another: atan2(dLng, dLat), so 0 is north and 90 is east. Moves
// smaller than 1e-5 degrees on both axes return prev unchanged.
func Heading(from, to Point, prev float64) float64 {
	dLat := to.Lat - from.Lat
	dLng := to.Lng - from.Lng
	if math.Abs(dLat) <= headingEpsilon && math.Abs(dLng) <= headingEpsilon {
		return prev
	}
	return math.Atan2(dLng, dLat) * 180 / math.Pi
}

// Interpolate returns the linear blend of a and b. progress is clamped to
// [0, 1].
func Interpolate(a, b Point, progress float64) Point {
	switch {
	case progress <= 0 || math.IsNaN(progress):
		return a
	case progress >= 1:
		return b
	}
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*progress,
		Lng: a.Lng + (b.Lng-a.Lng)*progress,
	}
}

// PathLengthKm sums the haversine length of consecutive segments.
func PathLengthKm(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}
