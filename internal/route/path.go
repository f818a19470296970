package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Subsample keeps every ceil(n/max)-th point of path and always keeps the
// last point. Paths with at most max points are returned as a copy.
// A non-positive max uses DefaultMaxPoints.
func Subsample(path []Point, max int) []Point {
	if max <= 0 {
		max = DefaultMaxPoints
	}
	n := len(path)
	if n <= max {
		out := make([]Point, n)
		copy(out, path)
		return out
	}

	step := (n + max - 1) / max
	out := make([]Point, 0, max+1)
	for i := 0; i < n; i += step {
		out = append(out, path[i])
	}
	if (n-1)%step != 0 {
		out = append(out, path[n-1])
	}
	return out
}

// PlanPath returns the anchors to replay. A route with fewer than two
// points is degenerate and replaced by the straight line [start, dest].
func PlanPath(route []Point, start, dest Point) []Point {
	if len(route) < 2 {
		return []Point{start, dest}
	}
	out := make([]Point, len(route))
	copy(out, route)
	return out
}

// FromPairs converts backend [lat, lng] pairs to points.
func FromPairs(pairs [][2]float64) []Point {
	out := make([]Point, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Point{Lat: p[0], Lng: p[1]})
	}
	return out
}

// LoadPath reads a route from JSON. Accepted shapes are a bare array of
// [lat, lng] pairs and an object carrying them in "routeCoordinates", as
// returned by the nearest-hospital endpoint.
func LoadPath(r io.Reader) ([]Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read route: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read route: empty input")
	}

	if data[0] == '[' {
		var path []Point
		if err := json.Unmarshal(data, &path); err != nil {
			return nil, fmt.Errorf("parse route: %w", err)
		}
		return path, nil
	}

	var wrapped struct {
		RouteCoordinates []Point `json:"routeCoordinates"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse route: %w", err)
	}
	if wrapped.RouteCoordinates == nil {
		return []Point{}, nil
	}
	return wrapped.RouteCoordinates, nil
}
