// Package route replays a precomputed ambulance route.
//
// Routes come from the backend as ordered [lat, lng] pairs. The package
// subsamples long routes, falls back to a straight line when no usable route
// exists, and drives a Tracker that steps along the anchors at a fixed
// cadence while interpolating position and heading between them.
//
// Geometry is plain spherical math: haversine distance on a 6371 km sphere
// and a flat atan2 heading, which is what the map marker needs.
package route
