package models

import (
	"fmt"
	"math"
)

const earthRadius = 6371.0 // km

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both coordinates are finite and inside the WGS84 range
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || math.IsNaN(l.Lon) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

func (l Location) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", l.Lat, l.Lon)
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// GeoEntity is anything the map can place a marker for.
// Entities are created and owned by the caller; the map only renders snapshots.
type GeoEntity interface {
	EntityID() string
	Position() Location
	VisualType() string
}

// Distance returns the great-circle distance between a and b in kilometers
func Distance(a, b Location) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	h := haversin(lat2-lat1) + math.Cos(lat1)*math.Cos(lat2)*haversin(radians(b.Lon-a.Lon))
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func haversin(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}
