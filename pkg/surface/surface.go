// Package surface describes the interactive map the layers draw on.
// The tile renderer, projection and marker clustering internals belong to the
// surface; layers only add and remove layers, create markers and swap icons.
package surface

import (
	"errors"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/models"
)

// ErrUnavailable is returned when the surface cannot provide a layer type
var ErrUnavailable = errors.New("surface: layer type unavailable")

// Layer is anything that can be attached to a surface
type Layer interface {
	LayerID() string
}

// Marker is a single positioned icon on the surface. A marker outside any
// cluster group can be attached directly.
type Marker interface {
	Layer
	Position() models.Location
	Icon() *icons.Descriptor
	// SetIcon swaps the icon in place without detaching the marker
	SetIcon(icon *icons.Descriptor)
	OnClick(fn func())
	OnHover(fn func(over bool))
	BindPopup(content string)
	OpenPopup()
	ClosePopup()
}

// ClusterOptions configure a cluster group
type ClusterOptions struct {
	// MaxClusterRadius is the pixel distance below which markers merge
	MaxClusterRadius int
	// DisableClusteringAtZoom shows every marker individually at and above this zoom. Zero keeps clustering at all zooms.
	DisableClusteringAtZoom int
	SpiderfyOnMaxZoom       bool
	ShowCoverageOnHover     bool
	// IconCreate draws the aggregate marker for a cluster of count children
	IconCreate func(count int) *icons.Descriptor
}

// ClusterGroup is a layer that merges nearby markers into aggregate markers
type ClusterGroup interface {
	Layer
	// AddLayers adds all markers in one batch
	AddLayers(markers []Marker)
	ClearLayers()
	Len() int
}

// HeatPoint is a weighted sample for the heat layer
type HeatPoint struct {
	Location models.Location
	Weight   float64
}

// HeatOptions configure the heat rasterizer. Radius and Blur must be positive integers.
type HeatOptions struct {
	Radius     int
	Blur       int
	MaxZoom    int
	Max        float64
	MinOpacity float64
	Gradient   map[float64]string
}

// Surface is the map the layers render onto
type Surface interface {
	AddLayer(l Layer)
	RemoveLayer(l Layer)
	HasLayer(l Layer) bool

	NewMarker(loc models.Location, icon *icons.Descriptor) Marker
	NewClusterGroup(opts ClusterOptions) (ClusterGroup, error)
	NewHeatLayer(points []HeatPoint, opts HeatOptions) (Layer, error)

	// FlyTo animates the view to loc at zoom
	FlyTo(loc models.Location, zoom int)
}
