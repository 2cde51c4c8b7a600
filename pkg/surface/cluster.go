package surface

import (
	"math"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/models"
)

const (
	tileSize    = 256
	tolerance   = 0.01
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	maxMercLat  = 85.05112878
)

// Cluster is one aggregate (or single) marker as displayed at a given zoom
type Cluster struct {
	Center  models.Location
	Members []Marker
	Icon    *icons.Descriptor
}

// Count returns the number of markers merged into the cluster
func (c Cluster) Count() int { return len(c.Members) }

// Spread returns the distance in kilometers from the center to the farthest member
func (c Cluster) Spread() float64 {
	var km float64
	for _, m := range c.Members {
		km = math.Max(km, models.Distance(c.Center, m.Position()))
	}
	return km
}

// MemoryClusterGroup is the Memory surface's cluster group
type MemoryClusterGroup struct {
	mu      sync.Mutex
	id      string
	opts    ClusterOptions
	markers []Marker
	batches int
	clears  int
}

func (g *MemoryClusterGroup) LayerID() string { return g.id }

// Options returns the configuration the group was created with
func (g *MemoryClusterGroup) Options() ClusterOptions { return g.opts }

func (g *MemoryClusterGroup) AddLayers(markers []Marker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markers = append(g.markers, markers...)
	g.batches++
}

func (g *MemoryClusterGroup) ClearLayers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markers = nil
	g.clears++
}

func (g *MemoryClusterGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.markers)
}

// Markers returns the markers currently in the group
func (g *MemoryClusterGroup) Markers() []Marker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Marker(nil), g.markers...)
}

// Batches returns how many AddLayers and ClearLayers calls the group received
func (g *MemoryClusterGroup) Batches() (adds, clears int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches, g.clears
}

// spatialMarker wraps a marker's projected pixel position for R-tree indexing
type spatialMarker struct {
	idx  int
	x, y float64
	rect *rtreego.Rect
}

var _ rtreego.Spatial = (*spatialMarker)(nil)

func (sm *spatialMarker) Bounds() *rtreego.Rect {
	return sm.rect
}

// Clusters merges the group's markers as they would appear at zoom.
// Markers are visited in insertion order; each unassigned marker seeds a
// cluster that absorbs every unassigned marker within MaxClusterRadius pixels.
func (g *MemoryClusterGroup) Clusters(zoom int) []Cluster {
	markers := g.Markers()
	if len(markers) == 0 {
		return nil
	}

	if !g.clusteringActive(zoom) {
		clusters := make([]Cluster, len(markers))
		for i, m := range markers {
			clusters[i] = Cluster{Center: m.Position(), Members: []Marker{m}, Icon: m.Icon()}
		}
		return clusters
	}

	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	items := make([]*spatialMarker, len(markers))
	for i, m := range markers {
		x, y := Project(m.Position(), zoom)
		item := &spatialMarker{idx: i, x: x, y: y, rect: rtreego.Point{x, y}.ToRect(tolerance)}
		items[i] = item
		tree.Insert(item)
	}

	radius := float64(g.opts.MaxClusterRadius)
	assigned := make([]bool, len(markers))
	var clusters []Cluster

	for _, seed := range items {
		if assigned[seed.idx] {
			continue
		}
		assigned[seed.idx] = true
		members := []int{seed.idx}

		if radius > 0 {
			bounds, err := rtreego.NewRect(rtreego.Point{seed.x - radius, seed.y - radius}, []float64{2 * radius, 2 * radius})
			if err == nil {
				for _, result := range tree.SearchIntersect(bounds) {
					item, ok := result.(*spatialMarker)
					if !ok || assigned[item.idx] {
						continue
					}
					if math.Hypot(item.x-seed.x, item.y-seed.y) <= radius {
						assigned[item.idx] = true
						members = append(members, item.idx)
					}
				}
			}
		}

		clusters = append(clusters, g.buildCluster(markers, members))
	}

	return clusters
}

func (g *MemoryClusterGroup) clusteringActive(zoom int) bool {
	return g.opts.DisableClusteringAtZoom <= 0 || zoom < g.opts.DisableClusteringAtZoom
}

func (g *MemoryClusterGroup) buildCluster(markers []Marker, members []int) Cluster {
	if len(members) == 1 {
		m := markers[members[0]]
		return Cluster{Center: m.Position(), Members: []Marker{m}, Icon: m.Icon()}
	}

	var lat, lon float64
	group := make([]Marker, len(members))
	for i, idx := range members {
		group[i] = markers[idx]
		lat += markers[idx].Position().Lat
		lon += markers[idx].Position().Lon
	}
	n := float64(len(members))

	var icon *icons.Descriptor
	if g.opts.IconCreate != nil {
		icon = g.opts.IconCreate(len(members))
	}
	return Cluster{
		Center:  models.Location{Lat: lat / n, Lon: lon / n},
		Members: group,
		Icon:    icon,
	}
}

// Project converts a location to Web Mercator world pixel coordinates at zoom
func Project(loc models.Location, zoom int) (x, y float64) {
	worldSize := tileSize * math.Exp2(float64(zoom))
	lat := math.Max(-maxMercLat, math.Min(maxMercLat, loc.Lat))
	sinLat := math.Sin(lat * math.Pi / 180)

	x = (loc.Lon + 180) / 360 * worldSize
	y = (0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)) * worldSize
	return x, y
}
