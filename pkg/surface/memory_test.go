package surface

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerAttachDetach(t *testing.T) {
	m := NewMemory()
	group, err := m.NewClusterGroup(ClusterOptions{MaxClusterRadius: 60})
	require.NoError(t, err)

	assert.False(t, m.HasLayer(group))
	m.AddLayer(group)
	m.AddLayer(group)
	assert.True(t, m.HasLayer(group))
	assert.Len(t, m.Layers(), 1)

	m.RemoveLayer(group)
	m.RemoveLayer(group)
	assert.False(t, m.HasLayer(group))

	c := m.Counters()
	assert.Equal(t, 1, c.LayerAdds)
	assert.Equal(t, 1, c.LayerRemoves)
	assert.Equal(t, 1, c.ClusterGroups)
}

func TestClusterGroupError(t *testing.T) {
	boom := errors.New("plugin missing")
	m := NewMemory(WithClusterGroupError(boom))

	group, err := m.NewClusterGroup(ClusterOptions{})
	assert.Nil(t, group)
	assert.ErrorIs(t, err, boom)
}

func TestMarkerInteractions(t *testing.T) {
	m := NewMemory()
	icon := &icons.Descriptor{Markup: "a"}
	marker := m.NewMarker(models.Location{Lat: 41, Lon: 69}, icon).(*MemoryMarker)

	clicks := 0
	marker.OnClick(func() { clicks++ })
	marker.Click()
	assert.Equal(t, 1, clicks)

	marker.BindPopup("<b>School 4</b>")
	marker.OnHover(func(over bool) {
		if over {
			marker.OpenPopup()
		} else {
			marker.ClosePopup()
		}
	})
	marker.Hover(true)
	content, open := marker.Popup()
	assert.Equal(t, "<b>School 4</b>", content)
	assert.True(t, open)
	marker.Hover(false)
	_, open = marker.Popup()
	assert.False(t, open)

	next := &icons.Descriptor{Markup: "b"}
	marker.SetIcon(next)
	assert.Same(t, next, marker.Icon())
	assert.Equal(t, 1, marker.IconSwaps())
}

func TestHeatLayer(t *testing.T) {
	m := NewMemory()
	points := []HeatPoint{{Location: models.Location{Lat: 41, Lon: 69}, Weight: 10}}

	layer, err := m.NewHeatLayer(points, HeatOptions{Radius: 25, Blur: 19})
	require.NoError(t, err)
	heat := layer.(*HeatLayer)
	assert.Len(t, heat.Points, 1)

	_, err = m.NewHeatLayer(points, HeatOptions{Radius: 0, Blur: 10})
	assert.Error(t, err)

	_, err = m.NewHeatLayer(nil, HeatOptions{Radius: 25, Blur: 19})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHeatLayerRasterizerPanic(t *testing.T) {
	m := NewMemory(WithHeatRasterizer(func([]HeatPoint, HeatOptions) error {
		panic("canvas width is 0")
	}))
	points := []HeatPoint{{Location: models.Location{Lat: 41, Lon: 69}, Weight: 10}}

	var layer Layer
	var err error
	assert.NotPanics(t, func() {
		layer, err = m.NewHeatLayer(points, HeatOptions{Radius: 25, Blur: 19})
	})
	assert.Nil(t, layer)
	assert.Error(t, err)
}

func TestFlights(t *testing.T) {
	m := NewMemory()
	loc := models.Location{Lat: 41.3, Lon: 69.2}
	m.FlyTo(loc, 16)
	m.FlyTo(loc, 16)
	assert.Equal(t, []Flight{{Target: loc, Zoom: 16}, {Target: loc, Zoom: 16}}, m.Flights())
}

func newGroupWith(t *testing.T, m *Memory, opts ClusterOptions, locs []models.Location) *MemoryClusterGroup {
	t.Helper()
	g, err := m.NewClusterGroup(opts)
	require.NoError(t, err)
	markers := make([]Marker, len(locs))
	for i, loc := range locs {
		markers[i] = m.NewMarker(loc, &icons.Descriptor{Markup: fmt.Sprintf("m%d", i)})
	}
	g.AddLayers(markers)
	return g.(*MemoryClusterGroup)
}

func TestClustersMergeNearbyMarkers(t *testing.T) {
	m := NewMemory()
	locs := []models.Location{
		{Lat: 41.3110, Lon: 69.2797}, // Tashkent centre
		{Lat: 41.3115, Lon: 69.2801},
		{Lat: 41.3120, Lon: 69.2790},
		{Lat: 39.6542, Lon: 66.9597}, // Samarkand
	}
	g := newGroupWith(t, m, ClusterOptions{
		MaxClusterRadius: 80,
		IconCreate:       func(count int) *icons.Descriptor { return icons.ClusterIcon(icons.ClusterIssues, count) },
	}, locs)

	clusters := g.Clusters(10)
	require.Len(t, clusters, 2)
	assert.Equal(t, 3, clusters[0].Count())
	assert.Equal(t, 1, clusters[1].Count())
	assert.Contains(t, clusters[0].Icon.Markup, ">3</div>")
	assert.Equal(t, "m3", clusters[1].Icon.Markup)
	assert.InDelta(t, 41.3115, clusters[0].Center.Lat, 0.001)

	total := 0
	for _, c := range g.Clusters(3) {
		total += c.Count()
	}
	assert.Equal(t, len(locs), total)
	assert.Len(t, g.Clusters(3), 1)
}

func TestClusterSpread(t *testing.T) {
	m := NewMemory()
	locs := []models.Location{
		{Lat: 41.3110, Lon: 69.2797},
		{Lat: 41.3120, Lon: 69.2790},
		{Lat: 39.6542, Lon: 66.9597},
	}
	g := newGroupWith(t, m, ClusterOptions{MaxClusterRadius: 80}, locs)

	clusters := g.Clusters(10)
	require.Len(t, clusters, 2)
	assert.Greater(t, clusters[0].Spread(), 0.0)
	assert.Less(t, clusters[0].Spread(), 0.2)
	assert.Zero(t, clusters[1].Spread())

	// Samarkand sits roughly 270 km from Tashkent
	all := g.Clusters(3)
	require.Len(t, all, 1)
	assert.InDelta(t, 180, all[0].Spread(), 30)
}

func TestClustersDisabledAtZoom(t *testing.T) {
	m := NewMemory()
	locs := []models.Location{
		{Lat: 41.3110, Lon: 69.2797},
		{Lat: 41.3111, Lon: 69.2798},
	}
	g := newGroupWith(t, m, ClusterOptions{MaxClusterRadius: 80, DisableClusteringAtZoom: 15}, locs)

	assert.Len(t, g.Clusters(14), 1)
	assert.Len(t, g.Clusters(15), 2)
	assert.Len(t, g.Clusters(18), 2)
}

func TestClusterGroupBatches(t *testing.T) {
	m := NewMemory()
	g := newGroupWith(t, m, ClusterOptions{}, []models.Location{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}})
	assert.Equal(t, 2, g.Len())

	g.ClearLayers()
	assert.Equal(t, 0, g.Len())
	assert.Nil(t, g.Clusters(10))

	adds, clears := g.Batches()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 1, clears)
}

func TestProject(t *testing.T) {
	x, y := Project(models.Location{Lat: 0, Lon: 0}, 0)
	assert.InDelta(t, 128, x, 1e-9)
	assert.InDelta(t, 128, y, 1e-9)

	x, y = Project(models.Location{Lat: 0, Lon: 180}, 1)
	assert.InDelta(t, 512, x, 1e-9)
	assert.InDelta(t, 256, y, 1e-9)

	_, north := Project(models.Location{Lat: 90, Lon: 0}, 0)
	assert.InDelta(t, 0, north, 0.01)
}
