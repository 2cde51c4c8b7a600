package mapview

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/civicmap/pkg/config"
	"github.com/kass/civicmap/pkg/heatmap"
	"github.com/kass/civicmap/pkg/layer"
	"github.com/kass/civicmap/pkg/metrics"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

var tashkent = models.Location{Lat: 41.2995, Lon: 69.2401}

func makeIssues(n int) []*models.Issue {
	out := make([]*models.Issue, n)
	for i := range out {
		out[i] = &models.Issue{
			ID:       fmt.Sprintf("i%d", i),
			Location: models.Location{Lat: tashkent.Lat + float64(i%100)*0.001, Lon: tashkent.Lon + float64(i/100)*0.001},
			Category: models.Categories[i%len(models.Categories)],
			Severity: models.SeverityHigh,
			Status:   models.StatusOpen,
		}
	}
	return out
}

func newView(t *testing.T, surf surface.Surface) *View {
	t.Helper()
	v := New(surf, config.Default(), Options{Logger: zerolog.Nop()})
	t.Cleanup(v.Close)
	return v
}

func TestMountAttachesVisibleGroups(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)

	require.NoError(t, v.Mount(Props{ShowOrganizations: true}))

	assert.Equal(t, 3, surf.Counters().ClusterGroups)
	assert.True(t, surf.HasLayer(v.Issues().Snapshot().Group))
	assert.True(t, surf.HasLayer(v.Organizations().Snapshot().Group))
	assert.False(t, surf.HasLayer(v.Infrastructure().Snapshot().Group))
	assert.Zero(t, v.Issues().Stats().Toggles)
}

func TestMountReportsDisabledLayers(t *testing.T) {
	surf := surface.NewMemory(surface.WithClusterGroupError(errors.New("no cluster plugin")))
	v := newView(t, surf)

	err := v.Mount(Props{Issues: makeIssues(3), ShowHeatmap: true})
	require.ErrorIs(t, err, layer.ErrDisabled)

	// the heatmap still works without cluster groups
	assert.NotNil(t, v.Heatmap().Current())
	assert.True(t, v.Issues().Snapshot().Disabled)
}

func TestHiddenFlags(t *testing.T) {
	tests := []struct {
		name                         string
		props                        Props
		issues, orgs, infrastructure bool
	}{
		{"defaults", Props{}, false, true, true},
		{"all shown", Props{ShowOrganizations: true, ShowInfrastructure: true}, false, false, false},
		{"heatmap hides everything", Props{ShowHeatmap: true, ShowOrganizations: true, ShowInfrastructure: true}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surf := surface.NewMemory()
			v := newView(t, surf)
			require.NoError(t, v.Mount(tt.props))

			assert.Equal(t, tt.issues, v.Issues().Snapshot().Hidden)
			assert.Equal(t, tt.orgs, v.Organizations().Snapshot().Hidden)
			assert.Equal(t, tt.infrastructure, v.Infrastructure().Snapshot().Hidden)
		})
	}
}

func TestToggleDoesNotRebuild(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	p := Props{Issues: makeIssues(200), ShowOrganizations: true}
	require.NoError(t, v.Mount(p))

	built := surf.Counters().Markers
	lookups := v.Factory().Lookups()

	for i := 0; i < 5; i++ {
		p.ShowHeatmap = !p.ShowHeatmap
		v.Apply(p)
	}

	assert.Equal(t, 1, v.Issues().Stats().Resyncs)
	assert.Equal(t, 5, v.Issues().Stats().Toggles)
	assert.Equal(t, built, surf.Counters().Markers)
	assert.Equal(t, lookups, v.Factory().Lookups())
	assert.True(t, v.Issues().Snapshot().Hidden)
	assert.NotNil(t, v.Heatmap().Current())
}

func TestZoomBucketChangeRefreshesInPlace(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)

	v.HandleZoom(16)
	require.NoError(t, v.Mount(Props{Issues: makeIssues(3)}))
	require.False(t, v.Issues().Snapshot().State)

	before := v.Factory().Lookups()
	v.HandleZoom(10)

	stats := v.Issues().Stats()
	assert.Equal(t, 1, stats.Refreshes)
	assert.Equal(t, 1, stats.Resyncs)
	assert.Equal(t, int64(3), v.Factory().Lookups()-before)
	assert.Len(t, v.Issues().Snapshot().Markers, 3)

	// another zoom inside the same bucket does nothing
	v.HandleZoom(12)
	assert.Equal(t, 1, v.Issues().Stats().Refreshes)
	assert.Equal(t, int64(3), v.Factory().Lookups()-before)
}

func TestLargeSnapshotResyncsOnce(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	require.NoError(t, v.Mount(Props{Issues: []*models.Issue{}}))

	issues := makeIssues(5000)
	v.Apply(Props{Issues: issues})

	snap := v.Issues().Snapshot()
	assert.Equal(t, 1, v.Issues().Stats().Resyncs)
	require.Len(t, snap.Markers, 5000)
	for i := range issues {
		require.Same(t, issues[i], snap.Entities[i])
		require.Equal(t, issues[i].Location, snap.Markers[i].Position())
	}
}

func TestSameSnapshotIsNotRebuilt(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	issues := makeIssues(10)
	require.NoError(t, v.Mount(Props{Issues: issues}))

	v.Apply(Props{Issues: issues})
	v.Apply(Props{Issues: issues, OnIssueClick: func(*models.Issue) {}})
	assert.Equal(t, 1, v.Issues().Stats().Resyncs)

	// same contents in a new slice is a new snapshot
	v.Apply(Props{Issues: append([]*models.Issue(nil), issues...)})
	assert.Equal(t, 2, v.Issues().Stats().Resyncs)
}

func TestIssueChangeUpdatesOrganizationBadges(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)

	orgs := []*models.Organization{
		{ID: "school", Name: "School #4", Type: models.CategoryEducation, Location: tashkent},
	}
	issues := makeIssues(4)
	issues[0].OrganizationID = "school"
	issues[1].OrganizationID = "school"
	issues[2].OrganizationID = "school"
	issues[2].Status = models.StatusResolved

	require.NoError(t, v.Mount(Props{Issues: issues, Organizations: orgs, ShowOrganizations: true}))

	org := v.Organizations().Snapshot()
	assert.Equal(t, layer.Badges{"school": 2}, org.State)
	assert.Same(t, v.Factory().OrganizationIcon(models.CategoryEducation, 2), org.Markers[0].Icon())
	assert.Equal(t, 1, v.Organizations().Stats().Resyncs)

	// issues with an organization are drawn by the organization, not the issue layer
	assert.Len(t, v.Issues().Snapshot().Markers, 1)

	next := append([]*models.Issue(nil), issues...)
	next = append(next, &models.Issue{ID: "x", Location: tashkent, OrganizationID: "school"})
	v.Apply(Props{Issues: next, Organizations: orgs, ShowOrganizations: true})

	assert.Equal(t, 1, v.Organizations().Stats().Resyncs)
	assert.Equal(t, layer.Badges{"school": 3}, v.Organizations().Snapshot().State)
	assert.Same(t, org.Markers[0], v.Organizations().Snapshot().Markers[0])
}

func TestOrganizationsBuiltWithFreshBadges(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)

	makeOrgs := func(n int) []*models.Organization {
		out := make([]*models.Organization, n)
		for i := range out {
			out[i] = &models.Organization{
				ID:       fmt.Sprintf("o%d", i),
				Type:     models.CategoryEducation,
				Location: models.Location{Lat: tashkent.Lat + float64(i%100)*0.001, Lon: tashkent.Lon + float64(i/100)*0.001},
			}
		}
		return out
	}
	attached := func(n int) []*models.Issue {
		out := makeIssues(n)
		for _, i := range out {
			i.OrganizationID = "o1"
		}
		return out
	}

	require.NoError(t, v.Mount(Props{Issues: attached(10), Organizations: makeOrgs(1000), ShowOrganizations: true}))

	stats := v.Organizations().Stats()
	assert.Equal(t, 1, stats.Resyncs)
	assert.Zero(t, stats.Refreshes)
	assert.Zero(t, stats.IconSwaps)
	assert.Equal(t, int64(1000), v.Factory().Lookups())
	assert.Same(t, v.Factory().OrganizationIcon(models.CategoryEducation, 10), v.Organizations().Snapshot().Markers[1].Icon())

	// replacing both snapshots again rebuilds once with the new counts
	before := v.Factory().Lookups()
	v.Apply(Props{Issues: attached(12), Organizations: makeOrgs(1000), ShowOrganizations: true})

	stats = v.Organizations().Stats()
	assert.Equal(t, 2, stats.Resyncs)
	assert.Zero(t, stats.Refreshes)
	assert.Equal(t, int64(1000), v.Factory().Lookups()-before)
	assert.Equal(t, layer.Badges{"o1": 12}, v.Organizations().Snapshot().State)
}

func TestClickCallbacksStayCurrent(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	issues := makeIssues(1)

	var got []string
	require.NoError(t, v.Mount(Props{Issues: issues, OnIssueClick: func(i *models.Issue) { got = append(got, "a:"+i.ID) }}))
	v.Apply(Props{Issues: issues, OnIssueClick: func(i *models.Issue) { got = append(got, "b:"+i.ID) }})

	marker := v.Issues().Snapshot().Markers[0].(*surface.MemoryMarker)
	marker.Click()
	assert.Equal(t, []string{"b:i0"}, got)

	var clicked []models.Location
	v.Apply(Props{Issues: issues, OnMapClick: func(loc models.Location) { clicked = append(clicked, loc) }})
	v.HandleClick(tashkent)
	assert.Equal(t, []models.Location{tashkent}, clicked)
}

func TestLocateTrigger(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	here := tashkent

	require.NoError(t, v.Mount(Props{UserLocation: &here}))
	assert.Empty(t, surf.Flights())

	v.Apply(Props{UserLocation: &here, LocateTrigger: 1})
	v.Apply(Props{UserLocation: &here, LocateTrigger: 1})
	v.Apply(Props{UserLocation: &here, LocateTrigger: 2})

	flights := surf.Flights()
	require.Len(t, flights, 2)
	assert.Equal(t, surface.Flight{Target: here, Zoom: 16}, flights[1])
}

func TestUserLocationMarker(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	require.NoError(t, v.Mount(Props{}))
	base := len(surf.Layers())

	here := tashkent
	v.Apply(Props{UserLocation: &here})
	v.Apply(Props{UserLocation: &here})
	assert.Len(t, surf.Layers(), base+1)

	moved := models.Location{Lat: 39.6542, Lon: 66.9597}
	v.Apply(Props{UserLocation: &moved})
	layers := surf.Layers()
	require.Len(t, layers, base+1)
	marker := layers[len(layers)-1].(*surface.MemoryMarker)
	assert.Equal(t, moved, marker.Position())

	v.Apply(Props{})
	assert.Len(t, surf.Layers(), base)
}

func TestHeatmapFollowsZoomAndData(t *testing.T) {
	surf := surface.NewMemory()
	m := metrics.New()
	v := New(surf, config.Default(), Options{Logger: zerolog.Nop(), Metrics: m})
	t.Cleanup(v.Close)

	issues := makeIssues(20)
	require.NoError(t, v.Mount(Props{Issues: issues, ShowHeatmap: true}))
	first := v.Heatmap().Current().(*surface.HeatLayer)
	assert.Equal(t, heatmap.ParamsFor(13).Radius, first.Options.Radius)
	assert.Len(t, first.Points, 20)

	v.HandleZoom(17)
	second := v.Heatmap().Current().(*surface.HeatLayer)
	assert.Equal(t, heatmap.ParamsFor(17).Radius, second.Options.Radius)

	v.Apply(Props{Issues: issues[:5], ShowHeatmap: true})
	assert.Len(t, v.Heatmap().Current().(*surface.HeatLayer).Points, 5)

	v.Apply(Props{Issues: issues[:5]})
	assert.Nil(t, v.Heatmap().Current())

	// hidden heatmap ignores zoom
	heatLayers := surf.Counters().HeatLayers
	v.HandleZoom(12)
	assert.Equal(t, heatLayers, surf.Counters().HeatLayers)
}

func TestCloseRemovesEverything(t *testing.T) {
	surf := surface.NewMemory()
	v := newView(t, surf)
	here := tashkent
	require.NoError(t, v.Mount(Props{
		Issues:             makeIssues(5),
		ShowOrganizations:  true,
		ShowInfrastructure: true,
		UserLocation:       &here,
	}))
	require.NotEmpty(t, surf.Layers())

	v.Close()
	v.Close()
	assert.Empty(t, surf.Layers())

	v.Apply(Props{Issues: makeIssues(2), ShowHeatmap: true})
	v.HandleZoom(3)
	assert.Empty(t, surf.Layers())
}
