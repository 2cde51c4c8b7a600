// Package mapview composes the entity layers, the heatmap and the viewport
// into one map and routes each property change to the cheapest phase that
// reflects it.
package mapview

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kass/civicmap/pkg/config"
	"github.com/kass/civicmap/pkg/heatmap"
	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/layer"
	"github.com/kass/civicmap/pkg/metrics"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
	"github.com/kass/civicmap/pkg/viewport"
)

// Props is everything the host supplies to the map on each update.
// Entity slices are snapshots: pass a new slice when the data changes.
type Props struct {
	Issues         []*models.Issue
	Organizations  []*models.Organization
	Infrastructure []*models.Infrastructure

	ShowHeatmap        bool
	ShowOrganizations  bool
	ShowInfrastructure bool

	OnIssueClick          func(*models.Issue)
	OnOrganizationClick   func(*models.Organization)
	OnInfrastructureClick func(*models.Infrastructure)
	OnMapClick            func(models.Location)

	UserLocation  *models.Location
	LocateTrigger int64
}

func (p Props) issuesHidden() bool { return p.ShowHeatmap }

func (p Props) organizationsHidden() bool { return !p.ShowOrganizations || p.ShowHeatmap }

func (p Props) infrastructureHidden() bool { return !p.ShowInfrastructure || p.ShowHeatmap }

// Options configure a View
type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Factory is shared across views; nil builds one from the config
	Factory *icons.Factory
}

// View is the map: three clustered entity layers, a heatmap and a viewport
type View struct {
	mu      sync.Mutex
	surface surface.Surface
	log     zerolog.Logger
	factory *icons.Factory

	viewport *viewport.Controller
	issues   *layer.Layer[*models.Issue, bool]
	orgs     *layer.Layer[*models.Organization, layer.Badges]
	infra    *layer.Layer[*models.Infrastructure, struct{}]
	heat     *heatmap.Layer

	userMarker surface.Marker
	userAt     models.Location

	props     Props
	heatShown bool
	mounted   bool
	closed    bool
}

// New builds an unmounted view on surf
func New(surf surface.Surface, cfg config.Config, opts Options) *View {
	log := opts.Logger.With().Str("component", "mapview").Logger()
	f := opts.Factory
	if f == nil {
		f = icons.NewFactory(icons.NewCache(), icons.Options{
			ZoomedOutBelow: cfg.Icons.ZoomedOutBelow,
			BadgeCap:       cfg.Icons.BadgeCap,
		})
		if opts.Metrics != nil {
			f.WithRecorder(opts.Metrics)
		}
	}

	vp := viewport.New(surf, viewport.Options{
		Logger:      opts.Logger,
		InitialZoom: cfg.Viewport.InitialZoom,
		FlyToZoom:   cfg.Viewport.FlyToZoom,
	})
	zoom := vp.Zoom()

	v := &View{
		surface:  surf,
		log:      log,
		factory:  f,
		viewport: vp,
		issues: layer.New(
			layer.IssueKind(f, clustering(cfg.Layers.Issues)), surf,
			layer.Options[bool]{Logger: opts.Logger, Metrics: opts.Metrics, State: f.IsZoomedOut(zoom)},
		),
		orgs: layer.New(
			layer.OrganizationKind(f, clustering(cfg.Layers.Organizations)), surf,
			layer.Options[layer.Badges]{Logger: opts.Logger, Metrics: opts.Metrics},
		),
		infra: layer.New(
			layer.InfrastructureKind(f, clustering(cfg.Layers.Infrastructure)), surf,
			layer.Options[struct{}]{Logger: opts.Logger, Metrics: opts.Metrics},
		),
		heat: heatmap.New(surf, opts.Logger, opts.Metrics),
	}
	vp.Subscribe(viewport.ZoomFunc(v.onZoom))
	return v
}

func clustering(c config.LayerConfig) layer.Clustering {
	return layer.Clustering{Radius: c.ClusterRadius, DisableAt: c.DisableClusteringAtZoom}
}

// Mount creates the three cluster groups with the visibility p implies and
// applies p. A layer that fails to mount stays disabled while the others keep
// working; the returned error joins every failure.
func (v *View) Mount(p Props) error {
	v.mu.Lock()
	err := v.mountLocked(p)
	fly := v.applyLocked(p)
	v.mu.Unlock()

	fly()
	return err
}

func (v *View) mountLocked(p Props) error {
	if v.mounted || v.closed {
		return nil
	}
	v.mounted = true

	// visibility first so groups are attached only when shown
	v.issues.SetHidden(p.issuesHidden())
	v.orgs.SetHidden(p.organizationsHidden())
	v.infra.SetHidden(p.infrastructureHidden())

	var errs []error
	for _, mount := range []func() error{v.issues.Mount, v.orgs.Mount, v.infra.Mount} {
		if err := mount(); err != nil {
			v.log.Warn().Err(err).Msg("layer unavailable")
			errs = append(errs, err)
		}
	}

	v.props.ShowHeatmap = p.ShowHeatmap
	v.props.ShowOrganizations = p.ShowOrganizations
	v.props.ShowInfrastructure = p.ShowInfrastructure
	return errors.Join(errs...)
}

// Apply routes a property update. Entity slices that keep their identity cause
// no rebuild; visibility flags only attach or detach groups; a new issue
// snapshot also refreshes organization badges in place.
func (v *View) Apply(p Props) {
	v.mu.Lock()
	if err := v.mountLocked(p); err != nil {
		v.log.Debug().Err(err).Msg("mounted with degraded layers")
	}
	fly := v.applyLocked(p)
	v.mu.Unlock()

	fly()
}

// applyLocked returns the fly-to request to issue once the lock is released,
// since a surface may report the resulting zoom synchronously.
func (v *View) applyLocked(p Props) (fly func()) {
	fly = func() {}
	if v.closed {
		return fly
	}
	prev := v.props

	v.issues.SetOnClick(p.OnIssueClick)
	v.orgs.SetOnClick(p.OnOrganizationClick)
	v.infra.SetOnClick(p.OnInfrastructureClick)
	v.viewport.SetOnClick(p.OnMapClick)

	if prev.issuesHidden() != p.issuesHidden() {
		v.issues.SetHidden(p.issuesHidden())
	}
	if prev.organizationsHidden() != p.organizationsHidden() {
		v.orgs.SetHidden(p.organizationsHidden())
	}
	if prev.infrastructureHidden() != p.infrastructureHidden() {
		v.infra.SetHidden(p.infrastructureHidden())
	}

	issuesChanged := !sameSnapshot(prev.Issues, p.Issues)
	orgsChanged := !sameSnapshot(prev.Organizations, p.Organizations)
	var badges layer.Badges
	if issuesChanged {
		badges = models.UnresolvedCounts(p.Issues)
		v.issues.SetEntities(p.Issues)
	}
	// new organizations are built with the new badges directly
	switch {
	case orgsChanged && issuesChanged:
		v.orgs.SetEntitiesWithState(p.Organizations, badges)
	case orgsChanged:
		v.orgs.SetEntities(p.Organizations)
	case issuesChanged:
		v.orgs.SetState(badges)
	}
	if !sameSnapshot(prev.Infrastructure, p.Infrastructure) {
		v.infra.SetEntities(p.Infrastructure)
	}

	if v.heatShown != p.ShowHeatmap || (p.ShowHeatmap && issuesChanged) {
		v.heat.Update(p.Issues, p.ShowHeatmap, v.viewport.Zoom())
		v.heatShown = p.ShowHeatmap
	}

	v.syncUserLocationLocked(p.UserLocation)
	if p.UserLocation != nil {
		target, trigger := *p.UserLocation, p.LocateTrigger
		fly = func() { v.viewport.FlyTo(target, trigger) }
	}

	v.props = p
	return fly
}

// sameSnapshot reports whether two slices are the same snapshot
func sameSnapshot[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func (v *View) syncUserLocationLocked(loc *models.Location) {
	if loc != nil && v.userMarker != nil && *loc == v.userAt {
		return
	}
	if v.userMarker != nil {
		v.surface.RemoveLayer(v.userMarker)
		v.userMarker = nil
	}
	if loc == nil || !loc.Valid() {
		return
	}
	v.userMarker = v.surface.NewMarker(*loc, v.factory.UserLocationIcon())
	v.userAt = *loc
	v.surface.AddLayer(v.userMarker)
}

// HandleZoom forwards a zoom event from the surface
func (v *View) HandleZoom(zoom int) {
	v.viewport.HandleZoom(zoom)
}

// HandleClick forwards a map click from the surface
func (v *View) HandleClick(loc models.Location) {
	v.viewport.HandleClick(loc)
}

func (v *View) onZoom(zoom int) {
	v.issues.OnZoom(zoom)
	v.orgs.OnZoom(zoom)
	v.infra.OnZoom(zoom)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || !v.heatShown {
		return
	}
	v.heat.Update(v.props.Issues, true, zoom)
}

// Close tears down every layer. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true

	v.issues.Close()
	v.orgs.Close()
	v.infra.Close()
	v.heat.Close()
	if v.userMarker != nil {
		v.surface.RemoveLayer(v.userMarker)
		v.userMarker = nil
	}
	v.log.Debug().Msg("map closed")
}

func (v *View) Viewport() *viewport.Controller { return v.viewport }

func (v *View) Factory() *icons.Factory { return v.factory }

func (v *View) Issues() *layer.Layer[*models.Issue, bool] { return v.issues }

func (v *View) Organizations() *layer.Layer[*models.Organization, layer.Badges] { return v.orgs }

func (v *View) Infrastructure() *layer.Layer[*models.Infrastructure, struct{}] { return v.infra }

func (v *View) Heatmap() *heatmap.Layer { return v.heat }
