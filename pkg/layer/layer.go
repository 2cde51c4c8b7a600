// Package layer keeps one class of map entities in sync with a cluster group.
//
// Each external trigger maps to its own phase so that the cost of an update
// follows what actually changed:
//
//	Mount       create the cluster group (once per layer lifetime)
//	SetHidden   attach or detach the built group, O(1)
//	SetEntities rebuild every marker from a new snapshot, O(n) marker builds
//	SetState    swap icons in place when the cosmetic state changes, O(n) cache hits
//	Close       detach and release everything
//
// Phases of one layer are serialized by a mutex; different layers are independent.
package layer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kass/civicmap/pkg/callback"
	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/metrics"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

// ErrDisabled is returned by Mount when the layer could not be constructed.
// A disabled layer ignores every later phase and never shows markers.
var ErrDisabled = errors.New("layer disabled")

// Kind describes how one entity class is clustered and drawn.
// S is the cosmetic state icons are chosen from (zoom bucket, badge counts).
type Kind[E models.GeoEntity, S any] struct {
	Name    string
	Cluster surface.ClusterOptions

	// Include filters entities out of the layer; nil keeps everything
	Include func(e E) bool
	// Icon returns the descriptor for e in state s. It must be served from the icon cache.
	Icon func(e E, s S) *icons.Descriptor
	// SameState reports whether two states draw identical icons.
	// The new state is kept either way so popups read current values.
	SameState func(a, b S) bool
	// Popup renders hover content; nil disables popups
	Popup func(e E, s S) string
	// StateForZoom derives the next state from a raw zoom level; nil makes the layer ignore zoom
	StateForZoom func(zoom int, current S) S
}

// Options configure a Layer
type Options[S any] struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Hidden is the visibility the group is mounted with
	Hidden bool
	// State is the cosmetic state used until the first SetState or OnZoom
	State S
}

// Stats counts the work each phase has done
type Stats struct {
	Mounts           int
	Toggles          int
	Resyncs          int
	Refreshes        int
	SkippedRefreshes int
	IconSwaps        int
	SkippedEntities  int
}

// Snapshot is a copy of a layer's render state.
// Markers[i] always represents Entities[i].
type Snapshot[E models.GeoEntity, S any] struct {
	Mounted  bool
	Disabled bool
	Hidden   bool
	State    S
	Group    surface.ClusterGroup
	Markers  []surface.Marker
	Entities []E
}

// Layer owns one cluster group and the markers built for the current snapshot
type Layer[E models.GeoEntity, S any] struct {
	mu      sync.Mutex
	kind    Kind[E, S]
	surface surface.Surface
	log     zerolog.Logger
	metrics *metrics.Metrics

	onClick   callback.Ref[E]
	stateView atomic.Pointer[S]

	group    surface.ClusterGroup
	disabled bool
	closed   bool
	hidden   bool
	markers  []surface.Marker
	rendered []E
	state    S
	stats    Stats
}

// New creates an unmounted layer drawing kind onto surf
func New[E models.GeoEntity, S any](kind Kind[E, S], surf surface.Surface, opts Options[S]) *Layer[E, S] {
	l := &Layer[E, S]{
		kind:    kind,
		surface: surf,
		log:     opts.Logger.With().Str("layer", kind.Name).Logger(),
		metrics: opts.Metrics,
		hidden:  opts.Hidden,
		state:   opts.State,
	}
	state := opts.State
	l.stateView.Store(&state)
	return l
}

// Name returns the kind name the layer was built for
func (l *Layer[E, S]) Name() string {
	return l.kind.Name
}

// SetOnClick replaces the entity click handler. Markers look the handler up
// on every click, so markers built before this call use the new handler too.
func (l *Layer[E, S]) SetOnClick(fn func(E)) {
	l.onClick.Set(fn)
}

// Mount creates the cluster group and attaches it unless the layer is hidden.
// It runs at most once; later calls are no-ops. If the surface cannot build the
// group the layer is disabled and the returned error wraps ErrDisabled.
func (l *Layer[E, S]) Mount() (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.disabled {
		return fmt.Errorf("mount %s: %w", l.kind.Name, ErrDisabled)
	}
	if l.group != nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			l.teardownLocked()
			l.disabled = true
			err = fmt.Errorf("mount %s: panic %v: %w", l.kind.Name, r, ErrDisabled)
			l.log.Warn().Interface("panic", r).Msg("cluster group setup panicked; layer disabled")
		}
	}()

	opts := l.kind.Cluster
	group, err := l.surface.NewClusterGroup(opts)
	if err != nil || group == nil {
		l.disabled = true
		l.log.Warn().Err(err).Msg("cluster group unavailable; layer disabled")
		if err == nil {
			err = surface.ErrUnavailable
		}
		return fmt.Errorf("mount %s: %v: %w", l.kind.Name, err, ErrDisabled)
	}
	l.group = group
	if !l.hidden {
		l.surface.AddLayer(group)
	}

	l.stats.Mounts++
	l.metrics.IncPhase(l.kind.Name, "mount")
	l.log.Debug().Bool("hidden", l.hidden).Msg("cluster group mounted")
	return nil
}

// SetHidden attaches or detaches the already built group.
// Markers and icons are left untouched.
func (l *Layer[E, S]) SetHidden(hidden bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hidden = hidden
	if l.group == nil {
		return
	}

	attached := l.surface.HasLayer(l.group)
	switch {
	case hidden && attached:
		l.surface.RemoveLayer(l.group)
	case !hidden && !attached:
		l.surface.AddLayer(l.group)
	default:
		return
	}

	l.stats.Toggles++
	l.metrics.IncPhase(l.kind.Name, "visibility")
}

// SetEntities rebuilds every marker from a new snapshot.
// Entities that are filtered out or have invalid geometry are skipped; the
// remaining ones keep their relative order. Icons use the current state, so a
// state change that arrives with new data needs no separate refresh.
func (l *Layer[E, S]) SetEntities(entities []E) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resyncLocked(entities)
}

// SetEntitiesWithState rebuilds every marker for a snapshot that arrives
// together with a new cosmetic state. Icons are built for s directly and no
// refresh pass follows.
func (l *Layer[E, S]) SetEntitiesWithState(entities []E, s S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.storeStateLocked(s)
	l.resyncLocked(entities)
}

func (l *Layer[E, S]) resyncLocked(entities []E) {
	if l.group == nil {
		return
	}
	start := time.Now()

	l.group.ClearLayers()
	l.markers, l.rendered = nil, nil

	markers := make([]surface.Marker, 0, len(entities))
	rendered := make([]E, 0, len(entities))
	skipped := 0

	for i, entity := range entities {
		loc, ok := l.admit(entity)
		if !ok {
			continue
		}
		if !loc.Valid() {
			skipped++
			l.log.Debug().Int("index", i).Str("location", loc.String()).Msg("skipping entity with invalid geometry")
			continue
		}

		marker := l.surface.NewMarker(loc, l.kind.Icon(entity, l.state))
		l.bind(marker, entity)
		markers = append(markers, marker)
		rendered = append(rendered, entity)
	}

	l.group.AddLayers(markers)
	l.markers, l.rendered = markers, rendered

	l.stats.Resyncs++
	l.stats.SkippedEntities += skipped
	l.metrics.IncPhase(l.kind.Name, "resync")
	l.metrics.ObserveResync(l.kind.Name, len(markers), skipped, time.Since(start))
	l.log.Debug().
		Int("entities", len(entities)).
		Int("markers", len(markers)).
		Int("skipped", skipped).
		Dur("took", time.Since(start)).
		Msg("markers rebuilt")
}

// admit applies the kind filter and reads the position. A record that panics
// while being read is treated as malformed and skipped.
func (l *Layer[E, S]) admit(entity E) (loc models.Location, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Debug().Interface("panic", r).Msg("skipping malformed entity")
			ok = false
		}
	}()
	if l.kind.Include != nil && !l.kind.Include(entity) {
		return models.Location{}, false
	}
	return entity.Position(), true
}

func (l *Layer[E, S]) bind(marker surface.Marker, entity E) {
	marker.OnClick(func() {
		l.onClick.Call(entity)
	})
	if l.kind.Popup == nil {
		return
	}
	marker.OnHover(func(over bool) {
		if !over {
			marker.ClosePopup()
			return
		}
		marker.BindPopup(l.kind.Popup(entity, *l.stateView.Load()))
		marker.OpenPopup()
	})
}

// SetState swaps icons in place when s draws differently from the current state.
// An equivalent state does no work at all.
func (l *Layer[E, S]) SetState(s S) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshLocked(s)
}

// OnZoom derives the cosmetic state from a raw zoom level and refreshes if it changed.
// Kinds without StateForZoom ignore zoom entirely.
func (l *Layer[E, S]) OnZoom(zoom int) {
	if l.kind.StateForZoom == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshLocked(l.kind.StateForZoom(zoom, l.state))
}

func (l *Layer[E, S]) refreshLocked(s S) {
	same := l.kind.SameState == nil || l.kind.SameState(l.state, s)
	l.storeStateLocked(s)
	if same {
		l.stats.SkippedRefreshes++
		return
	}
	if l.group == nil {
		return
	}
	for i, marker := range l.markers {
		marker.SetIcon(l.kind.Icon(l.rendered[i], s))
	}

	l.stats.Refreshes++
	l.stats.IconSwaps += len(l.markers)
	l.metrics.IncPhase(l.kind.Name, "refresh")
	l.metrics.AddIconSwaps(l.kind.Name, len(l.markers))
}

func (l *Layer[E, S]) storeStateLocked(s S) {
	l.state = s
	l.stateView.Store(&s)
}

// Close detaches the group from the surface and drops every handle.
// It is safe to call more than once and on a layer that never mounted.
func (l *Layer[E, S]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.teardownLocked()
	l.metrics.IncPhase(l.kind.Name, "teardown")
}

func (l *Layer[E, S]) teardownLocked() {
	group := l.group
	defer func() {
		l.group = nil
		l.markers = nil
		l.rendered = nil
	}()
	if group != nil && l.surface.HasLayer(group) {
		l.surface.RemoveLayer(group)
	}
}

// Snapshot returns a copy of the current render state
func (l *Layer[E, S]) Snapshot() Snapshot[E, S] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot[E, S]{
		Mounted:  l.group != nil,
		Disabled: l.disabled,
		Hidden:   l.hidden,
		State:    l.state,
		Group:    l.group,
		Markers:  append([]surface.Marker(nil), l.markers...),
		Entities: append([]E(nil), l.rendered...),
	}
}

// Stats returns the phase counters
func (l *Layer[E, S]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
