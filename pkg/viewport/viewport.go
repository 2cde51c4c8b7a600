// Package viewport tracks the map zoom level and relays view events to layers.
package viewport

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/kass/civicmap/pkg/callback"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

const (
	DefaultInitialZoom = 13
	DefaultFlyToZoom   = 16
)

// ZoomListener receives every zoom change. Listeners derive their own buckets
// from the raw level.
type ZoomListener interface {
	OnZoom(zoom int)
}

// ZoomFunc adapts a function to ZoomListener
type ZoomFunc func(zoom int)

func (f ZoomFunc) OnZoom(zoom int) { f(zoom) }

// Options configure a Controller
type Options struct {
	Logger      zerolog.Logger
	InitialZoom int
	FlyToZoom   int
}

// Controller owns the current zoom, the click callback and the fly-to trigger
type Controller struct {
	mu          sync.Mutex
	surface     surface.Surface
	log         zerolog.Logger
	zoom        int
	flyToZoom   int
	lastTrigger int64
	listeners   []ZoomListener

	onClick callback.Ref[models.Location]
}

// New creates a controller. Zero zoom options take the defaults.
func New(surf surface.Surface, opts Options) *Controller {
	if opts.InitialZoom == 0 {
		opts.InitialZoom = DefaultInitialZoom
	}
	if opts.FlyToZoom == 0 {
		opts.FlyToZoom = DefaultFlyToZoom
	}
	return &Controller{
		surface:   surf,
		log:       opts.Logger.With().Str("component", "viewport").Logger(),
		zoom:      opts.InitialZoom,
		flyToZoom: opts.FlyToZoom,
	}
}

// Subscribe registers l for zoom changes
func (c *Controller) Subscribe(l ZoomListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Zoom returns the current zoom level
func (c *Controller) Zoom() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// HandleZoom records a zoom event from the surface and fans it out to every
// listener in subscription order. A repeated level is not forwarded.
func (c *Controller) HandleZoom(zoom int) {
	c.mu.Lock()
	if zoom == c.zoom {
		c.mu.Unlock()
		return
	}
	c.zoom = zoom
	listeners := append([]ZoomListener(nil), c.listeners...)
	c.mu.Unlock()

	c.log.Debug().Int("zoom", zoom).Msg("zoom changed")
	for _, l := range listeners {
		l.OnZoom(zoom)
	}
}

// SetOnClick replaces the map click handler
func (c *Controller) SetOnClick(fn func(models.Location)) {
	c.onClick.Set(fn)
}

// HandleClick forwards a map click to the current handler
func (c *Controller) HandleClick(loc models.Location) {
	c.onClick.Call(loc)
}

// FlyTo moves the map to target when trigger is positive and differs from the
// last trigger seen. The counter, not the coordinates, decides: asking twice for
// the same place with two counter values flies twice. It reports whether a
// flight was issued.
func (c *Controller) FlyTo(target models.Location, trigger int64) bool {
	c.mu.Lock()
	if trigger <= 0 || trigger == c.lastTrigger {
		c.mu.Unlock()
		return false
	}
	c.lastTrigger = trigger
	zoom := c.flyToZoom
	c.mu.Unlock()

	if !target.Valid() {
		c.log.Warn().Str("target", target.String()).Int64("trigger", trigger).Msg("ignoring fly-to with invalid coordinates")
		return false
	}
	c.surface.FlyTo(target, zoom)
	return true
}
