package icons

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/kass/civicmap/pkg/models"
)

const (
	DefaultZoomedOutBelow = 14
	DefaultBadgeCap       = 99
)

// Options tune the discrete buckets icons are chosen from
type Options struct {
	// Issues render as plain dots while zoom < ZoomedOutBelow
	ZoomedOutBelow int
	// Organization badge counts at or above BadgeCap share one icon ("99+")
	BadgeCap int
}

// Recorder observes descriptor lookups. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveIconLookup(kind string, cached bool)
}

// Factory produces marker icons for every entity kind, delegating storage to a shared Cache
type Factory struct {
	cache    *Cache
	opts     Options
	recorder Recorder
	lookups  atomic.Int64
}

// NewFactory creates a factory over cache. Zero option fields take the defaults.
func NewFactory(cache *Cache, opts Options) *Factory {
	if cache == nil {
		cache = NewCache()
	}
	if opts.ZoomedOutBelow == 0 {
		opts.ZoomedOutBelow = DefaultZoomedOutBelow
	}
	if opts.BadgeCap <= 0 {
		opts.BadgeCap = DefaultBadgeCap
	}
	return &Factory{cache: cache, opts: opts}
}

// WithRecorder attaches a lookup observer and returns the factory
func (f *Factory) WithRecorder(r Recorder) *Factory {
	f.recorder = r
	return f
}

// Cache returns the underlying shared cache
func (f *Factory) Cache() *Cache {
	return f.cache
}

// Options returns the bucket configuration in effect
func (f *Factory) Options() Options {
	return f.opts
}

// Lookups returns how many descriptors have been requested from this factory
func (f *Factory) Lookups() int64 {
	return f.lookups.Load()
}

// IsZoomedOut maps a raw zoom level to the issue icon bucket
func (f *Factory) IsZoomedOut(zoom int) bool {
	return zoom < f.opts.ZoomedOutBelow
}

// BadgeBucket clamps an unresolved count into [0, BadgeCap]
func (f *Factory) BadgeBucket(unresolved int) int {
	if unresolved < 0 {
		return 0
	}
	return min(unresolved, f.opts.BadgeCap)
}

// IssueKey is the cache key of an issue icon
func IssueKey(category models.Category, zoomedOut bool) string {
	return "issue:" + string(category) + ":" + strconv.FormatBool(zoomedOut)
}

// OrganizationKey is the cache key of an organization icon for an already clamped count
func OrganizationKey(orgType models.Category, bucket int) string {
	return "org:" + string(orgType) + ":" + strconv.Itoa(bucket)
}

// UserLocationKey is the cache key of the user location icon
const UserLocationKey = "user:location"

// InfrastructureKey is the cache key of an infrastructure icon
func InfrastructureKey(infraType string) string {
	return "infra:" + infraType
}

// IssueIcon returns the icon for an issue category in the given zoom bucket.
// Zoomed out it is a small colored dot; zoomed in a pin with the category glyph.
func (f *Factory) IssueIcon(category models.Category, zoomedOut bool) *Descriptor {
	return f.get("issue", IssueKey(category, zoomedOut), func() *Descriptor {
		color := CategoryColor(category)
		if zoomedOut {
			return &Descriptor{
				Markup: fmt.Sprintf(`<svg width="18" height="18" viewBox="0 0 18 18" xmlns="http://www.w3.org/2000/svg"><circle cx="9" cy="9" r="6" fill="%s" stroke="white" stroke-width="2.5"/></svg>`, color),
				Size:   Point{X: 18, Y: 18},
				Anchor: Point{X: 9, Y: 9},
			}
		}
		markup := fmt.Sprintf(`<div class="issue-pin" style="background-color: %s; width: 38px; height: 38px; border-radius: 50%%; border: 3px solid white;">%s</div>`+
			`<div class="issue-pin-tail" style="border-left: 7px solid transparent; border-right: 7px solid transparent; border-top: 10px solid white; position: absolute; bottom: -8px; left: 12px;"></div>`,
			color, svg(categoryGlyph(category), 16))
		return &Descriptor{
			Markup: markup,
			Size:   Point{X: 38, Y: 48},
			Anchor: Point{X: 19, Y: 48},
		}
	})
}

// OrganizationIcon returns the fixed-size organization icon with an unresolved-issue badge.
// Counts at or above the cap share a single "99+" icon.
func (f *Factory) OrganizationIcon(orgType models.Category, unresolved int) *Descriptor {
	bucket := f.BadgeBucket(unresolved)
	return f.get("org", OrganizationKey(orgType, bucket), func() *Descriptor {
		const size = 40
		badge := ""
		if bucket > 0 {
			label := strconv.Itoa(bucket)
			if bucket >= f.opts.BadgeCap {
				label = strconv.Itoa(f.opts.BadgeCap) + "+"
			}
			badge = fmt.Sprintf(`<div class="org-badge" style="position: absolute; top: -7px; right: -7px; background: #ef4444; color: white; border-radius: 50%%; width: 20px; height: 20px; font-size: 10px; font-weight: 900; border: 2px solid white;">%s</div>`, label)
		}
		markup := fmt.Sprintf(`<div class="org-marker" style="position: relative; background-color: %s; width: %dpx; height: %dpx; border-radius: 12px; border: 2px solid white;">%s%s</div>`,
			OrganizationColor(orgType), size, size, svg(organizationGlyph(orgType), 18), badge)
		return &Descriptor{
			Markup: markup,
			Size:   Point{X: size, Y: size},
			Anchor: Point{X: size / 2, Y: size / 2},
		}
	})
}

// InfrastructureIcon returns the static icon for an infrastructure type
func (f *Factory) InfrastructureIcon(infraType string) *Descriptor {
	return f.get("infra", InfrastructureKey(infraType), func() *Descriptor {
		const size = 32
		markup := fmt.Sprintf(`<div class="infra-marker" style="position: relative; background-color: %s; width: %dpx; height: %dpx; border-radius: 8px; border: 2px solid white;">%s</div>`,
			InfrastructureColor(infraType), size, size, svg(infrastructureGlyph(infraType), 14))
		return &Descriptor{
			Markup: markup,
			Size:   Point{X: size, Y: size},
			Anchor: Point{X: size / 2, Y: size / 2},
		}
	})
}

// UserLocationIcon returns the pulsing dot drawn at the user's position
func (f *Factory) UserLocationIcon() *Descriptor {
	return f.get("user", UserLocationKey, func() *Descriptor {
		return &Descriptor{
			Markup:    `<div class="user-location" style="width: 16px; height: 16px; background: #3b82f6; border-radius: 50%; border: 2px solid white;"></div>`,
			ClassName: "user-location-marker",
			Size:      Point{X: 16, Y: 16},
			Anchor:    Point{X: 8, Y: 8},
		}
	})
}

func (f *Factory) get(kind, key string, build func() *Descriptor) *Descriptor {
	f.lookups.Add(1)
	d, cached := f.cache.lookup(key, build)
	if f.recorder != nil {
		f.recorder.ObserveIconLookup(kind, cached)
	}
	return d
}
