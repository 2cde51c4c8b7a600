// Package heatmap renders issue density as a single weighted heat layer.
// Rendering faults are never fatal: the layer draws nothing and logs a warning.
package heatmap

import (
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kass/civicmap/pkg/metrics"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

const (
	MaxWeight     = 1000.0
	MaxZoom       = 18
	MinOpacity    = 0.15
	orgMultiplier = 2.5
)

// Gradient maps intensity stops to colors, blue through red
var Gradient = map[float64]string{
	0.1: "#3b82f6",
	0.3: "#10b981",
	0.5: "#fbbf24",
	0.7: "#f97316",
	1.0: "#ef4444",
}

var severityWeights = map[models.Severity]float64{
	models.SeverityLow:      10,
	models.SeverityMedium:   30,
	models.SeverityHigh:     80,
	models.SeverityCritical: 200,
}

// SeverityWeight returns the base weight of a severity. Unknown severities weigh like Low.
func SeverityWeight(s models.Severity) float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return severityWeights[models.SeverityLow]
}

// Weight returns the heat intensity of one issue, capped at MaxWeight
func Weight(issue *models.Issue) float64 {
	w := SeverityWeight(issue.Severity)
	if issue.OrganizationID != "" {
		w *= orgMultiplier
	}
	votes := math.Max(0, float64(issue.Votes))
	w *= 1 + 1.5*math.Log10(votes+1)
	return math.Min(MaxWeight, w)
}

// ParamsFor returns the heat options for a zoom level. Radius and blur are
// whole numbers with floors of 15 and 10.
func ParamsFor(zoom int) surface.HeatOptions {
	z := float64(zoom)
	radius := math.Round(math.Max(15, (z-10)*4+25))
	blur := math.Round(math.Max(10, radius*0.75))
	intensity := math.Max(50, 2500/math.Pow(1.6, math.Max(0, z-11)))

	gradient := make(map[float64]string, len(Gradient))
	for k, v := range Gradient {
		gradient[k] = v
	}
	return surface.HeatOptions{
		Radius:     int(radius),
		Blur:       int(blur),
		MaxZoom:    MaxZoom,
		Max:        intensity,
		MinOpacity: MinOpacity,
		Gradient:   gradient,
	}
}

// Points converts issues to heat points, dropping resolved issues and invalid coordinates
func Points(issues []*models.Issue) []surface.HeatPoint {
	points := make([]surface.HeatPoint, 0, len(issues))
	for _, issue := range issues {
		if issue == nil || issue.Resolved() || !issue.Location.Valid() {
			continue
		}
		points = append(points, surface.HeatPoint{Location: issue.Location, Weight: Weight(issue)})
	}
	return points
}

// Render outcomes reported to metrics
const (
	OutcomeRendered = "rendered"
	OutcomeHidden   = "hidden"
	OutcomeEmpty    = "empty"
	OutcomeFailed   = "failed"
)

// Layer keeps at most one heat layer attached to the surface
type Layer struct {
	mu      sync.Mutex
	surface surface.Surface
	log     zerolog.Logger
	metrics *metrics.Metrics
	current surface.Layer
}

// New creates a heat layer controller for surf. m may be nil.
func New(surf surface.Surface, log zerolog.Logger, m *metrics.Metrics) *Layer {
	return &Layer{
		surface: surf,
		log:     log.With().Str("layer", "heatmap").Logger(),
		metrics: m,
	}
}

// Update replaces the rendered heat layer. The previous layer is always removed
// first; nothing is drawn when show is false, when no point survives filtering,
// or when the rasterizer fails. It returns the outcome.
func (l *Layer) Update(issues []*models.Issue, show bool, zoom int) (outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() { l.metrics.ObserveHeatmap(outcome) }()

	l.removeLocked()
	if !show {
		return OutcomeHidden
	}

	points := Points(issues)
	if len(points) == 0 {
		l.log.Warn().Int("issues", len(issues)).Msg("no valid heatmap points")
		return OutcomeEmpty
	}

	opts := ParamsFor(zoom)
	hl, err := l.build(points, opts)
	if err != nil {
		l.log.Warn().Err(err).Int("points", len(points)).Int("zoom", zoom).Msg("heatmap render failed")
		return OutcomeFailed
	}
	l.surface.AddLayer(hl)
	l.current = hl
	l.log.Debug().Int("points", len(points)).Int("radius", opts.Radius).Float64("max", opts.Max).Msg("heatmap rendered")
	return OutcomeRendered
}

func (l *Layer) build(points []surface.HeatPoint, opts surface.HeatOptions) (hl surface.Layer, err error) {
	defer func() {
		if r := recover(); r != nil {
			hl, err = nil, errors.New("heat layer construction panicked")
			l.log.Debug().Interface("panic", r).Msg("recovered heat layer panic")
		}
	}()
	hl, err = l.surface.NewHeatLayer(points, opts)
	if err == nil && hl == nil {
		err = surface.ErrUnavailable
	}
	return hl, err
}

// Current returns the attached heat layer, or nil
func (l *Layer) Current() surface.Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Close removes the heat layer from the surface
func (l *Layer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked()
}

func (l *Layer) removeLocked() {
	if l.current == nil {
		return
	}
	l.surface.RemoveLayer(l.current)
	l.current = nil
}
