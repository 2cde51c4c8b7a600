package surface

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/models"
)

// Flight records one FlyTo request
type Flight struct {
	Target models.Location
	Zoom   int
}

// Counters summarises the operations a Memory surface has seen
type Counters struct {
	LayerAdds      int
	LayerRemoves   int
	ClusterGroups  int
	Markers        int
	HeatLayers     int
	HeatRasterized int
}

// HeatRasterizer draws heat points. Returning an error or panicking makes NewHeatLayer fail.
type HeatRasterizer func(points []HeatPoint, opts HeatOptions) error

// MemoryOption configures a Memory surface
type MemoryOption func(*Memory)

// WithClusterGroupError makes every NewClusterGroup call fail with err
func WithClusterGroupError(err error) MemoryOption {
	return func(m *Memory) { m.clusterErr = err }
}

// WithHeatRasterizer replaces the default heat rasterizer
func WithHeatRasterizer(r HeatRasterizer) MemoryOption {
	return func(m *Memory) { m.rasterize = r }
}

// Memory is an in-process Surface used by the CLI and tests.
// It keeps layers in attach order and clusters markers with an R-tree.
type Memory struct {
	mu       sync.Mutex
	layers   []Layer
	flights  []Flight
	counters Counters
	nextID   atomic.Int64

	clusterErr error
	rasterize  HeatRasterizer
}

// NewMemory creates an empty in-memory surface
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{rasterize: defaultRasterizer}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) id(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, m.nextID.Add(1))
}

func (m *Memory) AddLayer(l Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.layers {
		if existing == l {
			return
		}
	}
	m.layers = append(m.layers, l)
	m.counters.LayerAdds++
}

func (m *Memory) RemoveLayer(l Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.layers {
		if existing == l {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.counters.LayerRemoves++
			return
		}
	}
}

func (m *Memory) HasLayer(l Layer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.layers {
		if existing == l {
			return true
		}
	}
	return false
}

// Layers returns the attached layers in attach order
func (m *Memory) Layers() []Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Layer(nil), m.layers...)
}

func (m *Memory) NewMarker(loc models.Location, icon *icons.Descriptor) Marker {
	m.mu.Lock()
	m.counters.Markers++
	m.mu.Unlock()
	return &MemoryMarker{id: m.id("marker"), position: loc, icon: icon}
}

func (m *Memory) NewClusterGroup(opts ClusterOptions) (ClusterGroup, error) {
	if m.clusterErr != nil {
		return nil, m.clusterErr
	}
	m.mu.Lock()
	m.counters.ClusterGroups++
	m.mu.Unlock()
	return &MemoryClusterGroup{id: m.id("cluster"), opts: opts}, nil
}

func (m *Memory) NewHeatLayer(points []HeatPoint, opts HeatOptions) (layer Layer, err error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("heat layer: %w", ErrUnavailable)
	}
	defer func() {
		if r := recover(); r != nil {
			layer, err = nil, fmt.Errorf("heat rasterizer panicked: %v", r)
		}
	}()
	if err := m.rasterize(points, opts); err != nil {
		return nil, fmt.Errorf("heat rasterizer: %w", err)
	}

	m.mu.Lock()
	m.counters.HeatLayers++
	m.counters.HeatRasterized += len(points)
	m.mu.Unlock()

	pts := append([]HeatPoint(nil), points...)
	return &HeatLayer{id: m.id("heat"), Points: pts, Options: opts}, nil
}

func (m *Memory) FlyTo(loc models.Location, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flights = append(m.flights, Flight{Target: loc, Zoom: zoom})
}

// Flights returns every FlyTo request in order
func (m *Memory) Flights() []Flight {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Flight(nil), m.flights...)
}

// Counters returns a copy of the operation counters
func (m *Memory) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// defaultRasterizer rejects the option values that crash canvas heat renderers
func defaultRasterizer(points []HeatPoint, opts HeatOptions) error {
	if opts.Radius <= 0 || opts.Blur <= 0 {
		return fmt.Errorf("radius %d and blur %d must be positive", opts.Radius, opts.Blur)
	}
	return nil
}

// HeatLayer is the Memory surface's heat layer
type HeatLayer struct {
	id      string
	Points  []HeatPoint
	Options HeatOptions
}

func (h *HeatLayer) LayerID() string { return h.id }

// MemoryMarker is the Memory surface's marker
type MemoryMarker struct {
	mu        sync.Mutex
	id        string
	position  models.Location
	icon      *icons.Descriptor
	iconSwaps int
	onClick   []func()
	onHover   []func(bool)
	popup     string
	popupOpen bool
}

func (mm *MemoryMarker) LayerID() string { return mm.id }

func (mm *MemoryMarker) Position() models.Location { return mm.position }

func (mm *MemoryMarker) Icon() *icons.Descriptor {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.icon
}

func (mm *MemoryMarker) SetIcon(icon *icons.Descriptor) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.icon = icon
	mm.iconSwaps++
}

// IconSwaps counts SetIcon calls
func (mm *MemoryMarker) IconSwaps() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.iconSwaps
}

func (mm *MemoryMarker) OnClick(fn func()) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.onClick = append(mm.onClick, fn)
}

func (mm *MemoryMarker) OnHover(fn func(over bool)) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.onHover = append(mm.onHover, fn)
}

func (mm *MemoryMarker) BindPopup(content string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.popup = content
}

func (mm *MemoryMarker) OpenPopup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.popup != "" {
		mm.popupOpen = true
	}
}

func (mm *MemoryMarker) ClosePopup() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.popupOpen = false
}

// Popup returns the bound popup content and whether it is open
func (mm *MemoryMarker) Popup() (string, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.popup, mm.popupOpen
}

// Click simulates a user click on the marker
func (mm *MemoryMarker) Click() {
	mm.mu.Lock()
	handlers := append([]func(){}, mm.onClick...)
	mm.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Hover simulates the pointer entering (true) or leaving (false) the marker
func (mm *MemoryMarker) Hover(over bool) {
	mm.mu.Lock()
	handlers := append([]func(bool){}, mm.onHover...)
	mm.mu.Unlock()
	for _, fn := range handlers {
		fn(over)
	}
}

var (
	_ Surface      = (*Memory)(nil)
	_ Marker       = (*MemoryMarker)(nil)
	_ ClusterGroup = (*MemoryClusterGroup)(nil)
	_ Layer        = (*HeatLayer)(nil)
)
