// Package config loads map-engine settings from YAML.
// Every key is optional; missing keys keep the defaults from Default.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LayerConfig holds cluster-group settings for one entity layer
type LayerConfig struct {
	ClusterRadius           int `yaml:"cluster_radius"`
	DisableClusteringAtZoom int `yaml:"disable_clustering_at_zoom"`
}

// IconConfig holds the icon bucket thresholds
type IconConfig struct {
	ZoomedOutBelow int `yaml:"zoomed_out_below"`
	BadgeCap       int `yaml:"badge_cap"`
}

// LayersConfig groups the per-kind layer settings
type LayersConfig struct {
	Issues         LayerConfig `yaml:"issues"`
	Organizations  LayerConfig `yaml:"organizations"`
	Infrastructure LayerConfig `yaml:"infrastructure"`
}

// ViewportConfig holds the initial view and fly-to behaviour
type ViewportConfig struct {
	InitialZoom int `yaml:"initial_zoom"`
	FlyToZoom   int `yaml:"fly_to_zoom"`
}

// Config is the full engine configuration
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Icons    IconConfig     `yaml:"icons"`
	Layers   LayersConfig   `yaml:"layers"`
	Viewport ViewportConfig `yaml:"viewport"`
}

// Default returns the settings the map ships with
func Default() Config {
	return Config{
		LogLevel: "info",
		Icons: IconConfig{
			ZoomedOutBelow: 14,
			BadgeCap:       99,
		},
		Layers: LayersConfig{
			Issues:         LayerConfig{ClusterRadius: 80, DisableClusteringAtZoom: 15},
			Organizations:  LayerConfig{ClusterRadius: 60},
			Infrastructure: LayerConfig{ClusterRadius: 60},
		},
		Viewport: ViewportConfig{
			InitialZoom: 13,
			FlyToZoom:   16,
		},
	}
}

// Load reads path over the defaults. An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the layers cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.Icons.ZoomedOutBelow < 0 {
		errs = append(errs, errors.New("icons.zoomed_out_below must not be negative"))
	}
	if c.Icons.BadgeCap < 1 {
		errs = append(errs, errors.New("icons.badge_cap must be at least 1"))
	}
	for name, l := range map[string]LayerConfig{
		"issues":         c.Layers.Issues,
		"organizations":  c.Layers.Organizations,
		"infrastructure": c.Layers.Infrastructure,
	} {
		if l.ClusterRadius < 0 {
			errs = append(errs, fmt.Errorf("layers.%s.cluster_radius must not be negative", name))
		}
		if l.DisableClusteringAtZoom < 0 {
			errs = append(errs, fmt.Errorf("layers.%s.disable_clustering_at_zoom must not be negative", name))
		}
	}
	if c.Viewport.InitialZoom < 0 || c.Viewport.FlyToZoom < 0 {
		errs = append(errs, errors.New("viewport zoom levels must not be negative"))
	}
	return errors.Join(errs...)
}
