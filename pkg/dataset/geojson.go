// Package dataset reads, writes and generates entity snapshots for the map.
// Snapshots are GeoJSON FeatureCollections of points; a "kind" property tells
// issues, organizations and infrastructure apart.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	geojson "github.com/paulmach/go.geojson"

	"github.com/kass/civicmap/pkg/models"
)

// Feature kinds
const (
	KindIssue          = "issue"
	KindOrganization   = "organization"
	KindInfrastructure = "infrastructure"
)

// Dataset is one snapshot of everything the map draws
type Dataset struct {
	Issues         []*models.Issue
	Organizations  []*models.Organization
	Infrastructure []*models.Infrastructure
}

// Len returns the total number of entities
func (d *Dataset) Len() int {
	return len(d.Issues) + len(d.Organizations) + len(d.Infrastructure)
}

// Encode renders d as a GeoJSON FeatureCollection
func Encode(d *Dataset) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, i := range d.Issues {
		f := pointFeature(KindIssue, i.ID, i.Location)
		f.SetProperty("title", i.Title)
		f.SetProperty("category", string(i.Category))
		f.SetProperty("severity", string(i.Severity))
		f.SetProperty("status", string(i.Status))
		f.SetProperty("votes", i.Votes)
		if i.OrganizationID != "" {
			f.SetProperty("organizationId", i.OrganizationID)
		}
		fc.AddFeature(f)
	}
	for _, o := range d.Organizations {
		f := pointFeature(KindOrganization, o.ID, o.Location)
		f.SetProperty("name", o.Name)
		f.SetProperty("type", string(o.Type))
		f.SetProperty("address", o.Address)
		fc.AddFeature(f)
	}
	for _, in := range d.Infrastructure {
		f := pointFeature(KindInfrastructure, in.ID, in.Location)
		f.SetProperty("name", in.Name)
		f.SetProperty("type", in.Type)
		f.SetProperty("address", in.Address)
		fc.AddFeature(f)
	}

	b, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}
	return b, nil
}

func pointFeature(kind, id string, loc models.Location) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{loc.Lon, loc.Lat})
	f.ID = id
	f.SetProperty("kind", kind)
	f.SetProperty("id", id)
	return f
}

// Decode parses a FeatureCollection produced by Encode. Features of an unknown
// kind or without point geometry are rejected.
func Decode(data []byte) (*Dataset, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	d := &Dataset{}
	for n, f := range fc.Features {
		if f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
			return nil, fmt.Errorf("feature %d: point geometry required", n)
		}
		loc := models.Location{Lat: f.Geometry.Point[1], Lon: f.Geometry.Point[0]}
		id := stringProp(f, "id")

		switch kind := stringProp(f, "kind"); kind {
		case KindIssue:
			d.Issues = append(d.Issues, &models.Issue{
				ID:             id,
				Location:       loc,
				Title:          stringProp(f, "title"),
				Category:       models.Category(stringProp(f, "category")),
				Severity:       models.Severity(stringProp(f, "severity")),
				Status:         models.Status(stringProp(f, "status")),
				OrganizationID: stringProp(f, "organizationId"),
				Votes:          intProp(f, "votes"),
			})
		case KindOrganization:
			d.Organizations = append(d.Organizations, &models.Organization{
				ID:       id,
				Location: loc,
				Name:     stringProp(f, "name"),
				Type:     models.Category(stringProp(f, "type")),
				Address:  stringProp(f, "address"),
			})
		case KindInfrastructure:
			d.Infrastructure = append(d.Infrastructure, &models.Infrastructure{
				ID:       id,
				Location: loc,
				Name:     stringProp(f, "name"),
				Type:     stringProp(f, "type"),
				Address:  stringProp(f, "address"),
			})
		default:
			return nil, fmt.Errorf("feature %d: unknown kind %q", n, kind)
		}
	}
	return d, nil
}

func stringProp(f *geojson.Feature, key string) string {
	s, err := f.PropertyString(key)
	if err != nil {
		return ""
	}
	return s
}

// intProp accepts both in-memory ints and JSON-decoded float64s
func intProp(f *geojson.Feature, key string) int {
	switch v := f.Properties[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Load reads a dataset file
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	d, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Save writes d to path, creating parent directories
func Save(path string, d *Dataset) error {
	b, err := Encode(d)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
