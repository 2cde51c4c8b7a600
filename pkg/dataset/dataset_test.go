package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/civicmap/pkg/models"
)

func sample() *Dataset {
	return &Dataset{
		Issues: []*models.Issue{
			{
				ID:             "i1",
				Location:       models.Location{Lat: 41.3, Lon: 69.25},
				Title:          "Pothole on Navoi",
				Category:       models.CategoryRoads,
				Severity:       models.SeverityHigh,
				Status:         models.StatusInProgress,
				OrganizationID: "o1",
				Votes:          42,
			},
			{ID: "i2", Location: models.Location{Lat: 41.31, Lon: 69.26}, Category: models.CategoryOther, Status: models.StatusResolved},
		},
		Organizations: []*models.Organization{
			{ID: "o1", Location: models.Location{Lat: 41.29, Lon: 69.21}, Name: "School #4", Type: models.CategoryEducation, Address: "Navoi st. 12"},
		},
		Infrastructure: []*models.Infrastructure{
			{ID: "r1", Location: models.Location{Lat: 41.33, Lon: 69.3}, Name: "Ring road", Type: models.InfraRoads},
		},
	}
}

func TestEncodeDecodePreservesEntities(t *testing.T) {
	in := sample()
	b, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"FeatureCollection"`)
	assert.Contains(t, string(b), `[69.25,41.3]`)

	out, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, 4, out.Len())
}

func TestDecodeRejectsMalformedFeatures(t *testing.T) {
	tests := []struct {
		name string
		json string
		err  string
	}{
		{"not json", `{`, "failed to parse dataset"},
		{"line geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"kind":"issue"}}]}`, "point geometry required"},
		{"unknown kind", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[69,41]},"properties":{"kind":"bus stop"}}]}`, `unknown kind "bus stop"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.json))
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "city.geojson")
	require.NoError(t, Save(path, sample()))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), d)

	_, err = Load(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.ErrorContains(t, err, "failed to read dataset")
}

func TestGenerate(t *testing.T) {
	opts := GenerateOptions{
		Issues:            1000,
		Organizations:     20,
		Infrastructure:    30,
		OrganizationShare: 0.3,
		ResolvedShare:     0.2,
		Seed:              7,
		Workers:           4,
	}
	d := Generate(opts)

	require.Len(t, d.Issues, 1000)
	require.Len(t, d.Organizations, 20)
	require.Len(t, d.Infrastructure, 30)

	withOrg, resolved := 0, 0
	for _, i := range d.Issues {
		require.NotNil(t, i)
		assert.True(t, within(TashkentBounds, i.Location))
		assert.LessOrEqual(t, i.Votes, 500)
		if i.OrganizationID != "" {
			withOrg++
		}
		if i.Resolved() {
			resolved++
		}
	}
	assert.InDelta(t, 300, withOrg, 80)
	assert.InDelta(t, 200, resolved, 80)

	assert.Equal(t, d, Generate(opts))
}

func TestGenerateEmptyAndCustomBounds(t *testing.T) {
	assert.Zero(t, Generate(GenerateOptions{}).Len())

	box := models.BoundingBox{
		BottomLeft: models.Location{Lat: 39.6, Lon: 66.9},
		TopRight:   models.Location{Lat: 39.7, Lon: 67.0},
	}
	d := Generate(GenerateOptions{Issues: 3, Bounds: box, Workers: 8, OrganizationShare: 1})
	require.Len(t, d.Issues, 3)
	for _, i := range d.Issues {
		assert.True(t, within(box, i.Location))
		assert.Empty(t, i.OrganizationID, "no organizations to assign")
	}
}

func within(b models.BoundingBox, loc models.Location) bool {
	return loc.Lat >= b.BottomLeft.Lat && loc.Lat <= b.TopRight.Lat &&
		loc.Lon >= b.BottomLeft.Lon && loc.Lon <= b.TopRight.Lon
}
