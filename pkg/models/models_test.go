package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationValid(t *testing.T) {
	testCases := []struct {
		name  string
		loc   Location
		valid bool
	}{
		{"tashkent", Location{Lat: 41.2995, Lon: 69.2401}, true},
		{"corners", Location{Lat: -90, Lon: 180}, true},
		{"lat too large", Location{Lat: 90.0001, Lon: 0}, false},
		{"lon too small", Location{Lat: 0, Lon: -180.5}, false},
		{"nan lat", Location{Lat: math.NaN(), Lon: 0}, false},
		{"inf lon", Location{Lat: 0, Lon: math.Inf(1)}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.loc.Valid())
		})
	}
}

func TestDistance(t *testing.T) {
	tashkent := Location{Lat: 41.2995, Lon: 69.2401}
	samarkand := Location{Lat: 39.6542, Lon: 66.9597}

	dist := Distance(tashkent, samarkand)
	assert.InDelta(t, 270, dist, 10)
	assert.Zero(t, Distance(tashkent, tashkent))
}

func TestUnresolvedCounts(t *testing.T) {
	issues := []*Issue{
		{ID: "1", OrganizationID: "school-4", Status: StatusOpen},
		{ID: "2", OrganizationID: "school-4", Status: StatusInProgress},
		{ID: "3", OrganizationID: "school-4", Status: StatusResolved},
		{ID: "4", OrganizationID: "clinic-1", Status: StatusResolved},
		{ID: "5", Status: StatusOpen},
		nil,
	}

	counts := UnresolvedCounts(issues)
	assert.Equal(t, map[string]int{"school-4": 2}, counts)
}

func TestEntitiesImplementGeoEntity(t *testing.T) {
	loc := Location{Lat: 41, Lon: 69}
	entities := []GeoEntity{
		&Issue{ID: "i", Location: loc, Category: CategoryWater},
		&Organization{ID: "o", Location: loc, Type: CategoryHealth},
		&Infrastructure{ID: "f", Location: loc, Type: InfraRoads},
	}

	assert.Equal(t, "i", entities[0].EntityID())
	assert.Equal(t, string(CategoryWater), entities[0].VisualType())
	assert.Equal(t, string(CategoryHealth), entities[1].VisualType())
	assert.Equal(t, InfraRoads, entities[2].VisualType())
	for _, e := range entities {
		assert.Equal(t, loc, e.Position())
	}
}
