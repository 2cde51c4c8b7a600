package dataset

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/kass/civicmap/pkg/models"
)

// TashkentBounds roughly covers the city
var TashkentBounds = models.BoundingBox{
	BottomLeft: models.Location{Lat: 41.20, Lon: 69.10},
	TopRight:   models.Location{Lat: 41.40, Lon: 69.40},
}

// GenerateOptions control random dataset generation
type GenerateOptions struct {
	Issues         int
	Organizations  int
	Infrastructure int
	Bounds         models.BoundingBox
	// OrganizationShare is the fraction of issues assigned to a random organization
	OrganizationShare float64
	// ResolvedShare is the fraction of issues generated as resolved
	ResolvedShare float64
	MaxVotes      int
	Seed          int64
	Workers       int
}

var (
	severities     = []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	openStatuses   = []models.Status{models.StatusOpen, models.StatusInProgress}
	orgTypes       = []models.Category{models.CategoryEducation, models.CategoryHealth, models.CategoryOther}
	infraTypes     = []string{models.InfraRoads, models.InfraWater, "Power Line"}
	streetNames    = []string{"Amir Temur", "Navoi", "Mustaqillik", "Bunyodkor", "Shota Rustaveli"}
	issueSubjects  = []string{"Pothole", "Broken pipe", "Power outage", "Overflowing bin", "Damaged roof", "Blocked drain"}
	orgNamePrefix  = map[models.Category]string{models.CategoryEducation: "School", models.CategoryHealth: "Clinic"}
	infraNameStems = map[string]string{models.InfraRoads: "Road segment", models.InfraWater: "Pumping station"}
)

// Generate builds a random dataset. Equal options, including Seed and Workers,
// yield equal datasets.
func Generate(opts GenerateOptions) *Dataset {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Bounds == (models.BoundingBox{}) {
		opts.Bounds = TashkentBounds
	}
	if opts.MaxVotes <= 0 {
		opts.MaxVotes = 500
	}

	d := &Dataset{
		Organizations:  make([]*models.Organization, opts.Organizations),
		Infrastructure: make([]*models.Infrastructure, opts.Infrastructure),
		Issues:         make([]*models.Issue, opts.Issues),
	}

	fill(opts.Organizations, opts.Workers, opts.Seed, func(r *rand.Rand, i int) {
		t := orgTypes[r.Intn(len(orgTypes))]
		prefix, ok := orgNamePrefix[t]
		if !ok {
			prefix = "Service"
		}
		d.Organizations[i] = &models.Organization{
			ID:       fmt.Sprintf("org_%d", i),
			Location: randomLocation(r, opts.Bounds),
			Name:     fmt.Sprintf("%s #%d", prefix, i+1),
			Type:     t,
			Address:  randomAddress(r),
		}
	})

	fill(opts.Infrastructure, opts.Workers, opts.Seed+1, func(r *rand.Rand, i int) {
		t := infraTypes[r.Intn(len(infraTypes))]
		stem, ok := infraNameStems[t]
		if !ok {
			stem = "Facility"
		}
		d.Infrastructure[i] = &models.Infrastructure{
			ID:       fmt.Sprintf("infra_%d", i),
			Location: randomLocation(r, opts.Bounds),
			Name:     fmt.Sprintf("%s %d", stem, i+1),
			Type:     t,
			Address:  randomAddress(r),
		}
	})

	fill(opts.Issues, opts.Workers, opts.Seed+2, func(r *rand.Rand, i int) {
		issue := &models.Issue{
			ID:       fmt.Sprintf("issue_%d", i),
			Location: randomLocation(r, opts.Bounds),
			Title:    issueSubjects[r.Intn(len(issueSubjects))],
			Category: models.Categories[r.Intn(len(models.Categories))],
			Severity: severities[r.Intn(len(severities))],
			Status:   openStatuses[r.Intn(len(openStatuses))],
			Votes:    r.Intn(opts.MaxVotes + 1),
		}
		if r.Float64() < opts.ResolvedShare {
			issue.Status = models.StatusResolved
		}
		if opts.Organizations > 0 && r.Float64() < opts.OrganizationShare {
			issue.OrganizationID = fmt.Sprintf("org_%d", r.Intn(opts.Organizations))
		}
		d.Issues[i] = issue
	})

	return d
}

// fill calls build for every index in [0, n), splitting the range across
// workers. Each worker owns a contiguous range and its own random source.
func fill(n, workers int, seed int64, build func(r *rand.Rand, i int)) {
	if n == 0 {
		return
	}
	if workers > n {
		workers = n
	}
	perWorker := n / workers
	remainder := n % workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed*7919 + int64(w)))
			for i := start; i < end; i++ {
				build(r, i)
			}
		}(w, start, start+size)
		start += size
	}
	wg.Wait()
}

func randomLocation(r *rand.Rand, b models.BoundingBox) models.Location {
	return models.Location{
		Lat: b.BottomLeft.Lat + r.Float64()*(b.TopRight.Lat-b.BottomLeft.Lat),
		Lon: b.BottomLeft.Lon + r.Float64()*(b.TopRight.Lon-b.BottomLeft.Lon),
	}
}

func randomAddress(r *rand.Rand) string {
	return fmt.Sprintf("%s st. %d", streetNames[r.Intn(len(streetNames))], r.Intn(200)+1)
}
