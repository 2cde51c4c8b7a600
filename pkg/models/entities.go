package models

// Category classifies an issue. Organizations reuse it as their type.
type Category string

const (
	CategoryRoads       Category = "Roads"
	CategoryWater       Category = "Water & Sewage"
	CategoryElectricity Category = "Electricity"
	CategoryEducation   Category = "Schools & Kindergartens"
	CategoryHealth      Category = "Hospitals & Clinics"
	CategoryWaste       Category = "Waste Management"
	CategoryOther       Category = "Other"
)

// Categories lists every known issue category in display order
var Categories = []Category{
	CategoryRoads,
	CategoryWater,
	CategoryElectricity,
	CategoryEducation,
	CategoryHealth,
	CategoryWaste,
	CategoryOther,
}

// Severity of a reported issue
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Status of a reported issue
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// Infrastructure types with a dedicated look. Anything else renders generically.
const (
	InfraRoads = "Roads"
	InfraWater = "Water & Sewage"
)

// Issue is a citizen report pinned to the map
type Issue struct {
	ID             string   `json:"id"`
	Location       Location `json:"location"`
	Title          string   `json:"title"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Status         Status   `json:"status"`
	OrganizationID string   `json:"organizationId,omitempty"`
	Votes          int      `json:"votes"`
}

func (i *Issue) EntityID() string   { return i.ID }
func (i *Issue) Position() Location { return i.Location }
func (i *Issue) VisualType() string { return string(i.Category) }

// Resolved reports whether the issue no longer needs attention
func (i *Issue) Resolved() bool { return i.Status == StatusResolved }

// Organization is a responsible body (school, hospital, utility) shown on the map
type Organization struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Name     string   `json:"name"`
	Type     Category `json:"type"`
	Address  string   `json:"address,omitempty"`
}

func (o *Organization) EntityID() string   { return o.ID }
func (o *Organization) Position() Location { return o.Location }
func (o *Organization) VisualType() string { return string(o.Type) }

// Infrastructure is a road or utility object imported from public registries
type Infrastructure struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Address  string   `json:"address,omitempty"`
}

func (f *Infrastructure) EntityID() string   { return f.ID }
func (f *Infrastructure) Position() Location { return f.Location }
func (f *Infrastructure) VisualType() string { return f.Type }

// UnresolvedCounts counts, per organization id, the attached issues that are not resolved.
// Organizations without open issues are absent from the result.
func UnresolvedCounts(issues []*Issue) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		if issue == nil || issue.OrganizationID == "" || issue.Resolved() {
			continue
		}
		counts[issue.OrganizationID]++
	}
	return counts
}
