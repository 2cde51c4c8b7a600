package layer

import (
	"fmt"
	"html"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

// Layer names, also used as metric and log labels
const (
	NameIssues         = "issues"
	NameOrganizations  = "organizations"
	NameInfrastructure = "infrastructure"
)

// Badges maps organization ID to its unresolved issue count
type Badges map[string]int

// Clustering holds the per-layer cluster radius and the zoom clustering stops at
type Clustering struct {
	Radius    int
	DisableAt int
}

func clusterOptions(c Clustering, style icons.ClusterStyle) surface.ClusterOptions {
	return surface.ClusterOptions{
		MaxClusterRadius:        c.Radius,
		DisableClusteringAtZoom: c.DisableAt,
		SpiderfyOnMaxZoom:       true,
		ShowCoverageOnHover:     false,
		IconCreate: func(count int) *icons.Descriptor {
			return icons.ClusterIcon(style, count)
		},
	}
}

// IssueKind draws issues not assigned to an organization.
// The state is whether the map is zoomed out.
func IssueKind(f *icons.Factory, c Clustering) Kind[*models.Issue, bool] {
	return Kind[*models.Issue, bool]{
		Name:    NameIssues,
		Cluster: clusterOptions(c, icons.ClusterIssues),
		Include: func(i *models.Issue) bool {
			return i != nil && i.OrganizationID == ""
		},
		Icon: func(i *models.Issue, zoomedOut bool) *icons.Descriptor {
			return f.IssueIcon(i.Category, zoomedOut)
		},
		SameState: func(a, b bool) bool { return a == b },
		Popup: func(i *models.Issue, _ bool) string {
			return fmt.Sprintf(
				`<div class="issue-popup"><strong>%s</strong><br/>%s &middot; %s &middot; %s<br/>%d votes</div>`,
				html.EscapeString(i.Title),
				html.EscapeString(string(i.Category)),
				html.EscapeString(string(i.Severity)),
				html.EscapeString(string(i.Status)),
				i.Votes,
			)
		},
		StateForZoom: func(zoom int, _ bool) bool {
			return f.IsZoomedOut(zoom)
		},
	}
}

// OrganizationKind draws organizations badged with their unresolved issue count
func OrganizationKind(f *icons.Factory, c Clustering) Kind[*models.Organization, Badges] {
	return Kind[*models.Organization, Badges]{
		Name:    NameOrganizations,
		Cluster: clusterOptions(c, icons.ClusterOrganizations),
		Include: func(o *models.Organization) bool { return o != nil },
		Icon: func(o *models.Organization, b Badges) *icons.Descriptor {
			return f.OrganizationIcon(o.Type, b[o.ID])
		},
		// counts in the same badge bucket draw the same icon
		SameState: func(a, b Badges) bool { return sameBuckets(f, a, b) },
		Popup: func(o *models.Organization, b Badges) string {
			return fmt.Sprintf(
				`<div class="org-popup"><strong>%s</strong><br/>%s<br/>%s<br/>Active issues: %d</div>`,
				html.EscapeString(o.Name),
				html.EscapeString(string(o.Type)),
				html.EscapeString(o.Address),
				b[o.ID],
			)
		},
	}
}

// sameBuckets reports whether every organization falls in the same badge
// bucket under a and b. A missing ID counts as zero.
func sameBuckets(f *icons.Factory, a, b Badges) bool {
	for id, n := range a {
		if f.BadgeBucket(n) != f.BadgeBucket(b[id]) {
			return false
		}
	}
	for id, n := range b {
		if _, ok := a[id]; !ok && f.BadgeBucket(n) != 0 {
			return false
		}
	}
	return true
}

// InfrastructureKind draws infrastructure objects. Their icons never change
// after a resync, so the state carries nothing.
func InfrastructureKind(f *icons.Factory, c Clustering) Kind[*models.Infrastructure, struct{}] {
	return Kind[*models.Infrastructure, struct{}]{
		Name:    NameInfrastructure,
		Cluster: clusterOptions(c, icons.ClusterInfrastructure),
		Include: func(i *models.Infrastructure) bool { return i != nil },
		Icon: func(i *models.Infrastructure, _ struct{}) *icons.Descriptor {
			return f.InfrastructureIcon(i.Type)
		},
		SameState: func(_, _ struct{}) bool { return true },
		Popup: func(i *models.Infrastructure, _ struct{}) string {
			return fmt.Sprintf(
				`<div class="infra-popup"><strong>%s</strong><br/>%s<br/>%s</div>`,
				html.EscapeString(i.Name),
				html.EscapeString(i.Type),
				html.EscapeString(i.Address),
			)
		},
	}
}
