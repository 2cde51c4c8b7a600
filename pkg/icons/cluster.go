package icons

import "fmt"

// ClusterStyle selects the palette of aggregate cluster markers
type ClusterStyle int

const (
	ClusterIssues ClusterStyle = iota
	ClusterOrganizations
	ClusterInfrastructure
)

func (s ClusterStyle) String() string {
	switch s {
	case ClusterIssues:
		return "issues"
	case ClusterOrganizations:
		return "organizations"
	case ClusterInfrastructure:
		return "infrastructure"
	default:
		return fmt.Sprintf("ClusterStyle(%d)", int(s))
	}
}

type clusterTier struct {
	from  int
	color string
	size  int
}

// tiers are ordered by ascending lower bound; the last matching tier wins
var clusterTiers = map[ClusterStyle][]clusterTier{
	ClusterIssues: {
		{from: 0, color: "#10b981", size: 38},
		{from: 10, color: "#f59e0b", size: 38},
		{from: 50, color: "#ef4444", size: 38},
	},
	ClusterOrganizations: {
		{from: 0, color: "#4f46e5", size: 38},
		{from: 50, color: "#6366f1", size: 44},
		{from: 100, color: "#7c3aed", size: 48},
	},
	ClusterInfrastructure: {
		{from: 0, color: "#f59e0b", size: 38},
		{from: 50, color: "#ea580c", size: 44},
		{from: 100, color: "#dc2626", size: 48},
	},
}

// ClusterColor returns the aggregate color for a cluster of count children.
// It depends on count alone and never decreases in severity as count grows.
func ClusterColor(style ClusterStyle, count int) string {
	return clusterTierFor(style, count).color
}

// ClusterIcon builds the aggregate marker for a cluster of count children
func ClusterIcon(style ClusterStyle, count int) *Descriptor {
	tier := clusterTierFor(style, count)
	fontSize := 14
	if tier.size > 40 {
		fontSize = 16
	}
	return &Descriptor{
		Markup: fmt.Sprintf(`<div class="cluster" style="background: %s; width: %dpx; height: %dpx; border-radius: 50%%; color: white; font-weight: 900; font-size: %dpx; border: 3px solid white;">%d</div>`,
			tier.color, tier.size, tier.size, fontSize, count),
		ClassName: "custom-" + style.String() + "-cluster",
		Size:      Point{X: tier.size, Y: tier.size},
		Anchor:    Point{X: tier.size / 2, Y: tier.size / 2},
	}
}

func clusterTierFor(style ClusterStyle, count int) clusterTier {
	tiers, ok := clusterTiers[style]
	if !ok {
		tiers = clusterTiers[ClusterIssues]
	}
	tier := tiers[0]
	for _, t := range tiers {
		if count >= t.from {
			tier = t
		}
	}
	return tier
}
