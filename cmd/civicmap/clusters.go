package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kass/civicmap/pkg/icons"
	"github.com/kass/civicmap/pkg/layer"
	"github.com/kass/civicmap/pkg/mapview"
	"github.com/kass/civicmap/pkg/surface"
)

var (
	clusterZoom  int
	clusterLayer string
	clusterTop   int
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Print the clusters a layer shows at a zoom level",
	Long:  `Load the dataset onto an in-memory surface and list the largest clusters of one layer at the given zoom.`,
	RunE:  runClusters,
}

func init() {
	f := clustersCmd.Flags()
	f.IntVarP(&clusterZoom, "zoom", "z", 13, "Zoom level")
	f.StringVar(&clusterLayer, "layer", layer.NameIssues, "Layer to inspect: issues, organizations or infrastructure")
	f.IntVarP(&clusterTop, "top", "n", 10, "Number of clusters to print")
}

func runClusters(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	d, err := loadOrGenerate(log)
	if err != nil {
		return err
	}

	surf := surface.NewMemory()
	view := mapview.New(surf, cfg, mapview.Options{Logger: log})
	defer view.Close()
	if err := view.Mount(mapview.Props{
		Issues:             d.Issues,
		Organizations:      d.Organizations,
		Infrastructure:     d.Infrastructure,
		ShowOrganizations:  true,
		ShowInfrastructure: true,
	}); err != nil {
		return err
	}
	view.HandleZoom(clusterZoom)

	var (
		group surface.ClusterGroup
		style icons.ClusterStyle
	)
	switch clusterLayer {
	case layer.NameIssues:
		group, style = view.Issues().Snapshot().Group, icons.ClusterIssues
	case layer.NameOrganizations:
		group, style = view.Organizations().Snapshot().Group, icons.ClusterOrganizations
	case layer.NameInfrastructure:
		group, style = view.Infrastructure().Snapshot().Group, icons.ClusterInfrastructure
	default:
		return fmt.Errorf("unknown layer %q", clusterLayer)
	}
	mg, ok := group.(*surface.MemoryClusterGroup)
	if !ok {
		return fmt.Errorf("layer %s has no cluster group", clusterLayer)
	}

	clusters := mg.Clusters(clusterZoom)
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count() > clusters[j].Count() })

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s at zoom %d", clusterLayer, clusterZoom)))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d markers in %d clusters", mg.Len(), len(clusters))))
	for i, c := range clusters {
		if i == clusterTop {
			break
		}
		fmt.Fprintf(out, "%3d. %s %s %s %s\n", i+1,
			statStyle.Render(fmt.Sprintf("%6d", c.Count())),
			c.Center,
			fmt.Sprintf("%6.2f km", c.Spread()),
			dimStyle.Render(icons.ClusterColor(style, c.Count())),
		)
	}
	return nil
}
