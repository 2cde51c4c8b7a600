package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/civicmap/pkg/dataset"
)

var genOpts dataset.GenerateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a random dataset",
	Long:  `Generate random issues, organizations and infrastructure and save them as a GeoJSON FeatureCollection.`,
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.IntVarP(&genOpts.Issues, "issues", "i", 15000, "Number of issues")
	f.IntVar(&genOpts.Organizations, "orgs", 300, "Number of organizations")
	f.IntVar(&genOpts.Infrastructure, "infra", 500, "Number of infrastructure objects")
	f.Float64Var(&genOpts.OrganizationShare, "org-share", 0.3, "Fraction of issues assigned to an organization")
	f.Float64Var(&genOpts.ResolvedShare, "resolved-share", 0.2, "Fraction of issues generated as resolved")
	f.Int64Var(&genOpts.Seed, "seed", time.Now().UnixNano(), "Random seed")
	f.IntVarP(&genOpts.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	_, log, err := setup()
	if err != nil {
		return err
	}

	start := time.Now()
	d := dataset.Generate(genOpts)
	log.Info().
		Int("issues", len(d.Issues)).
		Int("organizations", len(d.Organizations)).
		Int("infrastructure", len(d.Infrastructure)).
		Dur("took", time.Since(start)).
		Msg("dataset generated")

	if err := dataset.Save(dataFile, d); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Wrote %d entities to %s", d.Len(), dataFile)))
	return nil
}
