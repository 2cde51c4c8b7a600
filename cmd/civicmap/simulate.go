package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kass/civicmap/pkg/config"
	"github.com/kass/civicmap/pkg/dataset"
	"github.com/kass/civicmap/pkg/layer"
	"github.com/kass/civicmap/pkg/mapview"
	"github.com/kass/civicmap/pkg/metrics"
	"github.com/kass/civicmap/pkg/models"
	"github.com/kass/civicmap/pkg/surface"
)

var (
	metricsAddr    string
	fallbackIssues int
	resolveShare   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a session of map interactions",
	Long: `Mount the map on an in-memory surface, replay zooms, visibility toggles, a data
refresh and locate requests, then report the work each layer phase did.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address and wait for a signal")
	f.IntVarP(&fallbackIssues, "issues", "i", 15000, "Issues to generate when the dataset file does not exist")
	f.Float64Var(&resolveShare, "resolve", 0.1, "Fraction of issues resolved by the data refresh step")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := loadOrGenerate(log)
	if err != nil {
		return err
	}

	m := metrics.New()
	var srv *http.Server
	if metricsAddr != "" {
		srv = serveMetrics(metricsAddr, m, log)
	}

	surf := surface.NewMemory()
	view := mapview.New(surf, cfg, mapview.Options{Logger: log, Metrics: m})
	defer view.Close()

	start := time.Now()
	replay(view, d, cfg, log)
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("civicmap simulation"))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d issues, %d organizations, %d infrastructure objects",
		len(d.Issues), len(d.Organizations), len(d.Infrastructure))))
	fmt.Fprintln(out, statsTable(map[string]layer.Stats{
		layer.NameIssues:         view.Issues().Stats(),
		layer.NameOrganizations:  view.Organizations().Stats(),
		layer.NameInfrastructure: view.Infrastructure().Stats(),
	}, []string{layer.NameIssues, layer.NameOrganizations, layer.NameInfrastructure}))

	c := surf.Counters()
	fmt.Fprintf(out, "icon cache entries: %s  lookups: %s  markers built: %s  heat layers: %s  flights: %s\n",
		statStyle.Render(fmt.Sprint(view.Factory().Cache().Len())),
		statStyle.Render(fmt.Sprint(view.Factory().Lookups())),
		statStyle.Render(fmt.Sprint(c.Markers)),
		statStyle.Render(fmt.Sprint(c.HeatLayers)),
		statStyle.Render(fmt.Sprint(len(surf.Flights()))),
	)
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("replayed in %v", elapsed.Round(time.Microsecond))))

	if srv == nil {
		return nil
	}
	log.Info().Str("addr", metricsAddr).Msg("serving metrics until interrupted")
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadOrGenerate(log zerolog.Logger) (*dataset.Dataset, error) {
	d, err := dataset.Load(dataFile)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	log.Warn().Str("path", dataFile).Int("issues", fallbackIssues).Msg("dataset not found, generating one in memory")
	return dataset.Generate(dataset.GenerateOptions{
		Issues:            fallbackIssues,
		Organizations:     fallbackIssues / 50,
		Infrastructure:    fallbackIssues / 30,
		OrganizationShare: 0.3,
		ResolvedShare:     0.2,
		Seed:              1,
	}), nil
}

func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

// replay drives the view through a fixed session
func replay(view *mapview.View, d *dataset.Dataset, cfg config.Config, log zerolog.Logger) {
	center := dataset.TashkentBounds.BottomLeft
	if len(d.Issues) > 0 {
		center = d.Issues[0].Location
	}

	var selected, orgSelected int
	props := mapview.Props{
		Issues:              d.Issues,
		Organizations:       d.Organizations,
		Infrastructure:      d.Infrastructure,
		ShowOrganizations:   true,
		ShowInfrastructure:  true,
		OnIssueClick:        func(*models.Issue) { selected++ },
		OnOrganizationClick: func(*models.Organization) { orgSelected++ },
		UserLocation:        &center,
	}
	if err := view.Mount(props); err != nil {
		log.Warn().Err(err).Msg("map mounted with disabled layers")
	}

	// zoom in past the icon threshold and back out
	for z := cfg.Viewport.InitialZoom; z <= 18; z++ {
		view.HandleZoom(z)
	}
	for z := 18; z >= 8; z-- {
		view.HandleZoom(z)
	}

	props.ShowHeatmap = true
	view.Apply(props)
	view.HandleZoom(12)
	props.ShowHeatmap = false
	view.Apply(props)

	props.ShowOrganizations = false
	view.Apply(props)
	props.ShowOrganizations = true
	view.Apply(props)

	props.Issues = resolveSome(d.Issues, resolveShare)
	view.Apply(props)

	for _, trigger := range []int64{1, 1, 2} {
		props.LocateTrigger = trigger
		view.Apply(props)
	}

	// a click on the first issue marker still reaches the handler given at mount
	if markers := view.Issues().Snapshot().Markers; len(markers) > 0 {
		if mm, ok := markers[0].(*surface.MemoryMarker); ok {
			mm.Click()
		}
	}
	log.Debug().Int("issue_clicks", selected).Int("org_clicks", orgSelected).Msg("session replayed")
}

// resolveSome returns a new snapshot with the first share of issues resolved.
// Issues are copied so the previous snapshot stays untouched.
func resolveSome(issues []*models.Issue, share float64) []*models.Issue {
	n := int(float64(len(issues)) * share)
	next := make([]*models.Issue, len(issues))
	for i, issue := range issues {
		if i < n {
			resolved := *issue
			resolved.Status = models.StatusResolved
			next[i] = &resolved
			continue
		}
		next[i] = issue
	}
	return next
}
