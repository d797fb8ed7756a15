package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/internal/observability"
	"github.com/signalsfoundry/detailed-router/internal/worker"
	"github.com/signalsfoundry/detailed-router/iterctrl"
	"github.com/signalsfoundry/detailed-router/model"
)

// leftoverWorkerID names the die-wide worker that routes nets spanning
// several regions.
const leftoverWorkerID = "die"

var errIncomplete = errors.New("routing incomplete")

type routeOptions struct {
	tile        int
	margin      int
	jobs        int
	schedule    string
	metricsAddr string
	out         string
	strict      bool
}

func newRouteCmd(g *globalOptions) *cobra.Command {
	opts := &routeOptions{}
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route every net of the scenario",
		Long: `route tiles the die into regions, routes the nets that fit inside one
region on concurrent workers and then routes the remaining nets on a die-wide
worker that treats the region routes as fixed wiring.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRoute(ctx, g, opts, cmd.OutOrStdout(), g.logger(cmd.ErrOrStderr()))
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.tile, "tile", 0, "region side in design units; 0 routes the die on one worker")
	f.IntVar(&opts.margin, "margin", 0, "extension margin around each region in design units")
	f.IntVar(&opts.jobs, "jobs", 0, "maximum concurrent region workers; 0 means no limit")
	f.StringVar(&opts.schedule, "schedule", "", "YAML file with an iteration schedule that replaces the scenario's")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables")
	f.StringVarP(&opts.out, "out", "o", "", "write the routing result as JSON to this file, or - for stdout")
	f.BoolVar(&opts.strict, "strict", false, "fail when nets stay unrouted or conflicts remain")
	return cmd
}

func runRoute(ctx context.Context, g *globalOptions, opts *routeOptions, out io.Writer, log logging.Logger) error {
	ctx, log = logging.WithRunLogger(ctx, log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	collector, err := observability.NewRouterCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(opts.metricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	store, sc, err := g.load(ctx, log)
	if err != nil {
		return err
	}
	schedule := sc.Schedule
	if opts.schedule != "" {
		if schedule, err = loadSchedule(opts.schedule); err != nil {
			return err
		}
	}

	res, err := routeDesign(ctx, store.Technology(), store.Design(), routePlan{
		tile:     model.Coord(opts.tile),
		margin:   model.Coord(opts.margin),
		jobs:     opts.jobs,
		schedule: schedule,
	}, log, collector)
	if err != nil {
		return err
	}
	res.RunID = logging.RunIDFromContext(ctx)

	printSummary(out, res)
	if opts.out != "" {
		if err := writeJSON(opts.out, out, res); err != nil {
			return err
		}
	}
	if opts.strict && (len(res.Unrouted) > 0 || res.Conflicts > 0) {
		return fmt.Errorf("%w: %d unrouted nets, %d conflicts", errIncomplete, len(res.Unrouted), res.Conflicts)
	}
	return nil
}

type routePlan struct {
	tile     model.Coord
	margin   model.Coord
	jobs     int
	schedule iterctrl.Schedule
}

// routeDesign runs one worker per region that received nets, then a die-wide
// worker for the nets no region could hold.
func routeDesign(ctx context.Context, tech *model.Technology, design *model.Design, plan routePlan, log logging.Logger, metrics worker.MetricsRecorder) (*routeResult, error) {
	die := design.DieBox
	regions, err := worker.Partition(die, plan.tile, plan.margin)
	if err != nil {
		return nil, err
	}
	assigned, leftovers := worker.AssignNets(regions, design.Nets)
	log.Info(ctx, "design partitioned",
		logging.Int("regions", len(regions)),
		logging.Int("nets", len(design.Nets)),
		logging.Int("spanning", len(leftovers)),
	)

	reports := make([]*worker.Report, len(regions))
	grp, gctx := errgroup.WithContext(ctx)
	if plan.jobs > 0 {
		grp.SetLimit(plan.jobs)
	}
	for i, r := range regions {
		i, r := i, r
		nets := assigned[r.ID]
		if len(nets) == 0 {
			continue
		}
		grp.Go(func() error {
			w := worker.New(tech, worker.RegionDesign(design, nets, r.ExtBox), worker.Config{
				ID:       r.ID,
				DieBox:   die,
				RouteBox: r.RouteBox,
				ExtBox:   r.ExtBox,
				Schedule: plan.schedule,
			}, log, worker.WithMetricsRecorder(metrics))
			defer w.Close()
			rep, err := w.Run(gctx)
			reports[i] = rep
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	if len(leftovers) > 0 {
		var fixed []worker.NetRoute
		for _, rep := range reports {
			if rep != nil {
				fixed = append(fixed, rep.Routes...)
			}
		}
		w := worker.New(tech, worker.RegionDesign(design, leftovers, die), worker.Config{
			ID:        leftoverWorkerID,
			DieBox:    die,
			RouteBox:  die,
			ExtBox:    die,
			Schedule:  plan.schedule,
			Prerouted: fixed,
		}, log, worker.WithMetricsRecorder(metrics))
		rep, err := w.Run(ctx)
		w.Close()
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}

	res := &routeResult{Design: design.Name, Regions: len(regions)}
	for _, rep := range reports {
		if rep == nil {
			continue
		}
		res.add(rep)
	}
	return res, nil
}

type routeResult struct {
	Design    string         `json:"design"`
	RunID     string         `json:"run_id,omitempty"`
	Regions   int            `json:"regions"`
	Routed    int            `json:"routed"`
	Unrouted  []string       `json:"unrouted,omitempty"`
	Conflicts int            `json:"conflicts"`
	Workers   []workerResult `json:"workers"`
}

type workerResult struct {
	ID         string      `json:"id"`
	Iterations int         `json:"iterations"`
	Converged  bool        `json:"converged"`
	Conflicts  int         `json:"conflicts"`
	Unrouted   []string    `json:"unrouted,omitempty"`
	Routes     []netResult `json:"routes"`
}

type netResult struct {
	Net      string          `json:"net"`
	Cost     core.Cost       `json:"cost"`
	Vias     int             `json:"vias"`
	Segments []segmentResult `json:"segments"`
}

type segmentResult struct {
	From      [2]model.Coord `json:"from"`
	FromLayer int            `json:"from_layer"`
	To        [2]model.Coord `json:"to"`
	ToLayer   int            `json:"to_layer"`
}

func (r *routeResult) add(rep *worker.Report) {
	wr := workerResult{
		ID:         rep.WorkerID,
		Iterations: rep.Summary.Iterations,
		Converged:  rep.Summary.Converged,
		Conflicts:  rep.Conflicts,
		Unrouted:   rep.Unrouted,
	}
	for _, nr := range rep.Routes {
		n := netResult{Net: nr.Net, Cost: nr.Cost, Vias: nr.Vias}
		for _, s := range nr.Segments {
			n.Segments = append(n.Segments, segmentResult{
				From:      [2]model.Coord{s.From.X, s.From.Y},
				FromLayer: s.FromLayer,
				To:        [2]model.Coord{s.To.X, s.To.Y},
				ToLayer:   s.ToLayer,
			})
		}
		wr.Routes = append(wr.Routes, n)
	}
	r.Workers = append(r.Workers, wr)
	r.Routed += len(rep.Routes)
	r.Unrouted = append(r.Unrouted, rep.Unrouted...)
	r.Conflicts += rep.Conflicts
}

func printSummary(w io.Writer, r *routeResult) {
	fmt.Fprintf(w, "design %s: %d routed, %d unrouted, %d conflicts\n", r.Design, r.Routed, len(r.Unrouted), r.Conflicts)
	for _, wr := range r.Workers {
		fmt.Fprintf(w, "  %-8s iterations=%d converged=%t routes=%d conflicts=%d\n",
			wr.ID, wr.Iterations, wr.Converged, len(wr.Routes), wr.Conflicts)
	}
}

func writeJSON(path string, stdout io.Writer, r *routeResult) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.RouterCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
