package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/iterctrl"
	"github.com/signalsfoundry/detailed-router/kb"
)

type globalOptions struct {
	scenario  string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "mazeroute",
		Short: "Detailed maze router for rectilinear multi-layer grids",
		Long: `mazeroute loads a technology and design scenario from YAML, builds a
three-dimensional routing grid per region and connects every net with an A*
wavefront search under a rip-up and reroute schedule.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.scenario, "scenario", "s", "", "path to the YAML scenario")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $ROUTER_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "text or json (default $ROUTER_LOG_FORMAT or text)")

	root.AddCommand(newRouteCmd(opts), newGridCmd(opts))
	return root
}

func (o *globalOptions) logger(w io.Writer) logging.Logger {
	level := o.logLevel
	if level == "" {
		level = os.Getenv("ROUTER_LOG_LEVEL")
	}
	format := o.logFormat
	if format == "" {
		format = os.Getenv("ROUTER_LOG_FORMAT")
	}
	return logging.New(logging.Config{Level: level, Format: format, Output: w})
}

// load reads the scenario named by --scenario into a fresh knowledge base.
func (o *globalOptions) load(ctx context.Context, log logging.Logger) (*kb.KnowledgeBase, *kb.Scenario, error) {
	if o.scenario == "" {
		return nil, nil, fmt.Errorf("--scenario is required")
	}
	store := kb.NewKnowledgeBase()
	updates := 0
	unsubscribe := store.Subscribe(func(e kb.Event) {
		if e.Type == kb.EventNetAdded {
			log.Debug(ctx, "net loaded", logging.String("net", e.Net))
			return
		}
		updates++
	})
	defer unsubscribe()

	sc, err := kb.LoadScenarioFile(store, o.scenario)
	if err != nil {
		return nil, nil, err
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", o.scenario),
		logging.String("design", sc.Design),
		logging.Int("layers", len(sc.Layers)),
		logging.Int("nets", len(sc.Nets)),
		logging.Int("kb_updates", updates),
	)
	return store, sc, nil
}

// loadSchedule reads a YAML list of iterations that replaces the scenario
// schedule.
func loadSchedule(path string) (iterctrl.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var its []iterctrl.Iteration
	if err := yaml.Unmarshal(data, &its); err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", path, err)
	}
	s := iterctrl.Schedule(its).Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", path, err)
	}
	return s, nil
}
