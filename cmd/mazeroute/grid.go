package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/detailed-router/core"
	"github.com/signalsfoundry/detailed-router/internal/logging"
	"github.com/signalsfoundry/detailed-router/internal/worker"
	"github.com/signalsfoundry/detailed-router/model"
)

type gridOptions struct {
	region []int
	nodes  []string
}

func newGridCmd(g *globalOptions) *cobra.Command {
	opts := &gridOptions{}
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Build the routing grid and print its statistics",
		Long: `grid builds the routing grid of a region, loads obstructions and nets as
route would, and prints per-layer edge counts. --node dumps single grid nodes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runGrid(ctx, g, opts, cmd.OutOrStdout(), g.logger(cmd.ErrOrStderr()))
		},
	}
	f := cmd.Flags()
	f.IntSliceVar(&opts.region, "region", nil, "xmin,ymin,xmax,ymax of the region; default is the die")
	f.StringArrayVar(&opts.nodes, "node", nil, "grid index x,y,z to describe; repeatable")
	return cmd
}

func runGrid(ctx context.Context, g *globalOptions, opts *gridOptions, out io.Writer, log logging.Logger) error {
	ctx, log = logging.WithRunLogger(ctx, log)
	store, _, err := g.load(ctx, log)
	if err != nil {
		return err
	}
	design := store.Design()
	box := design.DieBox
	if len(opts.region) > 0 {
		if len(opts.region) != 4 {
			return fmt.Errorf("--region wants 4 values, got %d", len(opts.region))
		}
		box = model.Rect{
			XMin: model.Coord(opts.region[0]),
			YMin: model.Coord(opts.region[1]),
			XMax: model.Coord(opts.region[2]),
			YMax: model.Coord(opts.region[3]),
		}
	}
	points := make([]core.GridPoint, 0, len(opts.nodes))
	for _, s := range opts.nodes {
		p, err := parseGridPoint(s)
		if err != nil {
			return err
		}
		points = append(points, p)
	}

	nets, _ := worker.AssignNets([]worker.Region{{ID: "grid", RouteBox: box, ExtBox: box}}, design.Nets)
	w := worker.New(store.Technology(), worker.RegionDesign(design, nets["grid"], box), worker.Config{
		ID:       "grid",
		DieBox:   design.DieBox,
		RouteBox: box,
		ExtBox:   box,
	}, log)
	if err := w.Init(ctx); err != nil {
		return err
	}
	gg := w.Graph()
	printGridStats(out, gg)
	for _, p := range points {
		fmt.Fprintln(out, gg.DescribeNode(p.X, p.Y, p.Z))
	}
	return nil
}

func parseGridPoint(s string) (core.GridPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return core.GridPoint{}, fmt.Errorf("node %q: want x,y,z", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return core.GridPoint{}, fmt.Errorf("node %q: %w", s, err)
		}
		v[i] = n
	}
	return core.GridPoint{X: v[0], Y: v[1], Z: v[2]}, nil
}

type layerStats struct {
	east, north, up int
	blocked         int
}

func printGridStats(w io.Writer, g *core.GridGraph) {
	nx, ny, nz := g.Dims()
	c := g.Coords()
	fmt.Fprintf(w, "grid %dx%dx%d, %d nodes\n", nx, ny, nz, g.NumNodes())
	for z := 0; z < nz; z++ {
		var st layerStats
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				for _, d := range [3]model.Dir{model.DirEast, model.DirNorth, model.DirUp} {
					if !g.HasEdge(x, y, z, d) {
						continue
					}
					switch d {
					case model.DirEast:
						st.east++
					case model.DirNorth:
						st.north++
					default:
						st.up++
					}
					if g.IsBlocked(x, y, z, d) {
						st.blocked++
					}
				}
			}
		}
		fmt.Fprintf(w, "  layer %d (z=%d): east=%d north=%d up=%d blocked=%d\n",
			c.LayerNum(z), z, st.east, st.north, st.up, st.blocked)
	}
}
