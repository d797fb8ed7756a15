package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/detailed-router/internal/logging"
)

const scenarioHeader = `technology:
  layers:
    - {num: 1, name: M1, direction: horizontal, width: 20, pitch: 100, min_spacing: 20}
    - {num: 2, name: M2, direction: vertical, width: 20, pitch: 100, min_spacing: 20}
  tracks:
    - {layer: 1, axis: y, start: 0, count: 10, step: 100}
    - {layer: 1, axis: x, start: 0, count: 10, step: 100}
    - {layer: 2, axis: x, start: 0, count: 10, step: 100}
    - {layer: 2, axis: y, start: 0, count: 10, step: 100}
design:
  name: cli
  die: [0, 0, 900, 900]
  nets:
    - name: a
      pins:
        - {name: a0, access_points: [{x: 0, y: 0, layer: 1}]}
        - {name: a1, access_points: [{x: 400, y: 0, layer: 1}]}
    - name: c
      pins:
        - {name: c0, access_points: [{x: 0, y: 100, layer: 1}]}
        - {name: c1, access_points: [{x: 800, y: 100, layer: 1}]}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ROUTER_TRACING_ENABLED", "false")
	t.Setenv("ROUTER_LOG_LEVEL", "error")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func readResult(t *testing.T, path string) routeResult {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res routeResult
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestRouteCommandRoutesScenario(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)
	outPath := filepath.Join(t.TempDir(), "result.json")

	stdout, err := execute(t, "route", "--scenario", scenario, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "design cli: 2 routed, 0 unrouted, 0 conflicts")

	res := readResult(t, outPath)
	assert.Equal(t, "cli", res.Design)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Regions)
	require.Len(t, res.Workers, 1)
	assert.Equal(t, "w0_0", res.Workers[0].ID)
	assert.True(t, res.Workers[0].Converged)
	require.Len(t, res.Workers[0].Routes, 2)

	a := res.Workers[0].Routes[0]
	assert.Equal(t, "a", a.Net)
	assert.Zero(t, a.Vias)
	require.Len(t, a.Segments, 1)
	seg := a.Segments[0]
	ends := [][2]int32{{int32(seg.From[0]), int32(seg.From[1])}, {int32(seg.To[0]), int32(seg.To[1])}}
	assert.ElementsMatch(t, [][2]int32{{0, 0}, {400, 0}}, ends)
	assert.Equal(t, 1, seg.FromLayer)
	assert.Equal(t, 1, seg.ToLayer)
}

func TestRouteCommandTilesDesign(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)
	outPath := filepath.Join(t.TempDir(), "result.json")

	_, err := execute(t, "route", "-s", scenario, "--tile", "500", "--margin", "100", "--jobs", "2", "-o", outPath)
	require.NoError(t, err)

	res := readResult(t, outPath)
	assert.Equal(t, 4, res.Regions)
	assert.Equal(t, 2, res.Routed)
	assert.Empty(t, res.Unrouted)

	ids := make([]string, 0, len(res.Workers))
	for _, w := range res.Workers {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"w0_0", leftoverWorkerID}, ids)
	assert.Equal(t, "a", res.Workers[0].Routes[0].Net)
	assert.Equal(t, "c", res.Workers[1].Routes[0].Net)
}

func TestRouteCommandWritesJSONToStdout(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)

	stdout, err := execute(t, "route", "--scenario", scenario, "--out", "-")
	require.NoError(t, err)
	idx := strings.Index(stdout, "{")
	require.GreaterOrEqual(t, idx, 0)

	var res routeResult
	require.NoError(t, json.Unmarshal([]byte(stdout[idx:]), &res))
	assert.Equal(t, 2, res.Routed)
}

func TestRouteCommandScheduleOverride(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)
	schedule := writeFile(t, "schedule.yaml", "- {marker_decay: 0.5, drc_cost: 8, marker_cost: 32, fixed_shape_cost: 8}\n")
	outPath := filepath.Join(t.TempDir(), "result.json")

	_, err := execute(t, "route", "--scenario", scenario, "--schedule", schedule, "--out", outPath)
	require.NoError(t, err)
	res := readResult(t, outPath)
	require.Len(t, res.Workers, 1)
	assert.Equal(t, 1, res.Workers[0].Iterations)

	bad := writeFile(t, "bad.yaml", "- {marker_decay: 2}\n")
	_, err = execute(t, "route", "--scenario", scenario, "--schedule", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marker decay")
}

func TestRouteCommandStrictReportsUnroutedNets(t *testing.T) {
	walled := scenarioHeader + `  obstructions:
    - {layer: 1, rect: [200, 0, 300, 900]}
    - {layer: 2, rect: [200, 0, 300, 900]}
`
	scenario := writeFile(t, "scenario.yaml", walled)

	stdout, err := execute(t, "route", "--scenario", scenario)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 unrouted")

	_, err = execute(t, "route", "--scenario", scenario, "--strict")
	require.ErrorIs(t, err, errIncomplete)
}

func TestRouteCommandRequiresScenario(t *testing.T) {
	_, err := execute(t, "route")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--scenario is required")
}

func TestGridCommandPrintsStatsAndNodes(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)

	stdout, err := execute(t, "grid", "--scenario", scenario, "--node", "0,0,0", "--node", "99,0,0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "grid 10x10x2, 200 nodes")
	assert.Contains(t, stdout, "layer 1 (z=0): east=90")
	assert.Contains(t, stdout, "at (0,0) layer 1")
	assert.Contains(t, stdout, "off grid")
}

func TestGridCommandRegion(t *testing.T) {
	scenario := writeFile(t, "scenario.yaml", scenarioHeader)

	stdout, err := execute(t, "grid", "--scenario", scenario, "--region", "0,0,400,400")
	require.NoError(t, err)
	assert.Contains(t, stdout, "grid 5x5x2, 50 nodes")

	_, err = execute(t, "grid", "--scenario", scenario, "--region", "0,0,400")
	require.Error(t, err)
}

func TestParseGridPoint(t *testing.T) {
	p, err := parseGridPoint("3, 4,1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.X)
	assert.Equal(t, 4, p.Y)
	assert.Equal(t, 1, p.Z)

	_, err = parseGridPoint("3,4")
	require.Error(t, err)
	_, err = parseGridPoint("a,b,c")
	require.Error(t, err)
}

func TestLoadLogsKnowledgeBaseEvents(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	opts := &globalOptions{scenario: writeFile(t, "scenario.yaml", scenarioHeader)}

	store, sc, err := opts.load(context.Background(), log)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, sc.Nets)
	require.NotNil(t, store.GetNet("c"))

	out := buf.String()
	assert.Contains(t, out, `"msg":"net loaded"`)
	assert.Contains(t, out, `"net":"a"`)
	assert.Contains(t, out, `"net":"c"`)
	assert.Contains(t, out, `"msg":"scenario loaded"`)
	assert.NotContains(t, out, `"kb_updates":0`)
}
