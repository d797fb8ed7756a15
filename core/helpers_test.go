package core

import (
	"fmt"
	"testing"

	"github.com/signalsfoundry/detailed-router/model"
)

const testPitch = 100

// newTestTech returns alternating horizontal and vertical layers with tracks
// on every 100 dbu in both axes.
func newTestTech(numLayers, nx, ny int) *model.Technology {
	var layers []model.Layer
	var tracks []model.TrackPattern
	for i := 0; i < numLayers; i++ {
		dir := model.LayerDirHorizontal
		if i%2 == 1 {
			dir = model.LayerDirVertical
		}
		num := i + 1
		layers = append(layers, model.Layer{
			Num: num, Name: fmt.Sprintf("M%d", num), Dir: dir,
			Width: 20, Pitch: testPitch, MinSpacing: 20,
		})
		tracks = append(tracks,
			model.TrackPattern{Layer: num, Axis: model.TrackAxisX, Start: 0, Count: nx, Step: testPitch},
			model.TrackPattern{Layer: num, Axis: model.TrackAxisY, Start: 0, Count: ny, Step: testPitch},
		)
	}
	return model.NewTechnology(layers, tracks)
}

func testBox(nx, ny int) model.Rect {
	return model.NewRect(0, 0, model.Coord((nx-1)*testPitch), model.Coord((ny-1)*testPitch))
}

func newTestGrid(t *testing.T, tech *model.Technology, nx, ny int, mutate func(*InitParams)) *GridGraph {
	t.Helper()
	box := testBox(nx, ny)
	g := NewGridGraph(tech, DefaultCostConfig())
	p := InitParams{RouteBox: box, ExtBox: box, Tracks: NewTrackMaps(tech, box)}
	if mutate != nil {
		mutate(&p)
	}
	if err := g.Init(p); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return g
}

func pt(x, y, z int) GridPoint { return GridPoint{X: x, Y: y, Z: z} }
