package worker

import (
	"testing"

	"github.com/signalsfoundry/detailed-router/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionTilesDie(t *testing.T) {
	die := model.NewRect(0, 0, 999, 999)
	regions, err := Partition(die, 500, 100)
	require.NoError(t, err)
	require.Len(t, regions, 4)

	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"w0_0", "w1_0", "w0_1", "w1_1"}, ids)
	assert.Equal(t, model.NewRect(500, 0, 999, 499), regions[1].RouteBox)
	assert.Equal(t, model.NewRect(0, 0, 599, 599), regions[0].ExtBox)
	assert.Equal(t, model.NewRect(400, 400, 999, 999), regions[3].ExtBox)
}

func TestPartitionClipsLastTile(t *testing.T) {
	regions, err := Partition(model.NewRect(0, 0, 1199, 399), 500, 0)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, model.NewRect(1000, 0, 1199, 399), regions[2].RouteBox)
	assert.Equal(t, regions[2].RouteBox, regions[2].ExtBox)
}

func TestPartitionWholeDie(t *testing.T) {
	die := model.NewRect(0, 0, 900, 900)
	regions, err := Partition(die, 0, 50)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, die, regions[0].RouteBox)
	assert.Equal(t, die, regions[0].ExtBox)
}

func TestPartitionRejectsBadInput(t *testing.T) {
	_, err := Partition(model.Rect{XMin: 10, XMax: 0}, 100, 0)
	assert.Error(t, err)
	_, err = Partition(model.NewRect(0, 0, 100, 100), 100, -1)
	assert.Error(t, err)
}

func TestAssignNets(t *testing.T) {
	regions, err := Partition(model.NewRect(0, 0, 999, 999), 500, 100)
	require.NoError(t, err)
	nets := []model.Net{
		twoPinNet("inner", 1, 600, 600, 900, 900),
		twoPinNet("spanning", 1, 100, 100, 900, 900),
		twoPinNet("corner", 1, 0, 0, 400, 400),
	}

	assigned, leftovers := AssignNets(regions, nets)
	require.Len(t, assigned["w1_1"], 1)
	assert.Equal(t, "inner", assigned["w1_1"][0].Name)
	require.Len(t, assigned["w0_0"], 1)
	assert.Equal(t, "corner", assigned["w0_0"][0].Name)
	require.Len(t, leftovers, 1)
	assert.Equal(t, "spanning", leftovers[0].Name)
}

func TestRegionDesignFiltersByExtension(t *testing.T) {
	d := &model.Design{
		Name:   "chip",
		DieBox: model.NewRect(0, 0, 999, 999),
		Guides: []model.Guide{
			{Net: "a", Layer: 1, Rect: model.NewRect(0, 0, 100, 100)},
			{Net: "a", Layer: 1, Rect: model.NewRect(800, 800, 900, 900)},
			{Net: "b", Layer: 1, Rect: model.NewRect(0, 0, 100, 100)},
		},
		Obstructions: []model.Obstruction{
			{Layer: 1, Rect: model.NewRect(50, 50, 60, 60)},
			{Layer: 1, Rect: model.NewRect(700, 700, 750, 750)},
		},
	}
	out := RegionDesign(d, []model.Net{{Name: "a"}}, model.NewRect(0, 0, 599, 599))

	assert.Equal(t, "chip", out.Name)
	require.Len(t, out.Guides, 1)
	assert.Equal(t, model.NewRect(0, 0, 100, 100), out.Guides[0].Rect)
	require.Len(t, out.Obstructions, 1)
	assert.Equal(t, model.NewRect(50, 50, 60, 60), out.Obstructions[0].Rect)
}
