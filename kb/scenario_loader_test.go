package kb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/detailed-router/model"
)

func TestLoadScenarioFile(t *testing.T) {
	store := NewKnowledgeBase()
	sc, err := LoadScenarioFile(store, "testdata/two_layer.yaml")
	require.NoError(t, err)

	assert.Equal(t, "demo", sc.Design)
	assert.Equal(t, []int{1, 2}, sc.Layers)
	assert.Equal(t, []string{"a", "b"}, sc.Nets)
	require.Len(t, sc.Schedule, 2)
	assert.Equal(t, 1, sc.Schedule[1].Index)
	assert.True(t, sc.Schedule[0].RipupAll)

	tech := store.Technology()
	assert.Equal(t, 2, tech.MaxStackedVias)
	assert.Len(t, tech.Tracks, 4)
	m2, ok := tech.Layer(2)
	require.True(t, ok)
	assert.Equal(t, model.LayerDirVertical, m2.Dir)
	assert.EqualValues(t, 4000, m2.MinArea)
	assert.Equal(t, model.ViaEnclosure{Lower: 900, Upper: 900}, tech.ViaEnclosure(1))

	wide := tech.NDR("wide")
	require.NotNil(t, wide)
	rule, ok := wide.Rule(1)
	require.True(t, ok)
	assert.EqualValues(t, 60, rule.Width)
	assert.EqualValues(t, 200, wide.TaperDistance)

	d := store.Design()
	assert.Equal(t, model.NewRect(0, 0, 900, 900), d.DieBox)
	require.Len(t, d.Nets, 2)
	assert.Equal(t, "wide", d.Nets[1].NDR)
	assert.Len(t, d.Nets[1].Pins[1].AccessPoints, 2)
	assert.Len(t, d.Guides, 1)
	assert.Len(t, d.Obstructions, 1)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(NewKnowledgeBase(), strings.NewReader("technology:\n  bogus: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode failed")
}

func TestLoadScenarioErrors(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want error
	}{
		"track on unknown layer": {
			yaml: "technology:\n  tracks:\n    - {layer: 3, axis: x, count: 2, step: 10}\n",
			want: ErrUnknownLayer,
		},
		"bad axis": {
			yaml: "technology:\n  layers:\n    - {num: 1, direction: h}\n  tracks:\n    - {layer: 1, axis: z, count: 2, step: 10}\n",
			want: ErrInvalidTrackPattern,
		},
		"net with unknown rule": {
			yaml: "design:\n  nets:\n    - {name: n, ndr: wide}\n",
			want: ErrUnknownNDR,
		},
		"guide for unknown net": {
			yaml: "technology:\n  layers:\n    - {num: 1, direction: h}\ndesign:\n  guides:\n    - {net: x, layer: 1, rect: [0, 0, 1, 1]}\n",
			want: ErrUnknownNet,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(NewKnowledgeBase(), strings.NewReader(tc.yaml))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadScenarioRejectsBadShapes(t *testing.T) {
	_, err := LoadScenario(NewKnowledgeBase(), strings.NewReader("design:\n  die: [0, 0, 1]\n"))
	require.Error(t, err)

	_, err = LoadScenario(NewKnowledgeBase(), strings.NewReader("technology:\n  layers:\n    - {num: 1, direction: diagonal}\n"))
	require.Error(t, err)

	_, err = LoadScenario(NewKnowledgeBase(), strings.NewReader("schedule:\n  - {marker_decay: 2}\n"))
	require.Error(t, err)

	_, err = LoadScenario(nil, strings.NewReader(""))
	require.Error(t, err)
}
