package posing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/pkg/errors"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("ensemble")
	require.NoError(t, err)
	assert.Equal(t, StrategyEnsemble, s)

	s, err = ParseStrategy(" Constrained ")
	require.NoError(t, err)
	assert.Equal(t, StrategyConstrained, s)

	_, err = ParseStrategy("docking")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownStrategy))
}

func TestStage_Progression(t *testing.T) {
	order := []Stage{
		StageUnembedded,
		StageConformersGenerated,
		StageAligned,
		StageScored,
		StageBestSelected,
	}
	for i := 0; i < len(order)-1; i++ {
		assert.Equal(t, order[i+1], order[i].Next())
	}
	assert.Equal(t, StageBestSelected, StageBestSelected.Next())
	assert.Equal(t, "conformers-generated", StageConformersGenerated.String())
	assert.Equal(t, "best-selected", StageBestSelected.String())
}

func TestCombine_Blend(t *testing.T) {
	s := Combine(0.8, 0.4)
	assert.InDelta(t, 0.8, s.Feature, 1e-12)
	assert.InDelta(t, 0.4, s.Protrusion, 1e-12)
	assert.InDelta(t, 0.7, s.Combined, 1e-12)
}

func TestCombine_ClipsSubScores(t *testing.T) {
	s := Combine(1.4, -0.2)
	assert.Equal(t, 1.0, s.Feature)
	assert.Equal(t, 0.0, s.Protrusion)
	assert.Equal(t, 1.0, s.Combined)

	s = Combine(-0.3, 1.8)
	assert.Equal(t, 0.0, s.Feature)
	assert.Equal(t, 1.0, s.Protrusion)
	assert.Equal(t, 0.0, s.Combined)
}
