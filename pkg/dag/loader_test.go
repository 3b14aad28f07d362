package dag

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng() *rand.Rand { return rand.New(rand.NewSource(1)) }

func TestLoadSimpleLinearDAG(t *testing.T) {
	doc := `[
		{"id":0,"deps":[],"status":"pending","partitions":2,"stats":{"avg":5}},
		{"id":1,"deps":[0],"status":"pending","partitions":2,"stats":{"avg":5,"shuffle":{"avg":3}}}
	]`
	g, err := Load([]byte(doc), rng())
	require.NoError(t, err)
	require.Len(t, g.Stages, 2)

	s0 := g.Stage(0)
	assert.Equal(t, 2, s0.Partitions)
	assert.Equal(t, 5*time.Second, s0.Stats.Avg)
	assert.Nil(t, s0.Stats.Shuffle)
	require.Len(t, s0.Tasks, 2)
	assert.Same(t, s0, s0.Tasks[0].Stage)

	s1 := g.Stage(1)
	require.NotNil(t, s1.Stats.Shuffle)
	assert.Equal(t, 3*time.Second, s1.Stats.Shuffle.Avg)
	assert.Equal(t, []int{0}, s1.Deps)
}

func TestLoadRejectsIDMismatch(t *testing.T) {
	doc := `[{"id":1,"deps":[],"partitions":1,"stats":{"avg":1}}]`
	_, err := Load([]byte(doc), rng())
	require.Error(t, err)
}

func TestLoadRejectsForwardDep(t *testing.T) {
	doc := `[
		{"id":0,"deps":[1],"partitions":1,"stats":{"avg":1}},
		{"id":1,"deps":[],"partitions":1,"stats":{"avg":1}}
	]`
	_, err := Load([]byte(doc), rng())
	require.Error(t, err)
}

func TestLoadRejectsMissingShuffleOnNonSource(t *testing.T) {
	doc := `[
		{"id":0,"deps":[],"partitions":1,"stats":{"avg":1}},
		{"id":1,"deps":[0],"partitions":1,"stats":{"avg":1}}
	]`
	_, err := Load([]byte(doc), rng())
	require.Error(t, err)
}

func TestLoadUnknownDistributionFailsFast(t *testing.T) {
	doc := `[{"id":0,"deps":[],"partitions":2,"stats":{"avg":1},
		"input":{"size":1000,"partitions":2,"distribution":{"kind":"bogus"}}}]`
	_, err := Load([]byte(doc), rng())
	require.Error(t, err)
}

func TestLoadParsesHumanSizeStrings(t *testing.T) {
	doc := `[{"id":0,"deps":[],"partitions":2,"stats":{"avg":1},
		"output":{"size":"1MB","partitions":2,"distribution":{"kind":"uniform"}}}]`
	g, err := Load([]byte(doc), rng())
	require.NoError(t, err)
	require.NotNil(t, g.Stage(0).Output)
	assert.EqualValues(t, 1000000, g.Stage(0).Output.SizeBytes)
	assert.Len(t, g.Stage(0).Output.Splits, 2)
}

func TestLoadRejectsEmptyDocument(t *testing.T) {
	_, err := Load([]byte(`[]`), rng())
	require.Error(t, err)
}
