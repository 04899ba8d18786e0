package ai

import (
	"testing"

	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/stretchr/testify/assert"
)

func TestArgmaxLegal(t *testing.T) {
	values := []float32{5, -1, 3, 3, 10}
	assert.Equal(t, 2, ArgmaxLegal(values, []int{1, 2, 3}))
	assert.Equal(t, 4, ArgmaxLegal(values, []int{0, 4}))
	assert.Equal(t, NoAction, ArgmaxLegal(values, nil))
	assert.Equal(t, float32(3), MaxLegal(values, []int{1, 3}))
	assert.Equal(t, float32(0), MaxLegal(values, nil))
}

func TestProbs(t *testing.T) {
	assert.Equal(t, []float32{0, 0.5, 0, 0.5}, UniformProbs([]int{1, 3}, 4))
	assert.Equal(t, []float32{0, 0, 1}, OneHotEncoding(3, 2))
}

func TestIsMyTurn(t *testing.T) {
	env, err := rlenv.New(rlenv.GameName)
	assert.NoError(t, err)
	ts := env.Reset()
	assert.True(t, IsMyTurn(ts, 0))
	assert.False(t, IsMyTurn(ts, 1))
	ts.StepType = rlenv.StepLast
	assert.False(t, IsMyTurn(ts, 0))
}
