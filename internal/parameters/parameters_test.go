package parameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfigString(t *testing.T) {
	params := NewFromConfigString(" epsilon=0.1, greedy,,qtable=redis://host:6379/0?a=b ")
	assert.Equal(t, Params{"epsilon": "0.1", "greedy": "", "qtable": "redis://host:6379/0?a=b"}, params)
	assert.Equal(t, []string{"epsilon", "greedy", "qtable"}, params.Keys())
	assert.Equal(t, "epsilon=0.1,greedy,qtable=redis://host:6379/0?a=b", params.String())
	assert.Empty(t, NewFromConfigString(""))
}

func TestGetParamOr(t *testing.T) {
	params := NewFromConfigString("n=3,x=0.5,b,off=false,s=abc,empty=,bad=x")

	n, err := GetParamOr(params, "n", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = GetParamOr(params, "missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	n, err = GetParamOr(params, "empty", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	x, err := GetParamOr(params, "x", float32(1))
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), x)
	x64, err := GetParamOr(params, "x", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, x64)

	b, err := GetParamOr(params, "b", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = GetParamOr(params, "off", true)
	require.NoError(t, err)
	assert.False(t, b)

	s, err := GetParamOr(params, "s", "")
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	_, err = GetParamOr(params, "bad", 1)
	assert.ErrorContains(t, err, "bad")
	_, err = GetParamOr(params, "bad", float32(1))
	assert.Error(t, err)
	_, err = GetParamOr(params, "bad", true)
	assert.Error(t, err)
	assert.Len(t, params, 7, "GetParamOr doesn't remove parameters")
}

func TestPopParamOr(t *testing.T) {
	params := NewFromConfigString("n=3,bad=x")
	n, err := PopParamOr(params, "n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = PopParamOr(params, "bad", 0)
	assert.Error(t, err)
	assert.Equal(t, Params{"bad": "x"}, params, "failed parameters are kept")
}
