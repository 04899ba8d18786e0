package state_test

import (
	"bytes"
	"encoding/gob"
	"math/rand/v2"
	"strings"
	"testing"

	. "github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playAll applies the actions in order, failing the test on error.
func playAll(t *testing.T, actions ...Action) *Board {
	b := NewBoard()
	for _, a := range actions {
		require.NoError(t, b.ApplyAction(a))
	}
	return b
}

func TestNewBoard(t *testing.T) {
	b := NewBoard()
	assert.Equal(t, PlayerFirst, b.CurrentPlayer())
	assert.Len(t, b.LegalActions(), NumPoints)
	assert.False(t, b.IsFinished())
	assert.Equal(t, []float32{0, 0}, b.Returns())
	assert.Equal(t, "", b.InformationState(PlayerFirst))
	lines := strings.Split(b.String(), "\n")
	require.Len(t, lines, NumRows)
	for _, line := range lines {
		assert.Equal(t, strings.Repeat(".", NumCols), line)
	}
}

func TestApplyAction(t *testing.T) {
	b := NewBoard()
	require.NoError(t, b.ApplyAction(ActionAt(3, 7)))
	assert.Equal(t, Black, b.At(ActionAt(3, 7)))
	assert.Equal(t, PlayerSecond, b.CurrentPlayer())
	assert.Len(t, b.LegalActions(), NumPoints-1)
	assert.NotContains(t, b.LegalActions(), ActionAt(3, 7))

	// Occupied and out-of-board points.
	assert.Error(t, b.ApplyAction(ActionAt(3, 7)))
	assert.Error(t, b.ApplyAction(-1))
	assert.Error(t, b.ApplyAction(NumPoints))

	require.NoError(t, b.ApplyAction(0))
	assert.Equal(t, White, b.At(0))
	assert.Equal(t, "52 0", b.InformationState(PlayerSecond))
	assert.Equal(t, "x(7,3)", b.ActionToString(PlayerFirst, ActionAt(3, 7)))
	assert.Equal(t, "o(14,0)", b.ActionToString(PlayerSecond, ActionAt(0, 14)))

	// Act doesn't change the receiver.
	b2, err := b.Act(1)
	require.NoError(t, err)
	assert.Equal(t, Empty, b.At(1))
	assert.Equal(t, Black, b2.At(1))
}

func TestWinningLines(t *testing.T) {
	testCases := []struct {
		name   string
		black  []Action
		white  []Action
		winner PlayerNum
	}{
		{"horizontal", []Action{ActionAt(0, 0), ActionAt(0, 1), ActionAt(0, 2), ActionAt(0, 3), ActionAt(0, 4)},
			[]Action{ActionAt(5, 0), ActionAt(5, 1), ActionAt(5, 2), ActionAt(5, 3)}, PlayerFirst},
		{"vertical", []Action{ActionAt(10, 14), ActionAt(11, 14), ActionAt(12, 14), ActionAt(13, 14), ActionAt(1, 1)},
			[]Action{ActionAt(2, 2), ActionAt(3, 2), ActionAt(4, 2), ActionAt(5, 2), ActionAt(6, 2)}, PlayerSecond},
		{"diagonal", []Action{ActionAt(4, 4), ActionAt(5, 5), ActionAt(7, 7), ActionAt(8, 8), ActionAt(6, 6)},
			[]Action{ActionAt(0, 1), ActionAt(0, 2), ActionAt(0, 3), ActionAt(0, 5)}, PlayerFirst},
		{"anti-diagonal", []Action{ActionAt(0, 0), ActionAt(0, 2), ActionAt(0, 4), ActionAt(0, 6), ActionAt(14, 14)},
			[]Action{ActionAt(4, 10), ActionAt(5, 9), ActionAt(6, 8), ActionAt(7, 7), ActionAt(8, 6)}, PlayerSecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBoard()
			for ii := 0; !b.IsFinished(); ii++ {
				if b.NextPlayer == PlayerFirst {
					require.NoError(t, b.ApplyAction(tc.black[ii/2]))
				} else {
					require.NoError(t, b.ApplyAction(tc.white[ii/2]))
				}
			}
			winner, ok := b.Winner()
			require.True(t, ok)
			assert.Equal(t, tc.winner, winner)
			assert.True(t, b.HasFive(tc.winner))
			assert.False(t, b.HasFive(tc.winner.Opponent()))
			assert.Equal(t, PlayerInvalid, b.CurrentPlayer())
			assert.Empty(t, b.LegalActions())
			returns := b.Returns()
			assert.Equal(t, float32(MaxUtility), returns[tc.winner])
			assert.Equal(t, float32(MinUtility), returns[tc.winner.Opponent()])
			assert.Error(t, b.ApplyAction(b.LastAction()+1))
		})
	}
}

func TestOverline(t *testing.T) {
	// Black fills (7,0..2) and (7,4..5), then closes the gap at (7,3) with six in a row.
	b := playAll(t,
		ActionAt(7, 0), ActionAt(0, 0),
		ActionAt(7, 1), ActionAt(0, 2),
		ActionAt(7, 2), ActionAt(0, 4),
		ActionAt(7, 4), ActionAt(0, 6),
		ActionAt(7, 5), ActionAt(0, 8),
	)
	assert.False(t, b.IsFinished())
	require.NoError(t, b.ApplyAction(ActionAt(7, 3)))
	winner, ok := b.Winner()
	require.True(t, ok)
	assert.Equal(t, PlayerFirst, winner)
}

func TestIncrementalWinMatchesFullScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	for range 200 {
		b := NewBoard()
		for !b.IsFinished() {
			legal := b.LegalActions()
			require.NoError(t, b.ApplyAction(legal[rng.IntN(len(legal))]))
			winner, ok := b.Winner()
			fullScan := b.HasFive(PlayerFirst) || b.HasFive(PlayerSecond)
			require.Equal(t, fullScan, ok, "board:\n%s", b)
			if ok {
				require.True(t, b.HasFive(winner))
			}
		}
		assert.Equal(t, b.HasFive(PlayerFirst) || b.HasFive(PlayerSecond) || b.IsFull(), b.IsFinished())
	}
}

func TestUndoAction(t *testing.T) {
	b := playAll(t, ActionAt(7, 7), ActionAt(7, 8))
	before := b.Clone()
	require.NoError(t, b.ApplyAction(ActionAt(8, 8)))
	assert.Error(t, b.UndoAction(PlayerFirst, ActionAt(7, 7)), "only the last action can be undone")
	require.NoError(t, b.UndoAction(PlayerFirst, ActionAt(8, 8)))
	assert.Equal(t, before.String(), b.String())
	assert.Equal(t, before.History(), b.History())
	assert.Equal(t, PlayerFirst, b.CurrentPlayer())

	// Undoing a winning move resumes the game.
	b = playAll(t, 0, 15, 1, 16, 2, 17, 3, 18, 4)
	require.True(t, b.IsFinished())
	require.NoError(t, b.UndoAction(PlayerFirst, 4))
	assert.False(t, b.IsFinished())
	assert.Equal(t, PlayerFirst, b.CurrentPlayer())
}

func TestObservationTensor(t *testing.T) {
	b := playAll(t, ActionAt(1, 2), ActionAt(3, 4))
	obs := b.ObservationTensor(PlayerFirst)
	require.Len(t, obs, ObservationSize)
	assert.Equal(t, []int{NumPointStates, NumRows, NumCols}, ObservationShape)
	var sum float32
	for _, v := range obs {
		sum += v
	}
	assert.Equal(t, float32(NumPoints), sum, "exactly one plane set per point")
	assert.Equal(t, float32(1), obs[NumPoints*int(Black)+int(ActionAt(1, 2))])
	assert.Equal(t, float32(1), obs[NumPoints*int(White)+int(ActionAt(3, 4))])
	assert.Equal(t, float32(0), obs[NumPoints*int(Empty)+int(ActionAt(3, 4))])
	assert.Equal(t, float32(1), obs[NumPoints*int(Empty)+0])

	// Absolute encoding: both players see the same vector.
	assert.Equal(t, obs, b.ObservationTensor(PlayerSecond))
	assert.Equal(t, b.String(), b.Observation(PlayerSecond))
	assert.Panics(t, func() { b.ObservationTensor(PlayerInvalid) })
}

func TestMatchEncoding(t *testing.T) {
	b := playAll(t, 0, 15, 1, 16, 2, 17, 3, 18, 4)
	buf := &bytes.Buffer{}
	require.NoError(t, EncodeMatch(gob.NewEncoder(buf), b.History(), b.Returns()))

	final, actions, returns, err := DecodeMatch(gob.NewDecoder(buf))
	require.NoError(t, err)
	assert.Equal(t, b.History(), actions)
	assert.Equal(t, []float32{1, -1}, returns)
	assert.Equal(t, b.String(), final.String())
	assert.True(t, final.IsFinished())
}
