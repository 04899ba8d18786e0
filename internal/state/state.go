// Package state holds the Gomoku board and its rules: a 15x15 grid where
// players alternately place a stone, and the first to line up five stones
// (horizontally, vertically or diagonally) wins.
package state

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

const (
	// NumPlayers in Gomoku is always 2.
	NumPlayers = 2

	// NumRows and NumCols of the board.
	NumRows = 15
	NumCols = 15

	// NumPoints is the number of intersections, and also the number of distinct actions.
	NumPoints = NumRows * NumCols

	// NumPointStates is the number of values a point can take: empty, black or white.
	NumPointStates = 3

	// ObservationSize is the length of the one-hot observation vector.
	ObservationSize = NumPointStates * NumPoints

	// WinLength is the number of consecutive stones needed to win.
	WinLength = 5

	// MaxGameLength is reached when the board is full.
	MaxGameLength = NumPoints

	MinUtility = -1.0
	MaxUtility = 1.0
	UtilitySum = 0.0
)

// ObservationShape is the shape of the observation vector: one plane per PointState.
var ObservationShape = []int{NumPointStates, NumRows, NumCols}

// PlayerNum is the either 0 or 1 corresponding to the first player to move (black) or the second (white).
type PlayerNum uint8

const (
	PlayerFirst PlayerNum = iota
	PlayerSecond

	// PlayerInvalid represents an invalid PlayerNum: it is returned as the current player of finished games.
	PlayerInvalid
)

func (p PlayerNum) String() string {
	switch p {
	case PlayerFirst:
		return "First"
	case PlayerSecond:
		return "Second"
	default:
		return "Invalid"
	}
}

// Opponent returns the other player.
func (p PlayerNum) Opponent() PlayerNum {
	return 1 - p
}

// PointState is the content of one point of the board.
type PointState uint8

const (
	Empty PointState = iota
	Black
	White
)

var pointStateSymbols = [NumPointStates]string{".", "x", "o"}

func (s PointState) String() string {
	if int(s) >= len(pointStateSymbols) {
		return "?"
	}
	return pointStateSymbols[s]
}

// StoneOf returns the stone color placed by the player.
func StoneOf(player PlayerNum) PointState {
	return PointState(player + 1)
}

// Action is the index of the point where the stone is placed: row*NumCols + col.
type Action int

// ActionAt returns the action for the given row and column.
func ActionAt(row, col int) Action {
	return Action(row*NumCols + col)
}

// Row of the point of the action.
func (a Action) Row() int { return int(a) / NumCols }

// Col of the point of the action.
func (a Action) Col() int { return int(a) % NumCols }

// Valid returns whether the action points inside the board.
func (a Action) Valid() bool { return a >= 0 && a < NumPoints }

// Board is the Gomoku game state.
//
// The winner is tracked incrementally: after each move only the lines through the last
// stone are checked.
type Board struct {
	points     [NumPoints]PointState
	NextPlayer PlayerNum
	history    []Action
	winner     PlayerNum
}

// NewBoard creates an empty board with the first player (black) to move.
func NewBoard() *Board {
	return &Board{
		NextPlayer: PlayerFirst,
		history:    make([]Action, 0, MaxGameLength),
		winner:     PlayerInvalid,
	}
}

// Clone makes a deep copy of the board.
func (b *Board) Clone() *Board {
	newB := &Board{}
	*newB = *b
	newB.history = slices.Clone(b.history)
	return newB
}

// At returns the content of the point of the given action.
func (b *Board) At(a Action) PointState {
	return b.points[a]
}

// MoveNumber is the number of stones placed so far.
func (b *Board) MoveNumber() int {
	return len(b.history)
}

// History returns a copy of the actions taken so far.
func (b *Board) History() []Action {
	return slices.Clone(b.history)
}

// LastAction returns the last action taken, or -1 if the board is empty.
func (b *Board) LastAction() Action {
	if len(b.history) == 0 {
		return -1
	}
	return b.history[len(b.history)-1]
}

// IsFull returns whether there are no more empty points.
func (b *Board) IsFull() bool {
	return len(b.history) == NumPoints
}

// Winner returns the winner, if there is one.
func (b *Board) Winner() (PlayerNum, bool) {
	return b.winner, b.winner != PlayerInvalid
}

// IsFinished returns whether the game is over, either by a win or a full board.
func (b *Board) IsFinished() bool {
	return b.winner != PlayerInvalid || b.IsFull()
}

// CurrentPlayer returns the player to move, or PlayerInvalid if the game is over.
func (b *Board) CurrentPlayer() PlayerNum {
	if b.IsFinished() {
		return PlayerInvalid
	}
	return b.NextPlayer
}

// IsLegal returns whether the action can be taken on the current board.
func (b *Board) IsLegal(a Action) bool {
	return a.Valid() && !b.IsFinished() && b.points[a] == Empty
}

// LegalActions returns the empty points in increasing order, or nil if the game is over.
func (b *Board) LegalActions() []Action {
	if b.IsFinished() {
		return nil
	}
	actions := make([]Action, 0, NumPoints-len(b.history))
	for point, s := range b.points {
		if s == Empty {
			actions = append(actions, Action(point))
		}
	}
	return actions
}

// ApplyAction places the current player's stone in place and passes the turn.
func (b *Board) ApplyAction(a Action) error {
	if !a.Valid() {
		return errors.Errorf("action %d is out of the board (0 to %d)", a, NumPoints-1)
	}
	if b.IsFinished() {
		return errors.Errorf("action %s on a finished game", b.ActionToString(b.NextPlayer, a))
	}
	if b.points[a] != Empty {
		return errors.Errorf("action %s on an occupied point (%s)",
			b.ActionToString(b.NextPlayer, a), b.points[a])
	}
	player := b.NextPlayer
	b.points[a] = StoneOf(player)
	b.history = append(b.history, a)
	if b.lineLengthThrough(a) >= WinLength {
		b.winner = player
	}
	b.NextPlayer = player.Opponent()
	return nil
}

// Act returns a new board with the action applied. The receiver is not changed.
func (b *Board) Act(a Action) (*Board, error) {
	newB := b.Clone()
	if err := newB.ApplyAction(a); err != nil {
		return nil, err
	}
	return newB, nil
}

// UndoAction reverts the last action, taken by player.
func (b *Board) UndoAction(player PlayerNum, a Action) error {
	if len(b.history) == 0 || b.history[len(b.history)-1] != a {
		return errors.Errorf("can only undo the last action (%d), got %d", b.LastAction(), a)
	}
	if b.points[a] != StoneOf(player) {
		return errors.Errorf("point %d doesn't hold a stone of player %s", a, player)
	}
	b.points[a] = Empty
	b.history = b.history[:len(b.history)-1]
	b.NextPlayer = player
	// Games stop at the first five, so a winner could only come from the undone move.
	b.winner = PlayerInvalid
	return nil
}

// directions to scan lines: horizontal, vertical, diagonal and anti-diagonal.
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// lineLengthThrough returns the longest run of same-colored stones that includes the point a.
func (b *Board) lineLengthThrough(a Action) int {
	stone := b.points[a]
	if stone == Empty {
		return 0
	}
	row0, col0 := a.Row(), a.Col()
	longest := 0
	for _, dir := range directions {
		count := 1
		for _, sign := range [2]int{1, -1} {
			row, col := row0+sign*dir[0], col0+sign*dir[1]
			for row >= 0 && row < NumRows && col >= 0 && col < NumCols && b.points[ActionAt(row, col)] == stone {
				count++
				row, col = row+sign*dir[0], col+sign*dir[1]
			}
		}
		longest = max(longest, count)
	}
	return longest
}

// HasFive scans the whole board for five consecutive stones of the player.
// Longer lines also count.
func (b *Board) HasFive(player PlayerNum) bool {
	stone := StoneOf(player)
	for row := range NumRows {
		for col := range NumCols {
			for _, dir := range directions {
				endRow, endCol := row+(WinLength-1)*dir[0], col+(WinLength-1)*dir[1]
				if endRow < 0 || endRow >= NumRows || endCol < 0 || endCol >= NumCols {
					continue
				}
				count := 0
				for ii := range WinLength {
					if b.points[ActionAt(row+ii*dir[0], col+ii*dir[1])] != stone {
						break
					}
					count++
				}
				if count == WinLength {
					return true
				}
			}
		}
	}
	return false
}

// Returns the final utilities for each player: +1 for the winner, -1 for the loser, 0 for draws
// and for games still in progress.
func (b *Board) Returns() []float32 {
	switch b.winner {
	case PlayerFirst:
		return []float32{MaxUtility, MinUtility}
	case PlayerSecond:
		return []float32{MinUtility, MaxUtility}
	default:
		return []float32{0, 0}
	}
}

// ActionToString returns the stone of the player and the (col,row) coordinates, e.g.: "x(7,3)".
func (b *Board) ActionToString(player PlayerNum, a Action) string {
	return fmt.Sprintf("%s(%d,%d)", StoneOf(player), a.Col(), a.Row())
}

// String renders the board one row per line, without a trailing new line.
func (b *Board) String() string {
	var sb strings.Builder
	sb.Grow(NumPoints + NumRows)
	for row := range NumRows {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := range NumCols {
			sb.WriteString(b.points[ActionAt(row, col)].String())
		}
	}
	return sb.String()
}

// checkPlayer panics if player is not a valid player.
func checkPlayer(player PlayerNum) {
	if player >= NumPlayers {
		exceptions.Panicf("invalid player %d, it must be 0 or 1", player)
	}
}

// InformationState is the history of actions, separated by spaces: Gomoku has perfect information.
func (b *Board) InformationState(player PlayerNum) string {
	checkPlayer(player)
	parts := make([]string, len(b.history))
	for ii, a := range b.history {
		parts[ii] = strconv.Itoa(int(a))
	}
	return strings.Join(parts, " ")
}

// Observation is the board rendering, the same for both players.
func (b *Board) Observation(player PlayerNum) string {
	checkPlayer(player)
	return b.String()
}

// ObservationTensor returns the one-hot encoding of the board: for each PointState a plane with
// NumPoints values, where value[NumPoints*pointState + point] is 1 if the point holds that state.
func (b *Board) ObservationTensor(player PlayerNum) []float32 {
	values := make([]float32, ObservationSize)
	b.FillObservationTensor(player, values)
	return values
}

// FillObservationTensor is like ObservationTensor, but writes to the given slice, which must have
// length ObservationSize.
func (b *Board) FillObservationTensor(player PlayerNum, values []float32) {
	checkPlayer(player)
	if len(values) != ObservationSize {
		exceptions.Panicf("observation tensor must have size %d, got %d", ObservationSize, len(values))
	}
	clear(values)
	for point, s := range b.points {
		values[NumPoints*int(s)+point] = 1
	}
}
