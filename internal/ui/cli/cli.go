// Package cli implements a command-line UI to play against an agent.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	. "github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/pkg/errors"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// MaxInputErrors is the number of consecutive invalid inputs accepted before giving up.
const MaxInputErrors = 3

// ErrTooManyInputErrors is returned when the human failed to enter a valid move MaxInputErrors times.
var ErrTooManyInputErrors = errors.Errorf("failed to read a valid move %d times", MaxInputErrors)

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// displayWidth of s removes its color/control sequences and returns the length of what is left.
func displayWidth(s string) int {
	return len(ansiFilter.ReplaceAllString(s, ""))
}

// IsInteractive returns whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// UI plays through a text terminal.
type UI struct {
	color, clearScreen bool
	reader             *bufio.Reader
	out                io.Writer
}

var (
	stoneParser = regexp.MustCompile(`^([XO])\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)
	pairParser  = regexp.MustCompile(`^(\d+)[\s,]+(\d+)$`)
	indexParser = regexp.MustCompile(`^(\d+)$`)
)

// New creates a UI reading moves from in and printing to out.
// If in or out are nil, os.Stdin and os.Stdout are used.
func New(in io.Reader, out io.Writer, color bool, clearScreen bool) *UI {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &UI{
		color:       color,
		clearScreen: clearScreen,
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

func (ui *UI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(ui.out, format, args...)
}

func (ui *UI) println(args ...any) {
	_, _ = fmt.Fprintln(ui.out, args...)
}

// printCentered prints the block centered in the terminal, if printing to one.
func (ui *UI) printCentered(block string) {
	lines := strings.Split(block, "\n")
	terminalWidth := 0
	if f, ok := ui.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		terminalWidth, _, _ = term.GetSize(int(f.Fd()))
	}
	blockWidth := 0
	for _, line := range lines {
		blockWidth = max(blockWidth, displayWidth(line))
	}
	indent := max((terminalWidth-blockWidth)/2, 0)
	for _, line := range lines {
		if len(line) == 0 {
			ui.println()
			continue
		}
		ui.printf("%s%s\n", strings.Repeat(" ", indent), line)
	}
}

// PlayAgainst plays a full game of the human (reading moves from the UI input) against the agent.
// humanPlayer is the seat of the human, and the agent must play the other one.
//
// It returns the final returns of each player.
func (ui *UI) PlayAgainst(env *rlenv.Environment, agent ai.Agent, humanPlayer int) ([]float32, error) {
	if humanPlayer < 0 || humanPlayer >= env.NumPlayers() {
		return nil, errors.Errorf("invalid human player %d", humanPlayer)
	}
	if agent.PlayerID() == humanPlayer {
		return nil, errors.Errorf("agent %s is playing the human's seat %d", agent, humanPlayer)
	}
	ts := env.Reset()
	for !ts.Last() {
		board := env.State()
		player := ts.CurrentPlayer()
		var action Action
		if player == humanPlayer {
			ui.Print(board, true)
			var err error
			action, err = ui.ReadCommand(board)
			if err != nil {
				return nil, err
			}
		} else {
			output := agent.Step(ts, true)
			if output.Action == ai.NoAction {
				return nil, errors.Errorf("agent %s returned no action at its turn", agent)
			}
			action = Action(output.Action)
			klog.V(1).Infof("Agent %s played %s", agent, board.ActionToString(PlayerNum(player), action))
		}
		var err error
		ts, err = env.Step([]int{int(action)})
		if err != nil {
			return nil, err
		}
	}
	agent.Step(ts, true)
	ui.Print(env.State(), false)
	ui.PrintWinner(env.State(), humanPlayer)
	return ts.Rewards, nil
}

// PrintWinner prints the result of a finished game.
func (ui *UI) PrintWinner(b *Board, humanPlayer int) {
	winner, ok := b.Winner()
	ui.println()
	style := lipgloss.NewStyle().Padding(1, 2)
	if ui.color {
		style = style.Background(lipgloss.Color("13")).Foreground(lipgloss.Color("0"))
	}
	switch {
	case !ok:
		ui.printCentered(style.Render("*** DRAW: the board is full! ***"))
	case int(winner) == humanPlayer:
		ui.printCentered(style.Render(fmt.Sprintf("*** %s WINS!! Congratulations! ***",
			strings.ToUpper(ui.playerName(winner)))))
	default:
		ui.printCentered(style.Render(fmt.Sprintf("*** %s wins, better luck next time. ***", ui.playerName(winner))))
	}
	ui.println()
}

// ReadCommand reads the next human move, accepting "col row", "x(col,row)" or the action index.
// After MaxInputErrors invalid inputs it returns ErrTooManyInputErrors.
func (ui *UI) ReadCommand(b *Board) (action Action, err error) {
	player := b.CurrentPlayer()
	for range MaxInputErrors {
		ui.printf("    %s action > ", ui.playerName(player))
		var text string
		text, err = ui.reader.ReadString('\n')
		if err != nil && (err != io.EOF || text == "") {
			err = errors.Wrap(err, "failed to read move")
			return
		}
		ui.println()
		var parseErr error
		action, parseErr = ParseAction(text)
		if parseErr != nil {
			ui.printf("    * %v, please try again.\n", parseErr)
			continue
		}
		if !b.IsLegal(action) {
			ui.printf("    * %s is not a legal move, the point must be empty.\n", b.ActionToString(player, action))
			continue
		}
		err = nil
		return
	}
	err = ErrTooManyInputErrors
	return
}

// AskYesNo asks the question and returns whether the answer was yes. Anything else, including a read error,
// is a no.
func (ui *UI) AskYesNo(question string) bool {
	ui.printf("%s [y/N] ", question)
	answer, err := ui.reader.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// ParseAction parses a move given as "col row", "x(col,row)" / "o(col,row)" or as an action index.
// It doesn't check whether the move is legal.
func ParseAction(text string) (Action, error) {
	text = strings.ToUpper(strings.TrimSpace(text))
	var col, row string
	if matches := stoneParser.FindStringSubmatch(text); len(matches) == 4 {
		col, row = matches[2], matches[3]
	} else if matches = pairParser.FindStringSubmatch(text); len(matches) == 3 {
		col, row = matches[1], matches[2]
	} else if matches = indexParser.FindStringSubmatch(text); len(matches) == 2 {
		index, err := strconv.Atoi(matches[1])
		if err != nil || !Action(index).Valid() {
			return 0, errors.Errorf("action index %q out of range [0, %d)", matches[1], NumPoints)
		}
		return Action(index), nil
	} else {
		return 0, errors.Errorf("failed to parse your input %q", text)
	}
	c, errC := strconv.Atoi(col)
	r, errR := strconv.Atoi(row)
	if errC != nil || errR != nil || c >= NumCols || r >= NumRows {
		return 0, errors.Errorf("position (%s,%s) is off the %dx%d board", col, row, NumCols, NumRows)
	}
	return ActionAt(r, c), nil
}

// Print the board and whose turn it is.
func (ui *UI) Print(board *Board, showHelp bool) {
	if ui.clearScreen {
		ui.printf("\033c")
	}
	ui.printf("\nMove #%d\n\n", board.MoveNumber())
	ui.PrintBoard(board)
	ui.println()
	if !board.IsFinished() {
		ui.printf("%s turn to play\n", ui.playerName(board.CurrentPlayer()))
		if showHelp {
			ui.println("- Type the column and row ('7 7'), the stone and position ('x(7,7)') or the action index ('112').")
		}
	}
}

// PrintBoard prints the board with the column and row coordinates. The last move is highlighted.
func (ui *UI) PrintBoard(board *Board) {
	var sb strings.Builder
	sb.WriteString("   ")
	for col := range NumCols {
		sb.WriteString(fmt.Sprintf("%3d", col))
	}
	sb.WriteByte('\n')
	last := board.LastAction()
	for row := range NumRows {
		sb.WriteString(fmt.Sprintf("%3d", row))
		for col := range NumCols {
			a := ActionAt(row, col)
			sb.WriteString("  ")
			sb.WriteString(ui.renderPoint(board.At(a), a == last))
		}
		sb.WriteByte('\n')
	}
	ui.printCentered(sb.String())
}

func (ui *UI) renderPoint(point PointState, highlight bool) string {
	if !ui.color {
		if highlight {
			return strings.ToUpper(point.String())
		}
		return point.String()
	}
	style := lipgloss.NewStyle().Bold(point != Empty)
	switch point {
	case Black:
		style = style.Foreground(lipgloss.Color("9"))
	case White:
		style = style.Foreground(lipgloss.Color("10"))
	default:
		style = style.Faint(true)
	}
	if highlight {
		style = style.Reverse(true)
	}
	return style.Render(point.String())
}

func (ui *UI) playerName(player PlayerNum) string {
	name := fmt.Sprintf("%s player (%s)", player, StoneOf(player))
	if !ui.color {
		return name
	}
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(map[PlayerNum]string{
		PlayerFirst: "9", PlayerSecond: "10"}[player])).Render(name)
}
