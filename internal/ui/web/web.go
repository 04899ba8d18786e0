// Package web implements an HTTP API to play against an agent.
//
// Endpoints:
//
//   - POST /api/games: starts a new game, with optional body {"human_player": 0|1}. If the agent plays
//     first, it has already moved in the returned game.
//   - GET /api/games/:id: returns the game.
//   - POST /api/games/:id/moves: plays the human move given in {"action": n}, and the agent's reply.
//   - DELETE /api/games/:id: discards the game.
package web

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/janpfeifer/gomokuGo/internal/ai"
	"github.com/janpfeifer/gomokuGo/internal/rlenv"
	"github.com/janpfeifer/gomokuGo/internal/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// AgentFactory returns the agent to play the given seat. Agents may be shared among games: they are
// only stepped in evaluation mode.
type AgentFactory func(playerID int) (ai.Agent, error)

// Server holds the games being played.
type Server struct {
	newAgent AgentFactory
	router   *gin.Engine

	mu    sync.Mutex
	games map[string]*game
}

type game struct {
	mu          sync.Mutex
	id          string
	env         *rlenv.Environment
	agent       ai.Agent
	humanPlayer int
	ts          *rlenv.TimeStep
}

// GameJSON is the representation of a game returned by the API.
type GameJSON struct {
	ID            string    `json:"id"`
	HumanPlayer   int       `json:"human_player"`
	Agent         string    `json:"agent"`
	CurrentPlayer int       `json:"current_player"`
	Board         []string  `json:"board"`
	Moves         []int     `json:"moves"`
	LegalActions  []int     `json:"legal_actions"`
	Finished      bool      `json:"finished"`
	Winner        int       `json:"winner"`
	Returns       []float32 `json:"returns,omitempty"`
}

// NewGameRequest is the optional body of POST /api/games.
type NewGameRequest struct {
	HumanPlayer int `json:"human_player"`
}

// MoveRequest is the body of POST /api/games/:id/moves.
type MoveRequest struct {
	Action *int `json:"action" binding:"required"`
}

// New creates the server and its routes.
func New(newAgent AgentFactory) *Server {
	s := &Server{
		newAgent: newAgent,
		games:    make(map[string]*game),
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api := r.Group("/api")
	api.POST("/games", s.handleNewGame)
	api.GET("/games/:id", s.handleGetGame)
	api.POST("/games/:id/moves", s.handleMove)
	api.DELETE("/games/:id", s.handleDeleteGame)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	klog.Infof("Serving gomoku API on %s", addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "failed to serve on %s", addr)
}

// NumGames returns the number of games being held.
func (s *Server) NumGames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleNewGame(c *gin.Context) {
	var req NewGameRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorJSON(c, http.StatusBadRequest, errors.Wrap(err, "failed to unmarshal request"))
			return
		}
	}
	if req.HumanPlayer < 0 || req.HumanPlayer >= state.NumPlayers {
		errorJSON(c, http.StatusBadRequest, errors.Errorf("invalid human_player %d", req.HumanPlayer))
		return
	}
	env, err := rlenv.New(rlenv.GameName)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	agent, err := s.newAgent(1 - req.HumanPlayer)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	g := &game{
		id:          uuid.New().String(),
		env:         env,
		agent:       agent,
		humanPlayer: req.HumanPlayer,
		ts:          env.Reset(),
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err = g.agentMoves(); err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	s.mu.Lock()
	s.games[g.id] = g
	s.mu.Unlock()
	klog.V(1).Infof("New game %s: human plays %d against %s", g.id, g.humanPlayer, agent)
	c.JSON(http.StatusCreated, g.toJSON())
}

func (s *Server) getGame(c *gin.Context) *game {
	id := c.Param("id")
	s.mu.Lock()
	g, found := s.games[id]
	s.mu.Unlock()
	if !found {
		errorJSON(c, http.StatusNotFound, errors.Errorf("game %q not found", id))
		return nil
	}
	return g
}

func (s *Server) handleGetGame(c *gin.Context) {
	g := s.getGame(c)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	c.JSON(http.StatusOK, g.toJSON())
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	g := s.getGame(c)
	if g == nil {
		return
	}
	s.mu.Lock()
	delete(s.games, g.id)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

func (s *Server) handleMove(c *gin.Context) {
	g := s.getGame(c)
	if g == nil {
		return
	}
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, errors.Wrap(err, "failed to unmarshal request"))
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ts.Last() {
		errorJSON(c, http.StatusConflict, errors.New("game is finished"))
		return
	}
	if g.ts.CurrentPlayer() != g.humanPlayer {
		errorJSON(c, http.StatusConflict, errors.New("not the human's turn"))
		return
	}
	ts, err := g.env.Step([]int{*req.Action})
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	g.ts = ts
	if err = g.agentMoves(); err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, g.toJSON())
}

// agentMoves plays the agent while it is its turn. Once the game is finished the agent is stepped with the
// final time step.
func (g *game) agentMoves() error {
	for !g.ts.Last() && g.ts.CurrentPlayer() == g.agent.PlayerID() {
		output := g.agent.Step(g.ts, true)
		if output.Action == ai.NoAction {
			return errors.Errorf("agent %s returned no action at its turn", g.agent)
		}
		ts, err := g.env.Step([]int{output.Action})
		if err != nil {
			return errors.WithMessagef(err, "agent %s", g.agent)
		}
		g.ts = ts
	}
	if g.ts.Last() {
		g.agent.Step(g.ts, true)
	}
	return nil
}

func (g *game) toJSON() *GameJSON {
	board := g.env.State()
	j := &GameJSON{
		ID:            g.id,
		HumanPlayer:   g.humanPlayer,
		Agent:         g.agent.String(),
		CurrentPlayer: g.ts.CurrentPlayer(),
		Board:         strings.Split(board.String(), "\n"),
		Moves:         make([]int, 0, board.MoveNumber()),
		LegalActions:  []int{},
		Finished:      g.ts.Last(),
		Winner:        -1,
	}
	for _, a := range board.History() {
		j.Moves = append(j.Moves, int(a))
	}
	if g.ts.CurrentPlayer() == g.humanPlayer {
		j.LegalActions = g.ts.Observations.LegalActions[g.humanPlayer]
	}
	if j.Finished {
		if winner, ok := board.Winner(); ok {
			j.Winner = int(winner)
		}
		j.Returns = g.ts.Rewards
	}
	return j
}
