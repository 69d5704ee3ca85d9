// Package mcpserver exposes improv games as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/persona"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
)

const serverName = "improv"

// Server hosts the game tools
type Server struct {
	mcpServer *server.MCPServer
	manager   *game.Manager
	defaults  persona.BindingDefaults
}

// New creates a server whose tools share manager. defaults fill model
// bindings missing from start_game personalities.
func New(manager *game.Manager, defaults persona.BindingDefaults, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
		manager:   manager,
		defaults:  defaults,
	}

	s.mcpServer.AddTool(listPersonalitiesTool(), s.listPersonalities)
	s.mcpServer.AddTool(startGameTool(), s.startGame)
	s.mcpServer.AddTool(submitTurnTool(), s.submitTurn)
	s.mcpServer.AddTool(editCastTool(), s.editCast)
	s.mcpServer.AddTool(newGameTool(), s.newGame)
	s.mcpServer.AddTool(getStateTool(), s.getState)
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects
func (s *Server) Serve() error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	log.Debug().Msg("Serving MCP on stdio")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// StartInput is the start_game argument set
type StartInput struct {
	SessionID       string               `json:"session_id"`
	Personalities   []persona.Definition `json:"personalities"`
	Rounds          *int                 `json:"rounds"`
	Seed            string               `json:"seed"`
	ImageGeneration bool                 `json:"image_generation"`
}

// TurnView is one turn as tools report it
type TurnView struct {
	Speaker string `json:"speaker"`
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Image   string `json:"image,omitempty"`
}

// StateView is the game state returned by every game tool
type StateView struct {
	SessionID         string     `json:"session_id"`
	Status            string     `json:"status"`
	Round             int        `json:"round"`
	Rounds            int        `json:"rounds"`
	NextSpeaker       string     `json:"next_speaker,omitempty"`
	NextIsHuman       bool       `json:"next_is_human,omitempty"`
	AwaitingSynthesis bool       `json:"awaiting_synthesis,omitempty"`
	Turns             []TurnView `json:"turns"`
	Image             string     `json:"image,omitempty"`
}

func newStateView(id string, result game.Result) StateView {
	st := result.State
	view := StateView{
		SessionID:         id,
		Status:            string(st.Status),
		Round:             st.CurrentRound,
		Rounds:            st.RoundsTarget,
		AwaitingSynthesis: st.AwaitingSynthesis,
		Turns:             make([]TurnView, 0, len(st.Turns)),
	}
	if st.Status == game.StatusPlaying && !st.AwaitingSynthesis {
		if p, ok := st.CurrentSpeaker(); ok {
			view.NextSpeaker = p.Name
			view.NextIsHuman = p.IsHuman()
		}
	}
	for _, t := range st.Turns {
		tv := TurnView{Speaker: t.Speaker.Name, Kind: string(t.Kind), Text: t.Text}
		if t.Image != nil {
			tv.Image = t.Image.Path
		}
		view.Turns = append(view.Turns, tv)
	}
	if result.Image != nil {
		view.Image = result.Image.Path
	}
	return view
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// gameResult reports a game operation. Game errors are tool errors so the
// calling model sees them; the state is attached unchanged.
func gameResult(id string, result game.Result, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		data, merr := json.Marshal(newStateView(id, result))
		if merr != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("%v\n\nstate: %s", err, data)), nil
	}
	return jsonResult(newStateView(id, result))
}

func (s *Server) session(req mcp.CallToolRequest) (*game.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	sess, err := s.manager.Get(id)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("%v: %s", err, id))
	}
	return sess, nil
}

func (s *Server) listPersonalities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(persona.Builtins())
}

func (s *Server) startGame(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in StartInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultErrorFromErr("invalid start_game arguments", err), nil
	}
	rounds := 1
	if in.Rounds != nil {
		rounds = *in.Rounds
	}
	if len(in.Personalities) == 0 {
		in.Personalities = []persona.Definition{{Kind: persona.KindHuman}}
	}

	roster, err := persona.NewRoster(in.Personalities, s.defaults)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sess *game.Session
	created := in.SessionID == ""
	if created {
		sess = s.manager.Create()
	} else if sess, err = s.manager.Get(in.SessionID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", err, in.SessionID)), nil
	}

	sess.SetImageGeneration(in.ImageGeneration)
	result, err := sess.Start(ctx, roster, rounds, in.Seed)
	if err != nil && created {
		// Nobody holds the new session's id yet
		_ = s.manager.Delete(sess.ID)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return gameResult(sess.ID, result, err)
}

func (s *Server) submitTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := sess.SubmitTurn(ctx, req.GetString("text", ""))
	return gameResult(sess.ID, result, err)
}

func (s *Server) editCast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := sess.EditCast()
	return gameResult(sess.ID, result, err)
}

func (s *Server) newGame(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	result, err := sess.NewGame()
	return gameResult(sess.ID, result, err)
}

func (s *Server) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errResult := s.session(req)
	if errResult != nil {
		return errResult, nil
	}
	return gameResult(sess.ID, game.Result{State: sess.Snapshot()}, nil)
}
