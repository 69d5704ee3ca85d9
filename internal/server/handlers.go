package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/daikw/improv/internal/game"
	"github.com/daikw/improv/internal/persona"
	"github.com/daikw/improv/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SessionResponse describes one session and its game state
type SessionResponse struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	State     game.State `json:"state"`
}

// StartRequest starts or continues a game
type StartRequest struct {
	Personalities   []persona.Definition `json:"personalities"`
	Rounds          int                  `json:"rounds"`
	Seed            string               `json:"seed"`
	ImageGeneration *bool                `json:"image_generation,omitempty"`
}

// TurnRequest carries a human player's text; AI turns send an empty body
type TurnRequest struct {
	Text string `json:"text"`
}

// ImagesRequest toggles illustrations
type ImagesRequest struct {
	Enabled bool `json:"enabled"`
}

// PersonalitiesResponse lists the built-in cast
type PersonalitiesResponse struct {
	Builtins []persona.Famous      `json:"builtins"`
	Reserved []persona.Personality `json:"reserved"`
	Avatars  []string              `json:"avatars"`
}

// SettingsResponse returns masked settings
type SettingsResponse struct {
	Settings *settings.Settings `json:"settings"`
	Path     string             `json:"path,omitempty"`
	Message  string             `json:"message,omitempty"`
}

func sessionResponse(s *game.Session, state game.State) SessionResponse {
	return SessionResponse{ID: s.ID, CreatedAt: s.CreatedAt, State: state}
}

func (s *Server) session(c *gin.Context) (*game.Session, bool) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		handleGameError(c, err, nil)
		return nil, false
	}
	return sess, true
}

// bindOptional decodes a JSON body, treating an empty body as the zero value
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.manager.Create()
	c.JSON(http.StatusCreated, sessionResponse(sess, sess.Snapshot()))
}

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.manager.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionResponse(sess, sess.Snapshot()))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionResponse(sess, sess.Snapshot()))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.manager.Delete(c.Param("id")); err != nil {
		handleGameError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startGame(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}

	roster, err := persona.NewRoster(req.Personalities, s.settings.BindingFor)
	if err != nil {
		badRequest(c, err)
		return
	}

	if req.ImageGeneration != nil {
		sess.SetImageGeneration(*req.ImageGeneration)
	}

	result, err := sess.Start(c.Request.Context(), roster, req.Rounds, req.Seed)
	if err != nil {
		handleGameError(c, err, &result.State)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) submitTurn(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req TurnRequest
	if !bindOptional(c, &req) {
		return
	}

	result, err := sess.SubmitTurn(c.Request.Context(), req.Text)
	if err != nil {
		handleGameError(c, err, &result.State)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) editCast(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	result, err := sess.EditCast()
	if err != nil {
		handleGameError(c, err, &result.State)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) newGame(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	result, err := sess.NewGame()
	if err != nil {
		handleGameError(c, err, &result.State)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) setImages(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req ImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	c.JSON(http.StatusOK, game.Result{State: sess.SetImageGeneration(req.Enabled)})
}

func (s *Server) listPersonalities(c *gin.Context) {
	c.JSON(http.StatusOK, PersonalitiesResponse{
		Builtins: persona.Builtins(),
		Reserved: []persona.Personality{persona.User, persona.Narrator, persona.Editor},
		Avatars:  persona.Avatars,
	})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, SettingsResponse{Settings: s.settings.Masked()})
}

// putSettings saves new settings over the settings file. Environment
// overrides are never written, and the running server keeps its settings;
// the file is read on next start.
func (s *Server) putSettings(c *gin.Context) {
	path := s.settingsPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			handleGameError(c, err, nil)
			return
		}
		path = settings.ProjectPath(wd)
	}

	stored, err := settings.LoadFile(path)
	if err != nil {
		handleGameError(c, err, nil)
		return
	}

	next := *stored
	if err := c.ShouldBindJSON(&next); err != nil {
		badRequest(c, fmt.Errorf("invalid request body: %w", err))
		return
	}
	// A masked key echoed back from GET keeps the stored one
	if persona.IsMasked(next.APIKey) {
		next.APIKey = stored.APIKey
	}

	if err := next.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{Code: CodeValidation, Message: err.Error()})
		return
	}

	if err := settings.Save(path, &next); err != nil {
		handleGameError(c, err, nil)
		return
	}

	log.Info().Str("path", path).Msg("Settings saved")
	c.JSON(http.StatusOK, SettingsResponse{
		Settings: next.Masked(),
		Path:     path,
		Message:  "Settings saved. They take effect the next time improv starts.",
	})
}
