package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/david/opportunity-finder/internal/auth"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
	"github.com/david/opportunity-finder/internal/query"
)

type sessionResponse struct {
	Token     string       `json:"token,omitempty"`
	SessionID string       `json:"session_id"`
	ExpiresAt time.Time    `json:"expires_at"`
	Snapshot  uint64       `json:"snapshot_version"`
	State     query.State  `json:"state"`
	Results   query.Result `json:"results"`
}

// sessionPatch is one user interaction. Fields are applied in declaration
// order; absent fields leave the state alone.
type sessionPatch struct {
	Reset        bool       `json:"reset"`
	ToggleStatus string     `json:"toggle_status"`
	ToggleTag    *tagToggle `json:"toggle_tag"`
	Text         *string    `json:"text"`
	Sort         *string    `json:"sort"`
	Page         *int       `json:"page"`
}

type tagToggle struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

func (p sessionPatch) validate() error {
	if p.ToggleStatus != "" {
		if st := models.Status(p.ToggleStatus); st != models.StatusOpen && st != models.StatusClosed {
			return fmt.Errorf("unknown status %q", p.ToggleStatus)
		}
	}
	if p.ToggleTag != nil {
		if _, ok := models.ParseCategory(p.ToggleTag.Category); !ok {
			return fmt.Errorf("unknown tag category %q", p.ToggleTag.Category)
		}
		if ingest.NormalizeTagToken(p.ToggleTag.Value) == "" {
			return fmt.Errorf("invalid tag value %q", p.ToggleTag.Value)
		}
	}
	return nil
}

func (p sessionPatch) apply(st query.State) query.State {
	if p.Reset {
		size := st.PageSize
		st = query.NewState()
		st.PageSize = size
	}
	if p.ToggleStatus != "" {
		st = st.ToggleStatus(models.Status(p.ToggleStatus))
	}
	if p.ToggleTag != nil {
		cat, _ := models.ParseCategory(p.ToggleTag.Category)
		st = st.ToggleTag(cat, p.ToggleTag.Value)
	}
	if p.Text != nil {
		st = st.WithText(*p.Text)
	}
	if p.Sort != nil {
		st = st.WithSort(query.SortMode(*p.Sort))
	}
	if p.Page != nil {
		st = st.WithPage(*p.Page)
	}
	return st
}

func (s *Server) handleCreateSession(c echo.Context) error {
	if s.Sessions == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "sessions are not configured"})
	}

	token, sess, err := s.Sessions.Create(s.Catalog.Current())
	if err != nil {
		s.Log.Error("Failed to create session", logger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if sess.State.PageSize != s.pageSize {
		sess, err = s.Sessions.Update(sess.ID, func(st query.State) query.State {
			st.PageSize = s.pageSize
			return st
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
		}
	}

	resp := s.sessionView(sess)
	resp.Token = token
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, s.sessionView(sess))
}

func (s *Server) handleSessionResults(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, query.Run(sess.Snapshot.Opportunities, sess.State, s.now()))
}

func (s *Server) handleSessionFacets(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, query.ComputeFacets(sess.Snapshot.Opportunities, sess.State, s.now()))
}

func (s *Server) handlePatchSession(c echo.Context) error {
	id, err := auth.SessionIDFromContext(c)
	if err != nil {
		return sessionError(c, err)
	}

	var patch sessionPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := patch.validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	sess, err := s.Sessions.Update(id, patch.apply)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(http.StatusOK, s.sessionView(sess))
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id, err := auth.SessionIDFromContext(c)
	if err != nil {
		return sessionError(c, err)
	}
	s.Sessions.Delete(id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) currentSession(c echo.Context) (auth.Session, error) {
	id, err := auth.SessionIDFromContext(c)
	if err != nil {
		return auth.Session{}, err
	}
	return s.Sessions.Get(id)
}

func (s *Server) sessionView(sess auth.Session) sessionResponse {
	return sessionResponse{
		SessionID: sess.ID.String(),
		ExpiresAt: sess.ExpiresAt,
		Snapshot:  sess.Snapshot.Version,
		State:     sess.State,
		Results:   query.Run(sess.Snapshot.Opportunities, sess.State, s.now()),
	}
}

func sessionError(c echo.Context, err error) error {
	if errors.Is(err, auth.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Session not found or expired"})
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
}
