package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/opportunity-finder/internal/auth"
	"github.com/david/opportunity-finder/internal/catalog"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
	"github.com/david/opportunity-finder/internal/query"
)

const maxPageSize = 100

// Options wires the server's collaborators.
type Options struct {
	Catalog     *catalog.Catalog
	Sessions    *auth.SessionManager
	Admin       *auth.AdminVerifier
	Pipeline    *ingest.Pipeline
	Log         logger.Logger
	CORSOrigins []string
	PageSize    int
	Now         func() time.Time
}

type Server struct {
	Echo     *echo.Echo
	Catalog  *catalog.Catalog
	Sessions *auth.SessionManager
	Pipeline *ingest.Pipeline
	Log      logger.Logger

	admin    *auth.AdminVerifier
	pageSize int
	now      func() time.Time

	// Only one ingest cycle runs at a time.
	ingestMu sync.Mutex
}

func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = query.DefaultPageSize
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(loggerMiddleware(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:     e,
		Catalog:  opts.Catalog,
		Sessions: opts.Sessions,
		Pipeline: opts.Pipeline,
		Log:      log,
		admin:    opts.Admin,
		pageSize: pageSize,
		now:      now,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/facets", s.handleGetFacets)
	api.GET("/sources", s.handleGetSources)
	api.GET("/stats", s.handleGetStats)

	// Query sessions
	api.POST("/sessions", s.handleCreateSession)
	if s.Sessions != nil {
		session := api.Group("/session")
		session.Use(s.Sessions.Middleware)
		session.GET("", s.handleGetSession)
		session.GET("/results", s.handleSessionResults)
		session.GET("/facets", s.handleSessionFacets)
		session.PATCH("", s.handlePatchSession)
		session.DELETE("", s.handleDeleteSession)
	}

	// Admin routes
	if s.admin != nil {
		adminOnly := auth.AdminMiddleware(s.admin)
		api.POST("/ingest", s.handleIngestAll, adminOnly)
		api.POST("/ingest/source/:id", s.handleIngestSource, adminOnly)
	}
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	st, err := s.stateFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	snap := s.Catalog.Current()
	return c.JSON(http.StatusOK, query.Run(snap.Opportunities, st, s.now()))
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, ok := s.Catalog.Current().Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	return c.JSON(http.StatusOK, query.NewView(opp, s.now()))
}

func (s *Server) handleGetFacets(c echo.Context) error {
	st, err := s.stateFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, query.ComputeFacets(s.Catalog.Current().Opportunities, st, s.now()))
}

func (s *Server) handleGetSources(c echo.Context) error {
	return c.JSON(http.StatusOK, query.Sources(s.Catalog.Current().Opportunities))
}

func (s *Server) handleGetStats(c echo.Context) error {
	snap := s.Catalog.Current()
	return c.JSON(http.StatusOK, map[string]any{
		"summary":          query.Summarize(snap.Opportunities, s.now()),
		"snapshot_version": snap.Version,
		"loaded_at":        snap.LoadedAt,
	})
}

// stateFromParams builds a query state from URL parameters. Missing values
// take the defaults of a new session.
func (s *Server) stateFromParams(c echo.Context) (query.State, error) {
	st := query.NewState()
	st.PageSize = s.pageSize

	if raw, ok := c.QueryParams()["status"]; ok {
		statuses, err := parseStatuses(strings.Join(raw, ","))
		if err != nil {
			return st, err
		}
		st.Filters.Status = statuses
	}
	for _, cat := range models.Categories {
		values, err := tagParams(c.QueryParams()[string(cat)])
		if err != nil {
			return st, fmt.Errorf("%s: %w", cat, err)
		}
		if len(values) > 0 {
			st = st.WithTags(cat, values...)
		}
	}
	st.Text = c.QueryParam("q")
	st.Sort = query.ParseSortMode(c.QueryParam("sort"))
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		st.Page = p
	}
	if n, err := strconv.Atoi(c.QueryParam("page_size")); err == nil && n > 0 && n <= maxPageSize {
		st.PageSize = n
	}
	return st, nil
}

// parseStatuses reads a status list. "all" (or an empty value) removes the
// status restriction.
func parseStatuses(raw string) ([]models.Status, error) {
	var out []models.Status
	for _, v := range splitCSV(strings.ToLower(raw)) {
		switch models.Status(v) {
		case models.StatusOpen, models.StatusClosed:
			out = append(out, models.Status(v))
		case "all", "any":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown status %q", v)
		}
	}
	return out, nil
}

// tagParams flattens repeated and comma-separated values of one tag
// parameter. Values with no letter or digit are rejected.
func tagParams(raw []string) ([]string, error) {
	var out []string
	for _, param := range raw {
		for _, v := range splitCSV(param) {
			if ingest.NormalizeTagToken(v) == "" {
				return nil, fmt.Errorf("invalid tag value %q", v)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) handleIngestAll(c echo.Context) error {
	return s.runIngest(c, "all", func(ctx context.Context) (ingest.RunResult, error) {
		return s.Pipeline.IngestAll(ctx)
	})
}

func (s *Server) handleIngestSource(c echo.Context) error {
	sourceID := c.Param("id")
	return s.runIngest(c, sourceID, func(ctx context.Context) (ingest.RunResult, error) {
		return s.Pipeline.IngestSource(ctx, sourceID)
	})
}

// runIngest runs one cycle and publishes its snapshot to the catalog.
func (s *Server) runIngest(c echo.Context, label string, run func(context.Context) (ingest.RunResult, error)) error {
	if s.Pipeline == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "ingestion is not configured"})
	}
	if !s.ingestMu.TryLock() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "An ingest cycle is already running"})
	}
	defer s.ingestMu.Unlock()

	// The cycle finishes even if the client goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 10*time.Minute)
	defer cancel()

	result, err := run(ctx)
	if err != nil {
		s.Log.Error("Ingest failed", logger.String("source", label), logger.Error(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ingest.ErrUnknownSource):
			status = http.StatusNotFound
		case errors.Is(err, ingest.ErrInactiveSource):
			status = http.StatusConflict
		}
		return c.JSON(status, map[string]any{"error": err.Error(), "result": result})
	}

	snap := s.Catalog.Replace(result.Opportunities)
	return c.JSON(http.StatusOK, map[string]any{
		"message":          fmt.Sprintf("%s ingestion complete", label),
		"result":           result,
		"snapshot_version": snap.Version,
	})
}
