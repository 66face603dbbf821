package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/opportunity-finder/internal/auth"
	"github.com/david/opportunity-finder/internal/catalog"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
	"github.com/david/opportunity-finder/internal/query"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

const adminSecret = "s3cret"

func fixture() []models.Opportunity {
	mk := func(id, name, source string, d models.Deadline, tags models.Tags) models.Opportunity {
		return models.Opportunity{ID: id, Name: name, Source: source, Deadline: d, Tags: tags.Filled(), ScrapedAt: testNow}
	}
	return []models.Opportunity{
		mk("a", "Alpha Fellowship", "URF", models.KnownDeadline(testNow.AddDate(0, 0, 5)),
			models.Tags{Level: models.NewTagSet("undergraduate")}),
		mk("b", "Beta Grant", "MEI", models.RollingDeadline(),
			models.Tags{Level: models.NewTagSet("graduate"), Field: models.NewTagSet("arts")}),
		mk("c", "Gamma Prize", "URF", models.KnownDeadline(testNow.AddDate(0, 0, -3)),
			models.Tags{Level: models.NewTagSet("undergraduate")}),
		mk("d", "Delta Award", "Manual", models.ClosedDeadline(), models.Tags{}),
	}
}

type testServer struct {
	*Server
	store *db.FileStore
	dir   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	store := db.NewFileStore(filepath.Join(dir, "opportunities.json"))

	admin, err := auth.NewAdminVerifier([]byte(adminSecret), "")
	require.NoError(t, err)

	registry := &ingest.Registry{Sources: []ingest.SourceConfig{
		{ID: "urf", Name: "URF", Active: true, Input: filepath.Join(dir, "urf.json"), Labels: []string{"URF"}},
		{ID: "old", Name: "Retired", Active: false, Input: filepath.Join(dir, "old.json")},
	}}
	pipeline := ingest.NewPipeline(store, registry, nil, logger.NewNop())
	pipeline.Now = func() time.Time { return testNow }

	s := NewServer(Options{
		Catalog:  catalog.New(fixture()),
		Sessions: auth.NewSessionManager([]byte("test-secret"), time.Hour),
		Admin:    admin,
		Pipeline: pipeline,
		Log:      logger.NewNop(),
		Now:      func() time.Time { return testNow },
	})
	return &testServer{Server: s, store: store, dir: dir}
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.Echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func itemNames(r query.Result) []string {
	out := make([]string, len(r.Items))
	for i, v := range r.Items {
		out[i] = v.Name
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestListOpportunities(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"defaults to open by deadline", "/api/v1/opportunities", []string{"Alpha Fellowship", "Beta Grant"}},
		{"all statuses", "/api/v1/opportunities?status=all", []string{"Alpha Fellowship", "Beta Grant", "Gamma Prize", "Delta Award"}},
		{"closed only by name", "/api/v1/opportunities?status=closed&sort=name", []string{"Delta Award", "Gamma Prize"}},
		{"tag filter", "/api/v1/opportunities?status=all&level=undergraduate", []string{"Alpha Fellowship", "Gamma Prize"}},
		{"tag alias", "/api/v1/opportunities?level=grad", []string{"Beta Grant"}},
		{"text search", "/api/v1/opportunities?status=all&q=PRIZE", []string{"Gamma Prize"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			got := decode[query.Result](t, rec)
			assert.Equal(t, tt.want, itemNames(got))
			assert.Equal(t, 4, got.TotalOverall)
		})
	}
}

func TestListOpportunities_TagParams(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{"single value", "/api/v1/opportunities?status=all&level=graduate", []string{"Beta Grant"}},
		{"duplicate values", "/api/v1/opportunities?status=all&level=graduate,graduate", []string{"Beta Grant"}},
		{"values sharing an alias", "/api/v1/opportunities?status=all&level=phd,graduate", []string{"Beta Grant"}},
		{"comma separated", "/api/v1/opportunities?status=all&level=undergraduate,graduate", []string{"Alpha Fellowship", "Beta Grant", "Gamma Prize"}},
		{"repeated parameter", "/api/v1/opportunities?status=all&level=undergraduate&level=graduate", []string{"Alpha Fellowship", "Beta Grant", "Gamma Prize"}},
		{"repeated duplicate parameter", "/api/v1/opportunities?status=all&level=grad&level=graduate", []string{"Beta Grant"}},
		{"and across categories", "/api/v1/opportunities?status=all&level=undergraduate&level=graduate&field=arts", []string{"Beta Grant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.target, "", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, itemNames(decode[query.Result](t, rec)))
		})
	}
}

func TestListOpportunities_RejectsUnusableTag(t *testing.T) {
	ts := newTestServer(t)
	for _, target := range []string{
		"/api/v1/opportunities?status=all&field=!!",
		"/api/v1/opportunities?status=all&field=arts,--",
		"/api/v1/facets?level=graduate&level=%2F%2F",
	} {
		rec := ts.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListOpportunities_Pagination(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/opportunities?status=all&page_size=3&page=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[query.Result](t, rec)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 3, got.PageSize)
	assert.Equal(t, 2, got.TotalPages)
	assert.Len(t, got.Items, 1)
}

func TestListOpportunities_BadStatus(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/opportunities?status=pending", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOpportunity(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/opportunities/a", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[query.View](t, rec)
	assert.Equal(t, "Alpha Fellowship", view.Name)
	assert.Equal(t, models.StatusOpen, view.Status)
	assert.Equal(t, models.UrgencyUrgent, view.Urgency)

	rec = ts.do(t, http.MethodGet, "/api/v1/opportunities/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFacetsAndStats(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/facets?status=all", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	facets := decode[query.Facets](t, rec)
	var open int
	for _, fc := range facets.Status {
		if fc.Value == string(models.StatusOpen) {
			open = fc.Count
		}
	}
	assert.Equal(t, 2, open)

	rec = ts.do(t, http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Summary query.Summary `json:"summary"`
		Version uint64        `json:"snapshot_version"`
	}](t, rec)
	assert.Equal(t, 4, stats.Summary.Total)
	assert.Equal(t, 2, stats.Summary.Closed)
	assert.Equal(t, uint64(1), stats.Version)

	rec = ts.do(t, http.MethodGet, "/api/v1/sources", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sources := decode[[]query.FacetCount](t, rec)
	require.NotEmpty(t, sources)
	assert.Equal(t, "URF", sources[0].Value)
	assert.Equal(t, 2, sources[0].Count)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[sessionResponse](t, rec)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, []string{"Alpha Fellowship", "Beta Grant"}, itemNames(created.Results))
	authz := map[string]string{echo.HeaderAuthorization: "Bearer " + created.Token}

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"toggle_status":"closed"}`, authz)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[sessionResponse](t, rec)
	assert.Len(t, patched.Results.Items, 4)

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"toggle_tag":{"category":"level","value":"Undergrad"},"sort":"name"}`, authz)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched = decode[sessionResponse](t, rec)
	assert.Equal(t, []string{"Alpha Fellowship", "Gamma Prize"}, itemNames(patched.Results))
	assert.Equal(t, models.NewTagSet("undergraduate"), patched.State.Filters.Tags.Level)

	rec = ts.do(t, http.MethodGet, "/api/v1/session/results", "", authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Alpha Fellowship", "Gamma Prize"}, itemNames(decode[query.Result](t, rec)))

	rec = ts.do(t, http.MethodGet, "/api/v1/session/facets", "", authz)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"reset":true}`, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Alpha Fellowship", "Beta Grant"}, itemNames(decode[sessionResponse](t, rec).Results))

	rec = ts.do(t, http.MethodDelete, "/api/v1/session", "", authz)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/session", "", authz)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSession_RejectsBadRequests(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/session/results", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/session/results", "", map[string]string{echo.HeaderAuthorization: "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	created := decode[sessionResponse](t, ts.do(t, http.MethodPost, "/api/v1/sessions", "", nil))
	authz := map[string]string{echo.HeaderAuthorization: "Bearer " + created.Token}

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"toggle_tag":{"category":"color","value":"red"}}`, authz)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"toggle_status":"pending"}`, authz)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/session", `{"toggle_tag":{"category":"field","value":"!!"}}`, authz)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_KeepsSnapshotAcrossIngest(t *testing.T) {
	ts := newTestServer(t)
	created := decode[sessionResponse](t, ts.do(t, http.MethodPost, "/api/v1/sessions", "", nil))
	authz := map[string]string{echo.HeaderAuthorization: "Bearer " + created.Token}

	ts.Catalog.Replace(nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/session/results", "", authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[query.Result](t, rec).TotalOverall)

	rec = ts.do(t, http.MethodGet, "/api/v1/opportunities", "", nil)
	assert.Equal(t, 0, decode[query.Result](t, rec).TotalOverall)
}

func TestIngest_RequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/ingest", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/ingest", "", map[string]string{"X-Admin-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestSource_PublishesSnapshot(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Replace(t.Context(), fixture()))

	batch := `[{"name":"Epsilon Scholarship","source":"URF","deadline":"2026-04-01","tags":{"level":["Post-Doc"]}}]`
	require.NoError(t, os.WriteFile(filepath.Join(ts.dir, "urf.json"), []byte(batch), 0o644))

	admin := map[string]string{"X-Admin-Secret": adminSecret}
	rec := ts.do(t, http.MethodPost, "/api/v1/ingest/source/urf", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := ts.Catalog.Current()
	assert.Equal(t, uint64(2), snap.Version)
	names := make([]string, 0, snap.Len())
	for _, o := range snap.Opportunities {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"Beta Grant", "Delta Award", "Epsilon Scholarship"}, names)

	stored, err := ts.store.Load(t.Context())
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	rec = ts.do(t, http.MethodGet, "/api/v1/opportunities?level=postdoctoral", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Epsilon Scholarship"}, itemNames(decode[query.Result](t, rec)))
}

func TestIngestSource_Errors(t *testing.T) {
	ts := newTestServer(t)
	admin := map[string]string{"X-Admin-Secret": adminSecret}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown source", "/api/v1/ingest/source/nope", http.StatusNotFound},
		{"inactive source", "/api/v1/ingest/source/old", http.StatusConflict},
		{"missing batch", "/api/v1/ingest/source/urf", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.target, "", admin)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, uint64(1), ts.Catalog.Current().Version, "failed cycles leave the catalog alone")
}

func TestIngest_RejectsConcurrentCycle(t *testing.T) {
	ts := newTestServer(t)
	ts.ingestMu.Lock()
	defer ts.ingestMu.Unlock()

	rec := ts.do(t, http.MethodPost, "/api/v1/ingest", "", map[string]string{"X-Admin-Secret": adminSecret})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, ,b ,"))
	assert.Nil(t, splitCSV(""))
}
