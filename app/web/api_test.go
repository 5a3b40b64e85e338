package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobportal/app/web/persistence"
)

func getJSON(t *testing.T, handler http.Handler, path string, dest any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", path, http.NoBody))
	if rec.Code == http.StatusOK {
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		require.NoError(t, json.NewDecoder(rec.Body).Decode(dest), path)
	}
	return rec.Code
}

func createJobs(t *testing.T, store *persistence.Store, n int) []persistence.Job {
	t.Helper()
	res := make([]persistence.Job, 0, n)
	for i := range n {
		job, err := store.CreateJob(context.Background(), persistence.Job{
			Company:     fmt.Sprintf("company-%d", i%2),
			Role:        fmt.Sprintf("role-%d", i%3),
			ApplyLink:   fmt.Sprintf("https://example.com/%d", i),
			Description: fmt.Sprintf("job number %d", i),
		})
		require.NoError(t, err)
		res = append(res, job)
	}
	return res
}

func TestAPI_GetJob(t *testing.T) {
	store := newTestStore(t)
	handler := newTestServer(t, store).routes()
	ctx := context.Background()

	full, err := store.CreateJob(ctx, persistence.Job{Company: "Acme", Heading: sql.NullString{String: "Now hiring", Valid: true},
		Role: "Backend Engineer", ApplyLink: "https://acme.com/apply", Description: "Write Go services",
		CompanyURL: sql.NullString{String: "https://acme.com", Valid: true},
		CreatedAt:  sql.NullTime{Time: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), Valid: true}})
	require.NoError(t, err)

	t.Run("all fields", func(t *testing.T) {
		var resp map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, handler, fmt.Sprintf("/api/jobs/%d", full.ID), &resp))
		assert.Equal(t, map[string]any{
			"id":          float64(full.ID),
			"company":     "Acme",
			"heading":     "Now hiring",
			"role":        "Backend Engineer",
			"applylink":   "https://acme.com/apply",
			"desc":        "Write Go services",
			"company_url": "https://acme.com",
			"created_at":  "2024-06-15",
		}, resp)
	})

	t.Run("nullable fields are null", func(t *testing.T) {
		bare, err := store.CreateJob(ctx, persistence.Job{Company: "Beta", Role: "QA", ApplyLink: "https://beta", Description: "test"})
		require.NoError(t, err)
		_, err = store.GetJob(ctx, bare.ID)
		require.NoError(t, err)
		bare.CreatedAt = sql.NullTime{}
		require.NoError(t, store.UpdateJob(ctx, bare))

		var resp map[string]any
		require.Equal(t, http.StatusOK, getJSON(t, handler, fmt.Sprintf("/api/jobs/%d", bare.ID), &resp))
		assert.Contains(t, resp, "heading")
		assert.Nil(t, resp["heading"])
		assert.Nil(t, resp["company_url"])
		assert.Nil(t, resp["created_at"])
	})

	t.Run("missing job", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/9999", http.NoBody))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "job not found")
	})

	t.Run("invalid id", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-5", "1.5"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+id, http.NoBody))
			assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		}
	})
}

func TestAPI_ListJobs(t *testing.T) {
	store := newTestStore(t)
	handler := newTestServer(t, store).routes()

	var empty []persistence.PublicJob
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "empty list rendered as array")
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	seeded := createJobs(t, store, 4)
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs", &empty))
	require.Len(t, empty, 4)
	for i, j := range empty {
		assert.Equal(t, seeded[i].ID, j.ID)
	}

	t.Run("newest first", func(t *testing.T) {
		var jobs []persistence.PublicJob
		require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/new", &jobs))
		require.Len(t, jobs, 4)
		for i := 1; i < len(jobs); i++ {
			assert.Greater(t, jobs[i-1].ID, jobs[i].ID)
		}
		assert.Equal(t, seeded[3].ID, jobs[0].ID)
	})
}

func TestAPI_JobsByRoleAndCompany(t *testing.T) {
	store := newTestStore(t)
	handler := newTestServer(t, store).routes()
	createJobs(t, store, 6)

	var jobs []persistence.PublicJob
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/role/role-0", &jobs))
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, "role-0", j.Role)
	}

	jobs = nil
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/role/Role-0", &jobs))
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)

	jobs = nil
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/company/company-1", &jobs))
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Equal(t, "company-1", j.Company)
	}

	t.Run("escaped path value", func(t *testing.T) {
		_, err := store.CreateJob(context.Background(), persistence.Job{Company: "Big Corp", Role: "data scientist",
			ApplyLink: "x", Description: "y"})
		require.NoError(t, err)
		var res []persistence.PublicJob
		require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/role/data%20scientist", &res))
		require.Len(t, res, 1)
		res = nil
		require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/company/Big%20Corp", &res))
		require.Len(t, res, 1)
	})
}

func TestAPI_SearchJobs(t *testing.T) {
	store := newTestStore(t)
	handler := newTestServer(t, store).routes()
	ctx := context.Background()

	mk := func(j persistence.Job) int64 {
		created, err := store.CreateJob(ctx, j)
		require.NoError(t, err)
		return created.ID
	}
	engRole := mk(persistence.Job{Company: "a", Role: "Software Engineer", ApplyLink: "x", Description: "code"})
	engHeading := mk(persistence.Job{Company: "b", Role: "pm", ApplyLink: "x", Description: "plan",
		Heading: sql.NullString{String: "ENGAGING team", Valid: true}})
	mk(persistence.Job{Company: "c", Role: "designer", ApplyLink: "x", Description: "draw"})
	engDesc := mk(persistence.Job{Company: "d", Role: "ops", ApplyLink: "x", Description: "run the engine room"})

	ids := func(jobs []persistence.PublicJob) []int64 {
		res := []int64{}
		for _, j := range jobs {
			res = append(res, j.ID)
		}
		return res
	}

	var jobs []persistence.PublicJob
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/search?q=eng", &jobs))
	assert.Equal(t, []int64{engRole, engHeading, engDesc}, ids(jobs))

	jobs = nil
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/search?q=", &jobs))
	assert.Len(t, jobs, 4)

	jobs = nil
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/search", &jobs))
	assert.Len(t, jobs, 4)

	jobs = nil
	require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/search?q=nothing-like-this", &jobs))
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestAPI_JobsPage(t *testing.T) {
	store := newTestStore(t)
	handler := newTestServer(t, store).routes()
	seeded := createJobs(t, store, 25)

	t.Run("first page", func(t *testing.T) {
		var resp APIJobsPage
		require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/page/1", &resp))
		assert.Len(t, resp.Jobs, 20)
		assert.Equal(t, seeded[0].ID, resp.Jobs[0].ID)
		assert.Equal(t, 25, resp.Total)
		assert.Equal(t, 2, resp.Pages)
		assert.Equal(t, 1, resp.CurrentPage)
	})

	t.Run("last page", func(t *testing.T) {
		var resp APIJobsPage
		require.Equal(t, http.StatusOK, getJSON(t, handler, "/api/jobs/page/2", &resp))
		assert.Len(t, resp.Jobs, 5)
		assert.Equal(t, 25, resp.Total)
		assert.Equal(t, 2, resp.Pages)
		assert.Equal(t, 2, resp.CurrentPage)
	})

	t.Run("out of range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/page/99", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"jobs":[],"total":25,"pages":2,"current_page":99}`, rec.Body.String())
	})

	t.Run("malformed page", func(t *testing.T) {
		for _, page := range []string{"0", "-1", "two", "99999999999999999999"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/page/"+page, http.NoBody))
			assert.Equal(t, http.StatusBadRequest, rec.Code, page)
			assert.Contains(t, rec.Body.String(), "invalid page number")
		}
	})
}

// failingStore returns errors from every job query
type failingStore struct {
	*persistence.Store
}

func (f failingStore) ListJobs(context.Context) ([]persistence.Job, error) {
	return nil, fmt.Errorf("db is gone")
}

func (f failingStore) GetJob(context.Context, int64) (persistence.Job, error) {
	return persistence.Job{}, fmt.Errorf("db is gone")
}

func TestAPI_StoreErrors(t *testing.T) {
	handler := newTestServer(t, failingStore{Store: newTestStore(t)}).routes()

	for _, path := range []string{"/api/jobs", "/api/jobs/1"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, http.NoBody))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.NotContains(t, rec.Body.String(), "db is gone", "internal error details are not exposed")
	}
}
