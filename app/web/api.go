package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/jobportal/app/web/persistence"
)

// APIJobsPage is the JSON response for /api/jobs/page/{page}
type APIJobsPage struct {
	Jobs        []persistence.PublicJob `json:"jobs"`
	Total       int                     `json:"total"`
	Pages       int                     `json:"pages"`
	CurrentPage int                     `json:"current_page"`
}

// handleListJobs returns all jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	s.renderJobs(w, r, jobs, err)
}

// handleNewestJobs returns all jobs, newest first
func (s *Server) handleNewestJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListNewestJobs(r.Context())
	s.renderJobs(w, r, jobs, err)
}

// handleJobsByRole returns jobs with exactly matching role
func (s *Server) handleJobsByRole(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.JobsByRole(r.Context(), r.PathValue("role"))
	s.renderJobs(w, r, jobs, err)
}

// handleJobsByCompany returns jobs with exactly matching company
func (s *Server) handleJobsByCompany(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.JobsByCompany(r.Context(), r.PathValue("company"))
	s.renderJobs(w, r, jobs, err)
}

// handleSearchJobs returns jobs matching ?q= in role, company, description or heading
func (s *Server) handleSearchJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.SearchJobs(r.Context(), r.URL.Query().Get("q"))
	s.renderJobs(w, r, jobs, err)
}

// handleGetJob returns a single job by id
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, "invalid job id")
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound, err, "job not found")
			return
		}
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to load job")
		return
	}

	rest.RenderJSON(w, job.Public())
}

// handleJobsPage returns a page of jobs with totals, pages past the end have no jobs
func (s *Server) handleJobsPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, fmt.Errorf("bad page %q", r.PathValue("page")), "invalid page number")
		return
	}

	res, err := s.store.JobsPage(r.Context(), page, pageSize)
	if err != nil {
		if errors.Is(err, persistence.ErrInvalidPage) {
			rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, "invalid page number")
			return
		}
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to load jobs")
		return
	}

	rest.RenderJSON(w, APIJobsPage{
		Jobs:        publicJobs(res.Jobs),
		Total:       res.Total,
		Pages:       res.Pages,
		CurrentPage: res.CurrentPage,
	})
}

// renderJobs writes jobs as JSON array or error response if err is set
func (s *Server) renderJobs(w http.ResponseWriter, r *http.Request, jobs []persistence.Job, err error) {
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to load jobs")
		return
	}
	rest.RenderJSON(w, publicJobs(jobs))
}

func publicJobs(jobs []persistence.Job) []persistence.PublicJob {
	res := make([]persistence.PublicJob, 0, len(jobs))
	for _, j := range jobs {
		res = append(res, j.Public())
	}
	return res
}

// parseID parses a positive record id
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q: %w", s, err)
	}
	if id < 1 {
		return 0, fmt.Errorf("bad id %q: must be positive", s)
	}
	return id, nil
}
