package web

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobportal/app/auth"
	"github.com/umputun/jobportal/app/web/persistence"
)

// pageMeta holds fields shared by all admin pages
type pageMeta struct {
	Title    string
	Username string
	Errors   []string
}

func (s *Server) newPageMeta(r *http.Request, title string) pageMeta {
	return pageMeta{Title: title, Username: auth.UserFromContext(r.Context()).Username}
}

// handleAdminIndex renders the admin landing page
func (s *Server) handleAdminIndex(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.CountJobs(r.Context())
	if err != nil {
		s.adminError(w, r, err, "failed to count jobs")
		return
	}
	users, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.adminError(w, r, err, "failed to count users")
		return
	}

	s.render(w, http.StatusOK, "index", struct {
		pageMeta
		JobsCount  int
		UsersCount int
	}{pageMeta: s.newPageMeta(r, "Job Portal Admin"), JobsCount: jobs, UsersCount: users})
}

// jobForm is the admin form for a job, all values as entered
type jobForm struct {
	ID          int64
	Company     string
	Heading     string
	Role        string
	ApplyLink   string
	Description string
	CompanyURL  string
	CreatedAt   string // YYYY-MM-DD
}

func jobFormFromRequest(r *http.Request) jobForm {
	return jobForm{
		Company:     strings.TrimSpace(r.FormValue("company")),
		Heading:     strings.TrimSpace(r.FormValue("heading")),
		Role:        strings.TrimSpace(r.FormValue("role")),
		ApplyLink:   strings.TrimSpace(r.FormValue("applylink")),
		Description: strings.TrimSpace(r.FormValue("desc")),
		CompanyURL:  strings.TrimSpace(r.FormValue("company_url")),
		CreatedAt:   strings.TrimSpace(r.FormValue("created_at")),
	}
}

func jobFormFromJob(job persistence.Job) jobForm {
	res := jobForm{
		ID:          job.ID,
		Company:     job.Company,
		Heading:     job.Heading.String,
		Role:        job.Role,
		ApplyLink:   job.ApplyLink,
		Description: job.Description,
		CompanyURL:  job.CompanyURL.String,
	}
	if job.CreatedAt.Valid {
		res.CreatedAt = formatDate(job.CreatedAt.Time)
	}
	return res
}

// apply validates the form and copies it into job. Blank creation date on existing
// job clears it, unchanged date keeps the stored time of day.
func (f jobForm) apply(job *persistence.Job) (errs []string) {
	fields := []struct {
		name, value string
		required    bool
		maxLen      int // zero for unlimited
	}{
		{"Company", f.Company, true, 100},
		{"Heading", f.Heading, false, 100},
		{"Role", f.Role, true, 100},
		{"Apply link", f.ApplyLink, true, 200},
		{"Description", f.Description, true, 0},
		{"Company URL", f.CompanyURL, false, 200},
	}
	for _, field := range fields {
		if field.required && field.value == "" {
			errs = append(errs, field.name+" is required")
		}
		if err := checkLength(field.name, field.value, field.maxLen); err != "" {
			errs = append(errs, err)
		}
	}

	created := job.CreatedAt
	switch {
	case f.CreatedAt == "":
		created = sql.NullTime{}
	case job.CreatedAt.Valid && formatDate(job.CreatedAt.Time) == f.CreatedAt:
		// unchanged
	default:
		t, err := time.Parse(time.DateOnly, f.CreatedAt)
		if err != nil {
			errs = append(errs, "Created at must be a date in YYYY-MM-DD format")
		}
		created = sql.NullTime{Time: t, Valid: err == nil}
	}
	if len(errs) > 0 {
		return errs
	}

	job.Company = f.Company
	job.Heading = nullString(f.Heading)
	job.Role = f.Role
	job.ApplyLink = f.ApplyLink
	job.Description = f.Description
	job.CompanyURL = nullString(f.CompanyURL)
	job.CreatedAt = created
	return nil
}

type jobFormPage struct {
	pageMeta
	Form  jobForm
	IsNew bool
}

// handleAdminJobs lists jobs page by page (?page=), or all jobs matching ?q=
func (s *Server) handleAdminJobs(w http.ResponseWriter, r *http.Request) {
	data := jobsListPage{pageMeta: s.newPageMeta(r, "Jobs"), Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	if data.Query != "" {
		jobs, err := s.store.SearchJobs(r.Context(), data.Query)
		if err != nil {
			s.adminError(w, r, err, "failed to search jobs")
			return
		}
		data.Jobs = jobs
		s.render(w, http.StatusOK, "jobs", data)
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	res, err := s.store.JobsPage(r.Context(), page, pageSize)
	if err != nil {
		s.adminError(w, r, err, "failed to load jobs")
		return
	}
	data.Jobs, data.Page, data.Pages = res.Jobs, res.CurrentPage, res.Pages
	s.render(w, http.StatusOK, "jobs", data)
}

// jobsListPage is the jobs list, Page and Pages are zero for search results
type jobsListPage struct {
	pageMeta
	Jobs  []persistence.Job
	Query string
	Page  int
	Pages int
}

// PrevPage returns the previous page number, zero on the first page
func (p jobsListPage) PrevPage() int {
	if p.Page <= 1 {
		return 0
	}
	return min(p.Page-1, p.Pages)
}

// NextPage returns the next page number, zero on the last page
func (p jobsListPage) NextPage() int {
	if p.Page >= p.Pages {
		return 0
	}
	return p.Page + 1
}

// handleAdminJobNew renders empty job form
func (s *Server) handleAdminJobNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "job_form", jobFormPage{pageMeta: s.newPageMeta(r, "New job"), IsNew: true})
}

// handleAdminJobCreate creates a job from the submitted form
func (s *Server) handleAdminJobCreate(w http.ResponseWriter, r *http.Request) {
	form := jobFormFromRequest(r)
	var job persistence.Job
	if errs := form.apply(&job); len(errs) > 0 {
		page := jobFormPage{pageMeta: s.newPageMeta(r, "New job"), Form: form, IsNew: true}
		page.Errors = errs
		s.render(w, http.StatusBadRequest, "job_form", page)
		return
	}

	created, err := s.store.CreateJob(r.Context(), job)
	if err != nil {
		s.adminError(w, r, err, "failed to create job")
		return
	}
	log.Printf("[INFO] job %d created by %q", created.ID, auth.UserFromContext(r.Context()).Username)
	s.afterModelChange(r.Context(), ModelChange{Entity: "job", ID: created.ID, Created: true})
	http.Redirect(w, r, adminPrefix+"/jobs", http.StatusSeeOther)
}

// handleAdminJobEdit renders the form for an existing job
func (s *Server) handleAdminJobEdit(w http.ResponseWriter, r *http.Request) {
	job, ok := s.adminLoadJob(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "job_form", jobFormPage{
		pageMeta: s.newPageMeta(r, fmt.Sprintf("Edit job %d", job.ID)), Form: jobFormFromJob(job)})
}

// handleAdminJobUpdate saves the submitted form into an existing job
func (s *Server) handleAdminJobUpdate(w http.ResponseWriter, r *http.Request) {
	job, ok := s.adminLoadJob(w, r)
	if !ok {
		return
	}

	form := jobFormFromRequest(r)
	form.ID = job.ID
	if errs := form.apply(&job); len(errs) > 0 {
		page := jobFormPage{pageMeta: s.newPageMeta(r, fmt.Sprintf("Edit job %d", job.ID)), Form: form}
		page.Errors = errs
		s.render(w, http.StatusBadRequest, "job_form", page)
		return
	}

	if err := s.store.UpdateJob(r.Context(), job); err != nil {
		s.adminError(w, r, err, "failed to update job")
		return
	}
	log.Printf("[INFO] job %d updated by %q", job.ID, auth.UserFromContext(r.Context()).Username)
	s.afterModelChange(r.Context(), ModelChange{Entity: "job", ID: job.ID})
	http.Redirect(w, r, adminPrefix+"/jobs", http.StatusSeeOther)
}

// handleAdminJobDelete removes a job
func (s *Server) handleAdminJobDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		s.adminError(w, r, err, "failed to delete job")
		return
	}
	log.Printf("[INFO] job %d deleted by %q", id, auth.UserFromContext(r.Context()).Username)
	http.Redirect(w, r, adminPrefix+"/jobs", http.StatusSeeOther)
}

func (s *Server) adminLoadJob(w http.ResponseWriter, r *http.Request) (persistence.Job, bool) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return persistence.Job{}, false
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.adminError(w, r, err, "failed to load job")
		return persistence.Job{}, false
	}
	return job, true
}

// adminError maps storage errors to responses, unexpected ones are logged
func (s *Server) adminError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, persistence.ErrDuplicate):
		http.Error(w, "Already exists", http.StatusConflict)
	default:
		log.Printf("[ERROR] %s %s: %s, %v", r.Method, r.URL.Path, msg, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// checkLength returns a form error if value has more than maxLen characters, maxLen 0 means unlimited
func checkLength(name, value string, maxLen int) string {
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		return fmt.Sprintf("%s must be at most %d characters", name, maxLen)
	}
	return ""
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
