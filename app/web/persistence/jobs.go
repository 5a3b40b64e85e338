package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const jobColumns = "id, company, heading, role, applylink, description, company_url, created_at"

// ListJobs returns all jobs ordered by id
func (s *Store) ListJobs(ctx context.Context) ([]Job, error) {
	return s.selectJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY id")
}

// ListNewestJobs returns all jobs, newest (highest id) first
func (s *Store) ListNewestJobs(ctx context.Context) ([]Job, error) {
	return s.selectJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY id DESC")
}

// JobsByRole returns jobs with exactly matching role
func (s *Store) JobsByRole(ctx context.Context, role string) ([]Job, error) {
	return s.selectJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE role = ? ORDER BY id", role)
}

// JobsByCompany returns jobs with exactly matching company
func (s *Store) JobsByCompany(ctx context.Context, company string) ([]Job, error) {
	return s.selectJobs(ctx, "SELECT "+jobColumns+" FROM jobs WHERE company = ? ORDER BY id", company)
}

// SearchJobs returns jobs containing query in role, company, description or heading, ignoring case.
// Empty query matches all jobs.
func (s *Store) SearchJobs(ctx context.Context, query string) ([]Job, error) {
	pattern := "%" + escapeLike(query) + "%"
	q := "SELECT " + jobColumns + ` FROM jobs WHERE
		LOWER(role) LIKE LOWER(?) ESCAPE '\' OR
		LOWER(company) LIKE LOWER(?) ESCAPE '\' OR
		LOWER(description) LIKE LOWER(?) ESCAPE '\' OR
		LOWER(heading) LIKE LOWER(?) ESCAPE '\'
		ORDER BY id`
	return s.selectJobs(ctx, q, pattern, pattern, pattern, pattern)
}

// JobsPage returns 1-based page of jobs. Pages past the end have no jobs but keep the totals.
func (s *Store) JobsPage(ctx context.Context, page, perPage int) (JobsPage, error) {
	if page < 1 {
		return JobsPage{}, fmt.Errorf("page %d: %w", page, ErrInvalidPage)
	}
	if perPage < 1 {
		return JobsPage{}, fmt.Errorf("page size %d: %w", perPage, ErrInvalidPage)
	}

	total, err := s.CountJobs(ctx)
	if err != nil {
		return JobsPage{}, err
	}

	res := JobsPage{Total: total, Pages: (total + perPage - 1) / perPage, CurrentPage: page, Jobs: []Job{}}
	if page > res.Pages {
		return res, nil
	}

	// offset computed in int64 to stay safe for huge page numbers
	offset := int64(page-1) * int64(perPage)
	jobs, err := s.selectJobs(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY id LIMIT ? OFFSET ?", perPage, offset)
	if err != nil {
		return JobsPage{}, err
	}
	res.Jobs = jobs
	return res, nil
}

// CountJobs returns the total number of jobs
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM jobs"); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// GetJob returns job by id, ErrNotFound if missing
func (s *Store) GetJob(ctx context.Context, id int64) (Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT "+jobColumns+" FROM jobs WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return row.job(), nil
}

// CreateJob inserts job and returns it with the assigned id.
// Missing creation time set to the current time.
func (s *Store) CreateJob(ctx context.Context, job Job) (Job, error) {
	if !job.CreatedAt.Valid {
		job.CreatedAt = sql.NullTime{Time: s.now().UTC(), Valid: true}
	}
	row := toJobRow(job)

	q := s.db.Rebind(`INSERT INTO jobs (company, heading, role, applylink, description, company_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowxContext(ctx, q, row.Company, row.Heading, row.Role, row.ApplyLink,
		row.Description, row.CompanyURL, row.CreatedAt).Scan(&row.ID)
	if err != nil {
		return Job{}, fmt.Errorf("failed to create job: %w", err)
	}
	return row.job(), nil
}

// UpdateJob replaces all fields of the job with job.ID
func (s *Store) UpdateJob(ctx context.Context, job Job) error {
	row := toJobRow(job)
	q := s.db.Rebind(`UPDATE jobs SET company = ?, heading = ?, role = ?, applylink = ?, description = ?,
		company_url = ?, created_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, row.Company, row.Heading, row.Role, row.ApplyLink,
		row.Description, row.CompanyURL, row.CreatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", job.ID, err)
	}
	return expectAffected(res, fmt.Sprintf("job %d", job.ID))
}

// DeleteJob removes job by id
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM jobs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("job %d", id))
}

func (s *Store) selectJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows := []jobRow{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	jobs := make([]Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.job())
	}
	return jobs, nil
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// escapeLike makes LIKE wildcards in s match literally, paired with ESCAPE '\'
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
