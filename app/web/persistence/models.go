package persistence

import (
	"database/sql"
	"time"

	"github.com/umputun/jobportal/app/auth"
)

// User is an account allowed into the admin console
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// SetPassword replaces the stored hash with a salted hash of plain
func (u *User) SetPassword(plain string) error {
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether plain matches the stored hash
func (u User) CheckPassword(plain string) bool {
	return auth.CheckPassword(u.PasswordHash, plain)
}

// Job is a single posted position
type Job struct {
	ID          int64
	Company     string
	Heading     sql.NullString
	Role        string
	ApplyLink   string
	Description string
	CompanyURL  sql.NullString
	CreatedAt   sql.NullTime
}

// PublicJob is the JSON representation of a job served by the public API
type PublicJob struct {
	ID          int64   `json:"id"`
	Company     string  `json:"company"`
	Heading     *string `json:"heading"`
	Role        string  `json:"role"`
	ApplyLink   string  `json:"applylink"`
	Description string  `json:"desc"`
	CompanyURL  *string `json:"company_url"`
	CreatedAt   *string `json:"created_at"` // YYYY-MM-DD
}

// Public returns the fixed field set exposed by the API, nulls preserved
func (j Job) Public() PublicJob {
	res := PublicJob{
		ID:          j.ID,
		Company:     j.Company,
		Role:        j.Role,
		ApplyLink:   j.ApplyLink,
		Description: j.Description,
	}
	if j.Heading.Valid {
		res.Heading = &j.Heading.String
	}
	if j.CompanyURL.Valid {
		res.CompanyURL = &j.CompanyURL.String
	}
	if j.CreatedAt.Valid {
		date := j.CreatedAt.Time.UTC().Format(time.DateOnly)
		res.CreatedAt = &date
	}
	return res
}

// JobsPage is a single page of jobs
type JobsPage struct {
	Jobs        []Job
	Total       int
	Pages       int
	CurrentPage int
}

// jobRow is the database shape of a job, created_at stored as unix seconds
type jobRow struct {
	ID          int64          `db:"id"`
	Company     string         `db:"company"`
	Heading     sql.NullString `db:"heading"`
	Role        string         `db:"role"`
	ApplyLink   string         `db:"applylink"`
	Description string         `db:"description"`
	CompanyURL  sql.NullString `db:"company_url"`
	CreatedAt   sql.NullInt64  `db:"created_at"`
}

func (r jobRow) job() Job {
	res := Job{
		ID:          r.ID,
		Company:     r.Company,
		Heading:     r.Heading,
		Role:        r.Role,
		ApplyLink:   r.ApplyLink,
		Description: r.Description,
		CompanyURL:  r.CompanyURL,
	}
	if r.CreatedAt.Valid {
		res.CreatedAt = sql.NullTime{Time: time.Unix(r.CreatedAt.Int64, 0).UTC(), Valid: true}
	}
	return res
}

func toJobRow(j Job) jobRow {
	res := jobRow{
		ID:          j.ID,
		Company:     j.Company,
		Heading:     j.Heading,
		Role:        j.Role,
		ApplyLink:   j.ApplyLink,
		Description: j.Description,
		CompanyURL:  j.CompanyURL,
	}
	if j.CreatedAt.Valid {
		res.CreatedAt = sql.NullInt64{Int64: j.CreatedAt.Time.Unix(), Valid: true}
	}
	return res
}

type userRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}
