package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ListUsers returns all users ordered by id
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows := []userRow{}
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, username, password_hash FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, User(r))
	}
	return users, nil
}

// CountUsers returns the total number of users
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GetUser returns user by id, ErrNotFound if missing
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByUsername returns user by exact username, ErrNotFound if missing
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, "username", username)
}

// CreateUser inserts user and returns it with the assigned id, ErrDuplicate if username is taken
func (s *Store) CreateUser(ctx context.Context, user User) (User, error) {
	if _, err := s.GetUserByUsername(ctx, user.Username); err == nil {
		return User{}, fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
	}

	q := s.db.Rebind("INSERT INTO users (username, password_hash) VALUES (?, ?) RETURNING id")
	if err := s.db.QueryRowxContext(ctx, q, user.Username, user.PasswordHash).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
		}
		return User{}, fmt.Errorf("failed to create user %q: %w", user.Username, err)
	}
	return user, nil
}

// EnsureUser creates the user unless one with the same username exists.
// Returns true if the user was created.
func (s *Store) EnsureUser(ctx context.Context, user User) (bool, error) {
	if _, err := s.GetUserByUsername(ctx, user.Username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if _, err := s.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return false, nil // created concurrently
		}
		return false, err
	}
	return true, nil
}

// UpdateUser replaces username and password hash of the user with user.ID
func (s *Store) UpdateUser(ctx context.Context, user User) error {
	existing, err := s.GetUserByUsername(ctx, user.Username)
	if err == nil && existing.ID != user.ID {
		return fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
	}

	q := s.db.Rebind("UPDATE users SET username = ?, password_hash = ? WHERE id = ?")
	res, err := s.db.ExecContext(ctx, q, user.Username, user.PasswordHash, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return expectAffected(res, fmt.Sprintf("user %d", user.ID))
}

// DeleteUser removes user by id
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return expectAffected(res, fmt.Sprintf("user %d", id))
}

func (s *Store) getUser(ctx context.Context, column string, value any) (User, error) {
	var row userRow
	q := s.db.Rebind("SELECT id, username, password_hash FROM users WHERE " + column + " = ?")
	err := s.db.GetContext(ctx, &row, q, value)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s=%v: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user %s=%v: %w", column, value, err)
	}
	return User(row), nil
}

// isUniqueViolation detects unique constraint errors from both postgres and sqlite drivers
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}
