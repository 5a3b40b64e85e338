package persistence

import (
	"context"
	"errors"
	"fmt"
)

// Bootstrap creates missing tables and seeds the named user with password unless it already exists.
// Safe to run on every start, returns true only if the user was created.
func (s *Store) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	if err := s.Initialize(ctx); err != nil {
		return false, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if _, err := s.GetUserByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	user := User{Username: username}
	if err := user.SetPassword(password); err != nil {
		return false, err
	}
	return s.EnsureUser(ctx, user)
}
