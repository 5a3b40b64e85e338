// Package persistence provides storage for jobs and users.
// It selects the database once at startup, trying the primary Postgres
// connection first and falling back to a local SQLite file with WAL mode
// when the primary can't be reached.
package persistence
