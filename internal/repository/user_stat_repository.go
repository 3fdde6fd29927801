package repository

import (
	"context"
	"database/sql"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// Executor is the part of *sql.DB the repositories need.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectUserStats = `SELECT email, name FROM user_stats WHERE `

// UserStatRepository executes compiled filters against user_stats.
type UserStatRepository struct {
	DB Executor
}

// Query starts the query and returns a lazy stream over its rows. The
// caller must Close the stream.
func (r *UserStatRepository) Query(ctx context.Context, f Filter) (*UserStream, error) {
	query := selectUserStats + f.Where
	rows, err := r.DB.QueryContext(ctx, query, f.Args...)
	if err != nil {
		return nil, appErrors.NewQueryError(query, err)
	}
	return &UserStream{rows: rows, query: query}, nil
}

// UserStream yields one UserRecord per row, in the order the database
// returns them.
type UserStream struct {
	rows  *sql.Rows
	query string
	cur   model.UserRecord
	err   error
	done  bool
}

func (s *UserStream) Next() bool {
	if s.done {
		return false
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			s.err = appErrors.NewQueryError(s.query, err)
		}
		s.Close()
		return false
	}
	var u model.UserRecord
	if err := s.rows.Scan(&u.Email, &u.Name); err != nil {
		s.err = appErrors.NewQueryError(s.query, err)
		s.Close()
		return false
	}
	s.cur = u
	return true
}

func (s *UserStream) User() model.UserRecord { return s.cur }

// Err reports the error that ended the stream, if any.
func (s *UserStream) Err() error { return s.err }

func (s *UserStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.rows.Close()
}
