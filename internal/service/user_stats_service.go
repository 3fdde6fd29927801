// internal/service/user_stats_service.go
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/repository"
)

// UserStream is a lazy sequence of matched users. Close must be called.
type UserStream interface {
	Next() bool
	User() model.UserRecord
	Err() error
	Close() error
}

// UserStats is the statistics source used by campaigns.
type UserStats interface {
	Query(ctx context.Context, req model.QueryRequest) (UserStream, error)
}

type UserStatRepositoryInterface interface {
	Query(ctx context.Context, f repository.Filter) (*repository.UserStream, error)
}

// UserStatsService compiles query requests and runs them.
type UserStatsService struct {
	Repo UserStatRepositoryInterface
	Log  zerolog.Logger
}

func (s *UserStatsService) Query(ctx context.Context, req model.QueryRequest) (UserStream, error) {
	filter, err := repository.Compile(req)
	if err != nil {
		return nil, err
	}
	s.Log.Debug().Str("where", filter.Where).Int("args", len(filter.Args)).Msg("query user stats")

	stream, err := s.Repo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
