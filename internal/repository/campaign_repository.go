package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, run *model.CampaignRun) error
	Update(ctx context.Context, run *model.CampaignRun) error
	GetByID(ctx context.Context, id string) (*model.CampaignRun, error)
}

// CampaignRepository persists campaign runs in campaign_runs.
type CampaignRepository struct {
	DB Executor
}

func (r *CampaignRepository) Create(ctx context.Context, run *model.CampaignRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	query := `
		INSERT INTO campaign_runs (id, kind, state, produced, dropped, acked, failed, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID, string(run.Kind), string(run.State),
		run.Produced, run.Dropped, run.Acked, run.Failed, run.Error,
		run.CreatedAt, run.UpdatedAt,
	)
	return err
}

func (r *CampaignRepository) Update(ctx context.Context, run *model.CampaignRun) error {
	run.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE campaign_runs
		SET state=$1, produced=$2, dropped=$3, acked=$4, failed=$5, error=$6, updated_at=$7
		WHERE id=$8
	`
	_, err := r.DB.ExecContext(ctx, query,
		string(run.State), run.Produced, run.Dropped, run.Acked, run.Failed, run.Error,
		run.UpdatedAt, run.ID,
	)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.CampaignRun, error) {
	query := `
		SELECT id, kind, state, produced, dropped, acked, failed, error, created_at, updated_at
		FROM campaign_runs WHERE id=$1
	`
	var (
		run         model.CampaignRun
		kind, state string
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &kind, &state,
		&run.Produced, &run.Dropped, &run.Acked, &run.Failed, &run.Error,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	run.Kind = model.CampaignKind(kind)
	run.State = model.RunState(state)
	return &run, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
