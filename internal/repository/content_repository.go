package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// ContentRepository materializes content metadata by id.
type ContentRepository struct {
	DB Executor
}

// Materialize streams the contents matching ids. Rows that fail to scan are
// delivered as results with Err set; the stream continues past them.
func (r *ContentRepository) Materialize(ctx context.Context, ids []int64) (<-chan model.ContentResult, error) {
	query := `
		SELECT id, name, description, url, type
		FROM contents
		WHERE id = ANY($1)
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, appErrors.Unavailable(err, "materialize contents")
	}

	out := make(chan model.ContentResult)
	go func() {
		defer close(out)
		defer rows.Close()

		send := func(res model.ContentResult) bool {
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for rows.Next() {
			var (
				c                 model.Content
				description, link sql.NullString
			)
			if err := rows.Scan(&c.ID, &c.Name, &description, &link, &c.Type); err != nil {
				if !send(model.ContentResult{Err: err}) {
					return
				}
				continue
			}
			c.Description = description.String
			c.URL = link.String
			if !send(model.ContentResult{Content: c}) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			send(model.ContentResult{Err: err})
		}
	}()
	return out, nil
}
