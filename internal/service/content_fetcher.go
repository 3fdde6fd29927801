// internal/service/content_fetcher.go
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
)

type ContentSource interface {
	Materialize(ctx context.Context, ids []int64) (<-chan model.ContentResult, error)
}

type ContentCache interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]model.Content, error)
	SetMany(ctx context.Context, items []model.Content) error
}

// ContentFetcher resolves content ids into a snapshot. It never fails: on
// any source error it logs and returns the empty snapshot.
type ContentFetcher struct {
	Source ContentSource
	Cache  ContentCache // optional
	Log    zerolog.Logger
}

// Fetch returns the contents for ids, ordered by first appearance in ids.
// Duplicate ids are collapsed and ids the source does not know are skipped.
func (f *ContentFetcher) Fetch(ctx context.Context, ids []int64) *model.ContentSnapshot {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return model.EmptySnapshot()
	}

	found := make(map[int64]model.Content, len(ids))
	missing := ids
	if f.Cache != nil {
		hits, err := f.Cache.GetMany(ctx, ids)
		if err != nil {
			f.Log.Warn().Err(err).Msg("content cache unavailable")
		} else {
			missing = nil
			for _, id := range ids {
				if c, ok := hits[id]; ok {
					found[id] = c
				} else {
					missing = append(missing, id)
				}
			}
		}
	}

	if len(missing) > 0 {
		fetched, err := f.materialize(ctx, missing)
		if err != nil {
			f.Log.Warn().Ints64("content_ids", ids).Err(err).Msg("failed to get contents")
			return model.EmptySnapshot()
		}
		for _, c := range fetched {
			found[c.ID] = c
		}
		if f.Cache != nil && len(fetched) > 0 {
			if err := f.Cache.SetMany(ctx, fetched); err != nil {
				f.Log.Warn().Err(err).Msg("failed to cache contents")
			}
		}
	}

	items := make([]model.Content, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			items = append(items, c)
		}
	}
	f.Log.Info().Int("contents", len(items)).Msg("contents fetched")
	return model.NewContentSnapshot(items)
}

func (f *ContentFetcher) materialize(ctx context.Context, ids []int64) ([]model.Content, error) {
	results, err := f.Source.Materialize(ctx, ids)
	if err != nil {
		return nil, err
	}
	var out []model.Content
	for res := range results {
		if res.Err != nil {
			f.Log.Debug().Err(res.Err).Msg("skipping content item")
			continue
		}
		out = append(out, res.Content)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
