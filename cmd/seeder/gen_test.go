package main

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestGenUserStatsWindows(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r := rand.New(rand.NewPCG(1, 2))
	users := genUserStats(r, 200, now)

	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.Email] {
			t.Fatalf("duplicate email %s", u.Email)
		}
		seen[u.Email] = true

		if u.CreatedAt.After(now.AddDate(0, 0, -90)) || u.CreatedAt.Before(now.AddDate(0, 0, -800)) {
			t.Errorf("created_at %v outside [-800d, -90d]", u.CreatedAt)
		}
		if u.LastVisitedAt.After(now) || u.LastVisitedAt.Before(now.AddDate(0, 0, -30)) {
			t.Errorf("last_visited_at %v outside [-30d, now]", u.LastVisitedAt)
		}
		if len(u.Finished) >= 50 {
			t.Errorf("finished has %d ids", len(u.Finished))
		}
		for _, id := range u.RecentWatched {
			if id < 100000 || id >= 200000 {
				t.Errorf("recent_watched id %d out of range", id)
			}
		}
	}
}

func TestGenContents(t *testing.T) {
	items := genContents(rand.New(rand.NewPCG(3, 4)), 5)
	if len(items) != 5 {
		t.Fatalf("got %d items", len(items))
	}
	for i, c := range items {
		if c.ID != int64(i+1) || c.URL == "" || c.Type == "" {
			t.Errorf("item %d = %+v", i, c)
		}
	}
}
