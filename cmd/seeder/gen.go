package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/crm-backend/internal/model"
)

type userStat struct {
	Email                 string
	Name                  string
	Gender                string
	CreatedAt             time.Time
	LastVisitedAt         time.Time
	LastWatchedAt         time.Time
	RecentWatched         []int64
	ViewedButNotStarted   []int64
	StartedButNotFinished []int64
	Finished              []int64
	LastEmailNotification time.Time
	LastInAppNotification time.Time
	LastSmsNotification   time.Time
}

var (
	firstNames = []string{"Amina", "Brian", "Chen", "Diana", "Emeka", "Fatuma", "George", "Hana", "Ivan", "Joy"}
	lastNames  = []string{"Otieno", "Smith", "Wang", "Kamau", "Okafor", "Ali", "Novak", "Mwangi", "Sato", "Lee"}
	genders    = []string{"F", "M", "U"}
	types      = []string{"movie", "series", "short", "live"}
)

// between returns a random instant between fromDays and toDays before now.
func between(r *rand.Rand, now time.Time, fromDays, toDays int) time.Time {
	span := time.Duration(fromDays-toDays) * 24 * time.Hour
	if span <= 0 {
		return now.AddDate(0, 0, -toDays)
	}
	return now.AddDate(0, 0, -fromDays).Add(time.Duration(r.Int64N(int64(span))))
}

func intList(r *rand.Rand, limit int, start, size int64) []int64 {
	out := make([]int64, r.IntN(limit))
	for i := range out {
		out[i] = start + r.Int64N(size)
	}
	return out
}

func genUserStats(r *rand.Rand, n int, now time.Time) []userStat {
	users := make([]userStat, n)
	for i := range users {
		first := firstNames[r.IntN(len(firstNames))]
		last := lastNames[r.IntN(len(lastNames))]
		users[i] = userStat{
			Email:                 fmt.Sprintf("%s.%s.%s@example.com", first, last, uuid.NewString()[:8]),
			Name:                  first + " " + last,
			Gender:                genders[r.IntN(len(genders))],
			CreatedAt:             between(r, now, 800, 90),
			LastVisitedAt:         between(r, now, 30, 0),
			LastWatchedAt:         between(r, now, 90, 0),
			RecentWatched:         intList(r, 50, 100000, 100000),
			ViewedButNotStarted:   intList(r, 50, 200000, 100000),
			StartedButNotFinished: intList(r, 50, 300000, 100000),
			Finished:              intList(r, 50, 400000, 100000),
			LastEmailNotification: between(r, now, 45, 0),
			LastInAppNotification: between(r, now, 10, 0),
			LastSmsNotification:   between(r, now, 90, 0),
		}
	}
	return users
}

func genContents(r *rand.Rand, n int) []model.Content {
	items := make([]model.Content, n)
	for i := range items {
		id := int64(i + 1)
		items[i] = model.Content{
			ID:          id,
			Name:        fmt.Sprintf("Title %d", id),
			Description: fmt.Sprintf("Description of title %d", id),
			URL:         fmt.Sprintf("https://cdn.example.com/content/%d", id),
			Type:        types[r.IntN(len(types))],
		}
	}
	return items
}
