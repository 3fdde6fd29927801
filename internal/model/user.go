// internal/model/user.go
package model

import "time"

// UserRecord is one row of the user statistics source. Email is unique
// within a result set.
type UserRecord struct {
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}

// TimeWindow bounds a timestamp column. Lower is the earliest instant and
// Upper the latest; either may be nil.
type TimeWindow struct {
	Lower *time.Time `json:"lower,omitempty"`
	Upper *time.Time `json:"upper,omitempty"`
}

// LastDays is the window [now-days, now].
func LastDays(now time.Time, days uint32) TimeWindow {
	lower := now.AddDate(0, 0, -int(days))
	upper := now
	return TimeWindow{Lower: &lower, Upper: &upper}
}

type QueryRequest struct {
	Timestamps map[string]TimeWindow `json:"timestamps"`
	IDs        map[string][]int64    `json:"ids"`
}
