package repository

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
)

// matchAll is the clause for an unconstrained filter.
const matchAll = "1=1"

var timestampColumns = map[string]bool{
	"created_at":               true,
	"last_visited_at":          true,
	"last_watched_at":          true,
	"last_email_notification":  true,
	"last_in_app_notification": true,
	"last_sms_notification":    true,
}

var idColumns = map[string]bool{
	"recent_watched":           true,
	"viewed_but_not_started":   true,
	"started_but_not_finished": true,
	"finished":                 true,
}

// Filter is a compiled WHERE clause with its positional arguments.
type Filter struct {
	Where string
	Args  []any
}

type queryBuilder struct {
	args       []any
	argCounter int
}

// nextArg returns the next argument placeholder
func (qb *queryBuilder) nextArg(value any) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argCounter)
	qb.argCounter++
	return placeholder
}

// Compile turns the named predicates of req into a filter over user_stats.
// Fields are compiled in name order so the same request always yields the
// same SQL. Unknown fields are rejected.
func Compile(req model.QueryRequest) (Filter, error) {
	qb := &queryBuilder{argCounter: 1}
	var clauses []string

	for _, name := range sortedKeys(req.Timestamps) {
		if !timestampColumns[name] {
			return Filter{}, appErrors.InvalidArgument("unknown timestamp field %q", name)
		}
		clauses = append(clauses, qb.timeClause(name, req.Timestamps[name]))
	}

	for _, name := range sortedKeys(req.IDs) {
		if !idColumns[name] {
			return Filter{}, appErrors.InvalidArgument("unknown id field %q", name)
		}
		ids := req.IDs[name]
		if len(ids) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s && %s", pq.QuoteIdentifier(name), qb.nextArg(pq.Array(ids))))
	}

	// Drop redundant match-all clauses unless nothing else is left.
	clauses = slices.DeleteFunc(clauses, func(c string) bool { return c == matchAll })
	if len(clauses) == 0 {
		return Filter{Where: matchAll}, nil
	}
	return Filter{Where: strings.Join(clauses, " AND "), Args: qb.args}, nil
}

// timeClause: no bounds match everything, one bound is a half-open
// comparison, two bounds are an inclusive BETWEEN lower AND upper.
func (qb *queryBuilder) timeClause(name string, w model.TimeWindow) string {
	col := pq.QuoteIdentifier(name)
	switch {
	case w.Lower == nil && w.Upper == nil:
		return matchAll
	case w.Lower == nil:
		return fmt.Sprintf("%s <= %s", col, qb.nextArg(utc(*w.Upper)))
	case w.Upper == nil:
		return fmt.Sprintf("%s >= %s", col, qb.nextArg(utc(*w.Lower)))
	default:
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, qb.nextArg(utc(*w.Lower)), qb.nextArg(utc(*w.Upper)))
	}
}

func utc(t time.Time) time.Time { return t.UTC() }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
