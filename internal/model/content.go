// internal/model/content.go
package model

import "iter"

type Content struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	URL         string `db:"url" json:"url"`
	Type        string `db:"type" json:"type"`
}

// ContentResult is one item of a materialize stream. Failed items carry Err.
type ContentResult struct {
	Content Content
	Err     error
}

// ContentSnapshot is an immutable ordered collection of content shared by
// every message built in one campaign call.
type ContentSnapshot struct {
	items []Content
}

var emptySnapshot = &ContentSnapshot{}

// NewContentSnapshot takes ownership of items; callers must not modify the
// slice afterwards.
func NewContentSnapshot(items []Content) *ContentSnapshot {
	if len(items) == 0 {
		return emptySnapshot
	}
	return &ContentSnapshot{items: items}
}

func EmptySnapshot() *ContentSnapshot { return emptySnapshot }

func (s *ContentSnapshot) Len() int { return len(s.items) }

func (s *ContentSnapshot) At(i int) Content { return s.items[i] }

func (s *ContentSnapshot) All() iter.Seq2[int, Content] {
	return func(yield func(int, Content) bool) {
		for i, c := range s.items {
			if !yield(i, c) {
				return
			}
		}
	}
}
