// Package forum owns the live post collection and its ranked, filterable
// views. Sorting and searching are STRATEGIES — small interchangeable
// policies the service holds one of each of, swappable at runtime. The
// collection itself keeps insertion order (new posts at the head); readers
// get a reordered copy, never the backing slice.
package forum

import (
	"sort"
	"strings"

	"github.com/sakif/campus-forum/internal/model"
)

// SortStrategy reorders a post slice in place.
// Implementations must be deterministic: equal posts keep their relative
// order (use stable sorts).
type SortStrategy interface {
	// Name identifies the strategy for logging and the strategy-selection API.
	Name() string
	Sort(posts []*model.Post)
}

// SearchStrategy filters posts by a keyword.
type SearchStrategy interface {
	Name() string
	Search(posts []*model.Post, keyword string) []*model.Post
}

// TimeSort orders posts by publish timestamp, newest first. Posts that were
// never stamped (zero time) sort last, as least-recent.
type TimeSort struct{}

func (TimeSort) Name() string { return "time" }

func (TimeSort) Sort(posts []*model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})
}

// HotScoreSort orders posts by descending hot score (see model.Post.HotScore
// for the weighting).
type HotScoreSort struct{}

func (HotScoreSort) Name() string { return "hot" }

func (HotScoreSort) Sort(posts []*model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].HotScore() > posts[j].HotScore()
	})
}

// TitleKeyword matches posts whose title contains the keyword,
// case-insensitively. An empty keyword matches everything.
type TitleKeyword struct{}

func (TitleKeyword) Name() string { return "title" }

func (TitleKeyword) Search(posts []*model.Post, keyword string) []*model.Post {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return posts
	}

	out := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if strings.Contains(strings.ToLower(p.Title), keyword) {
			out = append(out, p)
		}
	}
	return out
}

// SortStrategyByName maps the strategy-selection API's names to strategies.
// Unknown names fall back to the time sort, the default.
func SortStrategyByName(name string) SortStrategy {
	switch name {
	case "hot":
		return HotScoreSort{}
	default:
		return TimeSort{}
	}
}

// SearchStrategyByName is the search-side counterpart of SortStrategyByName.
// Title-keyword search is the only built-in (and the default).
func SearchStrategyByName(name string) SearchStrategy {
	return TitleKeyword{}
}
