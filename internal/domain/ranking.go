package domain

import (
	"cmp"
	"slices"
	"strings"
)

type SortField string

const (
	SortByName   SortField = "name"
	SortByPrice  SortField = "price"
	SortByChange SortField = "change"
	SortByVolume SortField = "volume"
)

// ParseSortField accepts the field names above, case-insensitively.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByName, SortByPrice, SortByChange, SortByVolume:
		return f, true
	default:
		return "", false
	}
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Rank orders the snapshot by field and returns at most n records (n <= 0
// means all). Ties fall back to symbol order so output is stable.
func Rank[T Quote](snap map[string]T, field SortField, order SortOrder, n int) []T {
	out := make([]T, 0, len(snap))
	for _, q := range snap {
		out = append(out, q)
	}

	slices.SortFunc(out, func(a, b T) int {
		var c int
		if field == SortByName {
			c = strings.Compare(a.Key(), b.Key())
		} else {
			c = cmp.Compare(a.Metric(field), b.Metric(field))
		}
		if order == Desc {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.Key(), b.Key())
		}
		return c
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopMovers returns the n largest gainers and losers by percent change.
func TopMovers[T Quote](snap map[string]T, n int) (gainers, losers []T) {
	return Rank(snap, SortByChange, Desc, n), Rank(snap, SortByChange, Asc, n)
}

// FilterBySymbol keeps records whose symbol contains query, case-insensitively.
// An empty query keeps everything.
func FilterBySymbol[T Quote](snap map[string]T, query string) map[string]T {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make(map[string]T, len(snap))
	for k, v := range snap {
		if q == "" || strings.Contains(strings.ToLower(v.Key()), q) {
			out[k] = v
		}
	}
	return out
}
