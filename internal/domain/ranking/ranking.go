// Package ranking orders leaderboard entries, truncates them and assigns ranks.
package ranking

import (
	"fmt"
	"sort"

	"github.com/okian/perfboard/internal/domain/types"
)

// DefaultLimit is the number of entries shown when the caller does not ask for more.
const DefaultLimit = 10

// Variant is a presentation hint carried through to the response. It never
// changes which entries are returned or their order.
type Variant string

const (
	VariantDefault  Variant = "default"
	VariantCompact  Variant = "compact"
	VariantDetailed Variant = "detailed"
)

// ParseVariant maps a query value onto a Variant. Empty means VariantDefault.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantDefault:
		return VariantDefault, nil
	case VariantCompact:
		return VariantCompact, nil
	case VariantDetailed:
		return VariantDetailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVariant, s)
	}
}

// Request describes one leaderboard view.
type Request struct {
	Limit       int
	ShowDetails bool
	Variant     Variant
}

// Build sorts entries by score descending, keeps the first req.Limit of them
// and numbers them from 1. Entries with equal scores keep their input order.
// The input slice is left untouched.
func Build(entries []types.LeaderboardEntry, req Request) ([]types.LeaderboardEntry, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, req.Limit)
	}
	if _, err := ParseVariant(string(req.Variant)); err != nil {
		return nil, err
	}

	sorted := make([]types.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if req.Limit < len(sorted) {
		sorted = sorted[:req.Limit]
	}

	out := make([]types.LeaderboardEntry, len(sorted))
	for i := range sorted {
		out[i] = sorted[i]
		out[i].Rank = i + 1
		if !req.ShowDetails {
			out[i].Metrics = nil
		} else if sorted[i].Metrics != nil {
			m := *sorted[i].Metrics
			out[i].Metrics = &m
		}
	}
	return out, nil
}

// Position returns the 1-based rank of id within the full ordering, or 0 when
// id is not present.
func Position(entries []types.LeaderboardEntry, id string) (types.LeaderboardEntry, int) {
	all, _ := Build(entries, Request{Limit: len(entries), ShowDetails: true})
	for i := range all {
		if all[i].ID == id {
			return all[i], all[i].Rank
		}
	}
	return types.LeaderboardEntry{}, 0
}
