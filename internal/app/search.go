package app

import (
	"fmt"
	"sort"

	"github.com/mberthe/chorus/internal/core"
)

// SearchPageSize is fixed; clients page, they do not size.
const SearchPageSize = 10

// SearchResponse is the paginated room listing.
type SearchResponse struct {
	Page         int                `json:"page"`
	TotalEntries int                `json:"totalEntries"`
	HasMore      bool               `json:"hasMore"`
	Data         []core.RoomSummary `json:"data"`
}

// rankOf buckets a candidate for ordering: private rooms the user is
// invited to come first, then open rooms with an invitation, then open
// rooms. Private rooms without an invitation are not visible at all.
func rankOf(c core.RoomCandidate) (int, bool) {
	invited := c.InvitationID != ""
	switch {
	case !c.IsOpen && invited:
		return 0, true
	case c.IsOpen && invited:
		return 1, true
	case c.IsOpen:
		return 2, true
	default:
		return 0, false
	}
}

// OrderAndPaginate applies the listing order and fixed-size pagination
// to the repository's raw candidates. Page numbers are 1-based; a page
// past the end is an empty page, not an error.
func OrderAndPaginate(candidates []core.RoomCandidate, page int) (*SearchResponse, error) {
	if page <= 0 {
		return nil, fmt.Errorf("%w: page must be strictly positive, got %d", core.ErrValidation, page)
	}

	type ranked struct {
		rank int
		c    core.RoomCandidate
	}
	visible := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if rank, ok := rankOf(c); ok {
			visible = append(visible, ranked{rank: rank, c: c})
		}
	}

	// Lexical tie-break by room ID keeps pagination deterministic.
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].rank != visible[j].rank {
			return visible[i].rank < visible[j].rank
		}
		return visible[i].c.RoomID < visible[j].c.RoomID
	})

	total := len(visible)
	start := (page - 1) * SearchPageSize
	end := start + SearchPageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	data := make([]core.RoomSummary, 0, end-start)
	for _, v := range visible[start:end] {
		data = append(data, core.RoomSummary{
			RoomID:      v.c.RoomID,
			RoomName:    v.c.RoomName,
			CreatorName: v.c.CreatorName,
			IsOpen:      v.c.IsOpen,
			IsInvited:   v.c.InvitationID != "",
		})
	}

	return &SearchResponse{
		Page:         page,
		TotalEntries: total,
		HasMore:      end < total,
		Data:         data,
	}, nil
}
