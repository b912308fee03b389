package orch

import (
	"context"

	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/domain"
)

// SearchRooms lists rooms the user could join, matching the prefix
// query case-insensitively, invitation-first ordering, fixed pages.
func (o *Orchestrator) SearchRooms(ctx context.Context, userID domain.UserID, query string, page int) (*app.SearchResponse, error) {
	if _, err := o.Repos.Users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	candidates, err := o.Repos.Rooms.SearchCandidates(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	return app.OrderAndPaginate(candidates, page)
}
