package app_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

func TestOrderAndPaginateOrdering(t *testing.T) {
	candidates := []core.RoomCandidate{
		{RoomID: "b", RoomName: "Open Room", IsOpen: true},
		{RoomID: "a", RoomName: "Private Invited", IsOpen: false, InvitationID: "inv-1"},
		{RoomID: "c", RoomName: "Open Invited", IsOpen: true, InvitationID: "inv-2"},
		{RoomID: "d", RoomName: "Private Hidden", IsOpen: false},
	}

	resp, err := app.OrderAndPaginate(candidates, 1)
	require.NoError(t, err)

	// Private room without an invitation never shows up.
	require.Len(t, resp.Data, 3)
	assert.Equal(t, 3, resp.TotalEntries)
	assert.False(t, resp.HasMore)

	assert.Equal(t, domain.RoomID("a"), resp.Data[0].RoomID)
	assert.Equal(t, domain.RoomID("c"), resp.Data[1].RoomID)
	assert.Equal(t, domain.RoomID("b"), resp.Data[2].RoomID)

	assert.True(t, resp.Data[0].IsInvited)
	assert.True(t, resp.Data[1].IsInvited)
	assert.False(t, resp.Data[2].IsInvited)
}

func TestOrderAndPaginateTieBreakByRoomID(t *testing.T) {
	candidates := []core.RoomCandidate{
		{RoomID: "z", IsOpen: true},
		{RoomID: "m", IsOpen: true},
		{RoomID: "a", IsOpen: true},
	}

	resp, err := app.OrderAndPaginate(candidates, 1)
	require.NoError(t, err)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, domain.RoomID("a"), resp.Data[0].RoomID)
	assert.Equal(t, domain.RoomID("m"), resp.Data[1].RoomID)
	assert.Equal(t, domain.RoomID("z"), resp.Data[2].RoomID)
}

func TestOrderAndPaginateTwentyThreeRooms(t *testing.T) {
	candidates := make([]core.RoomCandidate, 0, 23)
	for i := 0; i < 23; i++ {
		candidates = append(candidates, core.RoomCandidate{
			RoomID: domain.RoomID(fmt.Sprintf("room-%02d", i)),
			IsOpen: true,
		})
	}

	seen := make(map[domain.RoomID]struct{})
	wantLen := []int{10, 10, 3}
	wantMore := []bool{true, true, false}

	for page := 1; page <= 3; page++ {
		resp, err := app.OrderAndPaginate(candidates, page)
		require.NoError(t, err)
		assert.Equal(t, page, resp.Page)
		assert.Equal(t, 23, resp.TotalEntries)
		assert.Len(t, resp.Data, wantLen[page-1])
		assert.Equal(t, wantMore[page-1], resp.HasMore)
		for _, s := range resp.Data {
			_, dup := seen[s.RoomID]
			assert.False(t, dup, "room %s appeared on two pages", s.RoomID)
			seen[s.RoomID] = struct{}{}
		}
	}
	assert.Len(t, seen, 23)
}

func TestOrderAndPaginatePagePastEnd(t *testing.T) {
	candidates := []core.RoomCandidate{
		{RoomID: "a", IsOpen: true},
	}

	resp, err := app.OrderAndPaginate(candidates, 4)
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.False(t, resp.HasMore)
	assert.Equal(t, 1, resp.TotalEntries)
}

func TestOrderAndPaginateRejectsNonPositivePage(t *testing.T) {
	for _, page := range []int{0, -1} {
		_, err := app.OrderAndPaginate(nil, page)
		assert.ErrorIs(t, err, core.ErrValidation)
	}
}
