package orch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

// eventLog records cross-component ordering: facts hitting client
// connections and destructive repository writes share one timeline.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *eventLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *eventLog) indexOf(entry string) int {
	for i, e := range l.Entries() {
		if e == entry {
			return i
		}
	}
	return -1
}

// factConn is a SignalConnection that decodes facts into the shared
// event log, tagged with the owning user.
type factConn struct {
	name string
	log  *eventLog

	mu    sync.Mutex
	facts []core.Fact
}

func (c *factConn) TrySend(f core.Frame) error {
	var fact core.Fact
	if err := json.Unmarshal(f, &fact); err != nil {
		return err
	}
	c.mu.Lock()
	c.facts = append(c.facts, fact)
	c.mu.Unlock()
	c.log.add("fact:%s:%s", c.name, fact.Type)
	return nil
}

func (c *factConn) Close() {}

func (c *factConn) Facts() []core.Fact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Fact, len(c.facts))
	copy(out, c.facts)
	return out
}

func (c *factConn) factsOfType(t core.FactType) []core.Fact {
	var out []core.Fact
	for _, f := range c.Facts() {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// memStore backs the five repository fakes with shared in-memory data.
type memStore struct {
	mu  sync.Mutex
	log *eventLog

	users       map[domain.UserID]*domain.User
	rooms       map[domain.RoomID]*domain.Room
	members     map[domain.RoomID]map[domain.UserID]struct{}
	invitations []domain.Invitation
	devices     map[domain.DeviceID]*domain.Device

	setRunIDErr error

	playlists       map[domain.RoomID]*domain.PlaylistRoom
	playlistMembers map[domain.RoomID]map[domain.UserID]struct{}
	playlistTracks  map[domain.RoomID][]domain.PlaylistTrack
}

func newMemStore(log *eventLog) *memStore {
	return &memStore{
		log:             log,
		users:           make(map[domain.UserID]*domain.User),
		rooms:           make(map[domain.RoomID]*domain.Room),
		members:         make(map[domain.RoomID]map[domain.UserID]struct{}),
		devices:         make(map[domain.DeviceID]*domain.Device),
		playlists:       make(map[domain.RoomID]*domain.PlaylistRoom),
		playlistMembers: make(map[domain.RoomID]map[domain.UserID]struct{}),
		playlistTracks:  make(map[domain.RoomID][]domain.PlaylistTrack),
	}
}

func (s *memStore) bundle() core.Repositories {
	return core.Repositories{
		Rooms:       &memRoomRepo{s: s},
		Invitations: &memInvitationRepo{s: s},
		Devices:     &memDeviceRepo{s: s},
		Users:       &memUserRepo{s: s},
		Playlists:   &memPlaylistRepo{s: s},
	}
}

func (s *memStore) memberSet(id domain.RoomID) map[domain.UserID]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.UserID]struct{}, len(s.members[id]))
	for userID := range s.members[id] {
		out[userID] = struct{}{}
	}
	return out
}

// forceDuplicateInvitation plants a second row for the same triple,
// simulating index corruption.
func (s *memStore) forceDuplicateInvitation(inv domain.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations = append(s.invitations, inv)
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; ok {
		return core.ErrDuplicateEntry
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) SetActiveRoom(ctx context.Context, id domain.UserID, roomID domain.RoomID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	u.ActiveRoomID = roomID
	return nil
}

type memRoomRepo struct{ s *memStore }

func (r *memRoomRepo) FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *memRoomRepo) FindByName(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, room := range r.s.rooms {
		if room.Name == name {
			cp := *room
			return &cp, nil
		}
	}
	return nil, core.ErrRoomNotFound
}

func (r *memRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rooms[room.ID]; ok {
		return core.ErrDuplicateEntry
	}
	cp := *room
	r.s.rooms[room.ID] = &cp
	return nil
}

func (r *memRoomRepo) SetRunID(ctx context.Context, id domain.RoomID, runID domain.RunID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.setRunIDErr != nil {
		return r.s.setRunIDErr
	}
	room, ok := r.s.rooms[id]
	if !ok {
		return core.ErrRoomNotFound
	}
	room.RunID = runID
	return nil
}

func (r *memRoomRepo) Delete(ctx context.Context, id domain.RoomID) error {
	r.s.mu.Lock()
	delete(r.s.rooms, id)
	delete(r.s.members, id)
	r.s.mu.Unlock()
	r.s.log.add("room_deleted:%s", id)
	return nil
}

func (r *memRoomRepo) AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set, ok := r.s.members[id]
	if !ok {
		set = make(map[domain.UserID]struct{})
		r.s.members[id] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (r *memRoomRepo) DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if set, ok := r.s.members[id]; ok {
		delete(set, userID)
	}
	return nil
}

func (r *memRoomRepo) Members(ctx context.Context, id domain.RoomID) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for userID := range r.s.members[id] {
		if u, ok := r.s.users[userID]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memRoomRepo) SearchCandidates(ctx context.Context, userID domain.UserID, prefix string) ([]core.RoomCandidate, error) {
	return nil, nil
}

type memInvitationRepo struct{ s *memStore }

func (r *memInvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invitations {
		if existing.RoomID == inv.RoomID && existing.InvitingUserID == inv.InvitingUserID && existing.InvitedUserID == inv.InvitedUserID {
			return core.ErrDuplicateEntry
		}
	}
	r.s.invitations = append(r.s.invitations, *inv)
	return nil
}

func (r *memInvitationRepo) Query(ctx context.Context, roomID domain.RoomID, invitingUserID, invitedUserID domain.UserID) ([]domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range r.s.invitations {
		if inv.RoomID == roomID && inv.InvitingUserID == invitingUserID && inv.InvitedUserID == invitedUserID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memDeviceRepo struct{ s *memStore }

func (r *memDeviceRepo) Save(ctx context.Context, d *domain.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	r.s.devices[d.ID] = &cp
	return nil
}

func (r *memDeviceRepo) FindByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return nil, core.ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDeviceRepo) UpdatePosition(ctx context.Context, id domain.DeviceID, lat, lng float64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.devices[id]
	if !ok {
		return core.ErrDeviceNotFound
	}
	d.Lat = &lat
	d.Lng = &lng
	d.PosUpdatedAt = &at
	return nil
}

func (r *memDeviceRepo) WithFreshPosition(ctx context.Context, userID domain.UserID, window time.Duration) ([]domain.Device, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	var out []domain.Device
	for _, d := range r.s.devices {
		if d.UserID == userID && d.HasFreshFix(now, window) {
			out = append(out, *d)
		}
	}
	return out, nil
}

type memPlaylistRepo struct{ s *memStore }

func (r *memPlaylistRepo) FindByID(ctx context.Context, id domain.RoomID) (*domain.PlaylistRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.playlists[id]
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (r *memPlaylistRepo) Create(ctx context.Context, room *domain.PlaylistRoom) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.playlists[room.ID]; ok {
		return core.ErrDuplicateEntry
	}
	cp := *room
	r.s.playlists[room.ID] = &cp
	return nil
}

func (r *memPlaylistRepo) Delete(ctx context.Context, id domain.RoomID) error {
	r.s.mu.Lock()
	delete(r.s.playlists, id)
	delete(r.s.playlistMembers, id)
	delete(r.s.playlistTracks, id)
	r.s.mu.Unlock()
	r.s.log.add("playlist_deleted:%s", id)
	return nil
}

func (r *memPlaylistRepo) AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set, ok := r.s.playlistMembers[id]
	if !ok {
		set = make(map[domain.UserID]struct{})
		r.s.playlistMembers[id] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (r *memPlaylistRepo) DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if set, ok := r.s.playlistMembers[id]; ok {
		delete(set, userID)
	}
	return nil
}

func (r *memPlaylistRepo) Members(ctx context.Context, id domain.RoomID) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for userID := range r.s.playlistMembers[id] {
		if u, ok := r.s.users[userID]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *memPlaylistRepo) IsMember(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.playlistMembers[id][userID]
	return ok, nil
}

func (r *memPlaylistRepo) Tracks(ctx context.Context, id domain.RoomID) ([]domain.PlaylistTrack, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.PlaylistTrack, len(r.s.playlistTracks[id]))
	copy(out, r.s.playlistTracks[id])
	return out, nil
}

func (r *memPlaylistRepo) AddTrack(ctx context.Context, id domain.RoomID, track domain.PlaylistTrack) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.playlistTracks[id] {
		if t.ID == track.ID {
			return core.ErrDuplicateEntry
		}
	}
	track.Position = len(r.s.playlistTracks[id])
	r.s.playlistTracks[id] = append(r.s.playlistTracks[id], track)
	return nil
}

func (r *memPlaylistRepo) DeleteTrack(ctx context.Context, id domain.RoomID, trackID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tracks := r.s.playlistTracks[id]
	for i, t := range tracks {
		if t.ID == trackID {
			tracks = append(tracks[:i], tracks[i+1:]...)
			for j := range tracks {
				tracks[j].Position = j
			}
			r.s.playlistTracks[id] = tracks
			return nil
		}
	}
	return core.ErrRoomNotFound
}

func (r *memPlaylistRepo) MoveTrack(ctx context.Context, id domain.RoomID, trackID string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tracks := r.s.playlistTracks[id]
	for i, t := range tracks {
		if t.ID == trackID {
			j := i + delta
			if j < 0 || j >= len(tracks) {
				return fmt.Errorf("%w: cannot move %s", core.ErrValidation, trackID)
			}
			tracks[i], tracks[j] = tracks[j], tracks[i]
			tracks[i].Position = i
			tracks[j].Position = j
			return nil
		}
	}
	return core.ErrRoomNotFound
}

// fakeWorkflow records calls and serves canned answers.
type fakeWorkflow struct {
	mu    sync.Mutex
	calls []string

	createErr error
	joinErr   error

	state        *core.WorkflowState
	usersList    []core.RunUser
	usersListErr error
}

func newFakeWorkflow() *fakeWorkflow {
	return &fakeWorkflow{}
}

func (w *fakeWorkflow) record(call string) {
	w.mu.Lock()
	w.calls = append(w.calls, call)
	w.mu.Unlock()
}

func (w *fakeWorkflow) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.calls))
	copy(out, w.calls)
	return out
}

func (w *fakeWorkflow) countCalls(prefix string) int {
	n := 0
	for _, c := range w.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (w *fakeWorkflow) CreateRun(ctx context.Context, params core.CreateRunParams) (*core.CreateRunResponse, error) {
	w.record("CreateRun " + string(params.RoomID))
	if w.createErr != nil {
		return nil, w.createErr
	}
	state := w.state
	if state == nil {
		state = &core.WorkflowState{RoomID: params.RoomID, RoomCreatorUserID: params.CreatorID, Name: string(params.RoomName)}
	}
	return &core.CreateRunResponse{RunID: "run-1", State: state}, nil
}

func (w *fakeWorkflow) JoinRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, deviceID domain.DeviceID, invited bool) error {
	w.record(fmt.Sprintf("JoinRun %s %s invited=%t", roomID, userID, invited))
	return w.joinErr
}

func (w *fakeWorkflow) LeaveRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error {
	w.record(fmt.Sprintf("LeaveRun %s %s", roomID, userID))
	return nil
}

func (w *fakeWorkflow) TerminateRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID) error {
	w.record("TerminateRun " + string(roomID))
	return nil
}

func (w *fakeWorkflow) GetState(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) (*core.WorkflowState, error) {
	w.record("GetState " + string(roomID))
	if w.state != nil {
		return w.state, nil
	}
	return &core.WorkflowState{RoomID: roomID}, nil
}

func (w *fakeWorkflow) GetUsersList(ctx context.Context, roomID domain.RoomID, runID domain.RunID) ([]core.RunUser, error) {
	w.record("GetUsersList " + string(roomID))
	return w.usersList, w.usersListErr
}

func (w *fakeWorkflow) PushEligibilityUpdate(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, fits bool) error {
	w.record(fmt.Sprintf("PushEligibilityUpdate %s %s fits=%t", roomID, userID, fits))
	return nil
}

func (w *fakeWorkflow) VoteForTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, trackID string) error {
	w.record(fmt.Sprintf("VoteForTrack %s %s %s", roomID, userID, trackID))
	return nil
}

func (w *fakeWorkflow) RequestNextTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error {
	w.record(fmt.Sprintf("RequestNextTrack %s %s", roomID, userID))
	return nil
}

type fakeGeocoder struct {
	lat, lng float64
	err      error
}

func (g *fakeGeocoder) Coords(ctx context.Context, placeID string) (float64, float64, error) {
	return g.lat, g.lng, g.err
}

// fixture wires a full orchestrator over the fakes.
type fixture struct {
	log   *eventLog
	store *memStore
	wf    *fakeWorkflow
	reg   *app.Registry
	orch  *orch.Orchestrator
}

func newFixture() *fixture {
	log := &eventLog{}
	store := newMemStore(log)
	wf := newFakeWorkflow()
	reg := app.NewRegistry()
	hub := app.NewHub(reg)
	o := orch.New(reg, hub, store.bundle(), wf, &fakeGeocoder{lat: 48.8566, lng: 2.3522})
	return &fixture{log: log, store: store, wf: wf, reg: reg, orch: o}
}

func (f *fixture) addUser(id domain.UserID, nickname string) {
	repo := &memUserRepo{s: f.store}
	_ = repo.Create(context.Background(), &domain.User{ID: id, Nickname: nickname})
}

// connect registers a live session and returns its recording conn.
func (f *fixture) connect(id domain.UserID, sid core.SessionID) *factConn {
	conn := &factConn{name: string(id), log: f.log}
	f.reg.RegisterSession(id, sid, conn)
	return conn
}

// seedActiveRoom plants an already-running room with its creator as
// member, bypassing the create saga.
func (f *fixture) seedActiveRoom(roomID domain.RoomID, name string, creatorID domain.UserID, isOpen bool) {
	f.store.mu.Lock()
	f.store.rooms[roomID] = &domain.Room{
		ID:        roomID,
		Name:      domain.RoomName(name),
		CreatorID: creatorID,
		RunID:     "run-1",
		IsOpen:    isOpen,
	}
	f.store.mu.Unlock()
	rooms := &memRoomRepo{s: f.store}
	_ = rooms.AssociateUser(context.Background(), roomID, creatorID)
	users := &memUserRepo{s: f.store}
	_ = users.SetActiveRoom(context.Background(), creatorID, roomID)
	f.reg.SetRoom(creatorID, roomID)
}
