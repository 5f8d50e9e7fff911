package core

import (
	"sync"

	"github.com/hmelo/skyarena-server/internal/proto"
)

// ListPageSize is the fixed page size of room list results.
const ListPageSize = 9

// RoomRegistry owns every live room keyed by id. The registry mutex protects
// the map itself (id assignment, insert, destroy) and is always acquired
// before any room mutex. Operations that touch a single room's state without
// the map (team changes, readiness, match transitions) take only that room's
// lock, so unrelated rooms never serialize behind each other.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[int]*Room

	requireAllReady bool
}

// NewRoomRegistry builds an empty registry. When requireAllReady is set, the
// owner can only start once every other member has toggled ready and the
// teams are balanced.
func NewRoomRegistry(requireAllReady bool) *RoomRegistry {
	return &RoomRegistry{
		rooms:           make(map[int]*Room),
		requireAllReady: requireAllReady,
	}
}

// Create assigns the lowest unused positive id, places the owner on the red
// team, and returns the new room's snapshot as the caller's reply.
func (rr *RoomRegistry) Create(sess *PlayerSession, name string, mode GameMode, mapIdx int) RoomSnapshot {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	id := 1
	for {
		if _, taken := rr.rooms[id]; !taken {
			break
		}
		id++
	}

	room := &Room{
		ID:     id,
		Name:   name,
		Mode:   mode,
		MapIdx: clampMapIndex(mapIdx),
		Owner:  sess,
	}
	room.addRed(sess)
	rr.rooms[id] = room

	sess.Room = room
	sess.Player.Status = StateMaster
	sess.Player.Navigation = NavRoom

	return room.snapshot()
}

// List filters by game mode and playing status, then paginates with a fixed
// page size. Pages are zero-based; negative pages clamp to zero and pages
// past the end yield an empty slice. Snapshots are copied out under the
// registry lock so serialization happens lock-free.
func (rr *RoomRegistry) List(mode GameMode, includePlaying bool, page int) []RoomSnapshot {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if page < 0 {
		page = 0
	}

	matched := make([]*Room, 0, len(rr.rooms))
	maxID := 0
	for id := range rr.rooms {
		if id > maxID {
			maxID = id
		}
	}
	for id := 1; id <= maxID; id++ {
		room, ok := rr.rooms[id]
		if !ok {
			continue
		}
		room.mu.Lock()
		keep := (mode == ModeAny || room.Mode == mode) && (includePlaying || !room.Playing)
		room.mu.Unlock()
		if keep {
			matched = append(matched, room)
		}
	}

	start := ListPageSize * page
	if start >= len(matched) {
		return nil
	}
	end := start + ListPageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]RoomSnapshot, 0, end-start)
	for _, room := range matched[start:end] {
		room.mu.Lock()
		out = append(out, room.snapshot())
		room.mu.Unlock()
	}
	return out
}

// Join places the session on whichever team has fewer members (tie goes to
// red) and broadcasts refreshed metadata to the roster as it was before the
// join, so the joiner's own reply is the only message it receives.
func (rr *RoomRegistry) Join(roomID int, sess *PlayerSession) (RoomSnapshot, []Envelope, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room, ok := rr.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, nil, ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.size() >= RoomCapacity {
		return RoomSnapshot{}, nil, ErrRoomFull
	}

	prior := room.members()

	if len(room.red) <= len(room.blue) {
		room.addRed(sess)
	} else {
		room.addBlue(sess)
	}

	sess.Player.Status = StateNotReady
	sess.Player.Loading = StateNotReady
	sess.Player.Navigation = NavRoom
	sess.Room = room

	envs := []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, prior)}
	return room.snapshot(), envs, nil
}

// Leave removes the session from its room. An emptied room is destroyed in
// the same critical section, so no list call can observe it. When the owner
// leaves a non-empty room, the first remaining member is promoted.
func (rr *RoomRegistry) Leave(sess *PlayerSession) (destroyed bool, envs []Envelope, err error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	room := sess.Room
	if room == nil {
		return false, nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	wasOwner := room.Owner == sess
	room.remove(sess)
	sess.Room = nil
	sess.Player.Status = StateNotReady
	sess.Player.Navigation = NavMenus

	if room.size() == 0 {
		delete(rr.rooms, room.ID)
		return true, nil, nil
	}

	if wasOwner {
		next := room.members()[0]
		next.Player.Status = StateMaster
		room.Owner = next
	}

	return false, []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, room.members())}, nil
}

// ChangeTeam moves a non-owner to the opposite team when that team has a
// free slot. The owner anchors its team; an owner request and a full
// destination team are both silent no-ops.
func (rr *RoomRegistry) ChangeTeam(sess *PlayerSession) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Owner == sess {
		return []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, room.members())}, nil
	}

	switch sess.Player.Team {
	case TeamRed:
		if len(room.blue) < TeamCapacity {
			room.remove(sess)
			room.addBlue(sess)
		}
	case TeamBlue:
		if len(room.red) < TeamCapacity {
			room.remove(sess)
			room.addRed(sess)
		}
	}

	return []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, room.members())}, nil
}

// ChangeMap advances, retreats, or sets the room's map. Owner only.
func (rr *RoomRegistry) ChangeMap(sess *PlayerSession, mapReq int) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Owner != sess {
		return nil, ErrNotOwner
	}

	switch mapReq {
	case proto.ChangeMapLeft:
		room.MapIdx = prevMapIndex(room.MapIdx)
	case proto.ChangeMapRight:
		room.MapIdx = nextMapIndex(room.MapIdx)
	default:
		room.MapIdx = clampMapIndex(mapReq)
	}

	return []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, room.members())}, nil
}

// ChangeMobile updates the session's selected unit and refreshes the roster.
func (rr *RoomRegistry) ChangeMobile(sess *PlayerSession, mobile string) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	sess.Player.Mobile = mobile
	return []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, room.members())}, nil
}

// SetReady toggles a member's ready flag. Invoked by the owner it instead
// attempts to start the match: every member is reset to not-ready, moved to
// the loading screen, the owner snaps back to master, and the room flips to
// playing. started reports whether that transition fired.
func (rr *RoomRegistry) SetReady(sess *PlayerSession) (started bool, envs []Envelope, err error) {
	room := sess.Room
	if room == nil {
		return false, nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	members := room.members()

	if room.Owner == sess {
		if rr.requireAllReady && !room.readyToStart() {
			return false, []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, members)}, nil
		}

		for _, m := range members {
			m.Player.Status = StateNotReady
			m.Player.Loading = StateNotReady
			m.Player.Navigation = NavLoading
		}
		room.Owner.Player.Status = StateMaster
		room.Playing = true
		room.Victor = nil
		room.match = nil
		for _, m := range members {
			m.Match = nil
		}

		envs = []Envelope{
			room.refreshEnvelope(proto.KindRoomRefresh, members),
			{Kind: proto.KindRoomStart, To: members},
		}
		return true, envs, nil
	}

	if sess.Player.Status == StateNotReady {
		sess.Player.Status = StateReady
	} else {
		sess.Player.Status = StateNotReady
	}

	return false, []Envelope{room.refreshEnvelope(proto.KindRoomRefresh, members)}, nil
}

// readyToStart reports whether every non-owner member is ready and the teams
// are balanced. Callers hold room.mu.
func (r *Room) readyToStart() bool {
	if len(r.red) != len(r.blue) {
		return false
	}
	for _, m := range r.members() {
		if m != r.Owner && m.Player.Status != StateReady {
			return false
		}
	}
	return true
}

// Loading relays a member's loading percentage to the whole roster.
func (rr *RoomRegistry) Loading(sess *PlayerSession, percent int) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	payload := proto.LoadingProgress{PlayerID: sess.Player.ID, Percent: percent}
	return []Envelope{{Kind: proto.KindRoomLoading, Payload: payload, To: room.members()}}, nil
}

// EnterScene marks the session's loading as complete and runs the all-ready
// check for the scene start signal.
func (rr *RoomRegistry) EnterScene(sess *PlayerSession) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	sess.Player.Loading = StateReady
	return room.sceneStartCheck(), nil
}

// CheckSceneStart re-runs the all-loaded check, used after a member drops out
// mid-loading. Safe to call any number of times: it is a pure read unless
// every remaining member has finished loading.
func (rr *RoomRegistry) CheckSceneStart(room *Room) []Envelope {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.sceneStartCheck()
}

// sceneStartCheck broadcasts the scene start signal once every member's
// loading flag is set. Callers hold room.mu.
func (r *Room) sceneStartCheck() []Envelope {
	members := r.members()
	for _, m := range members {
		if m.Player.Loading != StateReady {
			return nil
		}
	}
	return []Envelope{{Kind: proto.KindSceneStart, To: members}}
}

// StartMatch records that the session's client has entered the match scene.
// Once every member has, the room's match manager is built, mirrored onto
// each participant session, and the initial mobile roster is broadcast.
func (rr *RoomRegistry) StartMatch(sess *PlayerSession) ([]Envelope, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	sess.Player.Loading = StateNotReady
	sess.Player.Navigation = NavMatch

	members := room.members()
	for _, m := range members {
		if m.Player.Navigation != NavMatch {
			return nil, nil
		}
	}
	if room.match != nil {
		// A late duplicate signal after the match already started.
		return nil, nil
	}

	mm := NewMatchManager(room, members)
	// Snapshot the roster before publishing: once room.match is set other
	// goroutines may take mm.mu, and mm.mu is always acquired before room.mu.
	payload := mm.mobileList()
	room.match = mm
	for _, m := range members {
		m.Match = mm
	}

	return []Envelope{{Kind: proto.KindMatchStart, Payload: payload, To: members}}, nil
}

// MatchFor resolves the session's current match manager under the room lock.
func (rr *RoomRegistry) MatchFor(sess *PlayerSession) (*MatchManager, error) {
	room := sess.Room
	if room == nil {
		return nil, ErrNotInMatch
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if sess.Match == nil {
		return nil, ErrNotInMatch
	}
	return sess.Match, nil
}
