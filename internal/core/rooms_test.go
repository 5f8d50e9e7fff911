package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hmelo/skyarena-server/internal/proto"
)

func TestCreateAssignsLowestFreeID(t *testing.T) {
	rr := NewRoomRegistry(false)

	var owners []*PlayerSession
	for i := int64(1); i <= 3; i++ {
		sess, _ := newTestSession(i, fmt.Sprintf("p%d", i))
		snap := rr.Create(sess, "room", ModeScore, 0)
		if snap.ID != int(i) {
			t.Fatalf("expected id %d, got %d", i, snap.ID)
		}
		owners = append(owners, sess)
	}

	// Freeing the middle id makes it the next assignment.
	if _, _, err := rr.Leave(owners[1]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	sess, _ := newTestSession(4, "p4")
	if snap := rr.Create(sess, "room", ModeScore, 0); snap.ID != 2 {
		t.Fatalf("expected reused id 2, got %d", snap.ID)
	}
}

func TestCreatePlacesOwnerOnRedAsMaster(t *testing.T) {
	rr := NewRoomRegistry(false)
	sess, _ := newTestSession(1, "alice")

	snap := rr.Create(sess, "alice's room", ModeSolo, 2)

	if len(snap.Red) != 1 || len(snap.Blue) != 0 {
		t.Fatalf("expected owner alone on red, got %d/%d", len(snap.Red), len(snap.Blue))
	}
	if snap.OwnerID != 1 || snap.Map != 2 || snap.Mode != ModeSolo {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if sess.Player.Status != StateMaster {
		t.Fatalf("expected master status, got %v", sess.Player.Status)
	}
	if sess.Player.Navigation != NavRoom {
		t.Fatalf("expected room navigation, got %v", sess.Player.Navigation)
	}
}

func TestCreateClampsMapIndex(t *testing.T) {
	rr := NewRoomRegistry(false)

	sess, _ := newTestSession(1, "a")
	if snap := rr.Create(sess, "r", ModeScore, 99); snap.Map != 0 {
		t.Fatalf("expected out-of-range map clamped to 0, got %d", snap.Map)
	}
	sess2, _ := newTestSession(2, "b")
	if snap := rr.Create(sess2, "r", ModeScore, -5); snap.Map != 0 {
		t.Fatalf("expected negative map clamped to 0, got %d", snap.Map)
	}
}

func TestJoinBalancesTeamsWithRedTieBreak(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	// Owner is on red, so the first joiner goes blue, the second evens it
	// back out onto red, and so on.
	wantTeams := []Team{TeamBlue, TeamRed, TeamBlue, TeamRed, TeamBlue, TeamRed, TeamBlue}
	for i, want := range wantTeams {
		sess, _ := newTestSession(int64(i+2), fmt.Sprintf("p%d", i+2))
		if _, _, err := rr.Join(snap.ID, sess); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if sess.Player.Team != want {
			t.Fatalf("joiner %d: expected team %v, got %v", i, want, sess.Player.Team)
		}
	}

	// Room is now at capacity.
	late, _ := newTestSession(50, "late")
	if _, _, err := rr.Join(snap.ID, late); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestJoinBroadcastsToPriorRosterOnly(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, ownerOut := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	joiner, joinerOut := newTestSession(2, "joiner")
	_, envs, err := rr.Join(snap.ID, joiner)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	Deliver(envs)

	if got := ownerOut.count(proto.KindRoomRefresh); got != 1 {
		t.Fatalf("expected 1 refresh for prior member, got %d", got)
	}
	if got := len(joinerOut.kinds()); got != 0 {
		t.Fatalf("expected no broadcast to the joiner, got %v", joinerOut.kinds())
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	rr := NewRoomRegistry(false)
	sess, _ := newTestSession(1, "a")
	if _, _, err := rr.Join(42, sess); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestLeaveDestroysEmptyRoom(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "a")
	rr.Create(owner, "r", ModeScore, 0)

	destroyed, _, err := rr.Leave(owner)
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !destroyed {
		t.Fatalf("expected room destruction")
	}
	if owner.Room != nil {
		t.Fatalf("expected session detached from room")
	}
	if list := rr.List(ModeAny, true, 0); len(list) != 0 {
		t.Fatalf("expected empty list, got %d rooms", len(list))
	}
}

func TestLeavePromotesFirstRemainingMember(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	b, _ := newTestSession(2, "b")
	c, _ := newTestSession(3, "c")
	for _, s := range []*PlayerSession{b, c} {
		if _, _, err := rr.Join(snap.ID, s); err != nil {
			t.Fatalf("join: %v", err)
		}
	}
	// b landed on blue, c on red. Red is listed first, so c outranks b for
	// promotion once the owner leaves.
	destroyed, envs, err := rr.Leave(owner)
	if err != nil || destroyed {
		t.Fatalf("leave: destroyed=%v err=%v", destroyed, err)
	}

	if b.Room.Owner != c {
		t.Fatalf("expected c promoted to owner")
	}
	if c.Player.Status != StateMaster {
		t.Fatalf("expected promoted owner to carry master status, got %v", c.Player.Status)
	}
	if len(envs) != 1 || envs[0].Kind != proto.KindRoomRefresh {
		t.Fatalf("expected a single refresh broadcast, got %v", envelopeKinds(envs))
	}
	if containsSession(envs[0].To, owner) {
		t.Fatalf("departed owner must not receive the refresh")
	}
}

func TestLeaveWithoutRoom(t *testing.T) {
	rr := NewRoomRegistry(false)
	sess, _ := newTestSession(1, "a")
	if _, _, err := rr.Leave(sess); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
}

func TestRoomLifecycleScenario(t *testing.T) {
	rr := NewRoomRegistry(false)

	a, _ := newTestSession(1, "a")
	snap := rr.Create(a, "arena", ModeScore, 0)
	if snap.ID != 1 || snap.OwnerID != 1 || a.Player.Team != TeamRed {
		t.Fatalf("unexpected creation: %+v", snap)
	}

	b, _ := newTestSession(2, "b")
	if _, _, err := rr.Join(snap.ID, b); err != nil {
		t.Fatalf("join: %v", err)
	}
	if b.Player.Team != TeamBlue {
		t.Fatalf("expected b on blue, got %v", b.Player.Team)
	}

	destroyed, _, err := rr.Leave(a)
	if err != nil || destroyed {
		t.Fatalf("leave a: destroyed=%v err=%v", destroyed, err)
	}
	if b.Room.Owner != b || b.Player.Status != StateMaster {
		t.Fatalf("expected ownership transferred to b")
	}

	destroyed, _, err = rr.Leave(b)
	if err != nil || !destroyed {
		t.Fatalf("leave b: destroyed=%v err=%v", destroyed, err)
	}
	if got := rr.List(ModeAny, true, 0); len(got) != 0 {
		t.Fatalf("destroyed room still listed: %+v", got)
	}
}

func TestListPagination(t *testing.T) {
	rr := NewRoomRegistry(false)
	for i := 1; i <= 23; i++ {
		sess, _ := newTestSession(int64(i), fmt.Sprintf("p%d", i))
		rr.Create(sess, fmt.Sprintf("room %d", i), ModeScore, 0)
	}

	for page, want := range map[int]int{0: 9, 1: 9, 2: 5, 3: 0} {
		got := rr.List(ModeAny, false, page)
		if len(got) != want {
			t.Fatalf("page %d: expected %d rooms, got %d", page, want, len(got))
		}
	}

	// Pages are ordered by room id.
	first := rr.List(ModeAny, false, 0)
	if first[0].ID != 1 || first[8].ID != 9 {
		t.Fatalf("expected page 0 to span ids 1..9, got %d..%d", first[0].ID, first[8].ID)
	}
	second := rr.List(ModeAny, false, 1)
	if second[0].ID != 10 {
		t.Fatalf("expected page 1 to start at id 10, got %d", second[0].ID)
	}

	// A negative page clamps to the first.
	if got := rr.List(ModeAny, false, -3); len(got) != 9 || got[0].ID != 1 {
		t.Fatalf("expected negative page to clamp to page 0")
	}
}

func TestListFiltersModeAndPlaying(t *testing.T) {
	rr := NewRoomRegistry(false)

	solo, _ := newTestSession(1, "a")
	rr.Create(solo, "solo room", ModeSolo, 0)
	score, _ := newTestSession(2, "b")
	rr.Create(score, "score room", ModeScore, 0)

	playing, _ := newTestSession(3, "c")
	snap := rr.Create(playing, "busy room", ModeScore, 0)
	if started, _, err := rr.SetReady(playing); err != nil || !started {
		t.Fatalf("expected room start, err=%v", err)
	}

	if got := rr.List(ModeSolo, false, 0); len(got) != 1 || got[0].Mode != ModeSolo {
		t.Fatalf("expected only the solo room, got %+v", got)
	}
	if got := rr.List(ModeAny, false, 0); len(got) != 2 {
		t.Fatalf("expected playing room hidden, got %d rooms", len(got))
	}
	got := rr.List(ModeAny, true, 0)
	if len(got) != 3 {
		t.Fatalf("expected all rooms with include_playing, got %d", len(got))
	}
	for _, r := range got {
		if r.ID == snap.ID && !r.Playing {
			t.Fatalf("expected room %d marked playing", snap.ID)
		}
	}
}

func TestChangeTeamRespectsCapacity(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	// Fill both teams to capacity.
	var reds, blues []*PlayerSession
	for i := int64(2); i <= 8; i++ {
		sess, _ := newTestSession(i, fmt.Sprintf("p%d", i))
		if _, _, err := rr.Join(snap.ID, sess); err != nil {
			t.Fatalf("join: %v", err)
		}
		if sess.Player.Team == TeamRed {
			reds = append(reds, sess)
		} else {
			blues = append(blues, sess)
		}
	}
	if len(blues) != TeamCapacity {
		t.Fatalf("expected blue at capacity, got %d", len(blues))
	}

	// Nobody can move onto a full blue team; the request is a silent
	// no-op that still refreshes the roster.
	envs, err := rr.ChangeTeam(reds[0])
	if err != nil {
		t.Fatalf("change team: %v", err)
	}
	if reds[0].Player.Team != TeamRed {
		t.Fatalf("expected member to stay red")
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindRoomRefresh})

	// Once a red slot frees up, a blue member can cross over.
	if _, _, err := rr.Leave(reds[1]); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := rr.ChangeTeam(blues[0]); err != nil {
		t.Fatalf("change team: %v", err)
	}
	if blues[0].Player.Team != TeamRed {
		t.Fatalf("expected member moved to red")
	}
}

func TestChangeTeamOwnerIsAnchored(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Blue has a free slot, but the owner still cannot move.
	envs, err := rr.ChangeTeam(owner)
	if err != nil {
		t.Fatalf("change team: %v", err)
	}
	if owner.Player.Team != TeamRed {
		t.Fatalf("expected owner anchored to red, got %v", owner.Player.Team)
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindRoomRefresh})

	// A regular member with a free destination moves as usual.
	if _, err := rr.ChangeTeam(member); err != nil {
		t.Fatalf("change team: %v", err)
	}
	if member.Player.Team != TeamRed {
		t.Fatalf("expected member moved to red")
	}
}

func TestChangeMapOwnerOnlyAndCycles(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := rr.ChangeMap(member, proto.ChangeMapRight); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	if _, err := rr.ChangeMap(owner, proto.ChangeMapLeft); err != nil {
		t.Fatalf("change map: %v", err)
	}
	if got := owner.Room.MapIdx; got != len(Maps)-1 {
		t.Fatalf("expected wrap to last map, got %d", got)
	}
	if _, err := rr.ChangeMap(owner, proto.ChangeMapRight); err != nil {
		t.Fatalf("change map: %v", err)
	}
	if got := owner.Room.MapIdx; got != 0 {
		t.Fatalf("expected wrap back to first map, got %d", got)
	}
	if _, err := rr.ChangeMap(owner, 3); err != nil {
		t.Fatalf("change map: %v", err)
	}
	if got := owner.Room.MapIdx; got != 3 {
		t.Fatalf("expected explicit map 3, got %d", got)
	}
}

func TestSetReadyTogglesNonOwner(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	started, _, err := rr.SetReady(member)
	if err != nil || started {
		t.Fatalf("non-owner ready must not start: started=%v err=%v", started, err)
	}
	if member.Player.Status != StateReady {
		t.Fatalf("expected ready, got %v", member.Player.Status)
	}

	if _, _, err := rr.SetReady(member); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if member.Player.Status != StateNotReady {
		t.Fatalf("expected toggle back to not ready, got %v", member.Player.Status)
	}
}

func TestOwnerReadyStartsRoom(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	started, envs, err := rr.SetReady(owner)
	if err != nil || !started {
		t.Fatalf("expected start: started=%v err=%v", started, err)
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindRoomRefresh, proto.KindRoomStart})

	if !owner.Room.Playing {
		t.Fatalf("expected room marked playing")
	}
	if owner.Player.Status != StateMaster {
		t.Fatalf("owner must keep master status, got %v", owner.Player.Status)
	}
	if member.Player.Status != StateNotReady {
		t.Fatalf("member readiness must reset, got %v", member.Player.Status)
	}
	for _, s := range []*PlayerSession{owner, member} {
		if s.Player.Navigation != NavLoading {
			t.Fatalf("expected %s on the loading screen", s.Player.Nickname)
		}
	}
}

func TestRequireAllReadyGatesStart(t *testing.T) {
	rr := NewRoomRegistry(true)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)

	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Member not ready yet: the start attempt only refreshes.
	started, envs, err := rr.SetReady(owner)
	if err != nil || started {
		t.Fatalf("expected gated start: started=%v err=%v", started, err)
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindRoomRefresh})

	if _, _, err := rr.SetReady(member); err != nil {
		t.Fatalf("ready: %v", err)
	}
	started, _, err = rr.SetReady(owner)
	if err != nil || !started {
		t.Fatalf("expected start once all ready: started=%v err=%v", started, err)
	}
}

func TestSceneStartWaitsForAllLoaders(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)
	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}
	if started, _, err := rr.SetReady(owner); err != nil || !started {
		t.Fatalf("start: %v", err)
	}

	envs, err := rr.EnterScene(owner)
	if err != nil {
		t.Fatalf("enter scene: %v", err)
	}
	if len(envs) != 0 {
		t.Fatalf("expected no scene start while a member is loading")
	}

	envs, err = rr.EnterScene(member)
	if err != nil {
		t.Fatalf("enter scene: %v", err)
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindSceneStart})
	if !containsSession(envs[0].To, owner) || !containsSession(envs[0].To, member) {
		t.Fatalf("scene start must address the whole roster")
	}
}

func TestStartMatchWaitsForAllAndIsIdempotent(t *testing.T) {
	rr := NewRoomRegistry(false)
	owner, _ := newTestSession(1, "owner")
	snap := rr.Create(owner, "r", ModeScore, 0)
	member, _ := newTestSession(2, "member")
	if _, _, err := rr.Join(snap.ID, member); err != nil {
		t.Fatalf("join: %v", err)
	}
	if started, _, err := rr.SetReady(owner); err != nil || !started {
		t.Fatalf("start: %v", err)
	}

	envs, err := rr.StartMatch(owner)
	if err != nil || len(envs) != 0 {
		t.Fatalf("expected no match while a member is elsewhere, got %v/%v", envelopeKinds(envs), err)
	}

	envs, err = rr.StartMatch(member)
	if err != nil {
		t.Fatalf("start match: %v", err)
	}
	assertKinds(t, envelopeKinds(envs), []string{proto.KindMatchStart})

	mobiles, ok := envs[0].Payload.([]SyncMobile)
	if !ok || len(mobiles) != 2 {
		t.Fatalf("expected 2 mobiles in the start payload, got %T", envs[0].Payload)
	}
	for _, sm := range mobiles {
		if !sm.IsAlive || sm.Health != initialMobileHealth {
			t.Fatalf("expected fresh mobile, got %+v", sm)
		}
	}

	if owner.Match == nil || owner.Match != member.Match {
		t.Fatalf("expected the match mirrored onto every participant")
	}

	// A duplicate signal after the match exists is swallowed.
	envs, err = rr.StartMatch(member)
	if err != nil || len(envs) != 0 {
		t.Fatalf("expected duplicate start swallowed, got %v/%v", envelopeKinds(envs), err)
	}
}
