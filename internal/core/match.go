package core

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/hmelo/skyarena-server/internal/proto"
)

const initialMobileHealth = 1000

// SyncMobile is the server's authoritative last-known state for one player's
// in-match unit. The server never recomputes physics: it relays reported
// snapshots and retains the latest one for late state queries and win
// detection.
type SyncMobile struct {
	OwnerID  int64  `json:"owner_id"`
	Nickname string `json:"nickname"`
	Team     Team   `json:"team"`
	Mobile   string `json:"mobile"`

	PosX     float64 `json:"pos_x"`
	PosY     float64 `json:"pos_y"`
	Facing   int     `json:"facing"`
	Health   int     `json:"health"`
	Shield   int     `json:"shield"`
	ShotType string  `json:"shot_type,omitempty"`
	IsAlive  bool    `json:"is_alive"`
}

// MatchMetadata carries the turn cursor and the wind for the upcoming turn.
type MatchMetadata struct {
	Turn      int `json:"turn"`
	WindForce int `json:"wind_force"`
	WindAngle int `json:"wind_angle"`
}

// MatchManager owns the combat-turn state of one started room. All of its
// operations serialize on its own mutex; on conclusion it additionally takes
// the room lock (match before room, never the reverse) to write the result.
type MatchManager struct {
	mu sync.Mutex

	room         *Room
	participants []*PlayerSession
	mobiles      []*SyncMobile
	meta         MatchMetadata
	concluded    bool
}

// NewMatchManager builds one SyncMobile per participating player, all alive.
// The participant set is captured here and never changes: broadcasts keep
// addressing the original roster, with dead outboxes dropping silently.
// Callers hold the room's lock.
func NewMatchManager(room *Room, members []*PlayerSession) *MatchManager {
	mm := &MatchManager{
		room:         room,
		participants: members,
		mobiles:      make([]*SyncMobile, 0, len(members)),
		meta:         MatchMetadata{Turn: 1, WindForce: rand.IntN(25), WindAngle: rand.IntN(360)},
	}
	for _, m := range members {
		mm.mobiles = append(mm.mobiles, &SyncMobile{
			OwnerID:  m.Player.ID,
			Nickname: m.Player.Nickname,
			Team:     m.Player.Team,
			Mobile:   m.Player.Mobile,
			Health:   initialMobileHealth,
			IsAlive:  true,
		})
	}
	return mm
}

// Mobiles returns a copy of the current mobile roster.
func (mm *MatchManager) Mobiles() []SyncMobile {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.mobileList()
}

func (mm *MatchManager) mobileList() []SyncMobile {
	out := make([]SyncMobile, 0, len(mm.mobiles))
	for _, sm := range mm.mobiles {
		out = append(out, *sm)
	}
	return out
}

func (mm *MatchManager) find(playerID int64) *SyncMobile {
	for _, sm := range mm.mobiles {
		if sm.OwnerID == playerID {
			return sm
		}
	}
	return nil
}

// Concluded reports whether the match has ended.
func (mm *MatchManager) Concluded() bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.concluded
}

// UpdateMobile replaces the owner's snapshot with the reported state and
// rebroadcasts the full roster. An unknown owner is a stale reference and a
// silent no-op.
func (mm *MatchManager) UpdateMobile(playerID int64, update SyncMobile) []Envelope {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	sm := mm.find(playerID)
	if sm == nil {
		return nil
	}
	sm.apply(update)

	return []Envelope{{Kind: proto.KindMatchMobile, Payload: mm.mobileList(), To: mm.participants}}
}

// apply copies the reported transform and state, keeping identity and
// liveness authoritative on the server side.
func (sm *SyncMobile) apply(update SyncMobile) {
	sm.PosX = update.PosX
	sm.PosY = update.PosY
	sm.Facing = update.Facing
	sm.Health = update.Health
	sm.Shield = update.Shield
	sm.ShotType = update.ShotType
}

// Shot retains the shooter's reported state and relays the action payload
// verbatim to every participant.
func (mm *MatchManager) Shot(playerID int64, action SyncMobile) []Envelope {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if sm := mm.find(playerID); sm != nil {
		sm.apply(action)
	}

	return []Envelope{{Kind: proto.KindMatchShot, Payload: action, To: mm.participants}}
}

// NextTurn advances the turn cursor, re-rolls the wind, and returns the new
// metadata. Once a team has won it returns nil so the client falls through
// to the result screen.
func (mm *MatchManager) NextTurn() *MatchMetadata {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.concluded {
		return nil
	}

	mm.meta.Turn++
	mm.meta.WindForce = rand.IntN(25)
	mm.meta.WindAngle = rand.IntN(360)

	meta := mm.meta
	return &meta
}

// ReportDeath marks the mobile dead, broadcasts the death and a system chat
// line naming the fallen player, then evaluates the win condition.
func (mm *MatchManager) ReportDeath(playerID int64) []Envelope {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	sm := mm.find(playerID)
	if sm == nil || mm.concluded {
		return nil
	}
	sm.IsAlive = false

	envs := []Envelope{
		{Kind: proto.KindMatchDeath, Payload: *sm, To: mm.participants},
		{Kind: proto.KindChatSystem, Payload: SystemMessage{Text: fmt.Sprintf("%s was destroyed", sm.Nickname)}, To: mm.participants},
	}
	return append(envs, mm.evaluateWin()...)
}

// ReportDisconnect is a death triggered by connection loss. A mobile that is
// already dead never re-triggers win evaluation.
func (mm *MatchManager) ReportDisconnect(playerID int64) []Envelope {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	sm := mm.find(playerID)
	if sm == nil || !sm.IsAlive || mm.concluded {
		return nil
	}
	sm.IsAlive = false

	envs := []Envelope{{Kind: proto.KindMatchDisconnect, Payload: *sm, To: mm.participants}}
	return append(envs, mm.evaluateWin()...)
}

// evaluateWin is a pure function of the alive-set partitioned by team. It
// short-circuits while both teams still have a living member. When both
// teams are wiped in the same update, red-empty is checked first, so blue
// wins the double wipe. Callers hold mm.mu.
func (mm *MatchManager) evaluateWin() []Envelope {
	if mm.concluded {
		return nil
	}

	aliveRed, aliveBlue := 0, 0
	for _, sm := range mm.mobiles {
		if !sm.IsAlive {
			continue
		}
		if sm.Team == TeamRed {
			aliveRed++
		} else {
			aliveBlue++
		}
	}

	var victor Team
	switch {
	case aliveRed == 0:
		victor = TeamBlue
	case aliveBlue == 0:
		victor = TeamRed
	default:
		return nil
	}

	mm.concluded = true

	mm.room.mu.Lock()
	v := victor
	mm.room.Victor = &v
	mm.room.Playing = false
	for _, m := range mm.room.members() {
		m.Player.Navigation = NavRoom
	}
	mm.room.mu.Unlock()

	return []Envelope{{Kind: proto.KindMatchEnd, Payload: victor.String(), To: mm.participants}}
}
