package core

import "sync"

const (
	// TeamCapacity is the maximum roster of one team.
	TeamCapacity = 4
	// RoomCapacity is the combined roster limit of a room.
	RoomCapacity = 2 * TeamCapacity
)

// Maps available for room play, addressed by index. The owner cycles through
// them or picks one explicitly.
var Maps = []string{
	"Metropolis",
	"Sand Hill",
	"Dragon Peak",
	"Sea Cavern",
	"Cozy Tower",
	"Stardust",
}

// Room is a lobby/match container. Its mutex guards the rosters and lifecycle
// fields; the RoomRegistry mutex guards only the id-to-room map. When both
// are needed the registry lock is always taken first.
type Room struct {
	mu sync.Mutex

	ID      int
	Name    string
	Mode    GameMode
	MapIdx  int
	Owner   *PlayerSession
	Playing bool
	Victor  *Team

	red  []*PlayerSession
	blue []*PlayerSession

	match *MatchManager
}

// RoomSnapshot is the wire form of a room, copied out under the room lock so
// serialization never holds it.
type RoomSnapshot struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Mode    GameMode `json:"mode"`
	Map     int      `json:"map"`
	OwnerID int64    `json:"owner_id"`
	Playing bool     `json:"playing"`
	Victor  *Team    `json:"victor,omitempty"`
	Red     []Player `json:"team_red"`
	Blue    []Player `json:"team_blue"`
}

// members returns the combined roster, red team first. Callers hold r.mu.
func (r *Room) members() []*PlayerSession {
	out := make([]*PlayerSession, 0, len(r.red)+len(r.blue))
	out = append(out, r.red...)
	out = append(out, r.blue...)
	return out
}

// size returns the combined roster count. Callers hold r.mu.
func (r *Room) size() int {
	return len(r.red) + len(r.blue)
}

// addRed / addBlue place a session on a team and stamp its player. Callers
// hold r.mu and have verified capacity.
func (r *Room) addRed(s *PlayerSession) {
	r.red = append(r.red, s)
	s.Player.Team = TeamRed
}

func (r *Room) addBlue(s *PlayerSession) {
	r.blue = append(r.blue, s)
	s.Player.Team = TeamBlue
}

// remove detaches a session from whichever team holds it. Callers hold r.mu.
func (r *Room) remove(s *PlayerSession) {
	r.red = removeSession(r.red, s)
	r.blue = removeSession(r.blue, s)
}

func removeSession(team []*PlayerSession, s *PlayerSession) []*PlayerSession {
	for i, member := range team {
		if member == s {
			return append(team[:i], team[i+1:]...)
		}
	}
	return team
}

// snapshot copies the room into its wire form. Callers hold r.mu.
func (r *Room) snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		ID:      r.ID,
		Name:    r.Name,
		Mode:    r.Mode,
		Map:     r.MapIdx,
		Playing: r.Playing,
		Victor:  r.Victor,
		Red:     make([]Player, 0, len(r.red)),
		Blue:    make([]Player, 0, len(r.blue)),
	}
	if r.Owner != nil {
		snap.OwnerID = r.Owner.Player.ID
	}
	for _, s := range r.red {
		snap.Red = append(snap.Red, *s.Player)
	}
	for _, s := range r.blue {
		snap.Blue = append(snap.Blue, *s.Player)
	}
	return snap
}

// refreshEnvelope builds the standard metadata broadcast for the given
// recipients. Callers hold r.mu.
func (r *Room) refreshEnvelope(kind string, to []*PlayerSession) Envelope {
	return Envelope{Kind: kind, Payload: r.snapshot(), To: to}
}

func nextMapIndex(idx int) int {
	return (idx + 1) % len(Maps)
}

func prevMapIndex(idx int) int {
	return (idx + len(Maps) - 1) % len(Maps)
}

func clampMapIndex(idx int) int {
	if idx < 0 || idx >= len(Maps) {
		return 0
	}
	return idx
}
