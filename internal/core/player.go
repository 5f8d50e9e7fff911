package core

// Team identifies one of the two room teams.
type Team int8

const (
	TeamRed Team = iota
	TeamBlue
)

func (t Team) String() string {
	if t == TeamBlue {
		return "blue"
	}
	return "red"
}

// ParseTeam maps a wire string back to a team. ok is false for anything else.
func ParseTeam(s string) (Team, bool) {
	switch s {
	case "red":
		return TeamRed, true
	case "blue":
		return TeamBlue, true
	}
	return TeamRed, false
}

// GameMode selects the scoring rules of a room.
type GameMode string

const (
	ModeAny   GameMode = "any" // list filter only, never a room's mode
	ModeSolo  GameMode = "solo"
	ModeScore GameMode = "score"
	ModeTag   GameMode = "tag"
	ModeJewel GameMode = "jewel"
)

// ReadyState tracks a player's readiness inside a room. The owner carries
// Master instead of Ready.
type ReadyState int8

const (
	StateNotReady ReadyState = iota
	StateReady
	StateMaster
)

// Navigation tracks which screen the client is on, as reported through the
// room/match lifecycle requests.
type Navigation int8

const (
	NavMenus Navigation = iota
	NavRoom
	NavLoading
	NavMatch
)

// Player is the session-scoped copy of a profile plus the volatile room and
// match fields. Roster broadcasts embed value copies of it, so every
// wire-visible field carries a json tag. Mutations happen under the lock of
// the entity driving the transition (room or match).
type Player struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`

	Team   Team       `json:"team"`
	Mobile string     `json:"mobile"`
	Status ReadyState `json:"status"`

	Gold       int64   `json:"gold"`
	Cash       int64   `json:"cash"`
	Attributes []int   `json:"attributes,omitempty"`
	Avatars    []int64 `json:"avatars,omitempty"`

	// Server-side lifecycle state, never sent to clients.
	Loading    ReadyState `json:"-"`
	Navigation Navigation `json:"-"`
}

// Mobile unit types a player can bring into a match.
const (
	MobileArmor  = "armor"
	MobileBionic = "bionic"
	MobileDragon = "dragon"
	MobileKnight = "knight"
	MobileMage   = "mage"
	MobileRaon   = "raon"
	MobileTrico  = "trico"
	MobileTurtle = "turtle"
)
