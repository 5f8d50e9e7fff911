package core

import (
	"fmt"
	"sync"

	"github.com/hmelo/skyarena-server/internal/proto"
)

// Chat channel categories. Lobby channels are a pre-existing pool indexed
// from 1; room channels come and go with their room, indexed by room id.
const (
	ChatLobby = "lobby"
	ChatRoom  = "room"
)

// ChatAddress identifies one channel. The zero value means "no channel".
// Index 0 in a join request is the wildcard: pick any non-full channel.
type ChatAddress struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
}

// ChatPresence is the wire form of a channel member. Only immutable identity
// fields, so copies taken under chat locks never race with room mutations.
type ChatPresence struct {
	PlayerID int64  `json:"player_id"`
	Nickname string `json:"nickname"`
}

// ChatMessage is a player-authored message relayed to a channel or team.
type ChatMessage struct {
	PlayerID int64  `json:"player_id"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
	Team     string `json:"team,omitempty"`
}

// SystemMessage is a server-authored chat line.
type SystemMessage struct {
	Text string `json:"text"`
}

// ChatChannel is a bounded roster of sessions sharing one address.
type ChatChannel struct {
	mu      sync.Mutex
	addr    ChatAddress
	members []*PlayerSession
}

func (c *ChatChannel) removeMember(s *PlayerSession) {
	for i, m := range c.members {
		if m == s {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return
		}
	}
}

// ChatRegistry owns every chat channel. Its mutex guards the channel maps
// and the wildcard scan, so two concurrent joiners cannot both be routed to
// the same just-filled channel; each channel's own mutex guards its roster.
// Lock order is registry before channel, one channel at a time.
type ChatRegistry struct {
	mu       sync.Mutex
	capacity int
	lobby    map[int]*ChatChannel
	room     map[int]*ChatChannel
}

// NewChatRegistry pre-creates the lobby channel pool.
func NewChatRegistry(lobbyChannels, capacity int) *ChatRegistry {
	cr := &ChatRegistry{
		capacity: capacity,
		lobby:    make(map[int]*ChatChannel, lobbyChannels),
		room:     make(map[int]*ChatChannel),
	}
	for i := 1; i <= lobbyChannels; i++ {
		cr.lobby[i] = &ChatChannel{addr: ChatAddress{Category: ChatLobby, Index: i}}
	}
	return cr
}

// CreateRoomChannel adds the implicit channel for a new room.
func (cr *ChatRegistry) CreateRoomChannel(roomID int) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.room[roomID] = &ChatChannel{addr: ChatAddress{Category: ChatRoom, Index: roomID}}
}

// DropRoomChannel removes a destroyed room's channel.
func (cr *ChatRegistry) DropRoomChannel(roomID int) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.room, roomID)
}

func (cr *ChatRegistry) channel(addr ChatAddress) *ChatChannel {
	switch addr.Category {
	case ChatLobby:
		return cr.lobby[addr.Index]
	case ChatRoom:
		return cr.room[addr.Index]
	}
	return nil
}

// Join places the session in the addressed channel, resolving the lobby
// wildcard to the first non-full channel. The returned envelopes encode the
// join contract in guaranteed order: the resolved channel, the joiner's own
// presence echoed back, the full prior roster, the arrival notice to prior
// members, any departure notices for the previously joined channel, and the
// welcome line. welcomeName labels room-channel welcomes with the room name.
// Joining the channel the session is already in is a silent no-op.
func (cr *ChatRegistry) Join(sess *PlayerSession, addr ChatAddress, welcomeName string) ([]Envelope, error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if addr.Category == ChatLobby && addr.Index == 0 {
		resolved := 0
		for i := 1; i <= len(cr.lobby); i++ {
			ch := cr.lobby[i]
			ch.mu.Lock()
			free := len(ch.members) < cr.capacity
			ch.mu.Unlock()
			if free {
				resolved = i
				break
			}
		}
		if resolved == 0 {
			return nil, ErrChannelFull
		}
		addr.Index = resolved
	}

	// Re-joining the current channel would duplicate the roster entry and
	// strand a ghost member on the next leave.
	if sess.Chat == addr {
		return nil, nil
	}

	ch := cr.channel(addr)
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	ch.mu.Lock()
	if len(ch.members) >= cr.capacity {
		ch.mu.Unlock()
		return nil, ErrChannelFull
	}

	self := ChatPresence{PlayerID: sess.Player.ID, Nickname: sess.Player.Nickname}
	prior := make([]*PlayerSession, len(ch.members))
	copy(prior, ch.members)

	envs := make([]Envelope, 0, len(prior)+5)
	envs = append(envs,
		Envelope{Kind: proto.KindChatChannel, Payload: proto.ChatChannelResult{Category: addr.Category, Index: addr.Index}, To: []*PlayerSession{sess}},
		Envelope{Kind: proto.KindChatEnter, Payload: self, To: []*PlayerSession{sess}},
	)
	for _, m := range prior {
		envs = append(envs, Envelope{
			Kind:    proto.KindChatEnter,
			Payload: ChatPresence{PlayerID: m.Player.ID, Nickname: m.Player.Nickname},
			To:      []*PlayerSession{sess},
		})
	}
	if len(prior) > 0 {
		envs = append(envs, Envelope{Kind: proto.KindChatEnter, Payload: self, To: prior})
	}

	ch.members = append(ch.members, sess)
	ch.mu.Unlock()

	// Joining a channel implicitly leaves the previous one.
	if prev := sess.Chat; prev.Category != "" && prev != addr {
		envs = append(envs, cr.leaveLocked(sess, prev)...)
	}
	sess.Chat = addr

	welcome := SystemMessage{Text: fmt.Sprintf("Welcome to channel %d", addr.Index)}
	if addr.Category == ChatRoom {
		welcome = SystemMessage{Text: fmt.Sprintf("Welcome to %s", welcomeName)}
	}
	envs = append(envs, Envelope{Kind: proto.KindChatSystem, Payload: welcome, To: []*PlayerSession{sess}})

	return envs, nil
}

// Leave removes the session from its current channel, notifying the
// remaining members. A session in no channel is a silent no-op.
func (cr *ChatRegistry) Leave(sess *PlayerSession) []Envelope {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	addr := sess.Chat
	if addr.Category == "" {
		return nil
	}
	envs := cr.leaveLocked(sess, addr)
	sess.Chat = ChatAddress{}
	return envs
}

// leaveLocked detaches the session from the given channel. Callers hold
// cr.mu.
func (cr *ChatRegistry) leaveLocked(sess *PlayerSession, addr ChatAddress) []Envelope {
	ch := cr.channel(addr)
	if ch == nil {
		return nil
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.removeMember(sess)
	if len(ch.members) == 0 {
		return nil
	}

	remaining := make([]*PlayerSession, len(ch.members))
	copy(remaining, ch.members)
	gone := ChatPresence{PlayerID: sess.Player.ID, Nickname: sess.Player.Nickname}
	return []Envelope{{Kind: proto.KindChatGone, Payload: gone, To: remaining}}
}

// Send relays a message to the session's channel, or to the session's room
// team when a team scope is given.
func (cr *ChatRegistry) Send(sess *PlayerSession, text string, teamScope *Team) ([]Envelope, error) {
	msg := ChatMessage{
		PlayerID: sess.Player.ID,
		Nickname: sess.Player.Nickname,
		Text:     text,
	}

	if teamScope != nil {
		room := sess.Room
		if room == nil {
			return nil, ErrNotInRoom
		}
		msg.Team = teamScope.String()

		room.mu.Lock()
		var to []*PlayerSession
		if *teamScope == TeamRed {
			to = append(to, room.red...)
		} else {
			to = append(to, room.blue...)
		}
		room.mu.Unlock()

		return []Envelope{{Kind: proto.KindChatMessage, Payload: msg, To: to}}, nil
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	ch := cr.channel(sess.Chat)
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	ch.mu.Lock()
	to := make([]*PlayerSession, len(ch.members))
	copy(to, ch.members)
	ch.mu.Unlock()

	return []Envelope{{Kind: proto.KindChatMessage, Payload: msg, To: to}}, nil
}

// Roster returns the member count of a channel, mainly for capacity checks
// in tests and diagnostics.
func (cr *ChatRegistry) Roster(addr ChatAddress) int {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	ch := cr.channel(addr)
	if ch == nil {
		return 0
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.members)
}
