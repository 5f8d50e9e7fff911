package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for messages sent to the client. Failure replies
// carry a null Data so the client can tell a rejection from a success.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Request kinds accepted from clients.
const (
	KindPlayerSearch = "player.search"

	KindRoomCreate       = "room.create"
	KindRoomList         = "room.list"
	KindRoomJoin         = "room.join"
	KindRoomLeave        = "room.leave"
	KindRoomChangeTeam   = "room.change_team"
	KindRoomChangeMap    = "room.change_map"
	KindRoomChangeMobile = "room.change_mobile"
	KindRoomReady        = "room.ready"
	KindRoomLoading      = "room.loading"

	KindSceneEnter = "scene.enter"

	KindMatchStart      = "match.start"
	KindMatchMobile     = "match.mobile"
	KindMatchTurn       = "match.turn"
	KindMatchShot       = "match.shot"
	KindMatchDeath      = "match.death"
	KindMatchDisconnect = "match.disconnect"

	KindChatJoin  = "chat.join"
	KindChatLeave = "chat.leave"
	KindChatSend  = "chat.send"

	KindShopBuyAvatar = "shop.buy_avatar"
	KindPlayerLoadout = "player.loadout"
)

// Event kinds pushed to clients. Some double as the reply to same-named
// requests; the rest are server-initiated broadcasts.
const (
	KindSessionWelcome = "session.welcome"

	KindRoomRefresh = "room.refresh"
	KindRoomStart   = "room.start"
	KindSceneStart  = "scene.start"

	KindMatchEnd = "match.end"

	KindChatChannel = "chat.channel"
	KindChatEnter   = "chat.enter"
	KindChatGone    = "chat.gone"
	KindChatMessage = "chat.message"
	KindChatSystem  = "chat.system"
)

// PlayerSearchRequest asks whether a player is currently connected.
type PlayerSearchRequest struct {
	PlayerID int64 `json:"player_id"`
}

// PlayerSearchResult answers a player search.
type PlayerSearchResult struct {
	PlayerID int64 `json:"player_id"`
	Online   bool  `json:"online"`
}

// RoomCreateRequest carries the metadata of a room to be created.
type RoomCreateRequest struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
	Map  int    `json:"map"`
}

// RoomListRequest filters and paginates the room list. Rooms with a match in
// progress are hidden unless IncludePlaying is set.
type RoomListRequest struct {
	Mode           string `json:"mode"`
	IncludePlaying bool   `json:"include_playing"`
	Page           int    `json:"page"`
}

// RoomJoinRequest addresses a room by id.
type RoomJoinRequest struct {
	RoomID int `json:"room_id"`
}

// Map change directions. Any other value is an explicit map index.
const (
	ChangeMapLeft  = -1
	ChangeMapRight = -2
)

// RoomChangeMapRequest cycles or sets the room's map. Owner only.
type RoomChangeMapRequest struct {
	Map int `json:"map"`
}

// RoomChangeMobileRequest selects the player's unit for the next match.
type RoomChangeMobileRequest struct {
	Mobile string `json:"mobile"`
}

// RoomLoadingRequest reports the player's loading progress to the roster.
type RoomLoadingRequest struct {
	Percent int `json:"percent"`
}

// LoadingProgress is the relayed form of a loading report.
type LoadingProgress struct {
	PlayerID int64 `json:"player_id"`
	Percent  int   `json:"percent"`
}

// ChatJoinRequest addresses a channel; index 0 means "any non-full channel"
// within the category.
type ChatJoinRequest struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
}

// ChatChannelResult tells the joiner which concrete channel it landed in.
// Index 0 signals that the requested channel was full.
type ChatChannelResult struct {
	Category string `json:"category"`
	Index    int    `json:"index"`
}

// ChatSendRequest carries a chat message. Team limits delivery to the
// sender's room team when non-empty.
type ChatSendRequest struct {
	Text string `json:"text"`
	Team string `json:"team,omitempty"`
}

// Avatar purchase currencies.
const (
	CurrencyGold = "gold"
	CurrencyCash = "cash"
)

// ShopBuyAvatarRequest purchases an avatar with the given currency.
type ShopBuyAvatarRequest struct {
	AvatarID int64  `json:"avatar_id"`
	Currency string `json:"currency"`
}

// ShopBuyAvatarResult confirms a purchase and the remaining balance.
type ShopBuyAvatarResult struct {
	AvatarID int64 `json:"avatar_id"`
	Gold     int64 `json:"gold"`
	Cash     int64 `json:"cash"`
}

// PlayerLoadoutRequest updates attribute point spending and equipped avatars.
type PlayerLoadoutRequest struct {
	Attributes []int   `json:"attributes"`
	Avatars    []int64 `json:"avatars"`
}
