package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/hmelo/skyarena-server/internal/core"
	"github.com/hmelo/skyarena-server/internal/proto"
	"github.com/hmelo/skyarena-server/internal/store"
)

// Loadout validation caps. Points beyond these are a client lying about its
// progression and the update is dropped.
const (
	maxAttributePoints      = 100
	maxAttributePerCategory = 40
)

// Dispatcher resolves inbound requests to registry and match operations and
// performs the outbound enqueues the registries computed. It is the only
// layer that talks to every registry, so cross-registry ordering (room
// teardown before chat teardown before unregister) lives here.
type Dispatcher struct {
	sessions *core.SessionRegistry
	rooms    *core.RoomRegistry
	chat     *core.ChatRegistry
	store    store.Store
	log      *zerolog.Logger
}

// New wires a dispatcher over the shared registries and the profile store.
func New(sessions *core.SessionRegistry, rooms *core.RoomRegistry, chat *core.ChatRegistry, st store.Store, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		rooms:    rooms,
		chat:     chat,
		store:    st,
		log:      logger,
	}
}

// Connect loads the authoritative profile for the authenticated player id
// and registers a session for it. The client-claimed profile data is never
// trusted beyond the id proven by the token.
func (d *Dispatcher) Connect(ctx context.Context, playerID int64, out core.Outbox) (*core.PlayerSession, error) {
	profile, err := d.store.FindPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	p := &core.Player{
		ID:         profile.ID,
		Nickname:   profile.Nickname,
		Mobile:     core.MobileArmor,
		Gold:       profile.Gold,
		Cash:       profile.Cash,
		Attributes: profile.Attributes,
		Avatars:    profile.Avatars,
		Navigation: core.NavMenus,
	}

	sess, err := d.sessions.Register(p, out)
	if err != nil {
		return nil, err
	}

	sess.Enqueue(proto.KindSessionWelcome, *p)
	d.log.Info().Int64("player_id", p.ID).Str("nickname", p.Nickname).Int("connected", d.sessions.Count()).Msg("player connected")
	return sess, nil
}

// Disconnect tears a session down in dependency order: the match sees the
// loss first, then the room, then the chat channel, and only then does the
// session leave the registry, so every broadcast along the way still
// resolves its targets.
func (d *Dispatcher) Disconnect(sess *core.PlayerSession) {
	if sess == nil {
		return
	}

	if mm, err := d.rooms.MatchFor(sess); err == nil {
		core.Deliver(mm.ReportDisconnect(sess.Player.ID))
	}

	room := sess.Room
	wasLoading := sess.Player.Navigation == core.NavLoading

	if destroyed, envs, err := d.rooms.Leave(sess); err == nil {
		core.Deliver(envs)
		if destroyed {
			d.chat.DropRoomChannel(room.ID)
		} else if wasLoading {
			// A drop-out mid-loading may be the last member everyone
			// was waiting for.
			core.Deliver(d.rooms.CheckSceneStart(room))
		}
	}

	core.Deliver(d.chat.Leave(sess))
	d.sessions.Unregister(sess.Player.ID)
	d.log.Info().Int64("player_id", sess.Player.ID).Int("connected", d.sessions.Count()).Msg("player disconnected")
}

// Dispatch routes one inbound request. A panic while handling a request is
// contained here: registries order their mutations so a partial update is
// never observable, and the next request proceeds on intact state.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *core.PlayerSession, in proto.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Any("panic", r).Str("type", in.Type).Int64("player_id", sess.Player.ID).Msg("request handler panicked")
		}
	}()

	switch in.Type {
	case proto.KindPlayerSearch:
		d.handlePlayerSearch(sess, in.Data)
	case proto.KindRoomCreate:
		d.handleRoomCreate(sess, in.Data)
	case proto.KindRoomList:
		d.handleRoomList(sess, in.Data)
	case proto.KindRoomJoin:
		d.handleRoomJoin(sess, in.Data)
	case proto.KindRoomLeave:
		d.handleRoomLeave(sess)
	case proto.KindRoomChangeTeam:
		d.deliverOrDebug(sess, in.Type)(d.rooms.ChangeTeam(sess))
	case proto.KindRoomChangeMap:
		d.handleChangeMap(sess, in.Data)
	case proto.KindRoomChangeMobile:
		d.handleChangeMobile(sess, in.Data)
	case proto.KindRoomReady:
		d.handleReady(sess)
	case proto.KindRoomLoading:
		d.handleLoading(sess, in.Data)
	case proto.KindSceneEnter:
		d.deliverOrDebug(sess, in.Type)(d.rooms.EnterScene(sess))
	case proto.KindMatchStart:
		d.deliverOrDebug(sess, in.Type)(d.rooms.StartMatch(sess))
	case proto.KindMatchMobile, proto.KindMatchShot, proto.KindMatchDeath:
		d.handleMatchAction(sess, in.Type, in.Data)
	case proto.KindMatchTurn:
		d.handleNextTurn(sess)
	case proto.KindMatchDisconnect:
		if mm, err := d.rooms.MatchFor(sess); err == nil {
			core.Deliver(mm.ReportDisconnect(sess.Player.ID))
		}
	case proto.KindChatJoin:
		d.handleChatJoin(sess, in.Data)
	case proto.KindChatLeave:
		core.Deliver(d.chat.Leave(sess))
	case proto.KindChatSend:
		d.handleChatSend(sess, in.Data)
	case proto.KindShopBuyAvatar:
		d.handleBuyAvatar(ctx, sess, in.Data)
	case proto.KindPlayerLoadout:
		d.handleLoadout(ctx, sess, in.Data)
	default:
		d.log.Debug().Str("type", in.Type).Int64("player_id", sess.Player.ID).Msg("unknown request type")
	}
}

// deliverOrDebug delivers the envelopes of a fire-and-forget operation and
// logs rejections at debug level; rejections of requests that carry no reply
// channel mirror the client's own stale view and are not worth more.
func (d *Dispatcher) deliverOrDebug(sess *core.PlayerSession, reqType string) func([]core.Envelope, error) {
	return func(envs []core.Envelope, err error) {
		if err != nil {
			d.log.Debug().Err(err).Str("type", reqType).Int64("player_id", sess.Player.ID).Msg("request rejected")
			return
		}
		core.Deliver(envs)
	}
}

func (d *Dispatcher) handlePlayerSearch(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.PlayerSearchRequest
	if !d.decode(sess, proto.KindPlayerSearch, data, &req) {
		return
	}
	_, online := d.sessions.Lookup(req.PlayerID)
	sess.Enqueue(proto.KindPlayerSearch, proto.PlayerSearchResult{PlayerID: req.PlayerID, Online: online})
}

func (d *Dispatcher) handleRoomCreate(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomCreateRequest
	if !d.decode(sess, proto.KindRoomCreate, data, &req) {
		return
	}
	if sess.Room != nil || req.Name == "" {
		sess.Enqueue(proto.KindRoomCreate, nil)
		return
	}

	mode := core.GameMode(req.Mode)
	if mode == "" || mode == core.ModeAny {
		mode = core.ModeScore
	}

	snap := d.rooms.Create(sess, req.Name, mode, req.Map)
	d.chat.CreateRoomChannel(snap.ID)
	sess.Enqueue(proto.KindRoomCreate, snap)
	d.log.Info().Int("room_id", snap.ID).Str("name", snap.Name).Int64("owner", sess.Player.ID).Msg("room created")
}

func (d *Dispatcher) handleRoomList(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomListRequest
	if !d.decode(sess, proto.KindRoomList, data, &req) {
		return
	}
	mode := core.GameMode(req.Mode)
	if mode == "" {
		mode = core.ModeAny
	}
	sess.Enqueue(proto.KindRoomList, d.rooms.List(mode, req.IncludePlaying, req.Page))
}

func (d *Dispatcher) handleRoomJoin(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomJoinRequest
	if !d.decode(sess, proto.KindRoomJoin, data, &req) {
		return
	}

	snap, envs, err := d.rooms.Join(req.RoomID, sess)
	if err != nil {
		// "no such room" and "room full" both come back as a null
		// reply, distinguishable from a successful join payload.
		sess.Enqueue(proto.KindRoomJoin, nil)
		return
	}
	core.Deliver(envs)
	sess.Enqueue(proto.KindRoomJoin, snap)
	d.log.Info().Int("room_id", snap.ID).Int64("player_id", sess.Player.ID).Msg("player joined room")
}

func (d *Dispatcher) handleRoomLeave(sess *core.PlayerSession) {
	room := sess.Room

	destroyed, envs, err := d.rooms.Leave(sess)
	if err != nil {
		sess.Enqueue(proto.KindRoomLeave, nil)
		return
	}
	core.Deliver(envs)
	core.Deliver(d.chat.Leave(sess))
	if destroyed {
		d.chat.DropRoomChannel(room.ID)
		d.log.Info().Int("room_id", room.ID).Msg("room destroyed")
	}
	sess.Enqueue(proto.KindRoomLeave, true)
}

func (d *Dispatcher) handleChangeMap(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomChangeMapRequest
	if !d.decode(sess, proto.KindRoomChangeMap, data, &req) {
		return
	}
	d.deliverOrDebug(sess, proto.KindRoomChangeMap)(d.rooms.ChangeMap(sess, req.Map))
}

func (d *Dispatcher) handleChangeMobile(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomChangeMobileRequest
	if !d.decode(sess, proto.KindRoomChangeMobile, data, &req) {
		return
	}
	d.deliverOrDebug(sess, proto.KindRoomChangeMobile)(d.rooms.ChangeMobile(sess, req.Mobile))
}

func (d *Dispatcher) handleReady(sess *core.PlayerSession) {
	started, envs, err := d.rooms.SetReady(sess)
	if err != nil {
		d.log.Debug().Err(err).Int64("player_id", sess.Player.ID).Msg("ready rejected")
		return
	}
	core.Deliver(envs)
	if started {
		d.log.Info().Int("room_id", sess.Room.ID).Msg("room started")
	}
}

func (d *Dispatcher) handleLoading(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.RoomLoadingRequest
	if !d.decode(sess, proto.KindRoomLoading, data, &req) {
		return
	}
	d.deliverOrDebug(sess, proto.KindRoomLoading)(d.rooms.Loading(sess, req.Percent))
}

func (d *Dispatcher) handleMatchAction(sess *core.PlayerSession, reqType string, data json.RawMessage) {
	var sm core.SyncMobile
	if !d.decode(sess, reqType, data, &sm) {
		return
	}

	mm, err := d.rooms.MatchFor(sess)
	if err != nil {
		// Raced against match teardown; the client's view is stale.
		return
	}

	switch reqType {
	case proto.KindMatchMobile:
		core.Deliver(mm.UpdateMobile(sess.Player.ID, sm))
	case proto.KindMatchShot:
		core.Deliver(mm.Shot(sess.Player.ID, sm))
	case proto.KindMatchDeath:
		core.Deliver(mm.ReportDeath(sm.OwnerID))
	}
}

func (d *Dispatcher) handleNextTurn(sess *core.PlayerSession) {
	mm, err := d.rooms.MatchFor(sess)
	if err != nil {
		sess.Enqueue(proto.KindMatchTurn, nil)
		return
	}
	// nil metadata after conclusion tells the client to leave the scene.
	sess.Enqueue(proto.KindMatchTurn, mm.NextTurn())
}

func (d *Dispatcher) handleChatJoin(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.ChatJoinRequest
	if !d.decode(sess, proto.KindChatJoin, data, &req) {
		return
	}

	addr := core.ChatAddress{Category: req.Category, Index: req.Index}
	welcomeName := ""
	if addr.Category == core.ChatRoom {
		room := sess.Room
		if room == nil {
			sess.Enqueue(proto.KindChatChannel, proto.ChatChannelResult{Category: req.Category})
			return
		}
		addr.Index = room.ID
		welcomeName = room.Name
	}

	envs, err := d.chat.Join(sess, addr, welcomeName)
	if err != nil {
		// Index 0 signals "channel full" to the client.
		sess.Enqueue(proto.KindChatChannel, proto.ChatChannelResult{Category: req.Category})
		return
	}
	core.Deliver(envs)
}

func (d *Dispatcher) handleChatSend(sess *core.PlayerSession, data json.RawMessage) {
	var req proto.ChatSendRequest
	if !d.decode(sess, proto.KindChatSend, data, &req) {
		return
	}
	if req.Text == "" {
		return
	}

	var scope *core.Team
	if req.Team != "" {
		team, ok := core.ParseTeam(req.Team)
		if !ok {
			return
		}
		scope = &team
	}

	d.deliverOrDebug(sess, proto.KindChatSend)(d.chat.Send(sess, req.Text, scope))
}

func (d *Dispatcher) handleBuyAvatar(ctx context.Context, sess *core.PlayerSession, data json.RawMessage) {
	var req proto.ShopBuyAvatarRequest
	if !d.decode(sess, proto.KindShopBuyAvatar, data, &req) {
		return
	}

	useGold := req.Currency != proto.CurrencyCash
	profile, err := d.store.PurchaseAvatar(ctx, sess.Player.ID, req.AvatarID, useGold)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrAlreadyOwned) && !errors.Is(err, store.ErrInsufficientFunds) {
			d.log.Warn().Err(err).Int64("player_id", sess.Player.ID).Msg("avatar purchase failed")
		}
		sess.Enqueue(proto.KindShopBuyAvatar, nil)
		return
	}

	sess.Player.Gold = profile.Gold
	sess.Player.Cash = profile.Cash
	sess.Enqueue(proto.KindShopBuyAvatar, proto.ShopBuyAvatarResult{
		AvatarID: req.AvatarID,
		Gold:     profile.Gold,
		Cash:     profile.Cash,
	})
}

func (d *Dispatcher) handleLoadout(ctx context.Context, sess *core.PlayerSession, data json.RawMessage) {
	var req proto.PlayerLoadoutRequest
	if !d.decode(sess, proto.KindPlayerLoadout, data, &req) {
		return
	}

	total := 0
	for _, v := range req.Attributes {
		if v < 0 || v > maxAttributePerCategory {
			return
		}
		total += v
	}
	if total > maxAttributePoints {
		return
	}

	owned, err := d.store.ListOwnedAvatars(ctx, sess.Player.ID)
	if err != nil {
		d.log.Warn().Err(err).Int64("player_id", sess.Player.ID).Msg("loadout ownership check failed")
		return
	}
	ownedSet := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}
	for _, id := range req.Avatars {
		if _, ok := ownedSet[id]; !ok {
			return
		}
	}

	if err := d.store.UpdatePlayerLoadout(ctx, sess.Player.ID, req.Attributes, req.Avatars); err != nil {
		d.log.Warn().Err(err).Int64("player_id", sess.Player.ID).Msg("loadout update failed")
		return
	}

	sess.Player.Attributes = req.Attributes
	sess.Player.Avatars = req.Avatars
	sess.Enqueue(proto.KindPlayerLoadout, *sess.Player)
}

// decode unmarshals a request payload. Malformed input aborts the operation
// before any state is touched and is recorded for diagnostics only.
func (d *Dispatcher) decode(sess *core.PlayerSession, reqType string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		d.log.Debug().Err(err).Str("type", reqType).Int64("player_id", sess.Player.ID).Msg("malformed request payload")
		return false
	}
	return true
}
