package core

import "errors"

// Error codes for domain rejections, surfaced verbatim to clients.
const (
	ErrCodeServerFull       = "server_full"
	ErrCodeAlreadyConnected = "already_connected"
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeRoomFull         = "room_full"
	ErrCodeNotInRoom        = "not_in_room"
	ErrCodeNotOwner         = "not_owner"
	ErrCodeChannelFull      = "channel_full"
	ErrCodeChannelNotFound  = "channel_not_found"
	ErrCodeNotInMatch       = "not_in_match"
	ErrCodeBadRequest       = "bad_request"
)

var (
	ErrServerFull       = errors.New("server at capacity")
	ErrAlreadyConnected = errors.New("player already connected")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrNotInRoom        = errors.New("not in a room")
	ErrNotOwner         = errors.New("not the room owner")
	ErrChannelFull      = errors.New("channel is full")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrNotInMatch       = errors.New("not in a match")
)

// CodeFor maps a sentinel rejection to its wire code. Rejections go back to
// the single caller and are never broadcast or logged as fatal.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrServerFull):
		return ErrCodeServerFull
	case errors.Is(err, ErrAlreadyConnected):
		return ErrCodeAlreadyConnected
	case errors.Is(err, ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return ErrCodeRoomFull
	case errors.Is(err, ErrNotInRoom):
		return ErrCodeNotInRoom
	case errors.Is(err, ErrNotOwner):
		return ErrCodeNotOwner
	case errors.Is(err, ErrChannelFull):
		return ErrCodeChannelFull
	case errors.Is(err, ErrChannelNotFound):
		return ErrCodeChannelNotFound
	case errors.Is(err, ErrNotInMatch):
		return ErrCodeNotInMatch
	default:
		return ErrCodeBadRequest
	}
}
