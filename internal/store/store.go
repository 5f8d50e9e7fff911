package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on unique constraint conflicts.
	ErrAlreadyExists = errors.New("already exists")
	// ErrAlreadyOwned is returned when purchasing an avatar twice.
	ErrAlreadyOwned = errors.New("avatar already owned")
	// ErrInsufficientFunds is returned when a purchase exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Player is a persisted player profile. The orchestration layer copies it
// into a session at connect time and writes back only through the narrow
// update methods below.
type Player struct {
	ID           int64
	Nickname     string
	PasswordHash string
	IsGuest      bool
	Gold         int64
	Cash         int64
	Attributes   []int
	Avatars      []int64
	CreatedAt    time.Time
}

// Avatar is a purchasable cosmetic item.
type Avatar struct {
	ID        int64
	Name      string
	PriceGold int64
	PriceCash int64
}

// Store is the profile persistence boundary. Implementations must be safe
// for concurrent use.
type Store interface {
	CreatePlayer(ctx context.Context, nickname, passwordHash string, guest bool) (*Player, error)
	FindPlayerByID(ctx context.Context, id int64) (*Player, error)
	FindPlayerByNickname(ctx context.Context, nickname string) (*Player, error)

	// UpdatePlayerLoadout persists attribute spending and equipped avatars.
	UpdatePlayerLoadout(ctx context.Context, id int64, attributes []int, avatars []int64) error

	// PurchaseAvatar deducts the price in the chosen currency and records
	// ownership, returning the refreshed profile.
	PurchaseAvatar(ctx context.Context, playerID, avatarID int64, useGold bool) (*Player, error)
	ListOwnedAvatars(ctx context.Context, playerID int64) ([]int64, error)
	FindAvatar(ctx context.Context, id int64) (*Avatar, error)

	Close() error
}
