package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hmelo/skyarena-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS players (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	nickname TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	is_guest INTEGER NOT NULL DEFAULT 0,
	gold INTEGER NOT NULL DEFAULT 2000,
	cash INTEGER NOT NULL DEFAULT 0,
	attributes TEXT NOT NULL DEFAULT '[]',
	equipped_avatars TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS avatars (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	price_gold INTEGER NOT NULL DEFAULT 0,
	price_cash INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS owned_avatars (
	player_id INTEGER NOT NULL REFERENCES players(id),
	avatar_id INTEGER NOT NULL REFERENCES avatars(id),
	purchased_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (player_id, avatar_id)
);
`

// New creates a SQLite-backed store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a store and runs a setup function before the schema
// check, useful for tests that need to seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreatePlayer inserts a new profile with starter funds.
func (s *SQLiteStore) CreatePlayer(ctx context.Context, nickname, passwordHash string, guest bool) (*store.Player, error) {
	query := `
		INSERT INTO players (nickname, password_hash, is_guest)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, nickname, passwordHash, boolToInt(guest))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, store.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert player: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.FindPlayerByID(ctx, id)
}

// FindPlayerByID loads one profile.
func (s *SQLiteStore) FindPlayerByID(ctx context.Context, id int64) (*store.Player, error) {
	return s.findPlayer(ctx, "id = ?", id)
}

// FindPlayerByNickname loads one profile by its unique nickname.
func (s *SQLiteStore) FindPlayerByNickname(ctx context.Context, nickname string) (*store.Player, error) {
	return s.findPlayer(ctx, "nickname = ?", nickname)
}

func (s *SQLiteStore) findPlayer(ctx context.Context, where string, arg any) (*store.Player, error) {
	query := `
		SELECT id, nickname, password_hash, is_guest, gold, cash, attributes, equipped_avatars, created_at
		FROM players
		WHERE ` + where

	var (
		p           store.Player
		isGuest     int
		attrsJSON   string
		avatarsJSON string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Nickname, &p.PasswordHash, &isGuest, &p.Gold, &p.Cash, &attrsJSON, &avatarsJSON, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}

	p.IsGuest = isGuest != 0
	if err := json.Unmarshal([]byte(attrsJSON), &p.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(avatarsJSON), &p.Avatars); err != nil {
		return nil, fmt.Errorf("decode avatars: %w", err)
	}
	return &p, nil
}

// UpdatePlayerLoadout persists attribute spending and equipped avatars.
func (s *SQLiteStore) UpdatePlayerLoadout(ctx context.Context, id int64, attributes []int, avatars []int64) error {
	attrsJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	avatarsJSON, err := json.Marshal(avatars)
	if err != nil {
		return fmt.Errorf("encode avatars: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE players SET attributes = ?, equipped_avatars = ? WHERE id = ?`,
		string(attrsJSON), string(avatarsJSON), id,
	)
	if err != nil {
		return fmt.Errorf("update loadout: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindAvatar loads one shop item.
func (s *SQLiteStore) FindAvatar(ctx context.Context, id int64) (*store.Avatar, error) {
	var a store.Avatar
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price_gold, price_cash FROM avatars WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.PriceGold, &a.PriceCash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select avatar: %w", err)
	}
	return &a, nil
}

// PurchaseAvatar deducts the price in one transaction and records ownership.
func (s *SQLiteStore) PurchaseAvatar(ctx context.Context, playerID, avatarID int64, useGold bool) (*store.Player, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var priceGold, priceCash int64
	err = tx.QueryRowContext(ctx,
		`SELECT price_gold, price_cash FROM avatars WHERE id = ?`, avatarID,
	).Scan(&priceGold, &priceCash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select avatar: %w", err)
	}

	var owned int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM owned_avatars WHERE player_id = ? AND avatar_id = ?`, playerID, avatarID,
	).Scan(&owned); err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if owned > 0 {
		return nil, store.ErrAlreadyOwned
	}

	column, price := "cash", priceCash
	if useGold {
		column, price = "gold", priceGold
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE players SET `+column+` = `+column+` - ? WHERE id = ? AND `+column+` >= ?`,
		price, playerID, price,
	)
	if err != nil {
		return nil, fmt.Errorf("deduct funds: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO owned_avatars (player_id, avatar_id) VALUES (?, ?)`, playerID, avatarID,
	); err != nil {
		return nil, fmt.Errorf("record ownership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.FindPlayerByID(ctx, playerID)
}

// ListOwnedAvatars returns the avatar ids the player has purchased.
func (s *SQLiteStore) ListOwnedAvatars(ctx context.Context, playerID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT avatar_id FROM owned_avatars WHERE player_id = ? ORDER BY avatar_id`, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select owned avatars: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan avatar id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
