// Package history stores finished rebirth games.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

var (
	ErrDuplicate = errors.New("rebirth game already recorded")
	ErrNilRecord = errors.New("nil rebirth game record")
)

type Repository interface {
	Insert(ctx context.Context, game *domain.GameRecord) (int64, error)
	// Recent returns the player's games, newest first.
	Recent(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error)
	// Get returns nil, nil when the game does not exist or belongs to someone else.
	Get(ctx context.Context, id int64, playerHash string) (*domain.GameRecord, error)
}

// Schema creates the history table on an empty database.
const Schema = `
CREATE TABLE IF NOT EXISTS rebirth_games (
	id             BIGSERIAL PRIMARY KEY,
	session_uuid   TEXT NOT NULL UNIQUE,
	player_hash    TEXT NOT NULL,
	room_hash      TEXT NOT NULL,
	player_color   TEXT NOT NULL,
	weighting      TEXT NOT NULL,
	plies          INTEGER NOT NULL,
	captures       INTEGER[] NOT NULL,
	resurrections  INTEGER NOT NULL,
	log            JSONB NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ NOT NULL,
	end_reason     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS rebirth_games_player_ended ON rebirth_games (player_hash, ended_at DESC);`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply rebirth_games schema: %w", err)
	}
	return nil
}

const selectColumns = `
		id,
		session_uuid,
		player_hash,
		room_hash,
		player_color,
		weighting,
		plies,
		captures,
		resurrections,
		log,
		started_at,
		ended_at,
		end_reason`

func (r *repository) Insert(ctx context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, ErrNilRecord
	}
	logJSON, err := json.Marshal(game.Log)
	if err != nil {
		return 0, fmt.Errorf("marshal log: %w", err)
	}

	const query = `
		INSERT INTO rebirth_games (
			session_uuid,
			player_hash,
			room_hash,
			player_color,
			weighting,
			plies,
			captures,
			resurrections,
			log,
			started_at,
			ended_at,
			end_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.PlayerHash,
		game.RoomHash,
		game.PlayerColor.String(),
		string(game.Weighting),
		game.Plies,
		pq.Array([]int64{int64(game.WhiteCaptures), int64(game.BlackCaptures)}),
		game.Resurrections,
		logJSON,
		game.StartedAt,
		game.EndedAt,
		game.EndReason,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDuplicate
	}
	if err != nil {
		return 0, fmt.Errorf("insert rebirth game: %w", err)
	}
	if !id.Valid {
		return 0, ErrDuplicate
	}
	return id.Int64, nil
}

func (r *repository) Recent(ctx context.Context, playerHash string, limit int) ([]*domain.GameRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT` + selectColumns + `
		FROM rebirth_games
		WHERE player_hash = $1
		ORDER BY ended_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("query rebirth games: %w", err)
	}
	defer rows.Close()

	var games []*domain.GameRecord
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebirth games: %w", err)
	}
	return games, nil
}

func (r *repository) Get(ctx context.Context, id int64, playerHash string) (*domain.GameRecord, error) {
	query := `SELECT` + selectColumns + `
		FROM rebirth_games
		WHERE id = $1 AND player_hash = $2`

	game, err := scanGame(r.db.QueryRowContext(ctx, query, id, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return game, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.GameRecord, error) {
	var (
		game      domain.GameRecord
		color     string
		weighting string
		captures  []int64
		logJSON   []byte
	)
	err := row.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.PlayerHash,
		&game.RoomHash,
		&color,
		&weighting,
		&game.Plies,
		pq.Array(&captures),
		&game.Resurrections,
		&logJSON,
		&game.StartedAt,
		&game.EndedAt,
		&game.EndReason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan rebirth game: %w", err)
	}
	if err := game.PlayerColor.UnmarshalText([]byte(color)); err != nil {
		return nil, fmt.Errorf("player_color: %w", err)
	}
	game.Weighting = rebirth.Weighting(weighting)
	if len(captures) == 2 {
		game.WhiteCaptures, game.BlackCaptures = int(captures[0]), int(captures[1])
	}
	if err := json.Unmarshal(logJSON, &game.Log); err != nil {
		return nil, fmt.Errorf("unmarshal log: %w", err)
	}
	return &game, nil
}
