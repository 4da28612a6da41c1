package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/session"
)

//go:embed schema.sql
var schemaSQL string

// Repository stores finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the lichess_games table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveResult upserts a finished game keyed by the Lichess game id.
func (r *Repository) SaveResult(ctx context.Context, res session.Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	if strings.TrimSpace(res.GameID) == "" {
		return fmt.Errorf("result without game id")
	}

	san, op := replayMoves(res.InitialFEN, res.Moves)
	pgn := buildPGN(res, san, op)

	movesUCI, err := movesJSON(res.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := movesJSON(san)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO lichess_games (
        game_id, session_uuid, local_side, ai_level,
        status, winner, result, initial_fen,
        moves_uci, moves_san, pgn, eco_code, eco_title,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10::jsonb,$11,$12,$13,$14,$15,$16
      ) ON CONFLICT (game_id) DO UPDATE SET
        session_uuid=EXCLUDED.session_uuid,
        local_side=EXCLUDED.local_side,
        ai_level=EXCLUDED.ai_level,
        status=EXCLUDED.status,
        winner=EXCLUDED.winner,
        result=EXCLUDED.result,
        initial_fen=EXCLUDED.initial_fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        eco_code=EXCLUDED.eco_code,
        eco_title=EXCLUDED.eco_title,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		res.GameID, res.SessionID, sideName(res.LocalSide), res.Level,
		res.Status, res.Winner, mapResultToPGN(res.Winner, res.Status), res.InitialFEN,
		movesUCI, movesSAN, pgn, op.Code, op.Title,
		res.StartedAt, res.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("upsert lichess game: %w", err)
	}
	return nil
}

// movesJSON encodes a move list for the JSONB columns.
// nil 슬라이스는 null 대신 []로 저장(수 없이 끝난 대국).
func movesJSON(moves []string) (string, error) {
	if moves == nil {
		moves = []string{}
	}
	b, err := json.Marshal(moves)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sideName(s board.Side) string {
	if s == 0 {
		return ""
	}
	return s.String()
}
