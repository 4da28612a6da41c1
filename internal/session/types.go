package session

import (
	"context"
	"time"

	"github.com/park285/Cheese-Lichess-board/internal/board"
	"github.com/park285/Cheese-Lichess-board/internal/lichess"
)

type State int

const (
	NoGame State = iota
	AwaitingStart
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case NoGame:
		return "no_game"
	case AwaitingStart:
		return "awaiting_start"
	case InProgress:
		return "in_progress"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of the session handed to renderers.
type Snapshot struct {
	State     State
	GameID    string
	SessionID string
	Level     int

	Board     board.Board
	Turn      board.Side
	LocalSide board.Side // 0 until known

	Selection *board.Square
	Moves     []string
	LastMove  string
	Pending   string

	Status string
	Winner string
}

// FEN returns the placement and side to move.
func (s Snapshot) FEN() string {
	return board.Serialize(s.Board, s.Turn)
}

// MyTurn reports whether the local side is to move in a running game.
func (s Snapshot) MyTurn() bool {
	return s.State == InProgress && s.LocalSide != 0 && s.Turn == s.LocalSide
}

// Notice is a short user-facing message. Key is the message catalog key.
type Notice struct {
	Key    string
	Text   string
	GameID string
}

// Observer receives every re-render and notice. Calls come from the session
// goroutine and must not block.
type Observer interface {
	Render(Snapshot)
	Notify(Notice)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) Render(s Snapshot) {
	for _, obs := range o {
		obs.Render(s)
	}
}

func (o Observers) Notify(n Notice) {
	for _, obs := range o {
		obs.Notify(n)
	}
}

// API is the slice of the Lichess client the session needs.
type API interface {
	ChallengeAI(ctx context.Context, req lichess.ChallengeAIRequest) (*lichess.Game, error)
	MakeMove(ctx context.Context, gameID, move string) error
	Resign(ctx context.Context, gameID string) error
	FollowGame(ctx context.Context, gameID string, fn lichess.EventHandler) error
}

type Metrics interface {
	StreamEvent(kind string)
	GameStarted(result string)
	GameEnded(status string)
	MoveSubmitted(result string)
}

// Result describes a finished game for archiving.
type Result struct {
	GameID     string
	SessionID  string
	LocalSide  board.Side
	Level      int
	Status     string
	Winner     string
	InitialFEN string
	Moves      []string
	StartedAt  time.Time
	EndedAt    time.Time
}

type Archiver interface {
	SaveResult(ctx context.Context, r Result) error
}
