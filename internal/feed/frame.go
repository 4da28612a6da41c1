package feed

import (
	"time"

	"github.com/park285/Cheese-Lichess-board/internal/session"
)

const (
	KindBoard  = "board"
	KindNotice = "notice"
)

// Frame is one spectator update, sent as JSON over the websocket and Redis.
type Frame struct {
	Kind      string    `json:"kind"`
	GameID    string    `json:"gameId,omitempty"`
	State     string    `json:"state,omitempty"`
	FEN       string    `json:"fen,omitempty"`
	Turn      string    `json:"turn,omitempty"`
	LocalSide string    `json:"localSide,omitempty"`
	Moves     []string  `json:"moves,omitempty"`
	LastMove  string    `json:"lastMove,omitempty"`
	Status    string    `json:"status,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	NoticeKey string    `json:"noticeKey,omitempty"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
}

func BoardFrame(s session.Snapshot) Frame {
	f := Frame{
		Kind:     KindBoard,
		GameID:   s.GameID,
		State:    s.State.String(),
		FEN:      s.FEN(),
		Turn:     s.Turn.String(),
		Moves:    s.Moves,
		LastMove: s.LastMove,
		Status:   s.Status,
		Winner:   s.Winner,
		At:       time.Now().UTC(),
	}
	if s.LocalSide != 0 {
		f.LocalSide = s.LocalSide.String()
	}
	return f
}

func NoticeFrame(n session.Notice) Frame {
	return Frame{
		Kind:      KindNotice,
		GameID:    n.GameID,
		NoticeKey: n.Key,
		Text:      n.Text,
		At:        time.Now().UTC(),
	}
}
