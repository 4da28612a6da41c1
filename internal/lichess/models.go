package lichess

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChallengeAIRequest body for POST /api/challenge/ai
type ChallengeAIRequest struct {
	Level int    `json:"level"`
	Color string `json:"color,omitempty"`
}

type Variant struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Short string `json:"short"`
}

type Status struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Game is the challenge response describing the freshly created game.
type Game struct {
	ID        string  `json:"id"`
	Variant   Variant `json:"variant"`
	Speed     string  `json:"speed"`
	Perf      string  `json:"perf"`
	Rated     bool    `json:"rated"`
	FEN       string  `json:"fen"`
	Turns     int     `json:"turns"`
	Source    string  `json:"source"`
	Status    Status  `json:"status"`
	CreatedAt int64   `json:"createdAt"`
	Player    string  `json:"player"`
}

type MoveResponse struct {
	OK bool `json:"ok"`
}

type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title,omitempty"`
}

// Event kinds carried on the bot game stream.
const (
	EventGameFull     = "gameFull"
	EventGameState    = "gameState"
	EventChatLine     = "chatLine"
	EventOpponentGone = "opponentGone"
)

type Player struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Title   string `json:"title,omitempty"`
	AILevel int    `json:"aiLevel,omitempty"`
}

// IsAI reports whether the seat is taken by the Lichess AI.
func (p Player) IsAI() bool { return p.AILevel > 0 }

type GameState struct {
	Type   string `json:"type"`
	Moves  string `json:"moves"`
	WTime  int64  `json:"wtime"`
	BTime  int64  `json:"btime"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

// MoveList splits the space separated UCI move history.
func (s GameState) MoveList() []string {
	return strings.Fields(s.Moves)
}

type GameFull struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Variant    Variant   `json:"variant"`
	InitialFen string    `json:"initialFen"`
	White      Player    `json:"white"`
	Black      Player    `json:"black"`
	State      GameState `json:"state"`
}

type ChatLine struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Room     string `json:"room"`
}

// Event is one decoded line of the game stream. Exactly one payload pointer
// is set for known kinds; unknown kinds carry only Type.
type Event struct {
	Type  string
	Full  *GameFull
	State *GameState
	Chat  *ChatLine
}

// ParseEvent decodes a single NDJSON line.
func ParseEvent(line []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return Event{}, fmt.Errorf("decode stream line: %w", err)
	}
	ev := Event{Type: head.Type}
	switch head.Type {
	case EventGameFull:
		var full GameFull
		if err := json.Unmarshal(line, &full); err != nil {
			return Event{}, fmt.Errorf("decode gameFull: %w", err)
		}
		if full.State.Type == "" {
			full.State.Type = EventGameState
		}
		ev.Full = &full
		ev.State = &full.State
	case EventGameState:
		var st GameState
		if err := json.Unmarshal(line, &st); err != nil {
			return Event{}, fmt.Errorf("decode gameState: %w", err)
		}
		ev.State = &st
	case EventChatLine:
		var chat ChatLine
		if err := json.Unmarshal(line, &chat); err != nil {
			return Event{}, fmt.Errorf("decode chatLine: %w", err)
		}
		ev.Chat = &chat
	}
	return ev, nil
}
