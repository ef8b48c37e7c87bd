/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import "github.com/Seednode/checkers/engine"

// Outbound message types.
const (
	TypeSessionInfo  = "sessionInfo"
	TypeRoomState    = "roomState"
	TypePlayerJoined = "playerJoined"
	TypePlayerLeft   = "playerLeft"
	TypeOpponentLeft = "opponentLeft"
	TypeColorPicked  = "colorPicked"
	TypeBothPicked   = "bothPicked"
	TypeOpponentRdy  = "opponentReady"
	TypeBothReady    = "bothReady"
	TypeGameStarted  = "gameStarted"
	TypeBoardSynced  = "boardSynced"
	TypeMoveRejected = "moveRejected"
	TypeGameReset    = "gameReset"
	TypeGameOver     = "gameOver"
	TypeChatMessage  = "chatMessage"
	TypeStatus       = "status"
)

// Envelope addresses an outbound message. An empty To reaches every session
// in the room except Exclude.
type Envelope struct {
	To      SessionID
	Exclude SessionID
	Message any
}

// Delivers reports whether the envelope is meant for sid.
func (e Envelope) Delivers(sid SessionID) bool {
	if e.To != "" {
		return e.To == sid
	}
	return e.Exclude == "" || e.Exclude != sid
}

// SessionInfoMessage is sent to a session right after it joins.
type SessionInfoMessage struct {
	Type      string    `json:"type"`
	Room      string    `json:"room"`
	SessionID SessionID `json:"sessionId"`
	Role      Role      `json:"role,omitempty"`
	Spectator bool      `json:"spectator"`
}

type PlayerState struct {
	Role  Role         `json:"role"`
	Color engine.Color `json:"color,omitempty"`
	Ready bool         `json:"ready"`
}

// RoomStateMessage lists the seated players, their colors and readiness.
type RoomStateMessage struct {
	Type       string        `json:"type"`
	Room       string        `json:"room"`
	Phase      Phase         `json:"phase"`
	Players    []PlayerState `json:"players"`
	Spectators int           `json:"spectators"`
}

type PlayerJoinedMessage struct {
	Type      string `json:"type"`
	Role      Role   `json:"role,omitempty"`
	Spectator bool   `json:"spectator"`
}

type PlayerLeftMessage struct {
	Type      string `json:"type"`
	Role      Role   `json:"role,omitempty"`
	Spectator bool   `json:"spectator"`
}

// OpponentLeftMessage goes to the player whose opponent left the room.
type OpponentLeftMessage struct {
	Type string `json:"type"`
	Role Role   `json:"role"`
}

type ColorPickedMessage struct {
	Type  string       `json:"type"`
	Role  Role         `json:"role"`
	Color engine.Color `json:"color"`
}

type BothPickedMessage struct {
	Type   string                `json:"type"`
	Colors map[Role]engine.Color `json:"colors"`
}

type OpponentReadyMessage struct {
	Type  string       `json:"type"`
	Role  Role         `json:"role"`
	Color engine.Color `json:"color"`
}

type BothReadyMessage struct {
	Type string `json:"type"`
}

// GameStartedMessage seeds every client with the authoritative opening.
type GameStartedMessage struct {
	Type      string                `json:"type"`
	Colors    map[Role]engine.Color `json:"colors"`
	FirstTurn engine.Color          `json:"firstTurn"`
	Board     engine.Board          `json:"board"`
	History   []HistoryEntry        `json:"history"`
	Roles     []Role                `json:"roles"`
	MoveIndex int                   `json:"moveIndex"`
}

// BoardSyncedMessage carries the authoritative state after an accepted move.
// Clients overwrite any locally predicted state with it.
type BoardSyncedMessage struct {
	Type         string         `json:"type"`
	Board        engine.Board   `json:"board"`
	CurrentTurn  engine.Color   `json:"currentTurn"`
	History      []HistoryEntry `json:"history"`
	MoveIndex    int            `json:"moveIndex"`
	LastMove     *engine.Move   `json:"lastMove,omitempty"`
	MustContinue *engine.Cell   `json:"mustContinue,omitempty"`
	Phase        Phase          `json:"phase"`
}

// MoveRejectedMessage tells only the sender that its move changed nothing.
type MoveRejectedMessage struct {
	Type        string       `json:"type"`
	Code        string       `json:"code"`
	Reason      string       `json:"reason"`
	Board       engine.Board `json:"board"`
	CurrentTurn engine.Color `json:"currentTurn"`
	MoveIndex   int          `json:"moveIndex"`
}

type GameResetMessage struct {
	Type        string         `json:"type"`
	Board       engine.Board   `json:"board"`
	CurrentTurn engine.Color   `json:"currentTurn"`
	History     []HistoryEntry `json:"history"`
	MoveIndex   int            `json:"moveIndex"`
}

type GameOverMessage struct {
	Type       string       `json:"type"`
	Winner     engine.Color `json:"winner"`
	WinnerRole Role         `json:"winnerRole,omitempty"`
	Reason     string       `json:"reason"`
	Points     int          `json:"points"`
	Forfeit    bool         `json:"forfeit"`
}

type ChatMessage struct {
	Type   string    `json:"type"`
	Sender SessionID `json:"sender"`
	Role   Role      `json:"role,omitempty"`
	Text   string    `json:"text"`
	At     int64     `json:"at"`
}

type StatusMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
