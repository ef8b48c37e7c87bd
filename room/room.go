/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room is the authoritative per-room state machine: seating, color
// picks, the ready handshake, turn and ownership checks, move application
// through the engine, resets, and forfeits.
//
// A Room does no I/O and holds no lock. Every operation returns the
// envelopes to deliver, and the caller must serialize operations on one Room
// (the server runs one goroutine per room).
package room

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seednode/checkers/engine"
)

// SessionID identifies one live connection.
type SessionID string

// Role is a player seat. Seats are handed out first-come-first-served.
type Role int

const (
	NoRole Role = iota
	Player1
	Player2
)

var roles = [...]Role{Player1, Player2}

func (r Role) String() string {
	switch r {
	case Player1:
		return "player1"
	case Player2:
		return "player2"
	default:
		return ""
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "player1":
		*r = Player1
	case "player2":
		*r = Player2
	case "":
		*r = NoRole
	default:
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}

type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseInGame Phase = "inGame"
	PhaseOver   Phase = "over"
)

// Event names the operations a room accepts.
type Event string

const (
	EventJoin         Event = "join"
	EventPickColor    Event = "pickColor"
	EventSetReady     Event = "setReady"
	EventSubmitMove   Event = "submitMove"
	EventRequestReset Event = "requestReset"
	EventLeave        Event = "leave"
	EventChat         Event = "chat"
)

// transitions lists the events each phase accepts. Phase changes happen
// inside the handlers: lobby -> inGame when both players are ready,
// inGame -> over on a terminal position, inGame|over -> inGame on reset,
// and inGame|over -> lobby when a seated player leaves.
var transitions = map[Phase]map[Event]bool{
	PhaseLobby: {
		EventJoin: true, EventPickColor: true, EventSetReady: true,
		EventLeave: true, EventChat: true,
	},
	PhaseInGame: {
		EventJoin: true, EventSubmitMove: true, EventRequestReset: true,
		EventLeave: true, EventChat: true,
	},
	PhaseOver: {
		EventJoin: true, EventRequestReset: true,
		EventLeave: true, EventChat: true,
	},
}

// MaxChatLength caps chat messages, in runes.
const MaxChatLength = 500

// Member is a session in the room. Spectators have NoRole.
type Member struct {
	Session SessionID
	Role    Role
	Color   engine.Color
	Ready   bool
}

// HistoryEntry is one accepted move leg.
type HistoryEntry struct {
	Index int          `json:"index"`
	Color engine.Color `json:"color"`
	From  engine.Cell  `json:"from"`
	To    engine.Cell  `json:"to"`
	Jump  bool         `json:"jump"`
	King  bool         `json:"king"`
	Text  string       `json:"text"`
}

func describe(color engine.Color, m engine.Move, king bool) string {
	var b strings.Builder
	name := color.String()
	b.WriteString(strings.ToUpper(name[:1]) + name[1:])
	fmt.Fprintf(&b, ": %s → %s", m.From, m.To)
	if m.Jump {
		b.WriteString(" (jump)")
	}
	if king {
		b.WriteString(" (king)")
	}
	return b.String()
}

// Outcome summarizes a finished game.
type Outcome struct {
	Room      string
	Winner    engine.Color
	Reason    string
	Points    int
	Forfeit   bool
	Moves     int
	History   []HistoryEntry
	StartedAt time.Time
	EndedAt   time.Time
}

// MoveRequest is a move submission as received from a client. Only From and
// To are trusted; Descriptor, when present, must agree with the move the
// engine derives. Index, when present, must equal the room's move index.
type MoveRequest struct {
	From       engine.Cell
	To         engine.Cell
	Descriptor *engine.Move
	Index      *int
}

type Room struct {
	code    string
	phase   Phase
	members map[SessionID]*Member

	board     engine.Board
	turn      engine.Color
	history   []HistoryEntry
	moveIndex int
	chain     *engine.Cell
	lastMove  *engine.Move

	startedAt  time.Time
	lastActive time.Time
	outcome    *Outcome

	now func() time.Time
}

// New returns an empty room in the lobby phase.
func New(code string) *Room {
	return NewWithClock(code, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(code string, now func() time.Time) *Room {
	r := &Room{
		code:    code,
		phase:   PhaseLobby,
		members: make(map[SessionID]*Member),
		board:   engine.InitialBoard(),
		turn:    engine.Black,
		now:     now,
	}
	r.lastActive = now()
	return r
}

func (r *Room) Phase() Phase          { return r.phase }
func (r *Room) Board() engine.Board   { return r.board }
func (r *Room) Turn() engine.Color    { return r.turn }
func (r *Room) MoveIndex() int        { return r.moveIndex }
func (r *Room) LastActive() time.Time { return r.lastActive }
func (r *Room) Empty() bool           { return len(r.members) == 0 }
func (r *Room) Size() int             { return len(r.members) }

// MustContinue returns the cell of a piece in the middle of a multi-jump,
// or nil when the mover is free to pick any piece.
func (r *Room) MustContinue() *engine.Cell {
	return r.chain
}

// History returns a copy of the move log.
func (r *Room) History() []HistoryEntry {
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// Member returns a copy of the member record for sid.
func (r *Room) Member(sid SessionID) (Member, bool) {
	m, ok := r.members[sid]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// TakeOutcome returns the outcome of a game that ended during the last
// operation, at most once.
func (r *Room) TakeOutcome() *Outcome {
	o := r.outcome
	r.outcome = nil
	return o
}

func (r *Room) allow(ev Event) error {
	if !transitions[r.phase][ev] {
		return wrongPhase(r.phase, ev)
	}
	return nil
}

func (r *Room) touch() {
	r.lastActive = r.now()
}

func (r *Room) seat(role Role) *Member {
	for _, m := range r.members {
		if m.Role == role {
			return m
		}
	}
	return nil
}

func (r *Room) freeRole() Role {
	for _, role := range roles {
		if r.seat(role) == nil {
			return role
		}
	}
	return NoRole
}

func (r *Room) opponent(m *Member) *Member {
	for _, role := range roles {
		if role != m.Role {
			return r.seat(role)
		}
	}
	return nil
}

func (r *Room) seated(sid SessionID) (*Member, error) {
	m, ok := r.members[sid]
	if !ok || m.Role == NoRole {
		return nil, ErrNotSeated
	}
	return m, nil
}

func (r *Room) spectators() int {
	n := 0
	for _, m := range r.members {
		if m.Role == NoRole {
			n++
		}
	}
	return n
}

func (r *Room) colors() map[Role]engine.Color {
	out := make(map[Role]engine.Color, 2)
	for _, role := range roles {
		if m := r.seat(role); m != nil && m.Color.Valid() {
			out[role] = m.Color
		}
	}
	return out
}

func (r *Room) roleOf(color engine.Color) Role {
	for _, role := range roles {
		if m := r.seat(role); m != nil && m.Color == color {
			return role
		}
	}
	return NoRole
}

func (r *Room) stateMessage() RoomStateMessage {
	players := make([]PlayerState, 0, 2)
	for _, role := range roles {
		if m := r.seat(role); m != nil {
			players = append(players, PlayerState{Role: m.Role, Color: m.Color, Ready: m.Ready})
		}
	}
	return RoomStateMessage{
		Type:       TypeRoomState,
		Room:       r.code,
		Phase:      r.phase,
		Players:    players,
		Spectators: r.spectators(),
	}
}

// Snapshot is the authoritative board state as sent after every move.
func (r *Room) Snapshot() BoardSyncedMessage {
	return BoardSyncedMessage{
		Type:         TypeBoardSynced,
		Board:        r.board,
		CurrentTurn:  r.turn,
		History:      r.History(),
		MoveIndex:    r.moveIndex,
		LastMove:     r.lastMove,
		MustContinue: r.chain,
		Phase:        r.phase,
	}
}

func all(msg any) Envelope {
	return Envelope{Message: msg}
}

func to(sid SessionID, msg any) Envelope {
	return Envelope{To: sid, Message: msg}
}

func others(sid SessionID, msg any) Envelope {
	return Envelope{Exclude: sid, Message: msg}
}

// reject answers a refused request with a status message to the sender only.
func reject(sid SessionID, err error) ([]Envelope, error) {
	return []Envelope{to(sid, StatusFor(err))}, err
}

// Join adds sid to the room. The first two sessions take the player seats;
// later ones, and anyone joining a game in progress, spectate. A spectator
// that joins again while the room is in the lobby takes a free seat.
func (r *Room) Join(sid SessionID) ([]Envelope, error) {
	if err := r.allow(EventJoin); err != nil {
		return reject(sid, err)
	}
	r.touch()

	m, existing := r.members[sid]
	switch {
	case !existing:
		m = &Member{Session: sid}
		r.members[sid] = m
		if r.phase == PhaseLobby {
			m.Role = r.freeRole()
		}
	case m.Role == NoRole && r.phase == PhaseLobby && r.freeRole() != NoRole:
		m.Role = r.freeRole()
	default:
		out := []Envelope{to(sid, r.sessionInfo(m)), to(sid, r.stateMessage())}
		if r.phase != PhaseLobby {
			out = append(out, to(sid, r.Snapshot()))
		}
		return out, nil
	}

	out := []Envelope{
		to(sid, r.sessionInfo(m)),
		others(sid, PlayerJoinedMessage{Type: TypePlayerJoined, Role: m.Role, Spectator: m.Role == NoRole}),
		all(r.stateMessage()),
	}
	if r.phase != PhaseLobby {
		out = append(out, to(sid, r.Snapshot()))
	}
	return out, nil
}

func (r *Room) sessionInfo(m *Member) SessionInfoMessage {
	return SessionInfoMessage{
		Type:      TypeSessionInfo,
		Room:      r.code,
		SessionID: m.Session,
		Role:      m.Role,
		Spectator: m.Role == NoRole,
	}
}

// PickColor records a seated player's color. Picking the color the other
// player already holds is refused with a status message and changes nothing.
func (r *Room) PickColor(sid SessionID, color engine.Color) ([]Envelope, error) {
	if err := r.allow(EventPickColor); err != nil {
		return reject(sid, err)
	}
	m, err := r.seated(sid)
	if err != nil {
		return reject(sid, err)
	}
	if !color.Valid() {
		return reject(sid, fmt.Errorf("%w: %d", ErrInvalidColor, color))
	}
	r.touch()

	if opp := r.opponent(m); opp != nil && opp.Color == color {
		return reject(sid, ErrDuplicateColor)
	}
	if m.Color == color {
		return []Envelope{to(sid, r.stateMessage())}, nil
	}

	m.Color = color
	m.Ready = false

	out := []Envelope{all(ColorPickedMessage{Type: TypeColorPicked, Role: m.Role, Color: color})}
	if cs := r.colors(); len(cs) == 2 {
		out = append(out, all(BothPickedMessage{Type: TypeBothPicked, Colors: cs}))
	}
	out = append(out, all(r.stateMessage()))
	return out, nil
}

// SetReady marks a seated player ready. When both seats hold distinct
// colors and are ready, the game starts.
func (r *Room) SetReady(sid SessionID) ([]Envelope, error) {
	if err := r.allow(EventSetReady); err != nil {
		return reject(sid, err)
	}
	m, err := r.seated(sid)
	if err != nil {
		return reject(sid, err)
	}
	if !m.Color.Valid() {
		return reject(sid, ErrNoColor)
	}
	r.touch()

	if m.Ready {
		return []Envelope{to(sid, r.stateMessage())}, nil
	}
	m.Ready = true

	out := []Envelope{others(sid, OpponentReadyMessage{Type: TypeOpponentRdy, Role: m.Role, Color: m.Color})}
	if !r.readyToStart() {
		return append(out, all(r.stateMessage())), nil
	}

	r.start()
	out = append(out,
		all(BothReadyMessage{Type: TypeBothReady}),
		all(r.stateMessage()),
		all(GameStartedMessage{
			Type:      TypeGameStarted,
			Colors:    r.colors(),
			FirstTurn: r.turn,
			Board:     r.board,
			History:   r.History(),
			Roles:     roles[:],
			MoveIndex: r.moveIndex,
		}),
	)
	return out, nil
}

func (r *Room) readyToStart() bool {
	p1, p2 := r.seat(Player1), r.seat(Player2)
	if p1 == nil || p2 == nil {
		return false
	}
	return p1.Ready && p2.Ready &&
		p1.Color.Valid() && p2.Color.Valid() &&
		p1.Color != p2.Color
}

func (r *Room) start() {
	r.board = engine.InitialBoard()
	r.turn = engine.Black
	r.history = nil
	r.moveIndex = 0
	r.chain = nil
	r.lastMove = nil
	r.phase = PhaseInGame
	r.startedAt = r.now()
}

// SubmitMove validates and applies one move leg. A refused move changes
// nothing, is not broadcast, and is answered only to the sender.
//
// After a jump the turn stays with the mover while the same piece can keep
// capturing. A piece crowned by its jump stops there.
func (r *Room) SubmitMove(sid SessionID, req MoveRequest) ([]Envelope, error) {
	if err := r.allow(EventSubmitMove); err != nil {
		return r.rejectMove(sid, err)
	}
	m, err := r.seated(sid)
	if err != nil {
		return r.rejectMove(sid, err)
	}
	if m.Color != r.turn {
		return r.rejectMove(sid, fmt.Errorf("%w: %s to move", ErrOutOfTurn, r.turn))
	}
	if p := r.board.At(req.From); !p.Empty() && p.Color != m.Color {
		return r.rejectMove(sid, fmt.Errorf("%w: %s on %s", ErrNotYourPiece, p.Color, req.From))
	}
	if req.Index != nil && *req.Index != r.moveIndex {
		return r.rejectMove(sid, fmt.Errorf("%w: got %d, at %d", ErrStaleMove, *req.Index, r.moveIndex))
	}
	if r.chain != nil && req.From != *r.chain {
		return r.rejectMove(sid, fmt.Errorf("%w from %s", ErrMustContinue, *r.chain))
	}

	applied, err := engine.FindMove(r.board, req.From, req.To)
	if err != nil {
		return r.rejectMove(sid, err)
	}
	claimed := applied
	if d := req.Descriptor; d != nil {
		claimed.Jump, claimed.Jumped = d.Jump, d.Jumped
	}
	next, promoted, err := engine.ApplyMove(r.board, claimed)
	if err != nil {
		return r.rejectMove(sid, err)
	}
	r.touch()

	r.board = next
	r.moveIndex++
	r.lastMove = &applied
	r.history = append(r.history, HistoryEntry{
		Index: r.moveIndex,
		Color: m.Color,
		From:  applied.From,
		To:    applied.To,
		Jump:  applied.Jump,
		King:  promoted,
		Text:  describe(m.Color, applied, promoted),
	})

	if applied.Jump && !promoted && engine.CanContinue(r.board, applied.To) {
		landed := applied.To
		r.chain = &landed
		return []Envelope{all(r.Snapshot())}, nil
	}

	r.chain = nil
	r.turn = r.turn.Opponent()

	res := engine.IsTerminal(r.board, r.turn)
	if !res.Over {
		return []Envelope{all(r.Snapshot())}, nil
	}

	r.phase = PhaseOver
	over := r.finish(res.Winner, res.Reason, false)
	return []Envelope{all(r.Snapshot()), all(over), all(r.stateMessage())}, nil
}

func (r *Room) rejectMove(sid SessionID, err error) ([]Envelope, error) {
	return []Envelope{to(sid, MoveRejectedMessage{
		Type:        TypeMoveRejected,
		Code:        statusCode(err),
		Reason:      err.Error(),
		Board:       r.board,
		CurrentTurn: r.turn,
		MoveIndex:   r.moveIndex,
	})}, err
}

// finish records the outcome and builds the game-over notification.
func (r *Room) finish(winner engine.Color, reason string, forfeit bool) GameOverMessage {
	points := r.board.Count(winner)
	r.outcome = &Outcome{
		Room:      r.code,
		Winner:    winner,
		Reason:    reason,
		Points:    points,
		Forfeit:   forfeit,
		Moves:     r.moveIndex,
		History:   r.History(),
		StartedAt: r.startedAt,
		EndedAt:   r.now(),
	}
	return GameOverMessage{
		Type:       TypeGameOver,
		Winner:     winner,
		WinnerRole: r.roleOf(winner),
		Reason:     reason,
		Points:     points,
		Forfeit:    forfeit,
	}
}

// RequestReset reseeds the board and clears the history without a new
// ready handshake.
func (r *Room) RequestReset(sid SessionID) ([]Envelope, error) {
	if err := r.allow(EventRequestReset); err != nil {
		return reject(sid, err)
	}
	if _, err := r.seated(sid); err != nil {
		return reject(sid, err)
	}
	r.touch()

	r.start()
	return []Envelope{
		all(GameResetMessage{
			Type:        TypeGameReset,
			Board:       r.board,
			CurrentTurn: r.turn,
			History:     r.History(),
			MoveIndex:   r.moveIndex,
		}),
		all(r.stateMessage()),
	}, nil
}

// Leave removes sid from the room and frees its seat. A player leaving a
// game in progress forfeits it to the remaining player. Any seated player
// leaving sends the room back to the lobby.
func (r *Room) Leave(sid SessionID) []Envelope {
	m, ok := r.members[sid]
	if !ok {
		return nil
	}
	r.touch()
	delete(r.members, sid)

	out := []Envelope{all(PlayerLeftMessage{Type: TypePlayerLeft, Role: m.Role, Spectator: m.Role == NoRole})}
	if m.Role == NoRole {
		return append(out, all(r.stateMessage()))
	}

	opp := r.opponent(m)
	if opp != nil {
		out = append(out, to(opp.Session, OpponentLeftMessage{Type: TypeOpponentLeft, Role: m.Role}))
	}

	if r.phase == PhaseInGame && opp != nil && opp.Color.Valid() {
		out = append(out, all(r.finish(opp.Color, "forfeit", true)))
	}
	if r.phase != PhaseLobby {
		r.phase = PhaseLobby
		r.chain = nil
		for _, rest := range r.members {
			rest.Ready = false
		}
	}
	return append(out, all(r.stateMessage()))
}

// Chat relays a trimmed message from any session in the room.
func (r *Room) Chat(sid SessionID, text string) ([]Envelope, error) {
	if err := r.allow(EventChat); err != nil {
		return reject(sid, err)
	}
	m, ok := r.members[sid]
	if !ok {
		return reject(sid, ErrNotSeated)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		text = string([]rune(text)[:MaxChatLength])
	}
	r.touch()

	return []Envelope{all(ChatMessage{
		Type:   TypeChatMessage,
		Sender: sid,
		Role:   m.Role,
		Text:   text,
		At:     r.now().UnixMilli(),
	})}, nil
}
