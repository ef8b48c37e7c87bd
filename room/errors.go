/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"errors"
	"fmt"

	"github.com/Seednode/checkers/engine"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrWrongPhase      = errors.New("not allowed in the current phase")
	ErrNotSeated       = errors.New("session is not seated as a player")
	ErrNoColor         = errors.New("pick a color first")
	ErrDuplicateColor  = errors.New("color already taken by the other player")
	ErrOutOfTurn       = errors.New("not your turn")
	ErrNotYourPiece    = errors.New("piece does not belong to the mover")
	ErrMustContinue    = errors.New("the jumping piece must continue its capture")
	ErrStaleMove       = errors.New("stale move index")
	ErrInvalidColor    = engine.ErrInvalidColor
)

// statusCode maps an error to the short code sent in status messages.
func statusCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateColor):
		return "duplicateColor"
	case errors.Is(err, ErrOutOfTurn):
		return "outOfTurn"
	case errors.Is(err, ErrNotYourPiece):
		return "notYourPiece"
	case errors.Is(err, ErrMustContinue):
		return "mustContinue"
	case errors.Is(err, ErrStaleMove):
		return "staleMove"
	case errors.Is(err, engine.ErrIllegalMove):
		return "illegalMove"
	case errors.Is(err, ErrWrongPhase):
		return "wrongPhase"
	case errors.Is(err, ErrNotSeated):
		return "notSeated"
	case errors.Is(err, ErrNoColor):
		return "noColor"
	case errors.Is(err, ErrInvalidColor):
		return "invalidColor"
	case errors.Is(err, ErrInvalidRoomCode):
		return "invalidRoomCode"
	case errors.Is(err, ErrRoomNotFound):
		return "roomNotFound"
	default:
		return "error"
	}
}

// statusText is the user-facing sentence for an error.
func statusText(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateColor):
		return "That color has already been picked. Please choose the other color."
	case errors.Is(err, ErrNoColor):
		return "Pick a color before signaling ready."
	case errors.Is(err, ErrNotSeated):
		return "Spectators cannot do that."
	default:
		return err.Error()
	}
}

// StatusFor builds the status message sent to a session whose request was refused.
func StatusFor(err error) StatusMessage {
	return StatusMessage{
		Type:    TypeStatus,
		Code:    statusCode(err),
		Message: statusText(err),
	}
}

func wrongPhase(p Phase, ev Event) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongPhase, ev, p)
}
