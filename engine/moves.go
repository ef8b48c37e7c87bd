/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrOutOfBounds = fmt.Errorf("%w: cell is off the board", ErrIllegalMove)
	ErrEmptyCell   = fmt.Errorf("%w: no piece on origin cell", ErrIllegalMove)
	ErrOccupied    = fmt.Errorf("%w: destination cell is occupied", ErrIllegalMove)
)

// Move is one leg of a turn. A multi-jump is submitted as consecutive jump
// legs by the same piece.
type Move struct {
	From   Cell  `json:"from"`
	To     Cell  `json:"to"`
	Jump   bool  `json:"isJump"`
	Jumped *Cell `json:"jumpedCell,omitempty"`
}

func (m Move) String() string {
	if m.Jump {
		return fmt.Sprintf("%s x %s", m.From, m.To)
	}
	return fmt.Sprintf("%s - %s", m.From, m.To)
}

var (
	kingDirs = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

func directions(p Piece) [][2]int {
	if p.King {
		return kingDirs[:]
	}
	f := p.Color.Forward()
	return [][2]int{{f, -1}, {f, 1}}
}

// pieceMoves lists the steps and jumps available to the piece on from,
// ignoring what other pieces of the same color could do.
func pieceMoves(b *Board, from Cell) (steps, jumps []Move) {
	p := b.At(from)
	if p.Empty() {
		return nil, nil
	}
	for _, d := range directions(p) {
		over := from.offset(d[0], d[1])
		if !over.InBounds() {
			continue
		}
		mid := b.At(over)
		if mid.Empty() {
			steps = append(steps, Move{From: from, To: over})
			continue
		}
		if mid.Color == p.Color {
			continue
		}
		land := from.offset(2*d[0], 2*d[1])
		if land.InBounds() && b.At(land).Empty() {
			jumped := over
			jumps = append(jumps, Move{From: from, To: land, Jump: true, Jumped: &jumped})
		}
	}
	return steps, jumps
}

// LegalMoves returns the moves available to the piece on from.
//
// Jumps always supersede steps for that piece. With jumpsOnly set only jumps
// are returned, which is how a multi-jump continuation is queried. Without
// it the color-wide forced-capture rule applies: when any piece of the same
// color can jump, a piece that cannot jump has no legal moves.
func LegalMoves(b Board, from Cell, jumpsOnly bool) []Move {
	p := b.At(from)
	if p.Empty() {
		return nil
	}
	steps, jumps := pieceMoves(&b, from)
	if len(jumps) > 0 {
		return jumps
	}
	if jumpsOnly || AnyJumpAvailable(b, p.Color) {
		return nil
	}
	return steps
}

// AnyJumpAvailable reports whether any piece of color has a capture.
func AnyJumpAvailable(b Board, color Color) bool {
	for _, cell := range b.Cells(color) {
		if _, jumps := pieceMoves(&b, cell); len(jumps) > 0 {
			return true
		}
	}
	return false
}

// Movable returns the cells of color whose pieces have at least one legal
// move under forced capture.
func Movable(b Board, color Color) []Cell {
	forced := AnyJumpAvailable(b, color)
	var out []Cell
	for _, cell := range b.Cells(color) {
		steps, jumps := pieceMoves(&b, cell)
		if len(jumps) > 0 || (!forced && len(steps) > 0) {
			out = append(out, cell)
		}
	}
	return out
}

// CanContinue reports whether the piece standing on at has a further jump.
func CanContinue(b Board, at Cell) bool {
	return len(LegalMoves(b, at, true)) > 0
}

// FindMove resolves a from/to pair into the legal move it denotes. Only from
// and to are trusted; the jump flag and captured cell are recomputed.
func FindMove(b Board, from, to Cell) (Move, error) {
	if !from.InBounds() || !to.InBounds() {
		return Move{}, ErrOutOfBounds
	}
	if b.At(from).Empty() {
		return Move{}, fmt.Errorf("%w at %s", ErrEmptyCell, from)
	}
	if !b.At(to).Empty() {
		return Move{}, fmt.Errorf("%w at %s", ErrOccupied, to)
	}
	for _, m := range LegalMoves(b, from, false) {
		if m.To == to {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %s to %s", ErrIllegalMove, from, to)
}

// ApplyMove returns the board after m, and whether the moving piece was
// promoted by it. b itself is never modified. The move is re-validated
// against LegalMoves; a descriptor that disagrees with the recomputed move
// (a step claimed as a jump, a different captured cell) is illegal.
func ApplyMove(b Board, m Move) (Board, bool, error) {
	legal, err := FindMove(b, m.From, m.To)
	if err != nil {
		return b, false, err
	}
	if m.Jump != legal.Jump {
		return b, false, fmt.Errorf("%w: jump flag does not match %s", ErrIllegalMove, legal)
	}
	if m.Jumped != nil && (legal.Jumped == nil || *m.Jumped != *legal.Jumped) {
		return b, false, fmt.Errorf("%w: captured cell does not match %s", ErrIllegalMove, legal)
	}

	next := b
	piece := next.At(legal.From)
	next.set(legal.From, Piece{})
	if legal.Jump {
		next.set(*legal.Jumped, Piece{})
	}

	promoted := !piece.King && legal.To.Row == piece.Color.KingRow()
	if promoted {
		piece.King = true
	}
	next.set(legal.To, piece)

	return next, promoted, nil
}

// TerminalResult describes whether the game is over.
type TerminalResult struct {
	Over   bool   `json:"over"`
	Winner Color  `json:"winner,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const (
	ReasonNoPieces = "no pieces"
	ReasonNoMoves  = "no moves"
)

// IsTerminal checks the position from the point of view of the side about
// to move: it loses when it has no pieces left or none of its pieces can move.
func IsTerminal(b Board, next Color) TerminalResult {
	if b.Count(next) == 0 {
		return TerminalResult{Over: true, Winner: next.Opponent(), Reason: ReasonNoPieces}
	}
	if len(Movable(b, next)) == 0 {
		return TerminalResult{Over: true, Winner: next.Opponent(), Reason: ReasonNoMoves}
	}
	return TerminalResult{}
}
