/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package engine holds the checkers rules: the starting position, move
// generation with forced capture and multi-jump continuation, promotion,
// and end-of-game detection. Every function is pure and works on a Board
// value, so callers get copies rather than shared state.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Size is the number of rows and columns on the board.
const Size = 8

// Color identifies a side. The zero value means "no color" and is used for
// empty cells and unpicked seats.
type Color uint8

const (
	NoColor Color = iota
	Red
	Black
)

var ErrInvalidColor = errors.New("invalid color")

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return ""
	}
}

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Red:
		return Black
	case Black:
		return Red
	default:
		return NoColor
	}
}

// Forward is the row delta a non-king of this color moves in.
// Red advances toward row 0, Black toward the last row.
func (c Color) Forward() int {
	if c == Red {
		return -1
	}
	return 1
}

// KingRow is the row on which a piece of this color is promoted.
func (c Color) KingRow() int {
	if c == Red {
		return 0
	}
	return Size - 1
}

func (c Color) Valid() bool {
	return c == Red || c == Black
}

// ParseColor accepts "red" or "black" in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red":
		return Red, nil
	case "black":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = NoColor
		return nil
	}
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Piece is the content of one cell. An empty cell holds the zero Piece.
type Piece struct {
	Color Color `json:"color"`
	King  bool  `json:"king"`
}

func (p Piece) Empty() bool {
	return p.Color == NoColor
}

// Cell addresses a square by row and column, both zero-based.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Cell) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Playable reports whether pieces may ever stand on the cell.
func (c Cell) Playable() bool {
	return c.InBounds() && (c.Row+c.Col)%2 == 1
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

func (c Cell) offset(dr, dc int) Cell {
	return Cell{Row: c.Row + dr, Col: c.Col + dc}
}

// Board is an 8x8 grid indexed [row][col]. It is a value type: assigning or
// passing a Board copies every cell.
type Board [Size][Size]Piece

// At returns the piece on c, or the empty piece when c is off the board.
func (b *Board) At(c Cell) Piece {
	if !c.InBounds() {
		return Piece{}
	}
	return b[c.Row][c.Col]
}

func (b *Board) set(c Cell, p Piece) {
	b[c.Row][c.Col] = p
}

// Count returns the number of pieces of the given color.
func (b *Board) Count(color Color) int {
	n := 0
	for r := range Size {
		for c := range Size {
			if b[r][c].Color == color {
				n++
			}
		}
	}
	return n
}

// Cells returns the cells holding pieces of the given color, in row-major order.
func (b *Board) Cells(color Color) []Cell {
	var out []Cell
	for r := range Size {
		for c := range Size {
			if b[r][c].Color == color {
				out = append(out, Cell{Row: r, Col: c})
			}
		}
	}
	return out
}

// MarshalJSON encodes the board as rows of cells, with null for empty cells.
func (b Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*Piece, Size)
	for r := range Size {
		rows[r] = make([]*Piece, Size)
		for c := range Size {
			if p := b[r][c]; !p.Empty() {
				rows[r][c] = &p
			}
		}
	}
	return json.Marshal(rows)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != Size {
		return fmt.Errorf("board must have %d rows, got %d", Size, len(rows))
	}
	var out Board
	for r, row := range rows {
		if len(row) != Size {
			return fmt.Errorf("board row %d must have %d cells, got %d", r, Size, len(row))
		}
		for c, p := range row {
			if p == nil {
				continue
			}
			if !(Cell{Row: r, Col: c}).Playable() {
				return fmt.Errorf("piece on unplayable cell (%d,%d)", r, c)
			}
			out[r][c] = *p
		}
	}
	*b = out
	return nil
}

// InitialBoard returns the standard starting position: Black men on the
// playable cells of rows 0-2, Red men on rows 5-7.
func InitialBoard() Board {
	var b Board
	for r := range Size {
		for c := range Size {
			cell := Cell{Row: r, Col: c}
			if !cell.Playable() {
				continue
			}
			switch {
			case r < 3:
				b.set(cell, Piece{Color: Black})
			case r > 4:
				b.set(cell, Piece{Color: Red})
			}
		}
	}
	return b
}
