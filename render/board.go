/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package render draws boards as PNG images. Boards are described as SVG and
// rasterized with oksvg.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/Seednode/checkers/engine"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	DefaultSize = 480
	MinSize     = 64
	MaxSize     = 1600
	cell        = 60
	viewBox     = cell * engine.Size
)

const (
	lightSquare = "#f0d9b5"
	darkSquare  = "#8b5a2b"
	highlight   = "#f6e27a"
	redFill     = "#c0392b"
	redEdge     = "#7b1f16"
	blackFill   = "#222222"
	blackEdge   = "#000000"
	crown       = "#f1c40f"
)

// Options tune a board image.
type Options struct {
	// Size is the edge length in pixels. Zero means DefaultSize.
	Size int
	// LastMove, when set, shades its origin and destination cells.
	LastMove *engine.Move
}

// BoardPNG renders b as a square PNG.
func BoardPNG(b engine.Board, opts Options) ([]byte, error) {
	size := opts.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("image size %d out of range %d-%d", size, MinSize, MaxSize)
	}
	return rasterize(BoardSVG(b, opts.LastMove), size)
}

// BoardSVG describes b as an SVG document with row 0 at the top.
func BoardSVG(b engine.Board, last *engine.Move) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`,
		viewBox, viewBox, viewBox, viewBox)

	for r := range engine.Size {
		for c := range engine.Size {
			at := engine.Cell{Row: r, Col: c}
			fill := lightSquare
			if at.Playable() {
				fill = darkSquare
			}
			if last != nil && (at == last.From || at == last.To) {
				fill = highlight
			}
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
				c*cell, r*cell, cell, cell, fill)
		}
	}

	for r := range engine.Size {
		for c := range engine.Size {
			p := b[r][c]
			if p.Empty() {
				continue
			}
			writePiece(&sb, c*cell+cell/2, r*cell+cell/2, p)
		}
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

func writePiece(sb *strings.Builder, cx, cy int, p engine.Piece) {
	fill, edge := redFill, redEdge
	if p.Color == engine.Black {
		fill, edge = blackFill, blackEdge
	}
	fmt.Fprintf(sb, `<circle cx="%d" cy="%d" r="%d" fill="%s" stroke="%s" stroke-width="3"/>`,
		cx, cy, cell*2/5, fill, edge)
	fmt.Fprintf(sb, `<circle cx="%d" cy="%d" r="%d" fill="none" stroke="%s" stroke-width="2"/>`,
		cx, cy, cell/4, edge)
	if p.King {
		fmt.Fprintf(sb, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`, cx, cy, cell/7, crown)
	}
}

// Favicon renders a single red king on a dark square.
func Favicon(size int) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, cell, cell, cell, cell)
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, cell, cell, darkSquare)
	writePiece(&sb, cell/2, cell/2, engine.Piece{Color: engine.Red, King: true})
	sb.WriteString(`</svg>`)
	return rasterize(sb.String(), size)
}

func rasterize(svg string, size int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
