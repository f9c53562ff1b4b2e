package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/park285/rebirth-chess-bot/internal/notation"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
)

var (
	lightSquare = color.New(color.BgHiWhite, color.FgBlack)
	darkSquare  = color.New(color.BgYellow, color.FgBlack)
	hintSquare  = color.New(color.BgGreen, color.FgBlack)
	takeSquare  = color.New(color.BgRed, color.FgHiWhite)
	markSquare  = color.New(color.BgCyan, color.FgBlack)
	whiteText   = color.New(color.Bold)
	dimText     = color.New(color.Faint)
)

// termRenderer draws the board as ANSI text. The bytes take the place of the PNG
// in SessionState.BoardImage, so the chat handler can drive a terminal unchanged.
type termRenderer struct{}

var _ render.BoardRenderer = termRenderer{}

func (termRenderer) RenderPNG(_ context.Context, board *rebirth.Board, opts render.RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("nil board")
	}
	var buf bytes.Buffer
	if opts.HUDHeader != "" {
		whiteText.Fprintln(&buf, opts.HUDHeader)
	}

	ranks, files := order(opts.Flip)
	for _, r := range ranks {
		fmt.Fprintf(&buf, "%d ", 8-r)
		for _, f := range files {
			sq := rebirth.SquareAt(r, f)
			buf.WriteString(squareStyle(sq, opts).Sprint(" " + cell(board.PieceAt(sq)) + " "))
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("  ")
	for _, f := range files {
		fmt.Fprintf(&buf, " %c ", 'a'+f)
	}
	buf.WriteByte('\n')

	writeTray(&buf, "white", opts.WhitePool, opts.PendingCapture)
	writeTray(&buf, "black", opts.BlackPool, opts.PendingCapture)
	if opts.HUDTurn != "" {
		dimText.Fprintln(&buf, opts.HUDTurn)
	}
	return buf.Bytes(), nil
}

func order(flip bool) (ranks, files []int) {
	for i := 0; i < 8; i++ {
		if flip {
			ranks = append(ranks, 7-i)
			files = append(files, 7-i)
		} else {
			ranks = append(ranks, i)
			files = append(files, i)
		}
	}
	return ranks, files
}

func squareStyle(sq rebirth.Square, opts render.RenderOptions) *color.Color {
	switch {
	case opts.Selected != nil && *opts.Selected == sq:
		return markSquare
	case opts.Hints.Captures.Has(sq):
		return takeSquare
	case opts.Hints.Moves.Has(sq):
		return hintSquare
	case opts.LastMove != nil && (opts.LastMove.To == sq || opts.LastMove.From == sq):
		return markSquare
	case (sq.Rank()+sq.File())%2 == 0:
		return lightSquare
	default:
		return darkSquare
	}
}

func cell(p *rebirth.Piece) string {
	if p == nil {
		return "."
	}
	return notation.PieceLetter(*p)
}

func writeTray(buf *bytes.Buffer, label string, pool []rebirth.CapturedPiece, pending uint64) {
	if len(pool) == 0 {
		return
	}
	items := make([]string, 0, len(pool))
	for _, c := range pool {
		item := fmt.Sprintf("#%d %s", c.ID, notation.PieceLetter(c.Piece))
		if c.ID == pending {
			item = markSquare.Sprint(item)
		}
		items = append(items, item)
	}
	fmt.Fprintf(buf, "%s captured: %s\n", label, strings.Join(items, "  "))
}
