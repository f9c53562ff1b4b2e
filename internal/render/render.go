// Package render draws a rebirth board, its hints and the captured trays to PNG.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

// LastMove marks the previous action. From is rebirth.NoSquare for a resurrection.
type LastMove struct {
	From rebirth.Square
	To   rebirth.Square
}

type RenderOptions struct {
	// Flip puts black at the bottom.
	Flip bool

	Selected *rebirth.Square
	Hints    rebirth.MoveSet
	LastMove *LastMove

	WhitePool      []rebirth.CapturedPiece
	BlackPool      []rebirth.CapturedPiece
	PendingCapture uint64

	HUDHeader string
	HUDTurn   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *rebirth.Board, opts RenderOptions) ([]byte, error)
}

type svgBoardRenderer struct {
	face font.Face
}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{face: basicfont.Face7x13}
}

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 32
	hudHeight    = 76
	coordHeight  = 22
	trayRow      = 46
	trayIcon     = 32
	trayGap      = 6
	bottomMargin = 14
	panelRadius  = 10

	boardTop     = hudHeight
	trayTop      = boardTop + boardSize + coordHeight
	canvasWidth  = boardSize + sideMargin*2
	canvasHeight = trayTop + trayRow*2 + bottomMargin

	defaultHeaderText = "Rebirth Chess"
)

var (
	backgroundColor  = color.RGBA{24, 26, 38, 255}
	lightSquare      = color.RGBA{233, 207, 163, 255}
	darkSquare       = color.RGBA{187, 136, 96, 255}
	selectedFill     = color.NRGBA{R: 255, G: 228, B: 120, A: 150}
	lastMoveFill     = color.NRGBA{R: 148, G: 207, B: 255, A: 110}
	moveHintColor    = color.NRGBA{R: 40, G: 40, B: 40, A: 110}
	captureHintColor = color.NRGBA{R: 214, G: 48, B: 49, A: 120}
	hudPanelColor    = color.NRGBA{R: 36, G: 40, B: 60, A: 250}
	hudTextPrimary   = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTextSecondary = color.NRGBA{R: 190, G: 198, B: 230, A: 255}
	coordinateColor  = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	trayPanelColor   = color.NRGBA{R: 44, G: 48, B: 70, A: 255}
	trayPendingColor = color.NRGBA{R: 255, G: 200, B: 70, A: 200}
	trayLabelColor   = color.NRGBA{R: 220, G: 224, B: 240, A: 255}
)

var errNilBoard = errors.New("board is nil")

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *rebirth.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, errNilBoard
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := boardOrigin()
	r.drawHUD(img, opts)
	drawSquares(img, origin)
	drawMarks(img, opts, origin)
	if err := drawPieces(img, board, opts.Flip, origin); err != nil {
		return nil, err
	}
	drawHints(img, opts, origin)
	r.drawCoordinates(img, opts.Flip, origin)

	// the human's own pool sits closest to them
	top, bottom := opts.BlackPool, opts.WhitePool
	if opts.Flip {
		top, bottom = bottom, top
	}
	if err := r.drawTray(img, top, opts.PendingCapture, trayTop); err != nil {
		return nil, err
	}
	if err := r.drawTray(img, bottom, opts.PendingCapture, trayTop+trayRow); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func boardOrigin() image.Point { return image.Point{X: sideMargin, Y: boardTop} }

// cell maps an engine square to its on-screen row and column.
func cell(sq rebirth.Square, flip bool) (row, col int) {
	row, col = sq.Rank(), sq.File()
	if flip {
		row, col = 7-row, 7-col
	}
	return row, col
}

func squareRect(sq rebirth.Square, flip bool, origin image.Point) image.Rectangle {
	row, col := cell(sq, flip)
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			clr := lightSquare
			if (row+col)%2 == 1 {
				clr = darkSquare
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawMarks(img *image.RGBA, opts RenderOptions, origin image.Point) {
	if lm := opts.LastMove; lm != nil {
		if lm.From.Valid() {
			overlay(img, squareRect(lm.From, opts.Flip, origin), lastMoveFill)
		}
		if lm.To.Valid() {
			overlay(img, squareRect(lm.To, opts.Flip, origin), lastMoveFill)
		}
	}
	if opts.Selected != nil && opts.Selected.Valid() {
		overlay(img, squareRect(*opts.Selected, opts.Flip, origin), selectedFill)
	}
}

func drawHints(img *image.RGBA, opts RenderOptions, origin image.Point) {
	for _, sq := range opts.Hints.Moves.Squares() {
		rect := squareRect(sq, opts.Flip, origin)
		center := image.Pt(rect.Min.X+squareSize/2, rect.Min.Y+squareSize/2)
		drawDisc(img, center, squareSize/7, moveHintColor)
	}
	for _, sq := range opts.Hints.Captures.Squares() {
		overlay(img, squareRect(sq, opts.Flip, origin), captureHintColor)
	}
}

func drawPieces(dst imagedraw.Image, board *rebirth.Board, flip bool, origin image.Point) error {
	for sq := rebirth.Square(0); sq < rebirth.NumSquares; sq++ {
		p := board.PieceAt(sq)
		if p == nil {
			continue
		}
		icon, err := pieceImage(*p, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, flip, origin), icon, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *svgBoardRenderer) drawHUD(img *image.RGBA, opts RenderOptions) {
	drawer := &font.Drawer{Dst: img, Face: r.face}
	header := strings.TrimSpace(opts.HUDHeader)
	if header == "" {
		header = defaultHeaderText
	}
	panel := image.Rect(sideMargin, 12, sideMargin+boardSize, hudHeight-10)
	drawRoundedPanel(img, panel, panelRadius, hudPanelColor)

	upper := image.Rect(panel.Min.X, panel.Min.Y, panel.Max.X, panel.Min.Y+panel.Dy()/2)
	lower := image.Rect(panel.Min.X, upper.Max.Y, panel.Max.X, panel.Max.Y)
	drawCenteredString(drawer, upper, truncate(r.face, header, panel.Dx()-24), hudTextPrimary)
	drawCenteredString(drawer, lower, truncate(r.face, opts.HUDTurn, panel.Dx()-24), hudTextSecondary)
}

func (r *svgBoardRenderer) drawCoordinates(img *image.RGBA, flip bool, origin image.Point) {
	drawer := &font.Drawer{Dst: img, Face: r.face, Src: image.NewUniform(coordinateColor)}
	ascent := r.face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		file, rank := i, i
		if flip {
			file, rank = 7-i, 7-i
		}
		// engine rank 0 is chess rank 8
		rankLabel := string(rune('8' - rank))
		fileLabel := string(rune('a' + file))

		cy := origin.Y + i*squareSize + squareSize/2
		drawCenteredText(drawer, rankLabel, origin.X-sideMargin/2, cy+ascent/2)
		cx := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, fileLabel, cx, origin.Y+boardSize+ascent+4)
	}
}

// drawTray lists one pool left to right with each entry's id under its icon.
func (r *svgBoardRenderer) drawTray(img *image.RGBA, pool []rebirth.CapturedPiece, pending uint64, top int) error {
	drawer := &font.Drawer{Dst: img, Face: r.face}
	x := sideMargin
	maxX := sideMargin + boardSize
	for i, e := range pool {
		if x+trayIcon > maxX {
			rest := fmt.Sprintf("+%d", len(pool)-i)
			drawer.Src = image.NewUniform(trayLabelColor)
			drawer.Dot = fixed.P(x, top+trayIcon/2+4)
			drawer.DrawString(rest)
			break
		}
		slot := image.Rect(x, top, x+trayIcon, top+trayIcon)
		bg := color.Color(trayPanelColor)
		if e.ID == pending {
			bg = trayPendingColor
		}
		drawRoundedPanel(img, slot, 5, bg)
		icon, err := pieceImage(e.Piece, trayIcon)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, slot, icon, image.Point{}, imagedraw.Over)
		drawer.Src = image.NewUniform(trayLabelColor)
		drawCenteredText(drawer, fmt.Sprintf("#%d", e.ID), x+trayIcon/2, top+trayIcon+11)
		x += trayIcon + trayGap
	}
	return nil
}

func overlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func truncate(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	drawer := font.Drawer{Face: face}
	if trimmed == "" || drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if c := string(runes) + "..."; drawer.MeasureString(c).Round() <= maxWidth {
			return c
		}
	}
	return "..."
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	m := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if m := min(rect.Dx(), rect.Dy()) / 2; radius > m {
		radius = m
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	for _, c := range []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	} {
		drawQuarterDiscs(img, c, radius, clr, rect)
	}
}

// drawQuarterDiscs fills a corner disc clipped to the panel's corner square.
func drawQuarterDiscs(img *image.RGBA, center image.Point, radius int, clr color.Color, rect image.Rectangle) {
	clip := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+radius, rect.Min.Y+radius)
	if center.X > rect.Min.X+radius {
		clip = clip.Add(image.Pt(rect.Dx()-radius, 0))
	}
	if center.Y > rect.Min.Y+radius {
		clip = clip.Add(image.Pt(0, rect.Dy()-radius))
	}
	r2 := radius * radius
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			dx, dy := x-center.X, y-center.Y
			if dx*dx+dy*dy <= r2 {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				blendPixel(img, center.X+x, center.Y+y, clr)
			}
		}
	}
}

// blendPixel composites clr over one pixel (source-over, premultiplied).
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	d := img.RGBAAt(x, y)
	inv := 0xffff - sa
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(d.R)*0x101*inv/0xffff) >> 8),
		G: uint8((sg + uint32(d.G)*0x101*inv/0xffff) >> 8),
		B: uint8((sb + uint32(d.B)*0x101*inv/0xffff) >> 8),
		A: uint8((sa + uint32(d.A)*0x101*inv/0xffff) >> 8),
	})
}
