package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

// The shape files are drawn with placeholder colors that are swapped per side.
var (
	fillMarker   = []byte("#010101")
	strokeMarker = []byte("#020202")
)

var sideColors = map[rebirth.Color][2]string{
	rebirth.White: {"#f8f5ee", "#2b2b2b"},
	rebirth.Black: {"#2e2a28", "#e8e2d6"},
}

type pieceCacheKey struct {
	piece rebirth.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceImage(p rebirth.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}
	pieceCacheMu.RLock()
	img, ok := pieceCache[key]
	pieceCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	name := "assets/pieces/" + p.Type.String() + ".svg"
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	colors, ok := sideColors[p.Color]
	if !ok {
		return nil, fmt.Errorf("piece without side: %v", p)
	}
	data = bytes.ReplaceAll(data, fillMarker, []byte(colors[0]))
	data = bytes.ReplaceAll(data, strokeMarker, []byte(colors[1]))

	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = rgba
	pieceCacheMu.Unlock()
	return rgba, nil
}
