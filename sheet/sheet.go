// Package sheet lays out rendered previews as a numbered contact sheet.
//
// A sheet is how a user picks the next parent from a Session: each preview
// is rendered small, placed on a grid and labelled with its 1-based index.
//
//	s := genart.NewSession()
//	img, err := sheet.Render(ctx, r, s.Previews(), sheet.Options{})
package sheet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/genart"
)

// ErrNoPrograms is returned when Render is given nothing to lay out.
var ErrNoPrograms = errors.New("sheet: no programs to render")

// Defaults for zero Options fields.
const (
	DefaultColumns   = 3
	DefaultCellSize  = 160
	DefaultGutter    = 8
	DefaultLabelSize = 14
)

// Options configures a sheet. Zero fields take their defaults.
type Options struct {
	// Columns is the number of cells per row.
	Columns int

	// CellSize is the edge of a square cell in sheet pixels.
	CellSize int

	// RenderSize is the edge each preview is rendered at before being scaled
	// to CellSize. Zero renders at CellSize; a smaller value renders faster
	// and is enlarged with nearest-neighbour scaling.
	RenderSize int

	// Gutter is the space between cells and around the grid. Negative
	// means none.
	Gutter int

	// Background fills the gutters. Zero is opaque black.
	Background color.RGBA

	// NoLabels disables the index labels.
	NoLabels bool
}

func (o Options) withDefaults() Options {
	if o.Columns <= 0 {
		o.Columns = DefaultColumns
	}
	if o.CellSize <= 0 {
		o.CellSize = DefaultCellSize
	}
	if o.RenderSize <= 0 {
		o.RenderSize = o.CellSize
	}
	if o.Gutter < 0 {
		o.Gutter = 0
	} else if o.Gutter == 0 {
		o.Gutter = DefaultGutter
	}
	if o.Background == (color.RGBA{}) {
		o.Background = color.RGBA{A: 255}
	}
	return o
}

// Layout returns the sheet size for n cells.
func (o Options) Layout(n int) (width, height int) {
	o = o.withDefaults()
	cols := min(o.Columns, max(n, 1))
	rows := (n + o.Columns - 1) / o.Columns
	rows = max(rows, 1)
	width = cols*o.CellSize + (cols+1)*o.Gutter
	height = rows*o.CellSize + (rows+1)*o.Gutter
	return width, height
}

// CellRect returns the rectangle of cell i.
func (o Options) CellRect(i int) image.Rectangle {
	o = o.withDefaults()
	col, row := i%o.Columns, i/o.Columns
	x := o.Gutter + col*(o.CellSize+o.Gutter)
	y := o.Gutter + row*(o.CellSize+o.Gutter)
	return image.Rect(x, y, x+o.CellSize, y+o.CellSize)
}

// Render renders every program with r and composes them into one image.
// It stops at the first render error, including cancellation of ctx.
func Render(ctx context.Context, r *genart.Renderer, programs []*genart.Program, opts Options) (*image.RGBA, error) {
	if len(programs) == 0 {
		return nil, ErrNoPrograms
	}
	opts = opts.withDefaults()

	w, h := opts.Layout(len(programs))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: opts.Background}, image.Point{}, draw.Src)

	face, err := labelFace()
	if err != nil && !opts.NoLabels {
		return nil, fmt.Errorf("sheet: load label font: %w", err)
	}

	for i, p := range programs {
		pm, err := r.Render(ctx, p, opts.RenderSize, opts.RenderSize)
		if err != nil {
			return nil, fmt.Errorf("sheet: render cell %d: %w", i+1, err)
		}
		cell := opts.CellRect(i)
		src := pm.ToImage()
		if opts.RenderSize == opts.CellSize {
			draw.Draw(dst, cell, src, src.Bounds().Min, draw.Src)
		} else {
			xdraw.NearestNeighbor.Scale(dst, cell, src, src.Bounds(), xdraw.Src, nil)
		}
		if !opts.NoLabels {
			drawLabel(dst, cell, face, strconv.Itoa(i+1))
		}
	}

	genart.Logger().Debug("sheet: rendered",
		"cells", len(programs), "width", w, "height", h)
	return dst, nil
}

// labelFace parses the embedded Go Regular font once.
var labelFace = sync.OnceValues(func() (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    DefaultLabelSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
})

// labelMu serializes use of the shared face, which is not safe for concurrent
// use.
var labelMu sync.Mutex

// labelPadding is the space between the label text and its backdrop edge.
const labelPadding = 3

// drawLabel draws text on a dark backdrop in the top-left corner of cell.
func drawLabel(dst *image.RGBA, cell image.Rectangle, face font.Face, text string) {
	labelMu.Lock()
	defer labelMu.Unlock()

	bounds, advance := font.BoundString(face, text)
	ascent := face.Metrics().Ascent.Ceil()
	descent := face.Metrics().Descent.Ceil()

	box := image.Rect(0, 0, advance.Ceil()+2*labelPadding, ascent+descent+2*labelPadding).
		Add(cell.Min).Intersect(cell)
	backdrop := &image.Uniform{C: color.RGBA{A: 160}}
	draw.Draw(dst, box, backdrop, image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(cell.Min.X+labelPadding) - bounds.Min.X,
			Y: fixed.I(cell.Min.Y + labelPadding + ascent),
		},
	}
	d.DrawString(text)
}
