// Package layout computes contact sheet grid geometry: thumbnail cell
// dimensions, per-page capacity and cell origins for a paper size at a
// fixed print resolution.
package layout

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
)

// ErrInvalidLayout is returned when a spec leaves no printable area or no
// positive thumbnail size.
var ErrInvalidLayout = errors.New("invalid layout")

// Paper is a physical sheet size in inches.
type Paper struct {
	WidthIn  float64
	HeightIn float64
}

// Papers are the supported paper presets.
var Papers = map[string]Paper{
	"letter":  {8.5, 11},
	"a4":      {8.27, 11.69},
	"tabloid": {11, 17},
}

// PaperNames returns the preset names in sorted order.
func PaperNames() []string {
	names := make([]string, 0, len(Papers))
	for n := range Papers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupPaper finds a paper preset by case-insensitive name.
func LookupPaper(name string) (Paper, error) {
	p, ok := Papers[strings.ToLower(name)]
	if !ok {
		return Paper{}, fmt.Errorf("%w: unknown paper %q (available: %s)",
			ErrInvalidLayout, name, strings.Join(PaperNames(), ", "))
	}
	return p, nil
}

// Spec is a fully resolved page layout in pixels. Immutable once built.
type Spec struct {
	PaperWidthPx  int
	PaperHeightPx int
	MarginPx      int
	SpacingPx     int
	Columns       int
	DPI           int
}

// NewSpec resolves a paper preset and inch measurements to a pixel spec.
func NewSpec(paper Paper, dpi int, marginIn, spacingIn float64, columns int) (Spec, error) {
	if dpi <= 0 {
		return Spec{}, fmt.Errorf("%w: dpi must be positive, got %d", ErrInvalidLayout, dpi)
	}
	s := Spec{
		PaperWidthPx:  int(paper.WidthIn * float64(dpi)),
		PaperHeightPx: int(paper.HeightIn * float64(dpi)),
		MarginPx:      int(marginIn * float64(dpi)),
		SpacingPx:     int(spacingIn * float64(dpi)),
		Columns:       columns,
		DPI:           dpi,
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate checks the spec invariants: at least one column, non-negative
// margin and spacing, and a strictly positive printable area.
func (s Spec) Validate() error {
	if s.Columns < 1 {
		return fmt.Errorf("%w: columns must be >= 1, got %d", ErrInvalidLayout, s.Columns)
	}
	if s.MarginPx < 0 || s.SpacingPx < 0 {
		return fmt.Errorf("%w: negative margin or spacing", ErrInvalidLayout)
	}
	if s.printableWidth() <= 0 || s.printableHeight() <= 0 {
		return fmt.Errorf("%w: margins leave no printable area on %dx%d page",
			ErrInvalidLayout, s.PaperWidthPx, s.PaperHeightPx)
	}
	return nil
}

func (s Spec) printableWidth() int  { return s.PaperWidthPx - 2*s.MarginPx }
func (s Spec) printableHeight() int { return s.PaperHeightPx - 2*s.MarginPx }

// Grid is the derived placement for one page. A fresh value per page;
// never mutated.
type Grid struct {
	ThumbWidth  int
	ThumbHeight int
	Rows        int
	Columns     int
	Origins     []image.Point
}

// Capacity is the number of frames that fit on one page.
func (g *Grid) Capacity() int {
	return g.Rows * g.Columns
}

// CellRect is the placement rectangle for frame k on its page,
// k in [0, Capacity).
func (g *Grid) CellRect(k int) image.Rectangle {
	o := g.Origins[k]
	return image.Rect(o.X, o.Y, o.X+g.ThumbWidth, o.Y+g.ThumbHeight)
}

// ComputeGrid derives thumbnail dimensions and cell origins for frames of
// the given aspect ratio (width/height). Origins are in reading order:
// frame k is placed at column k mod Columns, row k div Columns.
func ComputeGrid(spec Spec, aspectRatio float64) (*Grid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if aspectRatio <= 0 {
		return nil, fmt.Errorf("%w: aspect ratio must be positive, got %v", ErrInvalidLayout, aspectRatio)
	}

	thumbW := (spec.printableWidth() - spec.SpacingPx*(spec.Columns-1)) / spec.Columns
	if thumbW <= 0 {
		return nil, fmt.Errorf("%w: %d columns with %dpx spacing leave no thumbnail width",
			ErrInvalidLayout, spec.Columns, spec.SpacingPx)
	}
	thumbH := int(float64(thumbW) / aspectRatio)
	if thumbH <= 0 {
		return nil, fmt.Errorf("%w: aspect ratio %v leaves no thumbnail height", ErrInvalidLayout, aspectRatio)
	}

	rows := (spec.printableHeight() + spec.SpacingPx) / (thumbH + spec.SpacingPx)
	if rows < 1 {
		rows = 1
	}

	g := &Grid{
		ThumbWidth:  thumbW,
		ThumbHeight: thumbH,
		Rows:        rows,
		Columns:     spec.Columns,
		Origins:     make([]image.Point, 0, rows*spec.Columns),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < spec.Columns; col++ {
			g.Origins = append(g.Origins, image.Point{
				X: spec.MarginPx + col*(thumbW+spec.SpacingPx),
				Y: spec.MarginPx + row*(thumbH+spec.SpacingPx),
			})
		}
	}
	return g, nil
}
