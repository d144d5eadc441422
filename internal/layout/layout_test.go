package layout_test

import (
	"errors"
	"image"
	"testing"

	"github.com/alvinashiatey/videoToRISO/internal/layout"

	"github.com/google/go-cmp/cmp"
)

func TestComputeGridLetter(t *testing.T) {
	// letter at 300 dpi, 0.5in margin, 0.1in spacing, 3 columns, 16:9
	spec := layout.Spec{
		PaperWidthPx:  2550,
		PaperHeightPx: 3300,
		MarginPx:      150,
		SpacingPx:     30,
		Columns:       3,
		DPI:           300,
	}
	g, err := layout.ComputeGrid(spec, 16.0/9.0)
	if err != nil {
		t.Fatal(err)
	}

	if g.ThumbWidth != 730 {
		t.Errorf("expected thumb width 730, got %d", g.ThumbWidth)
	}
	if g.ThumbHeight != 410 {
		t.Errorf("expected thumb height 410, got %d", g.ThumbHeight)
	}
	if g.Rows != 6 {
		t.Errorf("expected 6 rows, got %d", g.Rows)
	}
	if g.Capacity() != 18 {
		t.Errorf("expected capacity 18, got %d", g.Capacity())
	}

	if expected := (image.Point{X: 150, Y: 150}); g.Origins[0] != expected {
		t.Errorf("expected first origin %v, got %v", expected, g.Origins[0])
	}
	if expected := (image.Point{X: 150 + 760, Y: 150}); g.Origins[1] != expected {
		t.Errorf("expected second origin %v, got %v", expected, g.Origins[1])
	}
	if expected := (image.Point{X: 150, Y: 150 + 440}); g.Origins[3] != expected {
		t.Errorf("expected fourth origin %v, got %v", expected, g.Origins[3])
	}
}

func TestComputeGridReadingOrder(t *testing.T) {
	testCases := []struct {
		spec   layout.Spec
		aspect float64
	}{
		{layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 150, SpacingPx: 30, Columns: 3, DPI: 300}, 16.0 / 9.0},
		{layout.Spec{PaperWidthPx: 2481, PaperHeightPx: 3507, MarginPx: 150, SpacingPx: 30, Columns: 5, DPI: 300}, 4.0 / 3.0},
		{layout.Spec{PaperWidthPx: 3300, PaperHeightPx: 5100, MarginPx: 75, SpacingPx: 15, Columns: 1, DPI: 300}, 1.0},
		{layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 150, SpacingPx: 0, Columns: 10, DPI: 300}, 2.35},
	}
	for _, tC := range testCases {
		g, err := layout.ComputeGrid(tC.spec, tC.aspect)
		if err != nil {
			t.Fatal(err)
		}
		if g.ThumbWidth <= 0 || g.ThumbHeight <= 0 {
			t.Errorf("non-positive thumbnail %dx%d", g.ThumbWidth, g.ThumbHeight)
		}
		if g.Rows < 1 {
			t.Errorf("expected at least one row, got %d", g.Rows)
		}
		if len(g.Origins) != g.Capacity() {
			t.Errorf("expected %d origins, got %d", g.Capacity(), len(g.Origins))
		}
		for k := 1; k < len(g.Origins); k++ {
			prev, cur := g.Origins[k-1], g.Origins[k]
			// strictly increasing in reading order
			if cur.Y < prev.Y || (cur.Y == prev.Y && cur.X <= prev.X) {
				t.Errorf("origin %d (%v) not after %v in reading order", k, cur, prev)
			}
			if g.CellRect(k).Overlaps(g.CellRect(k - 1)) {
				t.Errorf("cell %d overlaps cell %d", k, k-1)
			}
		}
		last := g.CellRect(g.Capacity() - 1)
		if last.Max.X > tC.spec.PaperWidthPx-tC.spec.MarginPx ||
			last.Max.Y > tC.spec.PaperHeightPx-tC.spec.MarginPx {
			t.Errorf("last cell %v extends into margin", last)
		}
	}
}

func TestComputeGridInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		spec   layout.Spec
		aspect float64
	}{
		{"zero columns", layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 150, Columns: 0, DPI: 300}, 1},
		{"margin eats page", layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 1275, Columns: 3, DPI: 300}, 1},
		{"spacing eats width", layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 150, SpacingPx: 1200, Columns: 3, DPI: 300}, 1},
		{"bad aspect", layout.Spec{PaperWidthPx: 2550, PaperHeightPx: 3300, MarginPx: 150, Columns: 3, DPI: 300}, 0},
	}
	for _, tC := range testCases {
		t.Run(tC.name, func(t *testing.T) {
			_, err := layout.ComputeGrid(tC.spec, tC.aspect)
			if !errors.Is(err, layout.ErrInvalidLayout) {
				t.Errorf("expected ErrInvalidLayout, got %v", err)
			}
		})
	}
}

func TestNewSpec(t *testing.T) {
	paper, err := layout.LookupPaper("LETTER")
	if err != nil {
		t.Fatal(err)
	}
	spec, err := layout.NewSpec(paper, 300, 0.5, 0.1, 3)
	if err != nil {
		t.Fatal(err)
	}
	expected := layout.Spec{
		PaperWidthPx:  2550,
		PaperHeightPx: 3300,
		MarginPx:      150,
		SpacingPx:     30,
		Columns:       3,
		DPI:           300,
	}
	if diff := cmp.Diff(expected, spec); diff != "" {
		t.Errorf("spec mismatch (-want +got):\n%s", diff)
	}

	if _, err := layout.LookupPaper("b5"); !errors.Is(err, layout.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout for unknown paper, got %v", err)
	}
}
