package export_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/alvinashiatey/videoToRISO/internal/compose"
	"github.com/alvinashiatey/videoToRISO/internal/export"
	"github.com/alvinashiatey/videoToRISO/internal/layout"
	"github.com/alvinashiatey/videoToRISO/internal/separate"
	"github.com/alvinashiatey/videoToRISO/internal/sheetmeta"
)

func testSpec() layout.Spec {
	return layout.Spec{
		PaperWidthPx:  200,
		PaperHeightPx: 300,
		MarginPx:      10,
		SpacingPx:     5,
		Columns:       2,
		DPI:           72,
	}
}

func testSheets(t *testing.T, n int) []*compose.Sheet {
	t.Helper()
	spec := testSpec()
	var sheets []*compose.Sheet
	for i := 0; i < n; i++ {
		composite := image.NewNRGBA(image.Rect(0, 0, spec.PaperWidthPx, spec.PaperHeightPx))
		draw.Draw(composite, composite.Bounds(), image.NewUniform(color.NRGBA{200, 200, 200, 255}), image.Point{}, draw.Src)
		master := image.NewGray(composite.Bounds())
		sheets = append(sheets, &compose.Sheet{
			Index:     i,
			Composite: composite,
			Channels: []compose.ChannelPage{
				{Channel: separate.Cyan, Master: master},
				{Channel: separate.Black, Master: master},
			},
			FrameStart: i * 6,
			FrameCount: 6,
		})
	}
	return sheets
}

func TestWritePDF(t *testing.T) {
	sheets := testSheets(t, 2)
	path := filepath.Join(t.TempDir(), "sheets.pdf")

	if err := export.WritePDF(path, sheets, testSpec(), nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("expected a PDF header, got %q", data[:8])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after export")
	}
	// one composite page plus two channel pages per sheet
	if n := export.PageCount(sheets); n != 6 {
		t.Errorf("expected 6 pages, got %d", n)
	}
}

func TestWritePDFWithMetadata(t *testing.T) {
	sheets := testSheets(t, 1)
	doc := &sheetmeta.Document{
		Video:    "clip.mp4",
		Interval: 2,
		Sheets: []sheetmeta.Sheet{{
			Page: 1, Pages: 1, Rows: 3, Columns: 2,
			FrameStart: 0, FrameCount: 6,
			CellWidth: 87, CellHeight: 87, Margin: 10, Spacing: 5,
			Interval: 2,
		}},
	}
	path := filepath.Join(t.TempDir(), "sheets.pdf")
	if err := export.WritePDF(path, sheets, testSpec(), doc); err != nil {
		t.Fatal(err)
	}

	short := &sheetmeta.Document{Interval: 2}
	if err := export.WritePDF(path, testSheets(t, 2), testSpec(), short); err == nil {
		t.Error("expected error for metadata covering the wrong sheet count")
	}
}

func TestWritePDFNoSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheets.pdf")
	if err := export.WritePDF(path, nil, testSpec(), nil); !errors.Is(err, export.ErrNoSheets) {
		t.Fatalf("expected ErrNoSheets, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("export wrote a file despite having no sheets")
	}
}

func TestWritePDFFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "sheets.pdf")
	if err := export.WritePDF(path, testSheets(t, 1), testSpec(), nil); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("partial export left at the final path")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after failed export")
	}
}
