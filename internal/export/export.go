// Package export writes composed sheets and their ink masters to a single
// labeled PDF. Each sheet contributes one composite page followed by one
// page per selected channel, in channel order. The file appears atomically
// at its final path.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/alvinashiatey/videoToRISO/internal/compose"
	"github.com/alvinashiatey/videoToRISO/internal/layout"
	"github.com/alvinashiatey/videoToRISO/internal/sheetmeta"
)

// ErrNoSheets means there is nothing to export.
var ErrNoSheets = errors.New("no sheets to export")

const labelFontPt = 10

// WritePDF renders sheets to a PDF at path. Page size follows the layout
// spec at its print resolution. meta, when non-nil, prints each sheet's
// compact geometry line in the bottom margin so a printed sheet can be
// sliced back into frames later.
func WritePDF(path string, sheets []*compose.Sheet, spec layout.Spec, meta *sheetmeta.Document) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if meta != nil && len(meta.Sheets) != len(sheets) {
		return fmt.Errorf("metadata covers %d sheets, exporting %d", len(meta.Sheets), len(sheets))
	}

	// pixels to points at the spec's print resolution
	pt := func(px int) float64 { return float64(px) * 72 / float64(spec.DPI) }
	pageW, pageH := pt(spec.PaperWidthPx), pt(spec.PaperHeightPx)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", labelFontPt)

	marginPt := pt(spec.MarginPx)
	addPage := func(name, label, footer string, img image.Image) error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
		pdf.ImageOptions(name, 0, 0, pageW, pageH, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		// label above the grid, footer below it, both inside the margin
		pdf.Text(marginPt, marginPt/2, label)
		if footer != "" {
			pdf.Text(marginPt, pageH-marginPt/2, footer)
		}
		return pdf.Error()
	}

	for i, sheet := range sheets {
		footer := ""
		if meta != nil {
			footer = meta.Sheets[i].Compact()
		}
		num := sheet.Index + 1
		err := addPage(
			fmt.Sprintf("sheet%d-composite", num),
			fmt.Sprintf("Sheet %d - Composite", num),
			footer, sheet.Composite)
		if err != nil {
			return err
		}
		for _, ch := range sheet.Channels {
			err := addPage(
				fmt.Sprintf("sheet%d-%s", num, strings.ToLower(ch.Channel.String())),
				fmt.Sprintf("Sheet %d - %s Channel", num, ch.Channel),
				footer, masterImage(ch.Master))
			if err != nil {
				return err
			}
		}
	}

	return writeAtomic(pdf, path)
}

// masterImage renders a density master for print: inked areas come out
// dark on white paper, so luminance is the inverse of density.
func masterImage(master *image.Gray) *image.Gray {
	out := image.NewGray(master.Bounds())
	for i, d := range master.Pix {
		out.Pix[i] = 255 - d
	}
	return out
}

// writeAtomic writes the document to a temporary sibling and renames it
// into place, so a failed export never leaves a partial PDF behind.
func writeAtomic(pdf *fpdf.Fpdf, path string) error {
	tmp := path + ".tmp"
	if err := pdf.OutputFileAndClose(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// PageCount is the number of PDF pages an export of these sheets produces.
func PageCount(sheets []*compose.Sheet) int {
	n := 0
	for _, s := range sheets {
		n += 1 + len(s.Channels)
	}
	return n
}
