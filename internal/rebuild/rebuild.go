// Package rebuild turns exported contact sheets back into video. Sheet
// geometry comes from the sidecar metadata, cells are sliced out in
// reading order and re-encoded with each frame held for its original
// sampling interval.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"image"
	imgdraw "image/draw"
	"io"
	"math"
	"sort"

	"github.com/alvinashiatey/videoToRISO/internal/ffkit"
	"github.com/alvinashiatey/videoToRISO/internal/sheetmeta"
)

var (
	// ErrMissingPages means the supplied sheet images do not cover every
	// page the metadata describes.
	ErrMissingPages = errors.New("missing sheet pages")
	// ErrGeometryMismatch means a sheet image is too small for the cell
	// grid its metadata claims.
	ErrGeometryMismatch = errors.New("sheet does not match its geometry")
)

// SliceSheet cuts the frame cells out of one sheet image, in reading
// order. Only the FrameCount leading cells are returned; trailing cells of
// a partially filled page are empty paper.
func SliceSheet(sheet image.Image, meta sheetmeta.Sheet) ([]*image.NRGBA, error) {
	b := sheet.Bounds()
	needW := meta.Margin + meta.Columns*meta.CellWidth + (meta.Columns-1)*meta.Spacing
	needH := meta.Margin + meta.Rows*meta.CellHeight + (meta.Rows-1)*meta.Spacing
	if b.Dx() < needW || b.Dy() < needH {
		return nil, fmt.Errorf("%w: page %d needs %dx%d, image is %dx%d",
			ErrGeometryMismatch, meta.Page, needW, needH, b.Dx(), b.Dy())
	}
	if meta.FrameCount > meta.Rows*meta.Columns {
		return nil, fmt.Errorf("%w: page %d claims %d frames in a %dx%d grid",
			ErrGeometryMismatch, meta.Page, meta.FrameCount, meta.Rows, meta.Columns)
	}

	frames := make([]*image.NRGBA, 0, meta.FrameCount)
	for k := 0; k < meta.FrameCount; k++ {
		col, row := k%meta.Columns, k/meta.Columns
		x := b.Min.X + meta.Margin + col*(meta.CellWidth+meta.Spacing)
		y := b.Min.Y + meta.Margin + row*(meta.CellHeight+meta.Spacing)

		cell := image.NewNRGBA(image.Rect(0, 0, meta.CellWidth, meta.CellHeight))
		imgdraw.Draw(cell, cell.Bounds(), sheet, image.Point{X: x, Y: y}, imgdraw.Src)
		frames = append(frames, cell)
	}
	return frames, nil
}

// Frames slices every page of a document, keyed by 1-based page number,
// and concatenates the cells in page order. All described pages must be
// present.
func Frames(doc *sheetmeta.Document, pages map[int]image.Image) ([]*image.NRGBA, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var missing []int
	for _, meta := range doc.Sheets {
		if _, ok := pages[meta.Page]; !ok {
			missing = append(missing, meta.Page)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, fmt.Errorf("%w: %v", ErrMissingPages, missing)
	}

	var frames []*image.NRGBA
	for _, meta := range doc.Sheets {
		cells, err := SliceSheet(pages[meta.Page], meta)
		if err != nil {
			return nil, err
		}
		frames = append(frames, cells...)
	}
	return frames, nil
}

// Settings control re-encoding. HoldSeconds is how long each sliced frame
// stays on screen, normally the original sampling interval.
type Settings struct {
	FPS         float64
	HoldSeconds float64
}

// Validate rejects settings that would produce no output.
func (s Settings) Validate() error {
	if s.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", s.FPS)
	}
	if s.HoldSeconds <= 0 {
		return fmt.Errorf("hold duration must be positive, got %v", s.HoldSeconds)
	}
	return nil
}

// HoldFrames is how many encoded frames one sliced frame spans, at least 1.
func (s Settings) HoldFrames() int {
	n := int(math.Round(s.HoldSeconds * s.FPS))
	if n < 1 {
		n = 1
	}
	return n
}

// Encode writes frames to an H.264 video at outPath, replicating each
// frame for its hold duration. All frames must share one size.
func Encode(ctx context.Context, frames []*image.NRGBA, settings Settings, outPath string) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	w, h := frames[0].Bounds().Dx(), frames[0].Bounds().Dy()
	for i, f := range frames {
		if f.Bounds().Dx() != w || f.Bounds().Dy() != h {
			return fmt.Errorf("frame %d is %v, want %dx%d", i, f.Bounds(), w, h)
		}
	}
	// libx264 requires even dimensions for yuv420p
	vf := fmt.Sprintf("crop=%d:%d:0:0", w&^1, h&^1)

	pr, pw := io.Pipe()
	cmd := &ffkit.Cmd{
		Context:     ctx,
		Flags:       []string{"-y"},
		InputFormat: "rawvideo",
		InputOptions: map[string]string{
			"pix_fmt":   "rgb24",
			"s":         fmt.Sprintf("%dx%d", w, h),
			"framerate": fmt.Sprintf("%g", settings.FPS),
		},
		Input:       pr,
		VideoFilter: vf,
		OutputOptions: map[string]string{
			"c:v":     "libx264",
			"pix_fmt": "yuv420p",
		},
		Output: outPath,
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		pw.CloseWithError(streamFrames(pw, frames, settings.HoldFrames()))
	}()
	err := cmd.Wait()
	// unblocks the writer if the encoder stopped reading early
	pr.Close()
	return err
}

func streamFrames(w io.Writer, frames []*image.NRGBA, hold int) error {
	for _, f := range frames {
		raw := rgb24(f)
		for n := 0; n < hold; n++ {
			if _, err := w.Write(raw); err != nil {
				return err
			}
		}
	}
	return nil
}

// rgb24 flattens an NRGBA frame to the packed rgb24 layout ffmpeg reads.
func rgb24(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}
	return out
}
