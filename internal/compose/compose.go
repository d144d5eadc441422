// Package compose pastes sampled frames onto contact sheet pages and
// drives channel separation and dithering per sealed page. The pipeline is
// single threaded and batch oriented; progress is reported and
// cancellation checked only at frame and page boundaries.
package compose

import (
	"context"
	"errors"
	"fmt"
	"image"
	imgdraw "image/draw"
	"io"

	"golang.org/x/image/draw"

	"github.com/alvinashiatey/videoToRISO/internal/dither"
	"github.com/alvinashiatey/videoToRISO/internal/layout"
	"github.com/alvinashiatey/videoToRISO/internal/separate"
	"github.com/alvinashiatey/videoToRISO/internal/source"
)

// ErrNoFrames means not a single frame was successfully sampled.
var ErrNoFrames = errors.New("no frames extracted")

// FrameSource yields sampled frames until io.EOF. Satisfied by
// *source.FrameSeq.
type FrameSource interface {
	Next() (*source.Frame, error)
}

// EventKind tags a progress event.
type EventKind int

const (
	EventFrameSampled EventKind = iota
	EventPageSealed
	EventDone
	EventFailed
)

// Event is delivered to the progress callback. Never sent mid-transform.
type Event struct {
	Kind       EventKind
	FrameIndex int
	Timestamp  float64
	PageIndex  int
	Err        error
}

// ProgressFn receives events. May be nil.
type ProgressFn func(Event)

// pageState is the lifecycle of one sheet. Transitions are one-directional
// within a run.
type pageState int

const (
	pageEmpty pageState = iota
	pageFilling
	pageSealed
	pageSeparated
	pageDithered
)

// ChannelPage is one ink master of a sheet, in declared channel order.
type ChannelPage struct {
	Channel separate.Channel
	Master  *image.Gray
}

// Sheet is one composed page with its separations.
type Sheet struct {
	Index      int
	Composite  *image.NRGBA
	Channels   []ChannelPage
	FrameStart int
	FrameCount int

	state pageState
}

// Config is validated in full before the first frame is pulled.
type Config struct {
	Spec     layout.Spec
	Channels []separate.Channel
	Dither   dither.Params
	Progress ProgressFn
}

// Validate checks the whole configuration eagerly so a bad parameter never
// surfaces mid-run.
func (c Config) Validate() error {
	if err := c.Spec.Validate(); err != nil {
		return err
	}
	if len(c.Channels) == 0 {
		return separate.ErrNoChannelsSelected
	}
	return c.Dither.Validate()
}

// Composer owns the page being filled. One instance per run.
type Composer struct {
	cfg  Config
	grid *layout.Grid

	sheets  []*Sheet
	current *Sheet
	placed  int
	frames  int
}

// New validates the configuration and computes the grid for the source
// aspect ratio.
func New(cfg Config, aspectRatio float64) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := layout.ComputeGrid(cfg.Spec, aspectRatio)
	if err != nil {
		return nil, err
	}
	return &Composer{cfg: cfg, grid: grid}, nil
}

// Grid exposes the computed placement, e.g. for sidecar metadata.
func (cp *Composer) Grid() *layout.Grid {
	return cp.grid
}

// Run pulls every frame from src, composes pages and produces the sealed,
// separated and (optionally) dithered sheets in page order.
func (cp *Composer) Run(ctx context.Context, src FrameSource) ([]*Sheet, error) {
	if err := cp.fill(ctx, src); err != nil {
		cp.emit(Event{Kind: EventFailed, Err: err})
		return nil, err
	}
	if err := cp.finish(ctx); err != nil {
		cp.emit(Event{Kind: EventFailed, Err: err})
		return nil, err
	}
	cp.emit(Event{Kind: EventDone})
	return cp.sheets, nil
}

func (cp *Composer) fill(ctx context.Context, src FrameSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		cp.emit(Event{Kind: EventFrameSampled, FrameIndex: frame.Index, Timestamp: frame.Timestamp})
		cp.place(frame)
	}

	if cp.frames == 0 {
		return ErrNoFrames
	}
	if cp.current != nil {
		cp.seal()
	}
	return nil
}

// place pastes one frame at the next grid position, sealing and starting
// pages as capacity is reached.
func (cp *Composer) place(frame *source.Frame) {
	if cp.current == nil {
		cp.current = cp.newSheet()
	}
	cp.current.state = pageFilling

	cell := cp.grid.CellRect(cp.placed)
	draw.CatmullRom.Scale(cp.current.Composite, cell, frame.Image, frame.Image.Bounds(), draw.Src, nil)

	cp.placed++
	cp.frames++
	cp.current.FrameCount++

	if cp.placed == cp.grid.Capacity() {
		cp.seal()
	}
}

func (cp *Composer) newSheet() *Sheet {
	s := &Sheet{
		Index:      len(cp.sheets),
		Composite:  blankPage(cp.cfg.Spec),
		FrameStart: cp.frames,
		state:      pageEmpty,
	}
	return s
}

func (cp *Composer) seal() {
	cp.current.state = pageSealed
	cp.sheets = append(cp.sheets, cp.current)
	cp.emit(Event{Kind: EventPageSealed, PageIndex: cp.current.Index})
	cp.current = nil
	cp.placed = 0
}

// finish separates and dithers every sealed page, in page order.
func (cp *Composer) finish(ctx context.Context) error {
	for _, sheet := range cp.sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sheet.state != pageSealed {
			return fmt.Errorf("page %d not sealed before separation", sheet.Index)
		}

		masters, err := separate.Separate(sheet.Composite, cp.cfg.Channels)
		if err != nil {
			return err
		}
		sheet.state = pageSeparated

		for _, ch := range cp.cfg.Channels {
			master := masters[ch]
			if cp.cfg.Dither.Algorithm != dither.None {
				master, err = dither.Apply(cp.cfg.Dither, master)
				if err != nil {
					return err
				}
			}
			sheet.Channels = append(sheet.Channels, ChannelPage{Channel: ch, Master: master})
		}
		sheet.state = pageDithered
	}
	return nil
}

func (cp *Composer) emit(e Event) {
	if cp.cfg.Progress != nil {
		cp.cfg.Progress(e)
	}
}

func blankPage(spec layout.Spec) *image.NRGBA {
	page := image.NewNRGBA(image.Rect(0, 0, spec.PaperWidthPx, spec.PaperHeightPx))
	imgdraw.Draw(page, page.Bounds(), image.White, image.Point{}, imgdraw.Src)
	return page
}
