// videoToRISO samples frames from a video, composes them into printable
// contact sheets, separates each sheet into RISO ink masters and exports
// the lot as a labeled PDF. The rebuild command reverses the process,
// slicing exported sheets back into a video.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/alvinashiatey/videoToRISO/internal/compose"
	"github.com/alvinashiatey/videoToRISO/internal/dither"
	"github.com/alvinashiatey/videoToRISO/internal/export"
	"github.com/alvinashiatey/videoToRISO/internal/layout"
	"github.com/alvinashiatey/videoToRISO/internal/rebuild"
	"github.com/alvinashiatey/videoToRISO/internal/separate"
	"github.com/alvinashiatey/videoToRISO/internal/sheetmeta"
	"github.com/alvinashiatey/videoToRISO/internal/source"
)

var debugFlag bool
var verboseFlag bool

func verbosef(s string, args ...interface{}) {
	if verboseFlag {
		fmt.Printf(s, args...)
	}
}

func debugf(s string, args ...interface{}) {
	if debugFlag {
		fmt.Printf(s, args...)
	}
}

// channelSet is a flag.Value for -channels, e.g. "cmyk", "rgb" or "ck".
type channelSet struct {
	set []separate.Channel
}

func (c *channelSet) String() string {
	letters := map[separate.Channel]string{
		separate.Red: "r", separate.Green: "g", separate.Blue: "b",
		separate.Cyan: "c", separate.Magenta: "m", separate.Yellow: "y", separate.Black: "k",
	}
	var out strings.Builder
	for _, ch := range c.set {
		out.WriteString(letters[ch])
	}
	return out.String()
}

func (c *channelSet) Set(s string) error {
	set, err := separate.ParseSet(s)
	if err != nil {
		return err
	}
	c.set = set
	return nil
}

// effect is a flag.Value for -effect, a dither algorithm by name.
type effect struct {
	algo dither.Algorithm
}

func (e *effect) String() string {
	return e.algo.String()
}

func (e *effect) Set(s string) error {
	algo, err := dither.ParseAlgorithm(s)
	if err != nil {
		return err
	}
	e.algo = algo
	return nil
}

func generateCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)

	channels := channelSet{set: separate.CMYKChannels}
	eff := effect{algo: dither.Halftone}
	out := fs.String("o", "", "Output PDF path (default <video>_sheets.pdf)")
	paper := fs.String("paper", "letter", "Paper size: "+strings.Join(layout.PaperNames(), ", "))
	dpi := fs.Int("dpi", 300, "Print resolution")
	margin := fs.Float64("margin", 0.5, "Page margin in inches")
	spacing := fs.Float64("spacing", 0.1, "Thumbnail spacing in inches")
	columns := fs.Int("columns", 3, "Thumbnails per row")
	interval := fs.Float64("interval", 2, "Seconds between sampled frames")
	cell := fs.Int("cell", 0, "Dither cell size in pixels (halftone, pixelate)")
	threshold := fs.Int("threshold", 128, "Ink threshold 0-255")
	angle := fs.Float64("angle", 0, "Halftone screen angle in degrees")
	period := fs.Int("period", 4, "Scanline period in pixels")
	fs.Var(&channels, "channels", `Ink channels: "cmyk", "rgb" or a subset like "ck"`)
	fs.Var(&eff, "effect", "Dither effect: none, floyd-steinberg, threshold, halftone, pixelate, scanlines")
	fs.BoolVar(&verboseFlag, "v", false, "Verbose")
	fs.BoolVar(&debugFlag, "d", false, "Debug")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one video path, got %d arguments", fs.NArg())
	}
	path := fs.Arg(0)
	if *out == "" {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		*out = base + "_sheets.pdf"
	}

	p, err := layout.LookupPaper(*paper)
	if err != nil {
		return err
	}
	spec, err := layout.NewSpec(p, *dpi, *margin, *spacing, *columns)
	if err != nil {
		return err
	}

	if *threshold < 0 || *threshold > 255 {
		return fmt.Errorf("threshold must be between 0 and 255, got %d", *threshold)
	}
	if *cell < 0 {
		return fmt.Errorf("cell size must be non-negative, got %d", *cell)
	}

	params := dither.Default(eff.algo)
	if *cell > 0 {
		params.CellSize = *cell
	}
	params.Threshold = uint8(*threshold)
	params.Angle = *angle
	params.Period = *period

	cfg := compose.Config{
		Spec:     spec,
		Channels: channels.set,
		Dither:   params,
		Progress: func(e compose.Event) {
			switch e.Kind {
			case compose.EventFrameSampled:
				verbosef("frame %d @ %.1fs\n", e.FrameIndex, e.Timestamp)
			case compose.EventPageSealed:
				verbosef("sheet %d sealed\n", e.PageIndex+1)
			}
		},
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, err := source.Open(ctx, path)
	if err != nil {
		return err
	}
	verbosef("%s: %dx%d %.1ffps %.1fs, expecting %d frames\n",
		path, src.Width, src.Height, src.FrameRate, src.Duration,
		source.ExpectedFrames(src.Duration, *interval))

	cp, err := compose.New(cfg, src.AspectRatio())
	if err != nil {
		return err
	}
	grid := cp.Grid()
	debugf("grid %dx%d cells %dx%dpx, %d per sheet\n",
		grid.Rows, grid.Columns, grid.ThumbWidth, grid.ThumbHeight, grid.Capacity())

	seq, err := src.Frames(ctx, *interval)
	if err != nil {
		return err
	}
	defer seq.Close()

	sheets, err := cp.Run(ctx, seq)
	if err != nil {
		return err
	}

	hash, err := sheetmeta.HashFile(path)
	if err != nil {
		return err
	}
	doc := &sheetmeta.Document{
		Video:        filepath.Base(path),
		VideoSHA256:  hash,
		SourceWidth:  src.Width,
		SourceHeight: src.Height,
		Interval:     *interval,
		FPS:          src.FrameRate,
		DPI:          *dpi,
	}
	for _, sheet := range sheets {
		doc.Sheets = append(doc.Sheets, sheetmeta.Sheet{
			Page:       sheet.Index + 1,
			Pages:      len(sheets),
			Rows:       grid.Rows,
			Columns:    grid.Columns,
			FrameStart: sheet.FrameStart,
			FrameCount: sheet.FrameCount,
			CellWidth:  grid.ThumbWidth,
			CellHeight: grid.ThumbHeight,
			Margin:     spec.MarginPx,
			Spacing:    spec.SpacingPx,
			Interval:   *interval,
		})
	}

	if err := export.WritePDF(*out, sheets, spec, doc); err != nil {
		return err
	}
	if err := doc.WriteFile(*out); err != nil {
		return err
	}

	for _, w := range seq.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Printf("%s: %d frames on %d sheets, %d pages\n",
		*out, seq.Count(), len(sheets), export.PageCount(sheets))
	return nil
}

func rebuildCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)

	out := fs.String("o", "rebuilt.mp4", "Output video path")
	meta := fs.String("meta", "", "Sidecar metadata path (default derived from the first sheet)")
	fps := fs.Float64("fps", 24, "Output frame rate")
	hold := fs.Float64("hold", 0, "Seconds each frame is held (default the sampling interval)")
	fs.BoolVar(&verboseFlag, "v", false, "Verbose")
	fs.BoolVar(&debugFlag, "d", false, "Debug")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("expected sheet images in page order")
	}
	if *meta == "" {
		base := strings.TrimSuffix(fs.Arg(0), filepath.Ext(fs.Arg(0)))
		*meta = sheetmeta.SidecarPath(base)
	}

	f, err := os.Open(*meta)
	if err != nil {
		return err
	}
	doc, err := sheetmeta.Read(f)
	f.Close()
	if err != nil {
		return err
	}

	pages := map[int]image.Image{}
	for i, path := range fs.Args() {
		pf, err := os.Open(path)
		if err != nil {
			return err
		}
		img, _, err := image.Decode(pf)
		pf.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		pages[i+1] = img
		verbosef("page %d: %s %v\n", i+1, path, img.Bounds().Size())
	}

	frames, err := rebuild.Frames(doc, pages)
	if err != nil {
		return err
	}

	settings := rebuild.Settings{FPS: *fps, HoldSeconds: *hold}
	if settings.HoldSeconds == 0 {
		settings.HoldSeconds = doc.Interval
	}
	debugf("%d frames, %d encoded frames each\n", len(frames), settings.HoldFrames())

	if err := rebuild.Encode(ctx, frames, settings, *out); err != nil {
		return err
	}
	fmt.Printf("%s: %d frames held %.1fs at %gfps\n", *out, len(frames), settings.HoldSeconds, settings.FPS)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  %[1]s [flags] <video>            compose contact sheets from a video
  %[1]s rebuild [flags] <sheets>   rebuild a video from exported sheets

run "%[1]s <command> -h" for flags
`, filepath.Base(os.Args[0]))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[1:]
	run := generateCmd
	if len(args) > 0 {
		switch args[0] {
		case "rebuild":
			run = rebuildCmd
			args = args[1:]
		case "generate":
			args = args[1:]
		case "-h", "-help", "--help":
			usage()
			return
		}
	}

	if err := run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
