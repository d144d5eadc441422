// Package source opens a video file and samples decoded frames at a fixed
// time interval. Metadata comes from ffprobe; frames stream from a single
// ffmpeg process as raw rgb24 over a pipe, so no frame is buffered beyond
// the one being consumed.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/alvinashiatey/videoToRISO/internal/ffkit"
)

var (
	// ErrSourceUnreadable means the file could not be opened or probed at
	// all. Fatal for the run.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrInvalidInterval means the sampling interval is not positive.
	ErrInvalidInterval = errors.New("sampling interval must be positive")
)

// Source is an opened video with its probed metadata. Aspect ratio is
// derived, never stored.
type Source struct {
	Path        string
	Width       int
	Height      int
	FrameRate   float64
	TotalFrames int
	Duration    float64 // seconds
}

// AspectRatio is width over height.
func (s *Source) AspectRatio() float64 {
	return float64(s.Width) / float64(s.Height)
}

// Open probes a video file. A file without a decodable video stream is
// unreadable.
func Open(ctx context.Context, path string) (*Source, error) {
	probe := &ffkit.ProbeCmd{Context: ctx, Input: path}
	if err := probe.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSourceUnreadable, path, err)
	}
	vs, ok := probe.Result.FirstVideoStream()
	if !ok || vs.Width <= 0 || vs.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: no video stream", ErrSourceUnreadable, path)
	}

	s := &Source{
		Path:        path,
		Width:       vs.Width,
		Height:      vs.Height,
		FrameRate:   vs.FrameRate(),
		TotalFrames: vs.FrameCount(),
		Duration:    probe.Result.Duration(),
	}
	if s.TotalFrames == 0 && s.FrameRate > 0 {
		s.TotalFrames = int(s.Duration * s.FrameRate)
	}
	return s, nil
}

// Frame is one sampled frame. Ownership transfers to the consumer; the
// sampler keeps no reference after Next returns.
type Frame struct {
	Index     int
	Timestamp float64 // seconds
	Image     *image.NRGBA
}

// selectExpr picks the first frame, then the first frame at least interval
// seconds after the previously selected one. ffmpeg expression commas must
// be escaped inside -vf.
func selectExpr(interval float64) string {
	return fmt.Sprintf(`select=if(isnan(prev_selected_t)\,1\,gte(t-prev_selected_t\,%f))`, interval)
}

// ExpectedFrames is the number of boundary frames for a duration: one per
// k*interval while k*interval <= duration.
func ExpectedFrames(duration, interval float64) int {
	if interval <= 0 || duration < 0 {
		return 0
	}
	return int(duration/interval) + 1
}

// FrameSeq is a lazy finite frame sequence. Not restartable; open the
// source again to sample again.
type FrameSeq struct {
	scan *frameScanner

	cmd      *ffkit.Cmd
	pipe     *io.PipeReader
	interval float64
	duration float64

	// done is closed by the reaper goroutine after waitErr is recorded;
	// only that goroutine calls cmd.Wait.
	done     chan struct{}
	waitErr  error
	noteOnce sync.Once

	mu       sync.Mutex
	warnings []string
}

// Frames starts sampling at the given interval. The returned sequence must
// be drained or closed, otherwise the decoder process is left running
// until the context is canceled.
func (s *Source) Frames(ctx context.Context, intervalSeconds float64) (*FrameSeq, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidInterval, intervalSeconds)
	}

	pr, pw := io.Pipe()
	seq := &FrameSeq{
		scan:     newFrameScanner(pr, s.Width, s.Height),
		pipe:     pr,
		interval: intervalSeconds,
		duration: s.Duration,
		done:     make(chan struct{}),
	}
	seq.cmd = &ffkit.Cmd{
		Context:     ctx,
		Input:       s.Path,
		VideoFilter: selectExpr(intervalSeconds),
		OutputOptions: map[string]string{
			"pix_fmt":  "rgb24",
			"fps_mode": "passthrough",
		},
		OutputFormat: "rawvideo",
		Output:       pw,
		StderrLineFn: seq.collectDecodeWarning,
	}
	if err := seq.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSourceUnreadable, s.Path, err)
	}
	go func() {
		seq.waitErr = seq.cmd.Wait()
		close(seq.done)
		// unblock the reader after the error is recorded
		pw.Close()
	}()
	return seq, nil
}

// decode failure markers ffmpeg prints while continuing with the next
// frame
var decodeWarningMarkers = []string{
	"error while decoding",
	"corrupt decoded frame",
	"concealing",
	"Invalid data found",
}

func (seq *FrameSeq) collectDecodeWarning(line string) {
	for _, marker := range decodeWarningMarkers {
		if strings.Contains(line, marker) {
			seq.mu.Lock()
			seq.warnings = append(seq.warnings, strings.TrimSpace(line))
			seq.mu.Unlock()
			return
		}
	}
}

// Next returns the next sampled frame, or io.EOF when the sequence is
// exhausted. A truncated trailing frame is dropped and recorded as a
// warning, not an error.
func (seq *FrameSeq) Next() (*Frame, error) {
	img, err := seq.scan.next()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			seq.mu.Lock()
			seq.warnings = append(seq.warnings,
				fmt.Sprintf("frame %d: truncated, skipped", seq.scan.count))
			seq.mu.Unlock()
			err = io.EOF
		}
		if errors.Is(err, io.EOF) {
			if waitErr := seq.reaped(); waitErr != nil {
				if seq.scan.count == 0 {
					return nil, fmt.Errorf("%w: %s", ErrSourceUnreadable, waitErr)
				}
				seq.noteOnce.Do(func() {
					seq.mu.Lock()
					seq.warnings = append(seq.warnings,
						fmt.Sprintf("decoder stopped early: %s", waitErr))
					seq.mu.Unlock()
				})
			}
			return nil, io.EOF
		}
		return nil, err
	}

	index := seq.scan.count - 1
	ts := float64(index) * seq.interval
	if seq.duration > 0 && ts > seq.duration {
		ts = seq.duration
	}
	return &Frame{Index: index, Timestamp: ts, Image: img}, nil
}

// reaped returns the decoder exit error once the reaper goroutine has
// recorded it, nil while the process is still being reaped.
func (seq *FrameSeq) reaped() error {
	if seq.done == nil {
		return nil
	}
	select {
	case <-seq.done:
		return seq.waitErr
	default:
		return nil
	}
}

// Count is the number of complete frames decoded so far.
func (seq *FrameSeq) Count() int {
	return seq.scan.count
}

// Warnings are the recoverable per-frame problems seen so far, reported
// at completion.
func (seq *FrameSeq) Warnings() []string {
	seq.mu.Lock()
	defer seq.mu.Unlock()
	return append([]string(nil), seq.warnings...)
}

// Close abandons the sequence, kills the decoder if it is still running
// and blocks until it has been reaped.
func (seq *FrameSeq) Close() error {
	seq.pipe.Close()
	seq.cmd.Kill()
	<-seq.done
	return nil
}

// frameScanner slices a raw rgb24 byte stream into NRGBA frames.
type frameScanner struct {
	r     io.Reader
	w, h  int
	buf   []byte
	count int
}

func newFrameScanner(r io.Reader, w, h int) *frameScanner {
	return &frameScanner{r: r, w: w, h: h, buf: make([]byte, w*h*3)}
}

func (fs *frameScanner) next() (*image.NRGBA, error) {
	n, err := io.ReadFull(fs.r, fs.buf)
	if err != nil {
		if err == io.EOF || (errors.Is(err, io.ErrClosedPipe) && n == 0) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, fs.w, fs.h))
	for src, dst := 0, 0; src < len(fs.buf); src, dst = src+3, dst+4 {
		img.Pix[dst] = fs.buf[src]
		img.Pix[dst+1] = fs.buf[src+1]
		img.Pix[dst+2] = fs.buf[src+2]
		img.Pix[dst+3] = 255
	}
	fs.count++
	return img, nil
}
