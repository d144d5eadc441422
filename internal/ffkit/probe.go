package ffkit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeStream is the subset of ffprobe stream output this tool reads.
type ProbeStream struct {
	Index        uint   `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

// FrameRate parses the stream frame rate, preferring avg_frame_rate.
// ffprobe reports rates as rationals like "30000/1001".
func (ps ProbeStream) FrameRate() float64 {
	for _, s := range []string{ps.AvgFrameRate, ps.RFrameRate} {
		if r := parseRational(s); r > 0 {
			return r
		}
	}
	return 0
}

// FrameCount parses nb_frames, 0 if the container does not report it.
func (ps ProbeStream) FrameCount() int {
	n, _ := strconv.Atoi(ps.NbFrames)
	return n
}

func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// ProbeFormat is the subset of ffprobe format output this tool reads.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// ProbeResult is a decoded ffprobe run.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// FirstVideoStream finds the first stream with codec type video.
func (pr ProbeResult) FirstVideoStream() (ProbeStream, bool) {
	for _, s := range pr.Streams {
		if s.CodecType == "video" {
			return s, true
		}
	}
	return ProbeStream{}, false
}

// Duration probed container duration in seconds.
func (pr ProbeResult) Duration() float64 {
	v, _ := strconv.ParseFloat(pr.Format.Duration, 64)
	return v
}

// ProbeCmd is a ffprobe invocation for a single input file.
type ProbeCmd struct {
	Context context.Context
	Flags   []string
	Input   string
	Stderr  io.Writer

	Result ProbeResult

	stderrLast *LineBuffer
}

// Args returns the argument list the command will run with.
func (p *ProbeCmd) Args() []string {
	args := []string{
		"-hide_banner",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}
	args = append(args, p.Flags...)
	args = append(args, p.Input)
	return args
}

// Run executes ffprobe and decodes its JSON output into Result.
// Note that the error message might include command details.
func (p *ProbeCmd) Run() error {
	ctx := p.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, FFprobePath, p.Args()...)

	p.stderrLast = NewLineBuffer(20)
	if p.Stderr != nil {
		cmd.Stderr = io.MultiWriter(p.stderrLast, p.Stderr)
	} else {
		cmd.Stderr = p.stderrLast
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	jsonErr := json.NewDecoder(stdout).Decode(&p.Result)
	waitErr := cmd.Wait()
	p.stderrLast.Close()
	if waitErr != nil {
		return fmt.Errorf("%w: %s", waitErr, p.stderrLast.String())
	}
	if jsonErr != nil {
		return fmt.Errorf("decode ffprobe output: %w", jsonErr)
	}
	return nil
}
