// Package ffkit runs ffmpeg and ffprobe as child processes for decoding
// video frames and encoding frame sequences. Paths to the binaries can be
// overridden for testing or packaging.
package ffkit

import (
	"bytes"
	"sort"
	"strings"
)

// FFmpegPath to ffmpeg binary. Will be used as name to exec.Command.
var FFmpegPath = "ffmpeg"

// FFprobePath to ffprobe binary. Will be used as name to exec.Command.
var FFprobePath = "ffprobe"

// LineBuffer is an io.Writer that splits writes into lines, keeps the last
// n lines and optionally calls a function for each complete line. Used to
// retain the tail of ffmpeg stderr for error messages and warning scans.
type LineBuffer struct {
	LineFn func(line string)

	buf     bytes.Buffer
	lines   []string
	current int
}

// NewLineBuffer creates a line buffer keeping the last limit lines.
func NewLineBuffer(limit int) *LineBuffer {
	return &LineBuffer{lines: make([]string, limit)}
}

func (lb *LineBuffer) Write(p []byte) (int, error) {
	lb.buf.Write(p)
	b := lb.buf.Bytes()
	pos := 0
	for {
		i := bytes.IndexAny(b[pos:], "\n\r")
		if i < 0 {
			break
		}
		lb.addLine(string(b[pos : pos+i+1]))
		pos += i + 1
	}
	lb.buf.Reset()
	lb.buf.Write(b[pos:])
	return len(p), nil
}

// Close flushes any partial line left in the buffer.
func (lb *LineBuffer) Close() error {
	if lb.buf.Len() > 0 {
		lb.addLine(lb.buf.String())
	}
	lb.buf.Reset()
	return nil
}

func (lb *LineBuffer) addLine(line string) {
	lb.lines[lb.current] = line
	lb.current = (lb.current + 1) % len(lb.lines)
	if lb.LineFn != nil {
		lb.LineFn(line)
	}
}

// Lines returns the buffered lines, oldest first.
func (lb *LineBuffer) Lines() []string {
	var ls []string
	for i := 0; i < len(lb.lines); i++ {
		if l := lb.lines[(lb.current+i)%len(lb.lines)]; l != "" {
			ls = append(ls, l)
		}
	}
	return ls
}

func (lb *LineBuffer) String() string {
	return strings.Join(lb.Lines(), "")
}

// sortedArgs turns an option map into "-key value" args in stable sorted
// order so built command lines are deterministic.
func sortedArgs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(m)*2)
	for _, k := range keys {
		opt := k
		if !strings.HasPrefix(opt, "-") {
			opt = "-" + opt
		}
		args = append(args, opt, m[k])
	}
	return args
}
