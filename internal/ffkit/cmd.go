package ffkit

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Cmd is a single-input single-output ffmpeg invocation.
//
// Input and Output are either a path (string) or a pipe (io.Reader for
// input on stdin, io.Writer for output on stdout). This covers the two
// shapes the pipeline needs: decode a file to a raw frame stream, and
// encode a raw frame stream to a file.
type Cmd struct {
	Context context.Context
	Flags   []string

	InputFormat  string
	InputOptions map[string]string
	InputFlags   []string
	Input        interface{} // string or io.Reader

	VideoFilter string

	OutputFormat  string
	OutputOptions map[string]string
	OutputFlags   []string
	Output        interface{} // string or io.Writer

	StderrBufferNrLines int
	Stderr              io.Writer
	StderrLineFn        func(line string)

	cmd        *exec.Cmd
	stderrLast *LineBuffer
}

// Args returns the argument list the command will run with.
func (c *Cmd) Args() []string {
	var args []string
	if _, ok := c.Input.(io.Reader); !ok {
		args = append(args, "-nostdin")
	}
	args = append(args, "-hide_banner")
	args = append(args, c.Flags...)

	args = append(args, sortedArgs(c.InputOptions)...)
	args = append(args, c.InputFlags...)
	if c.InputFormat != "" {
		args = append(args, "-f", c.InputFormat)
	}
	args = append(args, "-i")
	switch c.Input.(type) {
	case string:
		args = append(args, c.Input.(string))
	case io.Reader:
		args = append(args, "pipe:0")
	default:
		panic(fmt.Sprintf("unknown input type %#v should be string or io.Reader", c.Input))
	}

	if c.VideoFilter != "" {
		args = append(args, "-vf", c.VideoFilter)
	}

	args = append(args, sortedArgs(c.OutputOptions)...)
	args = append(args, c.OutputFlags...)
	if c.OutputFormat != "" {
		args = append(args, "-f", c.OutputFormat)
	}
	switch c.Output.(type) {
	case string:
		args = append(args, c.Output.(string))
	case io.Writer:
		args = append(args, "pipe:1")
	default:
		panic(fmt.Sprintf("unknown output type %#v should be string or io.Writer", c.Output))
	}

	return args
}

// Start the ffmpeg process. Reading from an io.Reader input means the
// caller must not close it until Wait returns.
func (c *Cmd) Start() error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	c.cmd = exec.CommandContext(ctx, FFmpegPath, c.Args()...)

	if r, ok := c.Input.(io.Reader); ok {
		c.cmd.Stdin = r
	}
	if w, ok := c.Output.(io.Writer); ok {
		c.cmd.Stdout = w
	}

	nrLines := c.StderrBufferNrLines
	if nrLines == 0 {
		nrLines = 100
	}
	c.stderrLast = NewLineBuffer(nrLines)
	c.stderrLast.LineFn = c.StderrLineFn
	if c.Stderr != nil {
		c.cmd.Stderr = io.MultiWriter(c.stderrLast, c.Stderr)
	} else {
		c.cmd.Stderr = c.stderrLast
	}

	return c.cmd.Start()
}

// Kill terminates a started process. Errors from an already exited
// process are returned as-is; Wait still reaps it either way.
func (c *Cmd) Kill() error {
	return c.cmd.Process.Kill()
}

// Wait for the process to finish.
// Note that the error message might include command details.
func (c *Cmd) Wait() error {
	err := c.cmd.Wait()
	c.stderrLast.Close()
	if err != nil {
		return fmt.Errorf("%w: %s", err, c.stderrLast.String())
	}
	return nil
}

// Run starts and waits for ffmpeg to finish.
func (c *Cmd) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

// StderrBuffer returns the last stderr lines as a string.
func (c *Cmd) StderrBuffer() string {
	return c.stderrLast.String()
}
