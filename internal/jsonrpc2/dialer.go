package jsonrpc2

import (
	"context"
	"io"
	"os/exec"
)

// Dialer produces a ReadWriteCloser that a Stream can be built on top of.
// This mirrors the teacher's `base_service_client` dialer pattern, which
// uses one Dialer implementation for the downstream child process and a
// different one for the editor-facing stdio pipe.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// CmdDialer spawns a child process and exposes its stdin/stdout as a
// ReadWriteCloser, matching `lsp/base_service_client/cmd_dialer.go`. It is
// used to start the downstream JS/TS language server.
type CmdDialer struct {
	Cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	err    error
}

// NewCmdDialer builds a CmdDialer for the given command and starts it
// immediately so stdin/stdout are ready to use.
func NewCmdDialer(ctx context.Context, name string, args ...string) (*CmdDialer, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	d := &CmdDialer{Cmd: cmd, Stdin: stdin, Stdout: stdout}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() {
		d.err = cmd.Wait()
	}()
	return d, nil
}

func (d *CmdDialer) Read(p []byte) (int, error)  { return d.Stdout.Read(p) }
func (d *CmdDialer) Write(p []byte) (int, error) { return d.Stdin.Write(p) }
func (d *CmdDialer) Close() error {
	_ = d.Stdin.Close()
	if d.Cmd.Process != nil {
		_ = d.Cmd.Process.Kill()
	}
	return d.err
}

// Dial returns the CmdDialer itself as the ReadWriteCloser; the process
// is already running by the time Dial is called.
func (d *CmdDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return d, nil
}

// StdDialer wraps an already-open pair of streams (typically the proxy
// process's own stdin/stdout) as a ReadWriteCloser, matching
// `lsp/base_service_client/std_dialer.go`. It is used for the
// editor-facing side of the proxy.
type StdDialer struct {
	In  io.ReadCloser
	Out io.WriteCloser
}

func NewStdDialer(in io.ReadCloser, out io.WriteCloser) *StdDialer {
	return &StdDialer{In: in, Out: out}
}

func (d *StdDialer) Read(p []byte) (int, error)  { return d.In.Read(p) }
func (d *StdDialer) Write(p []byte) (int, error) { return d.Out.Write(p) }
func (d *StdDialer) Close() error {
	inErr := d.In.Close()
	outErr := d.Out.Close()
	if inErr != nil {
		return inErr
	}
	return outErr
}

func (d *StdDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	return d, nil
}
