// Package toolproc owns tool-server child processes and their stdio pipes.
// It frames stdout as newline-delimited lines, keeps a bounded tail of
// stderr for diagnostics, and knows how to stop a child cleanly.
package toolproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// maxLineBytes bounds a single stdout line. Tool results can carry whole
// ledgers, so this is generous.
const maxLineBytes = 4 * 1024 * 1024

// stderrTailBytes bounds how much stderr we keep for diagnostics.
const stderrTailBytes = 4096

// Command describes how to launch a tool server.
type Command struct {
	Argv []string
	Dir  string
	Env  map[string]string
}

// ErrReadTimeout is returned by ReadLine when no line arrives in time.
var ErrReadTimeout = errors.New("timed out waiting for tool server output")

// ExitError reports that the child's stdout closed while a line was still
// expected. StderrTail carries the child's last stderr output so the caller
// can surface why it died.
type ExitError struct {
	Err        error
	StderrTail string
}

func (e *ExitError) Error() string {
	msg := "tool server exited unexpectedly"
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.StderrTail != "" {
		msg = fmt.Sprintf("%s (stderr: %s)", msg, e.StderrTail)
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Proc is a running tool-server child process.
type Proc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines chan string

	readersWG sync.WaitGroup
	done      chan struct{} // closed after Wait returns
	waitErr   error

	stderrMu   sync.Mutex
	stderrTail []byte

	writeMu sync.Mutex

	termMu     sync.Mutex
	terminated bool
}

// Start launches the tool server and begins draining its pipes.
// It fails fast when the working directory is missing or the binary
// cannot be executed.
func Start(ctx context.Context, spec Command) (*Proc, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("tool server command is empty")
	}
	if spec.Dir != "" {
		info, err := os.Stat(spec.Dir)
		if err != nil {
			return nil, fmt.Errorf("tool server directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("tool server directory %s is not a directory", spec.Dir)
		}
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	// Own process group so Terminate can signal the child and anything
	// it forked in one go.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting tool server %s: %w", spec.Argv[0], err)
	}

	p := &Proc{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}

	p.readersWG.Add(2)
	go p.readLines(stdout)
	go p.drainStderr(stderr)
	go func() {
		p.readersWG.Wait()
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *Proc) readLines(r io.Reader) {
	defer p.readersWG.Done()
	defer close(p.lines)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
}

func (p *Proc) drainStderr(r io.Reader) {
	defer p.readersWG.Done()

	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.stderrMu.Lock()
			p.stderrTail = append(p.stderrTail, buf[:n]...)
			if len(p.stderrTail) > stderrTailBytes {
				p.stderrTail = p.stderrTail[len(p.stderrTail)-stderrTailBytes:]
			}
			p.stderrMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// StderrTail returns the last stderr output the child produced.
func (p *Proc) StderrTail() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()
	return strings.TrimSpace(string(p.stderrTail))
}

// WriteLine sends one line to the child's stdin.
func (p *Proc) WriteLine(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("writing to tool server: %w", err)
	}
	return nil
}

// ReadLine returns the next stdout line. A timeout of 0 blocks until a line
// arrives or stdout closes. When stdout closes, the returned *ExitError
// includes the child's exit status and stderr tail.
func (p *Proc) ReadLine(timeout time.Duration) (string, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", p.exitError()
		}
		return line, nil
	case <-deadline:
		return "", ErrReadTimeout
	}
}

func (p *Proc) exitError() error {
	// Give Wait a moment to collect the exit status. A child that closed
	// stdout but kept stderr open won't be reaped yet; report without it.
	var waitErr error
	select {
	case <-p.done:
		waitErr = p.waitErr
	case <-time.After(2 * time.Second):
	}
	return &ExitError{Err: waitErr, StderrTail: p.StderrTail()}
}

// Done is closed once the child has been reaped.
func (p *Proc) Done() <-chan struct{} { return p.done }

// Terminate stops the child: close stdin, SIGTERM the process group, and
// escalate to SIGKILL after the grace period. Safe to call repeatedly;
// later calls return nil without signaling again.
func (p *Proc) Terminate(grace time.Duration) error {
	p.termMu.Lock()
	if p.terminated {
		p.termMu.Unlock()
		return nil
	}
	p.terminated = true
	p.termMu.Unlock()

	p.stdin.Close()

	select {
	case <-p.done:
		return nil
	default:
	}

	pgid := -p.cmd.Process.Pid
	_ = unix.Kill(pgid, unix.SIGTERM)

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	_ = unix.Kill(pgid, unix.SIGKILL)
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}
