// Package addr2line manages a long-lived addr2line child process and
// answers address-to-source-location queries over its stdin/stdout pipe.
//
// The spawn-and-correlate shape (find the binary, fork a child, wire its
// pipes, tear it down on close) is grounded on the teacher's cc-helper
// subprocess client (internal/ipc/client.go in the teacher repo):
// SpawnHelper resolves a binary path and starts the child with its own end
// of a duplex channel. addr2line speaks a plain line-based protocol
// instead of cc-helper's length-prefixed frames, so the wire format here
// is new. Unlike the teacher's Close, which waits briefly for a clean exit
// before killing, Close here sends SIGKILL straight away.
package addr2line

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Bridge holds a running `addr2line -fe <image>` child process.
type Bridge struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	root   string
	dead   bool
}

// Open verifies toolPath and imagePath exist, starts `<toolPath> -fe
// <imagePath>`, and wires its stdin/stdout as buffered pipes. root is
// recorded as the absolute directory of imagePath, used later to rebase
// paths addr2line returns (spec.md §4.4.2).
func Open(toolPath, imagePath string) (*Bridge, error) {
	if _, err := os.Stat(toolPath); err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("addr2line tool: %w", err)}
	}
	if _, err := os.Stat(imagePath); err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("image: %w", err)}
	}

	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	cmd := exec.Command(toolPath, "-fe", absImage)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("start %s: %w", toolPath, err)}
	}

	return &Bridge{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		root:   filepath.Dir(absImage),
	}, nil
}

// Root returns the absolute directory of the image this bridge was opened
// against.
func (b *Bridge) Root() string { return b.root }

// Query writes address in lowercase hex to the child's stdin, reads
// exactly two response lines (function name, discarded, then
// "<path>:<line>" or "??:0"), and returns "<normalized-path>:<line>" with
// the line number intact — spec.md §8 scenario 1's alias shape depends on
// the line suffix, so only the path component is lexically normalized; the
// trailing ":<line>" passes through unchanged. ok is false when the
// location is unknown or the query failed for any reason; per spec.md
// §4.4, a pipe-closure failure is sticky: once the child is known dead,
// every subsequent Query returns immediately without touching the pipe.
func (b *Bridge) Query(address uint64) (path string, ok bool) {
	if b.dead {
		return "", false
	}

	if _, err := fmt.Fprintf(b.stdin, "%x\n", address); err != nil {
		b.dead = true
		return "", false
	}

	// function name: discarded
	if _, err := b.stdout.ReadString('\n'); err != nil {
		b.dead = true
		return "", false
	}

	loc, err := b.stdout.ReadString('\n')
	if err != nil {
		b.dead = true
		return "", false
	}
	loc = strings.TrimRight(loc, "\r\n")

	if loc == "" || loc == "??:0" {
		return "", false
	}

	colon := strings.LastIndex(loc, ":")
	if colon < 0 {
		return "", false
	}
	file := loc[:colon]
	line := loc[colon+1:]
	if _, err := strconv.Atoi(line); err != nil {
		return "", false
	}

	return Normalize(file) + ":" + line, true
}

// Close sends SIGKILL to the child, reaps it, and releases the pipes. It
// is safe to call more than once.
func (b *Bridge) Close() error {
	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}
	pid := b.cmd.Process.Pid
	_ = unix.Kill(pid, unix.SIGKILL)
	_ = b.cmd.Wait()
	if err := b.stdin.Close(); err != nil {
		return err
	}
	b.dead = true
	return nil
}

// Error wraps a bridge failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "addr2line " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
