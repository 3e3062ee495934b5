package wire

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

// Direction tells a control observer which way bytes flowed.
type Direction int

const (
	// DirCommand is client-to-server traffic (commands).
	DirCommand Direction = iota

	// DirReply is server-to-client traffic (replies).
	DirReply
)

// ControlStream frames commands and replies over a control connection.
//
// Observers registered with Observe see the raw wire bytes split by
// direction. They are called synchronously in registration order and must
// not retain the byte slice past the call.
type ControlStream struct {
	conn      net.Conn
	reader    *bufio.Reader
	observers []*controlObserver
}

type controlObserver struct {
	fn func(Direction, []byte)
}

// NewControlStream wraps an established control connection. If reader is
// nil a new buffered reader is created; passing the connection's long-lived
// reader keeps buffered bytes intact when the connection is pooled and
// reused across sessions.
func NewControlStream(conn net.Conn, reader *bufio.Reader) *ControlStream {
	if reader == nil {
		reader = bufio.NewReader(conn)
	}
	return &ControlStream{conn: conn, reader: reader}
}

// Observe registers an observer and returns a function that removes exactly
// that observer. Removal keeps the relative order of the others.
func (s *ControlStream) Observe(fn func(Direction, []byte)) (remove func()) {
	obs := &controlObserver{fn: fn}
	s.observers = append(s.observers, obs)
	return func() {
		for i, o := range s.observers {
			if o == obs {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *ControlStream) notify(dir Direction, p []byte) {
	for _, o := range s.observers {
		o.fn(dir, p)
	}
}

// RemoteHost returns the host part of the connection's remote address,
// used to repair degenerate passive-mode replies.
func (s *ControlStream) RemoteHost() string {
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		return ""
	}
	return host
}

// WriteCommand sends one command. The context's deadline, if any, bounds
// the write.
func (s *ControlStream) WriteCommand(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := applyDeadline(s.conn, ctx); err != nil {
		return err
	}

	line := []byte(cmd.String() + "\r\n")
	if _, err := s.conn.Write(line); err != nil {
		return err
	}
	s.notify(DirCommand, line)
	return nil
}

// ReadReply reads one complete reply, handling multi-line continuation.
//
// Single-line format: "220 Welcome\r\n". Multi-line replies open with
// "nnn-" and end at a line starting with "nnn " (RFC 959 §4.2).
func (s *ControlStream) ReadReply(ctx context.Context) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if err := applyDeadline(s.conn, ctx); err != nil {
		return Reply{}, err
	}

	line, err := s.readLine()
	if err != nil {
		return Reply{}, err
	}

	if len(line) < 4 {
		return Reply{}, &ProtocolError{Line: line, Reason: "reply line too short"}
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil || code < 100 || code > 599 {
		return Reply{}, &ProtocolError{Line: line, Reason: "invalid reply code"}
	}

	if line[3] == ' ' {
		return Reply{Code: code, Message: line[4:]}, nil
	}
	if line[3] != '-' {
		return Reply{}, &ProtocolError{Line: line, Reason: "invalid reply separator"}
	}

	messages := []string{line[4:]}
	prefix := line[:3]
	for {
		line, err = s.readLine()
		if err != nil {
			return Reply{}, err
		}

		// Continuation lines may omit the code entirely.
		if !strings.HasPrefix(line, prefix) {
			messages = append(messages, line)
			continue
		}
		if len(line) < 4 {
			return Reply{}, &ProtocolError{Line: line, Reason: "truncated continuation line"}
		}

		messages = append(messages, line[4:])
		if line[3] == ' ' {
			return Reply{Code: code, Message: strings.Join(messages, "\n")}, nil
		}
		if line[3] != '-' {
			return Reply{}, &ProtocolError{Line: line, Reason: "invalid continuation separator"}
		}
	}
}

// readLine reads a raw CRLF-terminated line, notifying observers before
// the terminator is stripped.
func (s *ControlStream) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	s.notify(DirReply, []byte(line))
	return strings.TrimRight(line, "\r\n"), nil
}

func applyDeadline(conn net.Conn, ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		return conn.SetDeadline(deadline)
	}
	return conn.SetDeadline(time.Time{})
}
