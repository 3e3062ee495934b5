// Package testutils provides test doubles for the fetch engine: a scripted
// stub FTP server and a mock net.Conn.
package testutils

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handler scripts a stub server's behavior: it is called once per received
// command with a controller for replying and moving data.
type Handler func(c *Ctrl, verb, arg string)

// StubFTPServer is a minimal scripted FTP server for tests. It speaks just
// enough of the protocol to exercise a fetch session: greeting, login,
// passive negotiation, and data transfers.
type StubFTPServer struct {
	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// StartStubServer listens on an ephemeral localhost port and serves every
// control connection with the given handler.
func StartStubServer(handler Handler) (*StubFTPServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &StubFTPServer{ln: ln, handler: handler}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *StubFTPServer) Addr() string {
	return s.ln.Addr().String()
}

// Host and Port split the listen address for building requests.
func (s *StubFTPServer) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *StubFTPServer) Port() int {
	_, portStr, _ := net.SplitHostPort(s.Addr())
	port, _ := strconv.Atoi(portStr)
	return port
}

// Close stops accepting and closes the listener. Connections in flight are
// abandoned to their own fate; tests finish their sessions first.
func (s *StubFTPServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.ln.Close()
	s.wg.Wait()
}

func (s *StubFTPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *StubFTPServer) serve(conn net.Conn) {
	defer conn.Close()

	c := &Ctrl{conn: conn, reader: bufio.NewReader(conn)}
	defer c.closeData()

	c.Reply(220, "stub server ready")

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		if verb == "QUIT" {
			c.Reply(221, "bye")
			return
		}
		s.handler(c, verb, arg)
	}
}

// Ctrl controls one stub control connection from inside a Handler.
type Ctrl struct {
	conn   net.Conn
	reader *bufio.Reader
	dataLn net.Listener
}

// Reply sends a single-line reply.
func (c *Ctrl) Reply(code int, msg string) {
	fmt.Fprintf(c.conn, "%d %s\r\n", code, msg)
}

// ReplyMultiline sends a multi-line reply in RFC 959 framing.
func (c *Ctrl) ReplyMultiline(code int, lines ...string) {
	for i, line := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		fmt.Fprintf(c.conn, "%d%s%s\r\n", code, sep, line)
	}
}

// OpenPassive opens an ephemeral data listener and sends the 227 reply
// pointing at it. Call it from the PASV arm of a handler.
func (c *Ctrl) OpenPassive() {
	c.closeData()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		c.Reply(425, "cannot open data connection")
		return
	}
	c.dataLn = ln

	addr := ln.Addr().(*net.TCPAddr)
	ip := addr.IP.To4()
	c.Reply(227, fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d)",
		ip[0], ip[1], ip[2], ip[3], addr.Port/256, addr.Port%256))
}

// SendData runs one data transfer: preliminary reply, payload over the
// pending passive listener, then the final reply. finalCode lets tests
// script failures after bytes have already flowed.
func (c *Ctrl) SendData(payload string, finalCode int, finalMsg string) {
	if c.dataLn == nil {
		c.Reply(425, "use PASV first")
		return
	}

	c.Reply(150, "opening data connection")

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := c.dataLn.Accept()
		ch <- accepted{conn, err}
	}()

	select {
	case a := <-ch:
		if a.err == nil {
			a.conn.Write([]byte(payload))
			a.conn.Close()
		}
	case <-time.After(5 * time.Second):
	}
	c.closeData()

	c.Reply(finalCode, finalMsg)
}

// StallData accepts the data connection but sends nothing for the given
// duration, so tests can interrupt a transfer in flight.
func (c *Ctrl) StallData(d time.Duration) {
	if c.dataLn == nil {
		c.Reply(425, "use PASV first")
		return
	}

	c.Reply(150, "opening data connection")

	conn, err := c.dataLn.Accept()
	if err == nil {
		time.Sleep(d)
		conn.Close()
	}
	c.closeData()

	c.Reply(426, "transfer aborted")
}

func (c *Ctrl) closeData() {
	if c.dataLn != nil {
		c.dataLn.Close()
		c.dataLn = nil
	}
}

// BasicHandler returns a handler covering the common happy paths: anonymous
// login, passive mode, RETR from files, MLSD/LIST from fixed payloads. An
// empty machineListing makes MLSD answer 502 so listing tests exercise the
// LIST fallback.
func BasicHandler(files map[string]string, machineListing, legacyListing string) Handler {
	return func(c *Ctrl, verb, arg string) {
		switch verb {
		case "USER":
			c.Reply(331, "password please")
		case "PASS":
			c.Reply(230, "logged in")
		case "TYPE":
			c.Reply(200, "type set")
		case "NOOP":
			c.Reply(200, "ok")
		case "PASV":
			c.OpenPassive()
		case "RETR":
			content, ok := files[arg]
			if !ok {
				c.Reply(550, "no such file")
				return
			}
			c.SendData(content, 226, "transfer complete")
		case "MLSD":
			if machineListing == "" {
				c.Reply(502, "command not implemented")
				return
			}
			c.SendData(machineListing, 226, "transfer complete")
		case "LIST":
			c.SendData(legacyListing, 226, "transfer complete")
		default:
			c.Reply(500, "command unrecognized")
		}
	}
}
