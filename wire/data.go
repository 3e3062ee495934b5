package wire

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
)

// pasvRegex matches the PASV reply payload: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
var pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// DataStream is a one-shot data channel. It is drained exactly once, into
// the sink of the command that opened it, and the underlying connection is
// discarded afterwards by the owner.
//
// Observers see bytes in the read direction only between the read and the
// write into the sink.
type DataStream struct {
	conn      net.Conn
	observers []*dataObserver
}

type dataObserver struct {
	fn func([]byte)
}

// NewDataStream wraps an established data connection.
func NewDataStream(conn net.Conn) *DataStream {
	return &DataStream{conn: conn}
}

// Observe registers a read observer and returns a function that removes
// exactly that observer.
func (d *DataStream) Observe(fn func([]byte)) (remove func()) {
	obs := &dataObserver{fn: fn}
	d.observers = append(d.observers, obs)
	return func() {
		for i, o := range d.observers {
			if o == obs {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// drainTo copies the data channel into w until the server closes it.
// The context is checked between chunks so cancellation interrupts long
// transfers at a chunk boundary.
func (d *DataStream) drainTo(ctx context.Context, w io.Writer) (int64, error) {
	if err := applyDeadline(d.conn, ctx); err != nil {
		return 0, err
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := d.conn.Read(buf)
		if n > 0 {
			for _, o := range d.observers {
				o.fn(buf[:n])
			}
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// parsePASV extracts the host:port a data connection must target from a
// 227 reply message.
func parsePASV(message string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(message)
	if len(matches) != 7 {
		return "", fmt.Errorf("invalid PASV reply: %q", message)
	}

	var h [4]int
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", fmt.Errorf("invalid PASV host part: %s", matches[i+1])
		}
		h[i] = val
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])

	p1, err1 := strconv.Atoi(matches[5])
	p2, err2 := strconv.Atoi(matches[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", fmt.Errorf("invalid PASV port parts: %s,%s", matches[5], matches[6])
	}

	return net.JoinHostPort(host, strconv.Itoa(p1*256+p2)), nil
}

// resolveDataAddr repairs PASV replies that advertise 0.0.0.0 by
// substituting the control connection's host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}
	if host == "0.0.0.0" && controlHost != "" {
		return net.JoinHostPort(controlHost, port)
	}
	return pasvAddr
}
