package ftpfetch

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/crawlkit/ftpfetch/listing"
	"github.com/crawlkit/ftpfetch/wire"
)

// DefaultPort is used when a request does not name one.
const DefaultPort = 21

// Request identifies one resource to fetch. It is immutable once handed to
// a session, apart from Addr which the session assigns when the control
// connection is acquired.
type Request struct {
	// Host is the server hostname or IP
	Host string

	// Port is the control-channel port; 0 means DefaultPort
	Port int

	// Path is the remote path passed to RETR/MLSD/LIST
	Path string

	// Username and Password override the anonymous defaults when set
	Username string
	Password string

	// Addr is the resolved remote address of the control connection.
	// Assigned by the session, empty until then.
	Addr net.Addr
}

// ParseRequest builds a Request from an ftp:// URL.
func ParseRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "" && u.Scheme != "ftp" {
		return nil, fmt.Errorf("ftpfetch: unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("ftpfetch: missing host in %q", rawURL)
	}

	req := &Request{
		Host: u.Hostname(),
		Path: u.Path,
	}
	if u.Port() != "" {
		req.Port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("ftpfetch: invalid port in %q", rawURL)
		}
	}
	if u.User != nil {
		req.Username = u.User.Username()
		req.Password, _ = u.User.Password()
	}
	if req.Path == "" {
		req.Path = "/"
	}
	return req, nil
}

// hostPort returns the dial address of the control channel.
func (r *Request) hostPort() string {
	port := r.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(r.Host, strconv.Itoa(port))
}

// Response is the outcome of one fetch: the originating request, the sink
// holding whatever bytes were transferred, and the final server reply.
// The body is positioned at the start when the fetch returns.
type Response struct {
	Request *Request
	Body    Sink
	Reply   wire.Reply
}

// ListingResponse is a Response whose body held a directory listing,
// decoded into ordered entries.
type ListingResponse struct {
	Response
	Files []listing.FileEntry
}

// Sink is a seekable, truncatable byte destination receiving transferred
// content. *os.File satisfies it; MemorySink is the in-memory default.
type Sink interface {
	io.Reader
	io.Writer
	io.Seeker
	Truncate(size int64) error
}

// MemorySink is an in-memory Sink.
type MemorySink struct {
	buf []byte
	pos int64
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *MemorySink) Write(p []byte) (int, error) {
	// Writing past the end zero-fills, matching file semantics.
	if gap := s.pos - int64(len(s.buf)); gap > 0 {
		s.buf = append(s.buf, make([]byte, gap)...)
	}
	n := copy(s.buf[s.pos:], p)
	s.buf = append(s.buf, p[n:]...)
	s.pos += int64(len(p))
	return len(p), nil
}

func (s *MemorySink) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("ftpfetch: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("ftpfetch: negative seek position %d", pos)
	}
	s.pos = pos
	return pos, nil
}

// Truncate changes the sink length without moving the position.
func (s *MemorySink) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("ftpfetch: negative truncate size %d", size)
	}
	if size < int64(len(s.buf)) {
		s.buf = s.buf[:size]
	} else if gap := size - int64(len(s.buf)); gap > 0 {
		s.buf = append(s.buf, make([]byte, gap)...)
	}
	return nil
}

// Bytes returns the sink contents. The slice is valid until the next write.
func (s *MemorySink) Bytes() []byte {
	return s.buf
}

// Len returns the sink length in bytes.
func (s *MemorySink) Len() int64 {
	return int64(len(s.buf))
}

var _ Sink = (*MemorySink)(nil)
