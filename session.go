package ftpfetch

import (
	"context"
	"io"

	"github.com/crawlkit/ftpfetch/listing"
	"github.com/crawlkit/ftpfetch/wire"
)

// SessionState is the lifecycle phase of a session. Phases run strictly in
// sequence; none is skipped or reordered.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAuthenticating
	StateExecutingCommand
	StateFallbackRetry
	StateCompleted
	StateFailed
)

// Session drives the full lifecycle of one fetch or listing request. A
// session owns at most one control connection for its lifetime and,
// transiently, one data connection per command cycle.
//
// A session is used for a single Fetch or FetchListing call and then
// released with Clean (return the control connection for reuse) or Close
// (discard it). Sessions are not safe for concurrent use.
type Session struct {
	client *Client

	state    SessionState
	conn     *Conn
	transfer *dataTransfer
	request  *Request

	removeControlObserver func()
}

// State returns the session's current lifecycle phase.
func (s *Session) State() SessionState {
	return s.state
}

// Fetch retrieves a single file. The returned response body holds the
// transferred bytes, positioned at the start, and the final server reply.
//
// Failures surface unchanged: a ConnError when a connection cannot be
// acquired, a wire.AuthError when login is rejected, a wire.ReplyError on
// a negative reply, a wire.ProtocolError on framing trouble. Nothing is
// retried within the session.
func (s *Session) Fetch(ctx context.Context, req *Request) (*Response, error) {
	resp := &Response{}

	if err := s.prepare(ctx, req, resp); err != nil {
		return nil, s.fail(err)
	}

	reply, err := s.transfer.execute(ctx, wire.Command{Name: "RETR", Arg: req.Path}, resp.Body)
	if err != nil {
		return nil, s.fail(err)
	}

	if size, serr := resp.Body.Seek(0, io.SeekCurrent); serr == nil {
		s.client.stats.recordFetch(size)
	}
	s.finalize(resp, reply)
	return resp, nil
}

// FetchListing retrieves a directory listing. It first attempts the
// machine-readable MLSD command; if the server answers that the command is
// unrecognized or unimplemented, the body is reset and the attempt degrades
// once to the legacy LIST command. A double failure surfaces the LIST
// attempt's error.
func (s *Session) FetchListing(ctx context.Context, req *Request) (*ListingResponse, error) {
	resp := &ListingResponse{}

	if err := s.prepare(ctx, req, &resp.Response); err != nil {
		return nil, s.fail(err)
	}

	reply, err := s.machineListing(ctx, req, resp)
	if err != nil {
		if !canFallbackToList(err) {
			return nil, s.fail(err)
		}

		// Drop the partial bytes of the failed attempt before LIST
		// writes its own.
		if rerr := s.resetBody(resp.Body); rerr != nil {
			return nil, s.fail(rerr)
		}
		s.state = StateFallbackRetry
		s.client.stats.recordFallback()

		reply, err = s.legacyListing(ctx, req, resp)
		if err != nil {
			return nil, s.fail(err)
		}
	}

	s.client.stats.recordListing(len(resp.Files))
	s.finalize(&resp.Response, reply)
	return resp, nil
}

// prepare acquires the control connection, authenticates, and readies the
// response and the data-transfer coordinator.
func (s *Session) prepare(ctx context.Context, req *Request, resp *Response) error {
	s.state = StateConnecting
	s.request = req

	conn, err := s.client.pools.CheckOut(ctx, req.hostPort(), RoleControl)
	if err != nil {
		return err
	}
	s.conn = conn
	req.Addr = conn.RemoteAddr()

	stream := wire.NewControlStream(conn.netConn, conn.reader)
	commander := wire.NewCommander(stream)

	recorder := s.client.cfg.Recorder
	if recorder != nil {
		s.removeControlObserver = stream.Observe(func(dir wire.Direction, p []byte) {
			if dir == wire.DirCommand {
				recorder.RequestControlData(p)
			} else {
				recorder.ResponseControlData(p)
			}
		})
		recorder.BeginControl(req)
	}

	s.state = StateAuthenticating
	if conn.fresh {
		if err := commander.Reconnect(ctx); err != nil {
			return err
		}
		conn.fresh = false
	}

	username, password := s.credentials(req)
	if err := commander.Login(ctx, username, password); err != nil {
		return err
	}

	resp.Request = req
	resp.Body = s.client.newSink()

	if recorder != nil {
		recorder.PreResponse(resp)
	}

	s.transfer = &dataTransfer{
		pools:     s.client.pools,
		commander: commander,
		recorder:  recorder,
	}
	s.state = StateExecutingCommand
	return nil
}

// credentials resolves the login identity: request-supplied values win,
// then client configuration, then the anonymous convention.
func (s *Session) credentials(req *Request) (string, string) {
	username := req.Username
	if username == "" {
		username = s.client.cfg.Username
	}
	password := req.Password
	if password == "" {
		password = s.client.cfg.Password
	}
	return username, password
}

// finalize rewinds the body, records the final reply, and fires the
// trailing recorder events.
func (s *Session) finalize(resp *Response, reply wire.Reply) {
	_, _ = resp.Body.Seek(0, io.SeekStart)
	resp.Reply = reply

	if recorder := s.client.cfg.Recorder; recorder != nil {
		recorder.Response(resp)
		recorder.EndControl(resp)
	}

	s.detachControlObserver()
	s.state = StateCompleted
}

// fail marks the session failed and passes the error through unchanged.
func (s *Session) fail(err error) error {
	s.detachControlObserver()
	s.state = StateFailed
	s.client.stats.recordError()
	return err
}

func (s *Session) machineListing(ctx context.Context, req *Request, resp *ListingResponse) (wire.Reply, error) {
	reply, err := s.transfer.execute(ctx, wire.Command{Name: "MLSD", Arg: req.Path}, resp.Body)
	if err != nil {
		return wire.Reply{}, err
	}

	if _, err := resp.Body.Seek(0, io.SeekStart); err != nil {
		return wire.Reply{}, err
	}
	files, err := listing.DecodeMachine(resp.Body, false)
	if err != nil {
		return wire.Reply{}, err
	}
	resp.Files = files
	return reply, nil
}

func (s *Session) legacyListing(ctx context.Context, req *Request, resp *ListingResponse) (wire.Reply, error) {
	reply, err := s.transfer.execute(ctx, wire.Command{Name: "LIST", Arg: req.Path}, resp.Body)
	if err != nil {
		return wire.Reply{}, err
	}

	if _, err := resp.Body.Seek(0, io.SeekStart); err != nil {
		return wire.Reply{}, err
	}
	files, err := listing.DecodeLegacy(resp.Body)
	if err != nil {
		return wire.Reply{}, err
	}
	resp.Files = files
	return reply, nil
}

// resetBody rewinds and truncates the sink so a fallback attempt does not
// concatenate onto the failed attempt's partial output.
func (s *Session) resetBody(body Sink) error {
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return body.Truncate(0)
}

// Clean returns the control connection to the pool for reuse. Safe to call
// at any point, any number of times, including when no connection was ever
// acquired. It never fails.
func (s *Session) Clean() {
	s.detachControlObserver()
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
}

// Close discards the control connection, skipping reuse. Same safety
// guarantees as Clean.
func (s *Session) Close() {
	s.detachControlObserver()
	if s.conn != nil {
		s.conn.Discard()
		s.conn = nil
	}
}

func (s *Session) detachControlObserver() {
	if s.removeControlObserver != nil {
		s.removeControlObserver()
		s.removeControlObserver = nil
	}
}
