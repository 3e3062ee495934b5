package wire

import (
	"context"
	"io"
)

// Commander runs the command sequences a fetch session needs on top of a
// ControlStream. It holds no state of its own beyond the stream; the
// session decides which sequences run and in what order.
type Commander struct {
	stream *ControlStream
}

// NewCommander returns a commander over the given control stream.
func NewCommander(stream *ControlStream) *Commander {
	return &Commander{stream: stream}
}

// ControlStream returns the underlying control stream.
func (c *Commander) ControlStream() *ControlStream {
	return c.stream
}

// Reconnect consumes the server greeting on a freshly established control
// connection. It must not be called on a connection whose greeting was
// already read.
func (c *Commander) Reconnect(ctx context.Context) error {
	reply, err := c.stream.ReadReply(ctx)
	if err != nil {
		return err
	}
	if reply.Code != CodeServiceReady {
		return &ReplyError{Command: "<greeting>", Reply: reply}
	}
	return nil
}

// Login authenticates with USER/PASS. A permanent or transient negative
// reply to either command yields an AuthError; logins are never retried.
func (c *Commander) Login(ctx context.Context, username, password string) error {
	if err := c.stream.WriteCommand(ctx, Command{Name: "USER", Arg: username}); err != nil {
		return err
	}
	reply, err := c.stream.ReadReply(ctx)
	if err != nil {
		return err
	}

	switch {
	case reply.Code == CodeUserLoggedIn:
		return nil
	case reply.Code == CodeNeedPassword:
		// fall through to PASS
	default:
		return &AuthError{Reply: reply}
	}

	if err := c.stream.WriteCommand(ctx, Command{Name: "PASS", Arg: password}); err != nil {
		return err
	}
	reply, err = c.stream.ReadReply(ctx)
	if err != nil {
		return err
	}
	if !reply.Positive() {
		return &AuthError{Reply: reply}
	}
	return nil
}

// NegotiatePassive asks the server for a passive-mode data address and
// returns the host:port a data connection must dial. Passive mode is the
// only mode this client speaks; the crawler always initiates connections.
func (c *Commander) NegotiatePassive(ctx context.Context) (string, error) {
	if err := c.stream.WriteCommand(ctx, Command{Name: "PASV"}); err != nil {
		return "", err
	}
	reply, err := c.stream.ReadReply(ctx)
	if err != nil {
		return "", err
	}
	if reply.Code != CodeEnteringPassive {
		return "", &ReplyError{Command: "PASV", Reply: reply}
	}

	addr, err := parsePASV(reply.Message)
	if err != nil {
		return "", &ProtocolError{Line: reply.Message, Reason: "unparseable PASV reply"}
	}
	return resolveDataAddr(addr, c.stream.RemoteHost()), nil
}

// Stream issues a transfer command, drains the data channel into sink until
// the server closes it, and returns the final reply.
//
// The sequence is: command, preliminary reply (125/150), data bytes, final
// reply (2yz). A negative reply at either point is a ReplyError; a positive
// reply where a preliminary one belongs means the streams are out of step
// and is a ProtocolError.
func (c *Commander) Stream(ctx context.Context, cmd Command, sink io.Writer, data *DataStream) (Reply, error) {
	if err := c.stream.WriteCommand(ctx, cmd); err != nil {
		return Reply{}, err
	}

	reply, err := c.stream.ReadReply(ctx)
	if err != nil {
		return Reply{}, err
	}
	if reply.Negative() {
		return Reply{}, &ReplyError{Command: cmd.String(), Reply: reply}
	}
	if !reply.Preliminary() {
		return Reply{}, &ProtocolError{Line: reply.String(), Reason: "expected preliminary reply"}
	}

	if _, err := data.drainTo(ctx, sink); err != nil {
		return Reply{}, err
	}

	final, err := c.stream.ReadReply(ctx)
	if err != nil {
		return Reply{}, err
	}
	if !final.Positive() {
		return Reply{}, &ReplyError{Command: cmd.String(), Reply: final}
	}
	return final, nil
}

// Noop sends NOOP, used as a liveness probe on idle pooled connections.
func (c *Commander) Noop(ctx context.Context) error {
	if err := c.stream.WriteCommand(ctx, Command{Name: "NOOP"}); err != nil {
		return err
	}
	reply, err := c.stream.ReadReply(ctx)
	if err != nil {
		return err
	}
	if !reply.Positive() {
		return &ReplyError{Command: "NOOP", Reply: reply}
	}
	return nil
}
