package wire

import "fmt"

// Error types for control-channel operations.
// These errors let the session decide between failing the fetch, degrading
// to a legacy command, or discarding the connection.

// ReplyError represents a negative server reply to a command. The fetch
// session inspects Reply.Code to decide whether a listing command may
// degrade to LIST; every other negative reply is terminal.
type ReplyError struct {
	// Command is the command that was answered negatively (e.g. "MLSD /pub")
	Command string

	// Reply is the server's reply
	Reply Reply
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s", e.Command, e.Reply)
}

// AuthError represents a rejected login. Logins are never retried within a
// session.
type AuthError struct {
	Reply Reply
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ftp: login rejected: %s", e.Reply)
}

// ProtocolError represents malformed reply framing or a desynchronized
// control stream. The connection must be discarded.
type ProtocolError struct {
	// Line is the offending raw line, if one was read
	Line string

	// Reason describes the framing violation
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Line == "" {
		return "ftp: protocol error: " + e.Reason
	}
	return fmt.Sprintf("ftp: protocol error: %s: %q", e.Reason, e.Line)
}
