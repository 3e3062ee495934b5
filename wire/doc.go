// Package wire provides the low-level FTP control-channel implementation
// (RFC 959, with the RFC 3659 machine-listing extensions used by the
// crawler).
//
// This package serves as a foundation for higher-level fetch sessions with
// different properties (pooling, recording, fallback policies). It focuses
// on correctness of command framing and reply parsing, without imposing
// architectural decisions on clients.
//
// # Core Types
//
//   - Command: an FTP command verb plus optional argument
//   - Reply: a parsed three-digit server reply with its message text
//   - ControlStream: command/reply framing over a control connection, with
//     observable traffic
//   - DataStream: a one-shot data channel drained into a caller's sink
//   - Commander: the command sequences a fetch needs (greeting, login,
//     passive negotiation, streamed transfers)
//
// # Error Handling
//
// The package defines error types that indicate what failed:
//
//   - ReplyError: the server answered a command with a negative reply
//   - AuthError: login was rejected
//   - ProtocolError: the reply framing itself was malformed
//
// Network and I/O errors are returned unwrapped; callers decide whether the
// connection is still usable.
//
// # Thread Safety
//
// ControlStream and DataStream are owned by a single session at a time and
// are not safe for concurrent use. Reply and Command values are plain data.
package wire
