package ftpfetch

import (
	"errors"

	"github.com/crawlkit/ftpfetch/wire"
)

// canFallbackToList decides whether a failed MLSD attempt may degrade to
// the legacy LIST command. Only "command unrecognized" (500) and "command
// not implemented" (502) qualify; every other failure, and any failure of
// the LIST attempt itself, propagates unchanged.
//
// This is a pure decision over an already-caught error; it performs no
// I/O and never suspends.
func canFallbackToList(err error) bool {
	var replyErr *wire.ReplyError
	if !errors.As(err, &replyErr) {
		return false
	}
	switch replyErr.Reply.Code {
	case wire.CodeSyntaxErrorCommandUnrecognized, wire.CodeCommandNotImplemented:
		return true
	}
	return false
}
