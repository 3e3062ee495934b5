package wire

import "strings"

// Reply codes consumed by the fetch engine. Names follow RFC 959 wording.
const (
	CodeDataAlreadyOpen    = 125
	CodeAboutToOpenData    = 150
	CodeCommandOK          = 200
	CodeServiceReady       = 220
	CodeClosingData        = 226
	CodeEnteringPassive    = 227
	CodeUserLoggedIn       = 230
	CodeFileActionComplete = 250
	CodeNeedPassword       = 331

	// The two codes that make a listing fall back from MLSD to LIST.
	CodeSyntaxErrorCommandUnrecognized = 500
	CodeCommandNotImplemented          = 502
)

// Command represents an FTP command: a verb and an optional argument.
type Command struct {
	// Name is the command verb (e.g. "RETR", "MLSD", "PASS")
	Name string

	// Arg is the single argument, empty for argument-less commands
	Arg string
}

// String returns the command as it appears on the wire, without the
// trailing CRLF.
func (c Command) String() string {
	if c.Arg == "" {
		return c.Name
	}
	return c.Name + " " + c.Arg
}

// Reply represents a parsed FTP server reply.
type Reply struct {
	// Code is the three-digit reply code (e.g. 220, 550)
	Code int

	// Message is the reply text. Multi-line replies are joined with
	// newlines.
	Message string
}

// Preliminary returns true for 1yz replies (more replies follow).
func (r Reply) Preliminary() bool {
	return r.Code >= 100 && r.Code < 200
}

// Positive returns true for 2yz replies (command completed).
func (r Reply) Positive() bool {
	return r.Code >= 200 && r.Code < 300
}

// Intermediate returns true for 3yz replies (more input expected).
func (r Reply) Intermediate() bool {
	return r.Code >= 300 && r.Code < 400
}

// TransientNegative returns true for 4yz replies (retry may succeed).
func (r Reply) TransientNegative() bool {
	return r.Code >= 400 && r.Code < 500
}

// PermanentNegative returns true for 5yz replies (retry will not succeed).
func (r Reply) PermanentNegative() bool {
	return r.Code >= 500 && r.Code < 600
}

// Negative returns true for any 4yz or 5yz reply.
func (r Reply) Negative() bool {
	return r.TransientNegative() || r.PermanentNegative()
}

func (r Reply) String() string {
	return strings.TrimSpace(strings.Join([]string{itoa3(r.Code), r.Message}, " "))
}

func itoa3(code int) string {
	buf := [3]byte{
		byte('0' + code/100%10),
		byte('0' + code/10%10),
		byte('0' + code%10),
	}
	return string(buf[:])
}
