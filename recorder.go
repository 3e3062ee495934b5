package ftpfetch

import (
	"bytes"
	"sync"

	"github.com/zeebo/xxh3"
)

// Recorder passively observes a session's traffic. Every method is
// fire-and-forget: recorders never influence control flow and their
// presence must not change the fetch outcome.
//
// Control-channel bytes arrive split by direction; data-channel bytes
// arrive in the read direction only. Byte slices are only valid for the
// duration of the call.
type Recorder interface {
	// BeginControl fires once the control connection is acquired.
	BeginControl(req *Request)

	// RequestControlData receives outgoing command bytes.
	RequestControlData(p []byte)

	// ResponseControlData receives incoming reply bytes.
	ResponseControlData(p []byte)

	// PreResponse fires after login, before the transfer command.
	PreResponse(resp *Response)

	// ResponseData receives data-channel payload bytes.
	ResponseData(p []byte)

	// Response fires when the final reply is known.
	Response(resp *Response)

	// EndControl fires last, after the response is finalized.
	EndControl(resp *Response)
}

// TrafficLog is a Recorder that accumulates control traffic verbatim and
// digests payload bytes with xxh3, cheap enough to leave attached on every
// fetch. Safe for concurrent use by multiple sessions.
type TrafficLog struct {
	mu         sync.Mutex
	controlOut bytes.Buffer
	controlIn  bytes.Buffer
	digest     *xxh3.Hasher
	payload    int64
	completed  int
}

// NewTrafficLog returns an empty traffic log.
func NewTrafficLog() *TrafficLog {
	return &TrafficLog{digest: xxh3.New()}
}

func (l *TrafficLog) BeginControl(req *Request) {}

func (l *TrafficLog) RequestControlData(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.controlOut.Write(p)
}

func (l *TrafficLog) ResponseControlData(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.controlIn.Write(p)
}

func (l *TrafficLog) PreResponse(resp *Response) {}

func (l *TrafficLog) ResponseData(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.digest.Write(p)
	l.payload += int64(len(p))
}

func (l *TrafficLog) Response(resp *Response) {}

func (l *TrafficLog) EndControl(resp *Response) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed++
}

// ControlOut returns a copy of the recorded outgoing command bytes.
func (l *TrafficLog) ControlOut() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.controlOut.Bytes()...)
}

// ControlIn returns a copy of the recorded incoming reply bytes.
func (l *TrafficLog) ControlIn() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.controlIn.Bytes()...)
}

// PayloadDigest returns the xxh3 digest of all payload bytes seen so far.
func (l *TrafficLog) PayloadDigest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.digest.Sum64()
}

// PayloadBytes returns the number of payload bytes seen.
func (l *TrafficLog) PayloadBytes() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payload
}

// Completed returns the number of finalized sessions observed.
func (l *TrafficLog) Completed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}

var _ Recorder = (*TrafficLog)(nil)
