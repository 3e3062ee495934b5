package ftpfetch

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/ftpfetch/internal/testutils"
	"github.com/crawlkit/ftpfetch/listing"
	"github.com/crawlkit/ftpfetch/wire"
)

const (
	machinePayload = "type=file;size=10;modify=20200101000000; a.txt\r\ntype=dir;modify=20200101000000; pub\r\n"
	legacyPayload  = "-rw-r--r--   1 ftp  ftp        10 Jan 15 10:30 a.txt\r\ndrwxr-xr-x   2 ftp  ftp      4096 Jan 15 10:30 pub\r\n"
)

// verbRecorder wraps a handler and keeps the sequence of received verbs.
type verbRecorder struct {
	mu    sync.Mutex
	verbs []string
}

func (vr *verbRecorder) wrap(next testutils.Handler) testutils.Handler {
	return func(c *testutils.Ctrl, verb, arg string) {
		vr.mu.Lock()
		vr.verbs = append(vr.verbs, verb)
		vr.mu.Unlock()
		next(c, verb, arg)
	}
}

func (vr *verbRecorder) saw(verb string) bool {
	vr.mu.Lock()
	defer vr.mu.Unlock()
	for _, v := range vr.verbs {
		if v == verb {
			return true
		}
	}
	return false
}

func TestFetchListingMachine(t *testing.T) {
	srv := startServer(t, testutils.BasicHandler(nil, machinePayload, ""))

	client := NewClient(Config{})
	defer client.Close()

	sess := client.Session()
	resp, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.NoError(t, err)
	defer sess.Clean()

	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.Equal(t, listing.KindFile, resp.Files[0].Kind)
	assert.Equal(t, int64(10), resp.Files[0].Size)
	assert.Equal(t, "pub", resp.Files[1].Name)
	assert.Equal(t, listing.KindDir, resp.Files[1].Kind)

	assert.Equal(t, StateCompleted, sess.State())
	assert.Equal(t, uint64(0), client.Stats().Fallbacks)
}

func TestFetchListingFallback(t *testing.T) {
	vr := &verbRecorder{}
	srv := startServer(t, vr.wrap(testutils.BasicHandler(nil, "", legacyPayload)))

	client := NewClient(Config{})
	defer client.Close()

	sess := client.Session()
	resp, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.NoError(t, err)
	defer sess.Clean()

	assert.True(t, vr.saw("MLSD"))
	assert.True(t, vr.saw("LIST"))

	require.Len(t, resp.Files, 2)
	assert.Equal(t, "a.txt", resp.Files[0].Name)
	assert.Equal(t, listing.KindFile, resp.Files[0].Kind)
	assert.Equal(t, int64(10), resp.Files[0].Size)
	assert.Equal(t, "pub", resp.Files[1].Name)
	assert.Equal(t, listing.KindDir, resp.Files[1].Kind)

	assert.Equal(t, uint64(1), client.Stats().Fallbacks)
}

func TestFetchListingNoFallbackOnOtherFailures(t *testing.T) {
	vr := &verbRecorder{}
	base := testutils.BasicHandler(nil, "", legacyPayload)
	srv := startServer(t, vr.wrap(func(c *testutils.Ctrl, verb, arg string) {
		if verb == "MLSD" {
			c.Reply(550, "permission denied")
			return
		}
		base(c, verb, arg)
	}))

	client := NewClient(Config{})
	defer client.Close()

	sess := client.Session()
	_, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.Error(t, err)
	sess.Close()

	var replyErr *wire.ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, 550, replyErr.Reply.Code)

	// 550 means the command exists but failed, so LIST must not be tried.
	assert.True(t, vr.saw("MLSD"))
	assert.False(t, vr.saw("LIST"))
}

func TestFetchListingFallbackOn500(t *testing.T) {
	base := testutils.BasicHandler(nil, "", legacyPayload)
	srv := startServer(t, func(c *testutils.Ctrl, verb, arg string) {
		if verb == "MLSD" {
			c.Reply(500, "syntax error, command unrecognized")
			return
		}
		base(c, verb, arg)
	})

	client := NewClient(Config{})
	defer client.Close()

	sess := client.Session()
	resp, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.NoError(t, err)
	defer sess.Clean()

	require.Len(t, resp.Files, 2)
}

// trackingSink records the sink length at each write so tests can prove the
// fallback attempt started over from an empty body.
type trackingSink struct {
	*MemorySink

	mu        sync.Mutex
	startLens []int64
}

func (ts *trackingSink) Write(p []byte) (int, error) {
	ts.mu.Lock()
	ts.startLens = append(ts.startLens, ts.MemorySink.Len())
	ts.mu.Unlock()
	return ts.MemorySink.Write(p)
}

func TestFetchListingFallbackResetsBody(t *testing.T) {
	base := testutils.BasicHandler(nil, "", legacyPayload)
	srv := startServer(t, func(c *testutils.Ctrl, verb, arg string) {
		if verb == "MLSD" {
			// Bytes flow, then the transfer is disowned with an
			// unrecognized-command reply.
			c.SendData("partial garbage", 500, "command unrecognized")
			return
		}
		base(c, verb, arg)
	})

	sink := &trackingSink{MemorySink: NewMemorySink()}
	client := NewClient(Config{NewSink: func() Sink { return sink }})
	defer client.Close()

	sess := client.Session()
	resp, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.NoError(t, err)
	defer sess.Clean()

	// The partial MLSD bytes were truncated away before LIST wrote.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, legacyPayload, string(body))
	require.Len(t, resp.Files, 2)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.startLens)
	assert.Equal(t, int64(0), sink.startLens[0])
	// The LIST attempt's first write also lands at offset zero.
	zeroStarts := 0
	for _, n := range sink.startLens {
		if n == 0 {
			zeroStarts++
		}
	}
	assert.GreaterOrEqual(t, zeroStarts, 2)
}

func TestFetchListingDoubleFailure(t *testing.T) {
	srv := startServer(t, func(c *testutils.Ctrl, verb, arg string) {
		switch verb {
		case "USER":
			c.Reply(331, "password please")
		case "PASS":
			c.Reply(230, "logged in")
		case "PASV":
			c.OpenPassive()
		case "MLSD":
			c.Reply(502, "command not implemented")
		case "LIST":
			c.Reply(550, "permission denied")
		default:
			c.Reply(500, "command unrecognized")
		}
	})

	client := NewClient(Config{})
	sess := client.Session()

	_, err := sess.FetchListing(context.Background(), serverRequest(srv, "/"))
	require.Error(t, err)
	assert.Equal(t, StateFailed, sess.State())

	// The LIST attempt's error wins over the MLSD one.
	var replyErr *wire.ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, 550, replyErr.Reply.Code)

	sess.Close()
	waitOutstanding(t, client, 0)
	client.Close()
}

func TestCanFallbackToList(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unrecognized", &wire.ReplyError{Command: "MLSD", Reply: wire.Reply{Code: 500}}, true},
		{"not implemented", &wire.ReplyError{Command: "MLSD", Reply: wire.Reply{Code: 502}}, true},
		{"permission denied", &wire.ReplyError{Command: "MLSD", Reply: wire.Reply{Code: 550}}, false},
		{"transient", &wire.ReplyError{Command: "MLSD", Reply: wire.Reply{Code: 451}}, false},
		{"auth", &wire.AuthError{Reply: wire.Reply{Code: 530}}, false},
		{"plain", errors.New("boom"), false},
		{"timeout", context.DeadlineExceeded, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, canFallbackToList(tc.err))
		})
	}
}

func TestResetBody(t *testing.T) {
	sink := NewMemorySink()
	_, err := sink.Write([]byte("leftover"))
	require.NoError(t, err)

	sess := &Session{}
	require.NoError(t, sess.resetBody(sink))

	assert.Equal(t, int64(0), sink.Len())
	n, _ := sink.Seek(0, io.SeekCurrent)
	assert.Equal(t, int64(0), n)
}
