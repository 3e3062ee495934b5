package ftpfetch

import (
	"bufio"
	"net"

	"github.com/jackc/puddle/v2"
)

// Role tags what a checked-out connection carries.
type Role int

const (
	// RoleControl is the persistent command/reply channel.
	RoleControl Role = iota

	// RoleData is a one-shot payload channel.
	RoleData
)

// Conn is a pooled network connection on loan to a session. The pool hands
// out at most one live handle per checkout; the holder must call exactly
// one of Release or Discard. Both are safe to call again afterwards and do
// nothing.
type Conn struct {
	addr    string
	role    Role
	netConn net.Conn
	reader  *bufio.Reader

	// fresh is true until the server greeting has been consumed. Cleared
	// by the first session that speaks on the connection.
	fresh bool

	res  *puddle.Resource[*Conn]
	done bool
}

func newConn(netConn net.Conn, addr string) *Conn {
	return &Conn{
		addr:    addr,
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		fresh:   true,
	}
}

// Addr returns the host:port the connection targets.
func (c *Conn) Addr() string {
	return c.addr
}

// Role returns the role the connection was checked out for.
func (c *Conn) Role() Role {
	return c.role
}

// RemoteAddr returns the resolved remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Release returns the connection to the pool for reuse.
func (c *Conn) Release() {
	if c.done || c.res == nil {
		return
	}
	c.done = true
	c.res.Release()
}

// Discard closes the connection and removes it from pool bookkeeping.
// Used for data connections (always single-use) and for control
// connections whose protocol state is no longer trustworthy.
func (c *Conn) Discard() {
	if c.done || c.res == nil {
		return
	}
	c.done = true
	c.res.Destroy()
}

// close tears down the transport. Called by the pool destructor only.
func (c *Conn) close() {
	_ = c.netConn.Close()
}
