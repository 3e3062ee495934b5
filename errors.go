package ftpfetch

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned for checkouts against a closed pool set.
	ErrPoolClosed = errors.New("ftpfetch: pool closed")
)

// ConnError means a control or data connection could not be acquired or
// established. It is fatal for the fetch; the surrounding crawl engine
// owns any retry policy.
type ConnError struct {
	// Addr is the host:port the connection targeted
	Addr string

	// Err is the underlying dial or pool error
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("ftpfetch: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}
