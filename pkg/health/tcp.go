package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker reports whether an address accepts TCP connections.
// Used for the SMTP relay, which has no cheap protocol-level ping.
type TCPChecker struct {
	// Name is the component the result is reported under
	Name string

	// Address is the host:port to connect to
	Address string
}

// NewTCPChecker creates a new TCP checker
func NewTCPChecker(name, address string) *TCPChecker {
	return &TCPChecker{Name: name, Address: address}
}

// Check dials the address and closes the connection straight away
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return failed(t.Name, start, "connection failed", err)
	}
	defer conn.Close()

	return ok(fmt.Sprintf("TCP connection to %s successful", t.Address), start)
}

func (t *TCPChecker) Component() string {
	return t.Name
}
