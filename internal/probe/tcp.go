package probe

import (
	"context"
	"net"
	"time"
)

// TCPProbe reports the core ready once its listener accepts a connection.
type TCPProbe struct {
	Addr        string        // host:port, e.g. 127.0.0.1:8765
	DialTimeout time.Duration // per-attempt dial timeout (default 1s)
}

func (p TCPProbe) Ready(ctx context.Context) error {
	d := net.Dialer{Timeout: p.dialTimeout()}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}

func (p TCPProbe) Describe() string { return "tcp:" + p.Addr }

func (p TCPProbe) dialTimeout() time.Duration {
	if p.DialTimeout > 0 {
		return p.DialTimeout
	}
	return time.Second
}
