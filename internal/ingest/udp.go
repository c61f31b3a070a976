// Package ingest provides the plain-UDP packet source stood up in place
// of the out-of-scope RDMA/raw-socket ingest path (spec.md Non-goals):
// a minimal net.ListenUDP loop that hands each datagram's payload to a
// decode callback, so the two catcher binaries have something to feed
// their reassembler with.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Listener reads UDP datagrams from one socket and dispatches them to a
// handler until its context is canceled.
type Listener struct {
	conn *net.UDPConn
	log  *zap.SugaredLogger
}

// Listen binds addr ("host:port", or ":4015" for all interfaces).
func Listen(addr string, log *zap.SugaredLogger) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("ingest: listen %q: %w", addr, err)
	}

	return &Listener{conn: conn, log: log}, nil
}

// Close releases the underlying socket.
func (m *Listener) Close() error {
	return m.conn.Close()
}

// Run reads datagrams until ctx is canceled, calling handle with each
// payload. A handle error is logged and does not stop the loop, matching
// the reassembler's own policy of logging and continuing on malformed
// input (spec.md §4.2).
func (m *Listener) Run(ctx context.Context, handle func(payload []byte) error) error {
	buf := make([]byte, 9000)

	go func() {
		<-ctx.Done()
		m.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		m.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := m.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			m.log.Warnw("udp read error", "error", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		if err := handle(payload); err != nil {
			m.log.Warnw("packet handling error", "error", err)
		}
	}
}
