package sink

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/arung-agamani/edifm/internal/metrics"
)

// networkQueueCap is the bounded SPSC queue depth spec.md §4.5 mandates:
// deep enough to absorb a scheduling hiccup, shallow enough that a stall
// never builds unbounded latency.
const networkQueueCap = 2

// reconnectDelay is the fixed backoff between connect/write failures.
const reconnectDelay = 1 * time.Second

// NetworkSink streams encoded bytes to an Icecast/SHOUTcast mountpoint over
// a raw SOURCE-protocol TCP connection. Grounded directly on
// original_source/src/icecast.rs's SourceStream: a bounded channel plus a
// background worker running an outer reconnect loop around an inner send
// loop.
type NetworkSink struct {
	addr       string
	mountpoint string
	user       string
	password   string

	queue  chan []byte
	closed chan struct{}
}

// NewNetworkSink starts the background worker and returns a sink ready to
// accept Write calls. addr is "host:port"; mountpoint includes the leading
// slash, e.g. "/live.mp3".
func NewNetworkSink(addr, mountpoint, user, password string) *NetworkSink {
	s := &NetworkSink{
		addr:       addr,
		mountpoint: mountpoint,
		user:       user,
		password:   password,
		queue:      make(chan []byte, networkQueueCap),
		closed:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Write copies chunk into an owned buffer and attempts to enqueue it
// without blocking. Per spec.md §4.5, a full queue silently drops the
// chunk — the caller (the fan-out encoder, ultimately the real-time
// station loop) must never stall waiting on the network.
func (s *NetworkSink) Write(chunk []byte) error {
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	select {
	case s.queue <- owned:
	default:
		metrics.SinkDroppedChunksTotal.WithLabelValues(s.mountpoint).Inc()
		slog.Warn("Network sink queue full, dropping chunk", "mountpoint", s.mountpoint, "bytes", len(chunk))
	}
	return nil
}

// Close is a no-op for flush purposes (spec.md §4.5) but also signals the
// background worker to stop once the producer is done.
func (s *NetworkSink) Close() error {
	close(s.closed)
	return nil
}

func (s *NetworkSink) run() {
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		metrics.SinkReconnectsTotal.WithLabelValues(s.mountpoint).Inc()

		conn, err := net.Dial("tcp", s.addr)
		if err != nil {
			slog.Warn("Network sink connect failed, retrying", "addr", s.addr, "error", err)
			if !s.sleepOrClosed(reconnectDelay) {
				return
			}
			continue
		}

		if err := s.handshake(conn); err != nil {
			slog.Warn("Network sink handshake failed, retrying", "addr", s.addr, "error", err)
			conn.Close()
			if !s.sleepOrClosed(reconnectDelay) {
				return
			}
			continue
		}

		s.drain()

		if !s.sendLoop(conn) {
			return
		}
	}
}

// handshake writes the SOURCE protocol request spec.md §6 specifies.
func (s *NetworkSink) handshake(conn net.Conn) error {
	cred := base64.StdEncoding.EncodeToString([]byte(s.user + ":" + s.password))
	w := bufio.NewWriter(conn)

	fmt.Fprintf(w, "SOURCE %s HTTP/1.1\r\n", s.mountpoint)
	fmt.Fprintf(w, "Authorization: Basic %s\r\n", cred)
	fmt.Fprintf(w, "Content-Type: audio/mpeg\r\n")
	fmt.Fprintf(w, "\r\n")

	return w.Flush()
}

// drain discards whatever arrived in the queue while disconnected, so the
// first byte sent after reconnect is aligned with "now" rather than replaying
// a stale backlog — spec.md §4.5's key design choice.
func (s *NetworkSink) drain() {
	for {
		select {
		case <-s.queue:
		default:
			return
		}
	}
}

// sendLoop blocks on the queue and writes each chunk to conn. It returns
// false if the sink has been closed and the worker should exit entirely,
// true if the caller should reconnect and resume.
func (s *NetworkSink) sendLoop(conn net.Conn) bool {
	defer conn.Close()

	for {
		select {
		case <-s.closed:
			return false
		case chunk := <-s.queue:
			if _, err := conn.Write(chunk); err != nil {
				slog.Warn("Network sink write failed, reconnecting", "addr", s.addr, "error", err)
				if !s.sleepOrClosed(reconnectDelay) {
					return false
				}
				return true
			}
		}
	}
}

// sleepOrClosed waits for d, returning false early if the sink is closed in
// the meantime.
func (s *NetworkSink) sleepOrClosed(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.closed:
		return false
	case <-timer.C:
		return true
	}
}
