// Package server implements the Roughtime UDP event loop: receive a
// batch of client nonces, fold them into one Merkle tree, sign the root
// once, and answer every member of the batch with its own path back to
// that root.
package server

import (
	"encoding/hex"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietcore/roughtimed"
	"github.com/quietcore/roughtimed/config"
	"github.com/quietcore/roughtimed/internal/health"
	"github.com/quietcore/roughtimed/internal/reuseport"
	"github.com/quietcore/roughtimed/keys"
	"github.com/quietcore/roughtimed/merkle"
)

// recvBufferSize mirrors the reference server's fixed receive buffer; a
// Roughtime request never exceeds 1024 bytes, but a generously sized
// buffer costs nothing and avoids a truncated read ever looking like a
// malformed request.
const recvBufferSize = 65536

// pollTimeout bounds how long a single receive blocks before the event
// loop re-checks the status ticker and the shutdown flag, the Go
// equivalent of the reference server's 100ms mio poll timeout.
const pollTimeout = 100 * time.Millisecond

type pendingRequest struct {
	nonce []byte
	addr  *net.UDPAddr
}

// Server is one running Roughtime responder: a bound UDP socket, its key
// hierarchy, and the per-batch Merkle accumulator.
type Server struct {
	cfg  *config.Config
	log  zerolog.Logger
	conn *net.UDPConn

	longTerm  *keys.LongTermKey
	onlineKey *keys.OnlineKey
	cert      roughtime.Certificate

	tree     *merkle.Tree
	requests []pendingRequest
	recvBuf  []byte
	respBuf  []byte

	responseCounter atomic.Uint64
	badRequests     atomic.Uint64
	keepRunning     atomic.Bool

	counters *health.Counters
}

// New constructs a Server bound to cfg's interface/port. seed is the
// already-resolved long-term key seed (see kms.LoadSeed); counters may be
// nil when the optional health/metrics listener is disabled.
func New(cfg *config.Config, seed [32]byte, log zerolog.Logger, counters *health.Counters) (*Server, error) {
	onlineKey, err := keys.NewOnlineKey()
	if err != nil {
		return nil, err
	}
	longTerm, err := keys.NewLongTermKey(seed[:])
	if err != nil {
		return nil, err
	}
	cert := longTerm.MakeCertificate(onlineKey.PublicKey(), time.Now())

	addr, err := cfg.UDPAddr()
	if err != nil {
		return nil, err
	}
	conn, err := reuseport.ListenUDP("udp", addr.String())
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		conn:      conn,
		longTerm:  longTerm,
		onlineKey: onlineKey,
		cert:      cert,
		tree:      merkle.New(cfg.BatchSize),
		requests:  make([]pendingRequest, 0, cfg.BatchSize),
		recvBuf:   make([]byte, recvBufferSize),
		respBuf:   make([]byte, recvBufferSize),
		counters:  counters,
	}
	s.keepRunning.Store(true)
	return s, nil
}

// PublicKeyHex returns the server's long-term public key, hex-encoded,
// the value an operator publishes for clients to pin.
func (s *Server) PublicKeyHex() string {
	return s.longTerm.PublicKeyHex()
}

// ShutdownFlag exposes the atomic stop switch: a signal handler sets it
// false to request an orderly shutdown, and the run loop polls it
// between batches and within a batch's receive loop.
func (s *Server) ShutdownFlag() *atomic.Bool {
	return &s.keepRunning
}

// Run drives the event loop until ShutdownFlag is cleared, then closes
// the socket and returns.
func (s *Server) Run() error {
	statusTicker := time.NewTicker(s.cfg.StatusInterval)
	defer statusTicker.Stop()

	for s.keepRunning.Load() {
		select {
		case <-statusTicker.C:
			s.logStatus()
		default:
		}
		s.processRound()
	}
	return s.conn.Close()
}

// processRound drains as many full batches as the socket currently has
// queued, signing and responding to each as it completes. It returns
// once the socket has nothing left to read or shutdown was requested.
func (s *Server) processRound() {
	for s.keepRunning.Load() {
		done := s.fillBatch()
		if len(s.requests) == 0 {
			return
		}
		s.respondToBatch()
		s.tree.Reset()
		s.requests = s.requests[:0]
		if done {
			return
		}
	}
}

// fillBatch reads up to BatchSize datagrams, validating and queueing
// each well-formed one. It returns true when the socket ran dry (or
// errored, or shutdown was requested) before a full batch was read,
// signaling the caller not to immediately try again.
func (s *Server) fillBatch() bool {
	respStart := s.responseCounter.Load()
	for i := 0; i < s.cfg.BatchSize; i++ {
		if !s.keepRunning.Load() {
			return true
		}
		if len(s.requests) == 0 {
			s.conn.SetReadDeadline(time.Now().Add(pollTimeout))
		} else {
			// Batch already has at least one member: the rest of this
			// round is a non-blocking drain, not a wait. A deadline
			// already in the past makes ReadFromUDP return immediately
			// with a timeout error once the socket has nothing queued,
			// instead of blocking a further pollTimeout per datagram.
			s.conn.SetReadDeadline(time.Now())
		}
		n, addr, err := s.conn.ReadFromUDP(s.recvBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return true
			}
			s.log.Error().Err(err).Msg("error receiving from socket")
			return true
		}

		nonce, verr := roughtime.ValidateRequest(s.recvBuf[:n])
		if verr != nil {
			s.badRequests.Add(1)
			s.log.Info().
				Err(verr).
				Int("bytes", n).
				Stringer("from", addr).
				Int("in_batch", i).
				Uint64("resp_num", respStart+uint64(i)).
				Msg("invalid request")
			if s.counters != nil {
				s.counters.BadRequests.Inc()
			}
			continue
		}

		cp := append([]byte(nil), nonce...)
		s.requests = append(s.requests, pendingRequest{nonce: cp, addr: addr})
		s.tree.PushLeaf(cp)
	}
	return false
}

// respondToBatch computes the batch's Merkle root, signs one SREP for
// the whole batch, and sends every queued request its own response
// containing the matching Merkle path. A send failure is logged and
// skipped rather than aborting the remaining responses in the batch.
func (s *Server) respondToBatch() {
	root, err := s.tree.ComputeRoot()
	if err != nil {
		s.log.Error().Err(err).Msg("computing merkle root of non-empty batch")
		return
	}

	srep := s.onlineKey.MakeSignedResponse(time.Now(), time.Duration(s.cfg.RadiusMicros)*time.Microsecond, root)
	sig := s.onlineKey.Sign(srep)

	for i, req := range s.requests {
		digests, err := s.tree.GetPaths(i)
		if err != nil {
			s.log.Error().Err(err).Int("index", i).Msg("computing merkle path")
			continue
		}
		path := make([][32]byte, len(digests))
		for j, d := range digests {
			path[j] = [32]byte(d)
		}

		resp := roughtime.Response{
			Signature:      sig,
			SignedResponse: srep,
			Path:           path,
			Index:          uint32(i),
			Certificate:    s.cert,
		}
		n := resp.Encode(s.respBuf)

		sent, err := s.conn.WriteToUDP(s.respBuf[:n], req.addr)
		if err != nil {
			s.log.Error().Err(err).Stringer("to", req.addr).Msg("send failed, skipping response")
			continue
		}

		count := s.responseCounter.Add(1)
		if s.counters != nil {
			s.counters.ResponsesSent.Inc()
		}
		s.log.Debug().
			Int("bytes", sent).
			Stringer("to", req.addr).
			Str("nonce_prefix", hex.EncodeToString(req.nonce[:4])).
			Int("in_batch", i).
			Uint64("resp_num", count).
			Msg("responded")
	}
}

func (s *Server) logStatus() {
	s.log.Info().
		Uint64("responses", s.responseCounter.Load()).
		Uint64("bad_requests", s.badRequests.Load()).
		Msg("status")
}

// ResponseCount and BadRequestCount expose the running counters to tests
// and other in-process readers.
func (s *Server) ResponseCount() uint64   { return s.responseCounter.Load() }
func (s *Server) BadRequestCount() uint64 { return s.badRequests.Load() }

// LocalAddr returns the address the server actually bound to, useful in
// tests that bind to port 0 and need to know the chosen port.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }
