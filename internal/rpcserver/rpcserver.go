// Package rpcserver implements the client-facing TCP front door: accept
// connections, frame messages with internal/wire, decode commands,
// route writes through the submit path and reads straight to the local
// store, and frame the replies back.
//
// This plays the role of TcpServer+RpcServer in the system this module
// generalizes: accept_loop spawning a goroutine per connection mirrors
// TcpServer's per-connection thread, and the write/read dispatch mirrors
// RpcServer::process_write_request/process_read_request. TCP_NODELAY is
// set the same way tcp.cc sets it, via the connection's socket options
// rather than at the listener.
package rpcserver

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/raftfs/raftfs/internal/store"
	"github.com/raftfs/raftfs/internal/submit"
	"github.com/raftfs/raftfs/internal/wire"
)

// ReadWriteTimeout bounds how long a single frame's read or write may
// take before the connection is dropped.
const ReadWriteTimeout = 30 * time.Second

// Server is the TCP front door for a single node.
type Server struct {
	addr            string
	store           *store.Store
	submitter       *submit.Submitter
	maxMessageBytes uint64
	logger          hclog.Logger

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// New constructs a Server that serves reads from st and routes writes
// through sub, framing messages up to maxMessageBytes and logging
// through logger.
func New(addr string, st *store.Store, sub *submit.Submitter, maxMessageBytes uint64, logger hclog.Logger) *Server {
	if maxMessageBytes == 0 {
		maxMessageBytes = wire.DefaultMaxMessageBytes
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{addr: addr, store: st, submitter: sub, maxMessageBytes: maxMessageBytes, logger: logger}
}

// ListenAndServe binds the listener and accepts connections until
// Shutdown is called. It blocks until the listener is closed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// Shutdown closes the listener and waits for in-flight connections to
// drain.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	return err
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(ReadWriteTimeout))
		body, err := wire.ReadFrame(reader, s.maxMessageBytes)
		if err != nil {
			if err != io.EOF {
				s.logger.Error("read frame", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		resp := s.dispatch(body)

		respBytes, err := wire.EncodeResponse(resp)
		if err != nil {
			s.logger.Error("encode response", "error", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(ReadWriteTimeout))
		if err := wire.WriteFrame(conn, respBytes, s.maxMessageBytes); err != nil {
			s.logger.Error("write frame", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (s *Server) dispatch(body []byte) wire.Response {
	wc, err := wire.DecodeCommand(body)
	if err != nil {
		return wire.ErrorResponse(status.Newf(status.SerializationError, "decode command: %v", err))
	}
	cmd := wc.ToCommand()

	switch {
	case cmd.Kind.IsWrite():
		return s.dispatchWrite(cmd)
	case cmd.Kind.IsRead():
		return s.dispatchRead(cmd)
	default:
		return wire.ErrorResponse(status.Newf(status.SerializationError, "unknown command kind %d", cmd.Kind))
	}
}

func (s *Server) dispatchWrite(cmd command.Command) wire.Response {
	if serr := s.submitter.Submit(cmd); serr != nil {
		return wire.ErrorResponse(serr)
	}
	return wire.OKResponse()
}

func (s *Server) dispatchRead(cmd command.Command) wire.Response {
	switch cmd.Kind {
	case command.ReadFile:
		data, serr := s.store.ReadFile(cmd.Path)
		if serr != nil {
			return wire.ErrorResponse(serr)
		}
		return wire.Response{OK: true, Data: data}

	case command.ListDir:
		entries, serr := s.store.ListDirectory(cmd.Path)
		if serr != nil {
			return wire.ErrorResponse(serr)
		}
		return wire.Response{OK: true, Entries: toWireEntries(entries)}

	case command.Stat:
		info, serr := s.store.Stat(cmd.Path)
		if serr != nil {
			return wire.ErrorResponse(serr)
		}
		wi := toWireEntry(info)
		return wire.Response{OK: true, Info: &wi}

	case command.Exists:
		exists, serr := s.store.Exists(cmd.Path)
		if serr != nil {
			return wire.ErrorResponse(serr)
		}
		return wire.Response{OK: true, Bool: exists}

	default:
		return wire.ErrorResponse(status.Newf(status.SerializationError, "%s is not a read command", cmd.Kind))
	}
}

func toWireEntry(info store.FileInfo) wire.EntryInfo {
	return wire.EntryInfo{
		Name:         info.Name,
		SizeBytes:    info.SizeBytes,
		IsDirectory:  info.IsDirectory,
		LastModified: info.LastModified,
	}
}

func toWireEntries(infos []store.FileInfo) []wire.EntryInfo {
	out := make([]wire.EntryInfo, len(infos))
	for i, info := range infos {
		out[i] = toWireEntry(info)
	}
	return out
}
