// Package client implements a TCP client for the replicated filesystem
// service: connect, frame a wire.Command, read back a wire.Response.
//
// Operations are whole-file (no Read/Write/Seek block streaming):
// create, write, append, delete, mkdir, rmdir, rename, read, list,
// stat, exists, each a direct request/response round trip over one
// length-prefixed TCP connection.
package client

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/raftfs/raftfs/internal/wire"
)

// DialTimeout bounds how long Dial waits to establish the TCP
// connection.
const DialTimeout = 5 * time.Second

// RequestTimeout bounds how long a single request waits for its
// response.
const RequestTimeout = 30 * time.Second

// Entry mirrors store.FileInfo for callers that don't want to import
// the internal store package.
type Entry struct {
	Name         string
	SizeBytes    int64
	IsDirectory  bool
	LastModified time.Time
}

// Client is a single connection to one node. It is safe for concurrent
// use: requests are serialized internally, matching the one-request-at-
// a-time framing of the wire protocol.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to addr. A NotLeader error's Leader field carries the
// leader's Raft peer address (its peer_addr), not its RPC listen
// address.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(cmd wire.Command) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := wire.EncodeCommand(cmd)
	if err != nil {
		return wire.Response{}, fmt.Errorf("client: encode command: %w", err)
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(RequestTimeout))
	if err := wire.WriteFrame(c.conn, body, wire.DefaultMaxMessageBytes); err != nil {
		return wire.Response{}, fmt.Errorf("client: write frame: %w", err)
	}

	_ = c.conn.SetReadDeadline(time.Now().Add(RequestTimeout))
	respBody, err := wire.ReadFrame(c.reader, wire.DefaultMaxMessageBytes)
	if err != nil {
		return wire.Response{}, fmt.Errorf("client: read frame: %w", err)
	}

	resp, err := wire.DecodeResponse(respBody)
	if err != nil {
		return wire.Response{}, fmt.Errorf("client: decode response: %w", err)
	}
	return resp, nil
}

func toStatusErr(resp wire.Response) *status.Error {
	if resp.OK {
		return nil
	}
	return &status.Error{Code: status.Code(resp.Code), Message: resp.Message, Leader: resp.Leader}
}

// CreateFile creates an empty file at path.
func (c *Client) CreateFile(path string) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.CreateFile), Path: path})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// WriteFile truncates (or creates) path and writes data.
func (c *Client) WriteFile(path string, data []byte) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.WriteFile), Path: path, Payload: data})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// AppendFile appends data to path, creating it if missing.
func (c *Client) AppendFile(path string, data []byte) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.AppendFile), Path: path, Payload: data})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// DeleteFile removes path.
func (c *Client) DeleteFile(path string) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.DeleteFile), Path: path})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// Mkdir creates a directory at path.
func (c *Client) Mkdir(path string) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.CreateDir), Path: path})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// Rmdir removes an empty directory at path.
func (c *Client) Rmdir(path string) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.DeleteDir), Path: path})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) *status.Error {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.Rename), Path: oldPath, NewPath: newPath})
	if err != nil {
		return status.Newf(status.NetworkError, "%v", err)
	}
	return toStatusErr(resp)
}

// ReadFile reads the whole contents of path.
func (c *Client) ReadFile(path string) ([]byte, *status.Error) {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.ReadFile), Path: path})
	if err != nil {
		return nil, status.Newf(status.NetworkError, "%v", err)
	}
	if serr := toStatusErr(resp); serr != nil {
		return nil, serr
	}
	return resp.Data, nil
}

// List enumerates path's immediate children.
func (c *Client) List(path string) ([]Entry, *status.Error) {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.ListDir), Path: path})
	if err != nil {
		return nil, status.Newf(status.NetworkError, "%v", err)
	}
	if serr := toStatusErr(resp); serr != nil {
		return nil, serr
	}
	out := make([]Entry, len(resp.Entries))
	for i, e := range resp.Entries {
		out[i] = Entry{
			Name:         e.Name,
			SizeBytes:    e.SizeBytes,
			IsDirectory:  e.IsDirectory,
			LastModified: time.Unix(e.LastModified, 0),
		}
	}
	return out, nil
}

// Stat returns metadata for path.
func (c *Client) Stat(path string) (Entry, *status.Error) {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.Stat), Path: path})
	if err != nil {
		return Entry{}, status.Newf(status.NetworkError, "%v", err)
	}
	if serr := toStatusErr(resp); serr != nil {
		return Entry{}, serr
	}
	if resp.Info == nil {
		return Entry{}, status.New(status.IoError, "client: stat response missing info")
	}
	return Entry{
		Name:         resp.Info.Name,
		SizeBytes:    resp.Info.SizeBytes,
		IsDirectory:  resp.Info.IsDirectory,
		LastModified: time.Unix(resp.Info.LastModified, 0),
	}, nil
}

// Exists reports whether path exists.
func (c *Client) Exists(path string) (bool, *status.Error) {
	resp, err := c.roundTrip(wire.Command{Kind: uint8(command.Exists), Path: path})
	if err != nil {
		return false, status.Newf(status.NetworkError, "%v", err)
	}
	if serr := toStatusErr(resp); serr != nil {
		return false, serr
	}
	return resp.Bool, nil
}
