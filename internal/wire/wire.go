// Package wire implements the client-facing wire encoding and framing:
// tagged Command/Response records serialized with msgpack, length-prefixed
// on the TCP connection by a 32-bit network-order length.
//
// This mirrors the msgpack-based diarkis::commands::Command/Response
// structures of the system this module generalizes, with msgpack struct
// tags standing in for the C++ MSGPACK_DEFINE macro.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxMessageBytes is the frame cap used by callers that have no
// configured override, matching the 100 MiB default applied uniformly
// to files, wire messages, and log command payloads.
const DefaultMaxMessageBytes = 100 * 1024 * 1024

// Command is the wire-encoded request. It widens the distilled original's
// nine-kind wire struct to the full eleven kinds the local store
// supports (Stat and Exists are additions).
type Command struct {
	Kind    uint8  `msgpack:"kind"`
	Path    string `msgpack:"path"`
	NewPath string `msgpack:"new_path,omitempty"`
	Payload []byte `msgpack:"payload,omitempty"`
}

// Response is the wire-encoded reply: success carrying an optional typed
// payload, or failure carrying a status code and message.
type Response struct {
	OK      bool            `msgpack:"ok"`
	Code    uint8           `msgpack:"code,omitempty"`
	Message string          `msgpack:"message,omitempty"`
	Leader  string          `msgpack:"leader,omitempty"`
	Data    []byte          `msgpack:"data,omitempty"`
	Entries []EntryInfo     `msgpack:"entries,omitempty"`
	Info    *EntryInfo      `msgpack:"info,omitempty"`
	Bool    bool            `msgpack:"flag,omitempty"`
}

// EntryInfo is the wire form of FileInfo.
type EntryInfo struct {
	Name         string `msgpack:"name"`
	SizeBytes    int64  `msgpack:"size_bytes"`
	IsDirectory  bool   `msgpack:"is_directory"`
	LastModified int64  `msgpack:"last_modified"`
}

// ToCommand converts a decoded wire Command into the internal command.Command
// used by the log encoding and the local store.
func (c Command) ToCommand() command.Command {
	return command.Command{
		Kind:    command.Kind(c.Kind),
		Path:    c.Path,
		NewPath: c.NewPath,
		Payload: c.Payload,
	}
}

// FromCommand converts an internal command.Command into its wire form.
func FromCommand(c command.Command) Command {
	return Command{
		Kind:    uint8(c.Kind),
		Path:    c.Path,
		NewPath: c.NewPath,
		Payload: c.Payload,
	}
}

// ErrorResponse builds a failure Response from a status.Error.
func ErrorResponse(err *status.Error) Response {
	return Response{OK: false, Code: uint8(err.Code), Message: err.Message, Leader: err.Leader}
}

// OKResponse builds a bare success Response with no payload.
func OKResponse() Response {
	return Response{OK: true}
}

// EncodeCommand serializes a Command to its msgpack wire form.
func EncodeCommand(c Command) ([]byte, error) {
	return msgpack.Marshal(c)
}

// DecodeCommand deserializes a Command from its msgpack wire form.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	err := msgpack.Unmarshal(data, &c)
	return c, err
}

// EncodeResponse serializes a Response to its msgpack wire form.
func EncodeResponse(r Response) ([]byte, error) {
	return msgpack.Marshal(r)
}

// DecodeResponse deserializes a Response from its msgpack wire form.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	err := msgpack.Unmarshal(data, &r)
	return r, err
}

// WriteFrame writes a single length-prefixed message: a 32-bit
// network-order length followed by body, rejecting a body over
// maxBytes. It issues one Write for the length and one for the body and
// does not loop itself: it relies on the io.Writer contract that Write
// returns an error whenever it writes fewer than len(p) bytes.
func WriteFrame(w io.Writer, body []byte, maxBytes uint64) error {
	if uint64(len(body)) > maxBytes {
		return fmt.Errorf("wire: message of %d bytes exceeds cap of %d", len(body), maxBytes)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads a single length-prefixed message. A declared length
// above maxBytes is a protocol violation: the caller should close the
// connection rather than attempt to read it.
func ReadFrame(r *bufio.Reader, maxBytes uint64) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := uint64(binary.BigEndian.Uint32(lenBuf[:]))
	if n > maxBytes {
		return nil, fmt.Errorf("wire: declared message length %d exceeds cap of %d", n, maxBytes)
	}
	if n == 0 {
		return []byte{}, nil
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
