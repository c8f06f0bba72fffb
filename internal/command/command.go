// Package command implements the fixed, byte-exact log encoding used
// inside the Raft log. Every replica must decode
// a given entry identically, so this format never changes shape: any
// trailing bytes, short buffer, or unknown kind is a decode failure.
package command

import (
	"encoding/binary"
	"fmt"

	"github.com/raftfs/raftfs/internal/status"
)

// Kind tags a Command's variant. The first seven are write kinds that must
// traverse Raft; the last four are read kinds that must not.
type Kind uint8

const (
	CreateFile Kind = iota + 1
	WriteFile
	AppendFile
	DeleteFile
	CreateDir
	DeleteDir
	Rename
	ReadFile
	ListDir
	Stat
	Exists
)

func (k Kind) String() string {
	switch k {
	case CreateFile:
		return "CreateFile"
	case WriteFile:
		return "WriteFile"
	case AppendFile:
		return "AppendFile"
	case DeleteFile:
		return "DeleteFile"
	case CreateDir:
		return "CreateDir"
	case DeleteDir:
		return "DeleteDir"
	case Rename:
		return "Rename"
	case ReadFile:
		return "ReadFile"
	case ListDir:
		return "ListDir"
	case Stat:
		return "Stat"
	case Exists:
		return "Exists"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IsWrite reports whether the kind must be linearized through Raft.
func (k Kind) IsWrite() bool {
	return k >= CreateFile && k <= Rename
}

// IsRead reports whether the kind is served directly from local disk.
func (k Kind) IsRead() bool {
	return k >= ReadFile && k <= Exists
}

// Command is the tagged variant decoded from the log encoding. Path is the
// primary path; NewPath is populated only for Rename (it reuses the
// payload slot per the log-compatibility open question in the design
// notes); Payload carries write/append bytes.
type Command struct {
	Kind    Kind
	Path    string
	NewPath string
	Payload []byte
}

// MaxPayloadBytes bounds a single command's path/payload combination so a
// corrupt or hostile length field cannot trigger an unbounded allocation.
const MaxPayloadBytes = 100 * 1024 * 1024

// Encode serializes cmd using the fixed layout:
//
//	kind:u8 | path_len:u32 LE | path_bytes | payload_len:u32 LE | payload_bytes
//
// For Rename, payload_bytes carries NewPath's bytes; for every other kind
// Payload is used verbatim (empty payloads encode to a zero-length slice).
func Encode(cmd Command) []byte {
	payload := cmd.Payload
	if cmd.Kind == Rename {
		payload = []byte(cmd.NewPath)
	}
	pathBytes := []byte(cmd.Path)

	buf := make([]byte, 1+4+len(pathBytes)+4+len(payload))
	buf[0] = byte(cmd.Kind)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(pathBytes)))
	off := 5
	copy(buf[off:], pathBytes)
	off += len(pathBytes)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(payload)))
	off += 4
	copy(buf[off:], payload)
	return buf
}

// Decode is the strict inverse of Encode: any trailing bytes, short
// buffer, or unknown kind yields SerializationError.
func Decode(data []byte) (Command, *status.Error) {
	var cmd Command
	if len(data) < 9 {
		return cmd, status.Newf(status.SerializationError, "command too short: %d bytes", len(data))
	}

	kind := Kind(data[0])
	if !kind.IsWrite() && !kind.IsRead() {
		return cmd, status.Newf(status.SerializationError, "unknown command kind: %d", data[0])
	}

	pathLen := binary.LittleEndian.Uint32(data[1:5])
	if pathLen > MaxPayloadBytes {
		return cmd, status.Newf(status.SerializationError, "path length out of range: %d", pathLen)
	}
	off := 5
	if uint32(len(data)-off) < pathLen {
		return cmd, status.New(status.SerializationError, "truncated path in command")
	}
	path := string(data[off : off+int(pathLen)])
	off += int(pathLen)

	if len(data)-off < 4 {
		return cmd, status.New(status.SerializationError, "truncated payload length in command")
	}
	payloadLen := binary.LittleEndian.Uint32(data[off : off+4])
	if payloadLen > MaxPayloadBytes {
		return cmd, status.Newf(status.SerializationError, "payload length out of range: %d", payloadLen)
	}
	off += 4
	if uint32(len(data)-off) != payloadLen {
		return cmd, status.New(status.SerializationError, "trailing bytes or truncated payload in command")
	}
	payload := data[off : off+int(payloadLen)]

	cmd = Command{Kind: kind, Path: path, Payload: payload}
	if kind == Rename {
		cmd.NewPath = string(payload)
		cmd.Payload = nil
	}
	return cmd, nil
}
