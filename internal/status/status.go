// Package status defines the stable error taxonomy shared by every layer of
// the replicated filesystem, from the path guard down to the RPC front door.
package status

import "fmt"

// Code is one of the taxonomy kinds in the wire/log contract. Values are
// stable across the wire: do not renumber.
type Code uint8

const (
	OK Code = iota
	NotLeader
	NoLeaderAvailable
	FileNotFound
	AlreadyExists
	NotDirectory
	DirectoryNotEmpty
	InvalidPath
	IoError
	SerializationError
	NetworkError
	Timeout
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotLeader:
		return "NotLeader"
	case NoLeaderAvailable:
		return "NoLeaderAvailable"
	case FileNotFound:
		return "FileNotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case NotDirectory:
		return "NotDirectory"
	case DirectoryNotEmpty:
		return "DirectoryNotEmpty"
	case InvalidPath:
		return "InvalidPath"
	case IoError:
		return "IoError"
	case SerializationError:
		return "SerializationError"
	case NetworkError:
		return "NetworkError"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error carries a taxonomy code plus a human-readable message. It is the
// error type returned by every layer below the wire boundary; the RPC front
// door and the submit path translate it into a Response rather than a raw
// Go error once it crosses into client-facing territory.
type Error struct {
	Code    Code
	Message string
	// Leader is set only on NotLeader, carrying the known leader address
	// (empty if unknown).
	Leader string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotLeaderErr builds a NotLeader error carrying the known leader address.
func NotLeaderErr(leaderAddr string) *Error {
	msg := "not leader"
	if leaderAddr != "" {
		msg = fmt.Sprintf("not leader, current leader is %s", leaderAddr)
	}
	return &Error{Code: NotLeader, Message: msg, Leader: leaderAddr}
}

// FromErrno maps a syscall errno-flavored error to a taxonomy code, per
// spec: ENOENT->FileNotFound, EEXIST->AlreadyExists, ENOTDIR->NotDirectory,
// ENOTEMPTY->DirectoryNotEmpty, EINVAL->InvalidPath, else IoError.
func FromErrno(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case isErrno(err, errnoENOENT):
		return New(FileNotFound, err.Error())
	case isErrno(err, errnoEEXIST):
		return New(AlreadyExists, err.Error())
	case isErrno(err, errnoENOTDIR):
		return New(NotDirectory, err.Error())
	case isErrno(err, errnoENOTEMPTY):
		return New(DirectoryNotEmpty, err.Error())
	case isErrno(err, errnoEINVAL):
		return New(InvalidPath, err.Error())
	default:
		return New(IoError, err.Error())
	}
}

// Of extracts the *Error from a generic error, or wraps it as IoError if it
// isn't already one of ours.
func Of(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return New(IoError, err.Error())
}

// Is reports whether err is a status.Error with the given code.
func Is(err error, code Code) bool {
	se, ok := err.(*Error)
	return ok && se.Code == code
}
