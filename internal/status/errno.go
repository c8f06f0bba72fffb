package status

import (
	"errors"
	"os"
	"syscall"
)

const (
	errnoENOENT    = syscall.ENOENT
	errnoEEXIST    = syscall.EEXIST
	errnoENOTDIR   = syscall.ENOTDIR
	errnoENOTEMPTY = syscall.ENOTEMPTY
	errnoEINVAL    = syscall.EINVAL
)

// isErrno reports whether err wraps the given errno, unwrapping the
// os.PathError/os.LinkError shells the standard library puts around
// syscall failures.
func isErrno(err error, target syscall.Errno) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		errno, ok := pathErr.Err.(syscall.Errno)
		return ok && errno == target
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		errno, ok := linkErr.Err.(syscall.Errno)
		return ok && errno == target
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == target
	}
	return false
}
