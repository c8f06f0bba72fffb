// Package pathguard validates and normalizes the relative paths clients
// submit, so that no unsafe path ever reaches a filesystem syscall. Every
// store operation funnels its input through Validate exactly once, at the
// boundary, per the centralization note in the design docs.
package pathguard

import (
	"path"
	"strings"

	"github.com/raftfs/raftfs/internal/status"
)

// MaxPathBytes is the maximum length of a validated relative path.
const MaxPathBytes = 4096

// Validate checks a client-supplied relative path for safety. allowEmpty
// controls whether the empty string (meaning "the root") is acceptable;
// list, stat and exists pass true, every other operation passes false.
func Validate(p string, allowEmpty bool) *status.Error {
	if len(p) > MaxPathBytes {
		return status.Newf(status.InvalidPath, "path exceeds %d bytes", MaxPathBytes)
	}
	if strings.IndexByte(p, 0) >= 0 {
		return status.New(status.InvalidPath, "path contains a NUL byte")
	}
	if p == "" {
		if allowEmpty {
			return nil
		}
		return status.New(status.InvalidPath, "path must not be empty")
	}

	clean := p
	if strings.HasPrefix(clean, "/") {
		return status.New(status.InvalidPath, "path must not be absolute")
	}

	for _, part := range strings.Split(clean, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return status.New(status.InvalidPath, "path must not contain '..'")
		}
	}
	return nil
}

// Normalize collapses repeated/trailing separators and drops "." segments,
// assuming Validate has already accepted p. The empty string normalizes to
// the empty string (the root).
func Normalize(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean("/" + p)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." {
		return ""
	}
	return clean
}

// Resolve turns a validated relative path into an absolute path rooted at
// base. It is infallible: callers must have already run Validate.
func Resolve(base, p string) string {
	rel := Normalize(p)
	if rel == "" {
		return base
	}
	return path.Join(base, rel)
}
