// Package store implements the on-disk directory tree that every replica
// applies committed commands against. It is the deterministic
// apply target: given the same sequence of write commands, two freshly
// initialized stores must produce bytewise-identical subtrees.
package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/raftfs/raftfs/internal/filelock"
	"github.com/raftfs/raftfs/internal/pathguard"
	"github.com/raftfs/raftfs/internal/status"
)

// MaxFileBytes is the maximum size of a single file this store will read;
// larger reads are refused with IoError. Writes and appends do not check
// it.
const MaxFileBytes = 100 * 1024 * 1024

// FileInfo is the metadata surface exposed for a directory entry.
type FileInfo struct {
	Name         string
	SizeBytes    int64
	IsDirectory  bool
	LastModified int64 // unix seconds
}

// Store anchors a replicated subtree at an absolute base directory. All
// write-path operations take the per-path write lock; read-path
// operations take the per-path read lock; List takes the write lock on
// the directory itself (not its entries), to block concurrent
// rename/create of that directory while it's enumerated.
type Store struct {
	base  string
	locks *filelock.Table
}

// New constructs a Store rooted at base, without touching the filesystem.
// Call Init before use.
func New(base string) *Store {
	return &Store{base: base, locks: filelock.New()}
}

// BasePath returns the absolute base directory this store is rooted at.
func (s *Store) BasePath() string {
	return s.base
}

// Init creates the base directory (mode 0755) if it does not already
// exist.
func (s *Store) Init() *status.Error {
	if err := os.MkdirAll(s.base, 0755); err != nil {
		return status.FromErrno(err)
	}
	return nil
}

func (s *Store) resolve(p string, allowEmpty bool) (string, string, *status.Error) {
	if err := pathguard.Validate(p, allowEmpty); err != nil {
		return "", "", err
	}
	rel := pathguard.Normalize(p)
	return rel, pathguard.Resolve(s.base, p), nil
}

// CreateFile creates an empty file at p, mode 0644. Idempotent: creating
// a file that already exists as a file returns success. If p exists as
// a directory, O_EXCL also fails with EEXIST, but that case must not be
// treated as idempotent success: it is IoError.
func (s *Store) CreateFile(p string) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	f, oserr := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if oserr == nil {
		syncAndClose(f)
		return nil
	}
	if os.IsExist(oserr) {
		if info, staterr := os.Lstat(full); staterr == nil && info.IsDir() {
			return status.New(status.IoError, "create_file: path exists as a directory")
		}
		return nil
	}
	return createErrno(oserr)
}

// WriteFile truncates (or creates) p and writes data, fsyncing before
// close so that a successful return guarantees durability.
func (s *Store) WriteFile(p string, data []byte) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	f, oserr := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if oserr != nil {
		return createErrno(oserr)
	}
	return writeAllSyncClose(f, data)
}

// AppendFile opens p for append (creating it if missing) and writes data,
// fsyncing before close.
func (s *Store) AppendFile(p string, data []byte) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	f, oserr := os.OpenFile(full, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if oserr != nil {
		return createErrno(oserr)
	}
	return writeAllSyncClose(f, data)
}

// DeleteFile removes p. Idempotent: deleting a path that does not exist
// returns success.
func (s *Store) DeleteFile(p string) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	info, staterr := os.Lstat(full)
	if staterr != nil {
		if os.IsNotExist(staterr) {
			return nil
		}
		return status.FromErrno(staterr)
	}
	if info.IsDir() {
		return status.New(status.NotDirectory, "delete_file: path is a directory")
	}
	if rmerr := os.Remove(full); rmerr != nil {
		if os.IsNotExist(rmerr) {
			return nil
		}
		return status.FromErrno(rmerr)
	}
	return nil
}

// CreateDirectory creates p, mode 0755. Idempotent: an existing directory
// of the same name returns success.
func (s *Store) CreateDirectory(p string) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	if mkerr := os.Mkdir(full, 0755); mkerr != nil {
		if os.IsExist(mkerr) {
			return nil
		}
		return createErrno(mkerr)
	}
	return nil
}

// DeleteDirectory removes p. Idempotent: a missing directory returns
// success; a non-empty directory returns DirectoryNotEmpty.
func (s *Store) DeleteDirectory(p string) *status.Error {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	if rmerr := os.Remove(full); rmerr != nil {
		if os.IsNotExist(rmerr) {
			return nil
		}
		return status.FromErrno(rmerr)
	}
	return nil
}

// Rename moves a to b, taking both write locks in a deterministic order
// so a concurrent rename(b, a) cannot deadlock. Not idempotent: a missing
// source is FileNotFound.
func (s *Store) Rename(a, b string) *status.Error {
	relA, fullA, err := s.resolve(a, false)
	if err != nil {
		return err
	}
	relB, fullB, err := s.resolve(b, false)
	if err != nil {
		return err
	}

	release := s.locks.LockRename(relA, relB)
	defer release()

	if _, staterr := os.Lstat(fullA); staterr != nil {
		if os.IsNotExist(staterr) {
			return status.New(status.FileNotFound, "rename: source does not exist")
		}
		return status.FromErrno(staterr)
	}
	if renerr := os.Rename(fullA, fullB); renerr != nil {
		return status.FromErrno(renerr)
	}
	return nil
}

// ReadFile reads the whole contents of p, capped at MaxFileBytes.
func (s *Store) ReadFile(p string) ([]byte, *status.Error) {
	rel, full, err := s.resolve(p, false)
	if err != nil {
		return nil, err
	}
	g := s.locks.LockRead(rel)
	defer g.Release()

	f, oserr := os.Open(full)
	if oserr != nil {
		if os.IsNotExist(oserr) {
			return nil, status.New(status.FileNotFound, "read_file: not found")
		}
		return nil, status.FromErrno(oserr)
	}
	defer f.Close()

	info, staterr := f.Stat()
	if staterr != nil {
		return nil, status.FromErrno(staterr)
	}
	if info.IsDir() {
		return nil, status.New(status.NotDirectory, "read_file: path is a directory")
	}
	if info.Size() > MaxFileBytes {
		return nil, status.Newf(status.IoError, "file exceeds maximum size of %d bytes", MaxFileBytes)
	}

	data := make([]byte, info.Size())
	if _, rerr := io.ReadFull(f, data); rerr != nil && rerr != io.EOF {
		return nil, status.FromErrno(rerr)
	}
	return data, nil
}

// ListDirectory enumerates p's immediate children, skipping "." and "..".
func (s *Store) ListDirectory(p string) ([]FileInfo, *status.Error) {
	rel, full, err := s.resolve(p, true)
	if err != nil {
		return nil, err
	}
	g := s.locks.LockWrite(rel)
	defer g.Release()

	entries, direrr := os.ReadDir(full)
	if direrr != nil {
		if os.IsNotExist(direrr) {
			return nil, status.New(status.FileNotFound, "list_directory: not found")
		}
		return nil, status.FromErrno(direrr)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, ferr := e.Info()
		if ferr != nil {
			continue
		}
		infos = append(infos, FileInfo{
			Name:         e.Name(),
			SizeBytes:    fi.Size(),
			IsDirectory:  fi.IsDir(),
			LastModified: fi.ModTime().Unix(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Stat returns metadata for p.
func (s *Store) Stat(p string) (FileInfo, *status.Error) {
	rel, full, err := s.resolve(p, true)
	if err != nil {
		return FileInfo{}, err
	}
	g := s.locks.LockRead(rel)
	defer g.Release()

	info, staterr := os.Stat(full)
	if staterr != nil {
		if os.IsNotExist(staterr) {
			return FileInfo{}, status.New(status.FileNotFound, "stat: not found")
		}
		return FileInfo{}, status.FromErrno(staterr)
	}
	name := info.Name()
	if rel == "" {
		name = ""
	}
	return FileInfo{
		Name:         name,
		SizeBytes:    info.Size(),
		IsDirectory:  info.IsDir(),
		LastModified: info.ModTime().Unix(),
	}, nil
}

// Exists reports whether p exists. It never returns FileNotFound: a
// missing path is a successful Ok(false) result, per spec.
func (s *Store) Exists(p string) (bool, *status.Error) {
	rel, full, err := s.resolve(p, true)
	if err != nil {
		return false, err
	}
	g := s.locks.LockRead(rel)
	defer g.Release()

	if _, staterr := os.Stat(full); staterr != nil {
		if os.IsNotExist(staterr) {
			return false, nil
		}
		return false, status.FromErrno(staterr)
	}
	return true, nil
}

// createErrno maps an open/mkdir failure to the taxonomy the way spec's
// per-operation table requires: a missing parent directory is IoError
// here, not FileNotFound, which is reserved for operations whose target
// itself is the thing expected to exist (read, stat, rename source).
func createErrno(err error) *status.Error {
	se := status.FromErrno(err)
	if se.Code == status.FileNotFound {
		return status.New(status.IoError, err.Error())
	}
	return se
}

func writeAllSyncClose(f *os.File, data []byte) *status.Error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return status.FromErrno(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return status.FromErrno(err)
	}
	if err := f.Close(); err != nil {
		return status.FromErrno(err)
	}
	return nil
}

func syncAndClose(f *os.File) {
	_ = f.Sync()
	_ = f.Close()
}

// Walk visits every file and directory under the store's base directory
// (the base itself excluded), calling fn with the path relative to base. Used by the replicated
// state machine's snapshot save.
func (s *Store) Walk(fn func(relPath string, info os.FileInfo) error) error {
	return filepath.Walk(s.base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == s.base {
			return nil
		}
		rel, relerr := filepath.Rel(s.base, path)
		if relerr != nil {
			return relerr
		}
		return fn(rel, info)
	})
}
