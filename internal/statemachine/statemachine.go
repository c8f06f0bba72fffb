// Package statemachine implements the raft.FSM that applies committed
// write commands to the local store and produces/consumes snapshots of
// the whole directory tree.
//
// Apply dispatches by command.Kind to the Store and returns an
// ApplyResult, which hashicorp/raft delivers back to whichever node
// proposed the entry through the ApplyFuture it returned from Apply.
// Snapshot/Restore walk the tree in-process with archive/tar rather
// than shelling out to cp/rm.
package statemachine

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/raft"
	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/raftfs/raftfs/internal/store"
)

// ApplyResult is what Apply returns for each log entry. hashicorp/raft
// hands this value back to the proposer via ApplyFuture.Response.
type ApplyResult struct {
	Err *status.Error
}

// FSM ties the local store to Raft's apply/snapshot lifecycle.
type FSM struct {
	store *store.Store
}

// New constructs an FSM backed by st.
func New(st *store.Store) *FSM {
	return &FSM{store: st}
}

// Apply decodes a single committed log entry and applies it to the
// store. It is called by hashicorp/raft on every node that has the
// entry committed, leader and followers alike. The log's bytes are
// exactly command.Encode(cmd), with no framing beyond that: every node
// must decode prior log entries byte-for-byte after a restart.
func (f *FSM) Apply(log *raft.Log) interface{} {
	cmd, cmdErr := command.Decode(log.Data)
	if cmdErr != nil {
		return ApplyResult{Err: cmdErr}
	}
	return ApplyResult{Err: f.dispatch(cmd)}
}

func (f *FSM) dispatch(cmd command.Command) *status.Error {
	switch cmd.Kind {
	case command.CreateFile:
		return f.store.CreateFile(cmd.Path)
	case command.WriteFile:
		return f.store.WriteFile(cmd.Path, cmd.Payload)
	case command.AppendFile:
		return f.store.AppendFile(cmd.Path, cmd.Payload)
	case command.DeleteFile:
		return f.store.DeleteFile(cmd.Path)
	case command.CreateDir:
		return f.store.CreateDirectory(cmd.Path)
	case command.DeleteDir:
		return f.store.DeleteDirectory(cmd.Path)
	case command.Rename:
		return f.store.Rename(cmd.Path, cmd.NewPath)
	default:
		return status.Newf(status.SerializationError, "statemachine: %s is not a write command", cmd.Kind)
	}
}

// Snapshot captures a point-in-time copy of the store as a
// raft.FSMSnapshot whose Persist writes a tar stream of the tree.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{store: f.store}, nil
}

// Restore replaces the store's contents with the tar stream produced by
// a prior Snapshot/Persist, as directed by hashicorp/raft during
// startup or when installing a leader's snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	base := f.store.BasePath()
	entries, err := os.ReadDir(base)
	if err != nil {
		return fmt.Errorf("statemachine: restore: read base dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
			return fmt.Errorf("statemachine: restore: clear existing tree: %w", err)
		}
	}

	tr := tar.NewReader(rc)
	for {
		hdr, terr := tr.Next()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return fmt.Errorf("statemachine: restore: read tar entry: %w", terr)
		}
		dest := filepath.Join(base, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("statemachine: restore: mkdir %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return fmt.Errorf("statemachine: restore: mkdir parent of %s: %w", hdr.Name, err)
			}
			out, cerr := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if cerr != nil {
				return fmt.Errorf("statemachine: restore: create %s: %w", hdr.Name, cerr)
			}
			if _, cerr := io.Copy(out, tr); cerr != nil {
				out.Close()
				return fmt.Errorf("statemachine: restore: write %s: %w", hdr.Name, cerr)
			}
			if cerr := out.Close(); cerr != nil {
				return fmt.Errorf("statemachine: restore: close %s: %w", hdr.Name, cerr)
			}
		}
	}
	return nil
}

type fsmSnapshot struct {
	store *store.Store
}

// Persist walks the store's directory tree and writes it to sink as a
// tar stream, in the order filepath.Walk (through Store.Walk) visits it.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	tw := tar.NewWriter(sink)

	err := s.store.Walk(func(rel string, info os.FileInfo) error {
		hdr, herr := tar.FileInfoHeader(info, "")
		if herr != nil {
			return herr
		}
		hdr.Name = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr.Typeflag = tar.TypeDir
			return tw.WriteHeader(hdr)
		}

		hdr.Typeflag = tar.TypeReg
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		in, oerr := os.Open(filepath.Join(s.store.BasePath(), rel))
		if oerr != nil {
			return oerr
		}
		defer in.Close()
		_, err := io.Copy(tw, in)
		return err
	})
	if err != nil {
		sink.Cancel()
		return err
	}
	if err := tw.Close(); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

// Release is a no-op: Persist reads the tree directly with no retained
// resources to free.
func (s *fsmSnapshot) Release() {}
