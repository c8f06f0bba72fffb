// Package submit implements the leader-only write path: encode a
// command, propose it to the consensus layer, and translate whatever
// comes back into a status.Error the RPC front door can hand to the
// client.
package submit

import (
	"errors"
	"time"

	"github.com/hashicorp/raft"
	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/raftadapter"
	"github.com/raftfs/raftfs/internal/statemachine"
	"github.com/raftfs/raftfs/internal/status"
)

// Timeout is passed to node.Propose; with the hashicorp/raft adapter it
// bounds how long the proposal may wait to be enqueued on the leader,
// not how long commit and apply may take.
const Timeout = 10 * time.Second

// Submitter drives the write path for a single Raft node.
type Submitter struct {
	node raftadapter.Node
}

// New constructs a Submitter over node.
func New(node raftadapter.Node) *Submitter {
	return &Submitter{node: node}
}

// Submit proposes cmd to the cluster and blocks until it is committed
// and applied, or Propose reports an error. Only a kind with IsWrite() true
// should ever reach this path; callers are responsible for routing read
// kinds directly to the local store instead. The value node.Propose
// returns on success is the ApplyResult the FSM produced for this
// entry, delivered synchronously by hashicorp/raft's ApplyFuture.
func (s *Submitter) Submit(cmd command.Command) *status.Error {
	if !s.node.IsLeader() {
		if addr := s.node.LeaderAddress(); addr != "" {
			return status.NotLeaderErr(addr)
		}
		return status.New(status.NoLeaderAvailable, "no leader elected yet")
	}

	res, err := s.node.Propose(command.Encode(cmd), Timeout)
	if err != nil {
		return translateProposeError(err, s.node.LeaderAddress())
	}

	ar, ok := res.(statemachine.ApplyResult)
	if !ok {
		return status.New(status.SerializationError, "submit: unexpected apply result type")
	}
	return ar.Err
}

func translateProposeError(err error, leaderAddr string) *status.Error {
	switch {
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost):
		if leaderAddr == "" {
			return status.New(status.NoLeaderAvailable, "no leader elected yet")
		}
		return status.NotLeaderErr(leaderAddr)
	case errors.Is(err, raft.ErrEnqueueTimeout):
		return status.New(status.Timeout, "submit: enqueue timed out")
	case errors.Is(err, raft.ErrRaftShutdown):
		return status.New(status.IoError, "submit: raft is shut down")
	default:
		return status.Newf(status.NetworkError, "submit: %v", err)
	}
}
