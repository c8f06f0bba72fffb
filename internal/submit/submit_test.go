package submit

import (
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/raftfs/raftfs/internal/command"
	"github.com/raftfs/raftfs/internal/statemachine"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/raftfs/raftfs/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeNode is a minimal raftadapter.Node stand-in that applies proposed
// entries straight to a real FSM, mimicking a single-node cluster where
// Propose always "commits" synchronously.
type fakeNode struct {
	leader   bool
	leaderAt string
	fsm      *statemachine.FSM
	proposeErr error
}

func (f *fakeNode) Propose(cmd []byte, timeout time.Duration) (interface{}, error) {
	if f.proposeErr != nil {
		return nil, f.proposeErr
	}
	res := f.fsm.Apply(&raft.Log{Data: cmd})
	return res, nil
}
func (f *fakeNode) IsLeader() bool                         { return f.leader }
func (f *fakeNode) LeaderAddress() string                  { return f.leaderAt }
func (f *fakeNode) LeadershipChanges() <-chan bool          { return make(chan bool) }
func (f *fakeNode) AddVoter(id, addr string, t time.Duration) error { return nil }
func (f *fakeNode) Shutdown(t time.Duration) error          { return nil }

func newFakeSubmitter(t *testing.T) (*Submitter, *store.Store) {
	dir := t.TempDir()
	st := store.New(dir)
	require.Nil(t, st.Init())
	fsm := statemachine.New(st)
	node := &fakeNode{leader: true, fsm: fsm}
	return New(node), st
}

func TestSubmitAppliesWriteCommand(t *testing.T) {
	s, st := newFakeSubmitter(t)
	err := s.Submit(command.Command{Kind: command.WriteFile, Path: "a.txt", Payload: []byte("hi")})
	require.Nil(t, err)

	data, rerr := st.ReadFile("a.txt")
	require.Nil(t, rerr)
	require.Equal(t, []byte("hi"), data)
}

func TestSubmitRejectsWhenNotLeader(t *testing.T) {
	s, _ := newFakeSubmitter(t)
	s.node.(*fakeNode).leader = false
	s.node.(*fakeNode).leaderAt = "10.0.0.1:9000"

	err := s.Submit(command.Command{Kind: command.CreateDir, Path: "d"})
	require.NotNil(t, err)
	require.Equal(t, status.NotLeader, err.Code)
	require.Equal(t, "10.0.0.1:9000", err.Leader)
}

func TestSubmitTranslatesLeadershipLost(t *testing.T) {
	s, _ := newFakeSubmitter(t)
	s.node.(*fakeNode).proposeErr = raft.ErrLeadershipLost
	s.node.(*fakeNode).leaderAt = "10.0.0.2:9000"

	err := s.Submit(command.Command{Kind: command.CreateDir, Path: "d"})
	require.NotNil(t, err)
	require.Equal(t, status.NotLeader, err.Code)
}

func TestSubmitTranslatesLeadershipLostWithNoKnownLeader(t *testing.T) {
	s, _ := newFakeSubmitter(t)
	s.node.(*fakeNode).proposeErr = raft.ErrLeadershipLost

	err := s.Submit(command.Command{Kind: command.CreateDir, Path: "d"})
	require.NotNil(t, err)
	require.Equal(t, status.NoLeaderAvailable, err.Code)
}

func TestSubmitTranslatesRaftShutdown(t *testing.T) {
	s, _ := newFakeSubmitter(t)
	s.node.(*fakeNode).proposeErr = raft.ErrRaftShutdown

	err := s.Submit(command.Command{Kind: command.CreateDir, Path: "d"})
	require.NotNil(t, err)
	require.Equal(t, status.IoError, err.Code)
}

func TestSubmitTranslatesUnknownError(t *testing.T) {
	s, _ := newFakeSubmitter(t)
	s.node.(*fakeNode).proposeErr = errors.New("boom")

	err := s.Submit(command.Command{Kind: command.CreateDir, Path: "d"})
	require.NotNil(t, err)
	require.Equal(t, status.NetworkError, err.Code)
}
