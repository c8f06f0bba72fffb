package client

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/raftfs/raftfs/internal/rpcserver"
	"github.com/raftfs/raftfs/internal/statemachine"
	"github.com/raftfs/raftfs/internal/status"
	"github.com/raftfs/raftfs/internal/store"
	"github.com/raftfs/raftfs/internal/submit"
	"github.com/stretchr/testify/require"
)

type fakeNode struct{ fsm *statemachine.FSM }

func (f *fakeNode) Propose(cmd []byte, timeout time.Duration) (interface{}, error) {
	return f.fsm.Apply(&raft.Log{Data: cmd}), nil
}
func (f *fakeNode) IsLeader() bool                                  { return true }
func (f *fakeNode) LeaderAddress() string                           { return "" }
func (f *fakeNode) LeadershipChanges() <-chan bool                  { return make(chan bool) }
func (f *fakeNode) AddVoter(id, addr string, t time.Duration) error { return nil }
func (f *fakeNode) Shutdown(t time.Duration) error                  { return nil }

func startTestServer(t *testing.T) string {
	dir := t.TempDir()
	st := store.New(dir)
	require.Nil(t, st.Init())
	fsm := statemachine.New(st)
	sub := submit.New(&fakeNode{fsm: fsm})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	srv := rpcserver.New(addr, st, sub, 0, nil)
	go srv.ListenAndServe()

	require.Eventually(t, func() bool {
		conn, derr := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if derr != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	t.Cleanup(func() { srv.Shutdown() })
	return addr
}

func TestClientWriteReadRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.Nil(t, c.WriteFile("a.txt", []byte("hello")))
	data, serr := c.ReadFile("a.txt")
	require.Nil(t, serr)
	require.Equal(t, []byte("hello"), data)
}

func TestClientMkdirListRmdir(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.Nil(t, c.Mkdir("d"))
	require.Nil(t, c.WriteFile("d/a.txt", []byte("x")))

	entries, serr := c.List("d")
	require.Nil(t, serr)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].Name)

	require.Nil(t, c.DeleteFile("d/a.txt"))
	require.Nil(t, c.Rmdir("d"))
}

func TestClientRenameAndExists(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.Nil(t, c.WriteFile("a.txt", []byte("x")))
	require.Nil(t, c.Rename("a.txt", "b.txt"))

	exists, serr := c.Exists("a.txt")
	require.Nil(t, serr)
	require.False(t, exists)

	exists, serr = c.Exists("b.txt")
	require.Nil(t, serr)
	require.True(t, exists)
}

func TestClientStat(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.Nil(t, c.WriteFile("a.txt", []byte("hello")))
	info, serr := c.Stat("a.txt")
	require.Nil(t, serr)
	require.False(t, info.IsDirectory)
	require.EqualValues(t, 5, info.SizeBytes)
}

func TestClientReadMissingFileIsNotFound(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	_, serr := c.ReadFile("nope.txt")
	require.NotNil(t, serr)
	require.Equal(t, status.FileNotFound, serr.Code)
}
