package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raftfs/raftfs/internal/config"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func writeNodeConfig(t *testing.T, dir, raftAddr, rpcAddr string) *config.Config {
	rpcHost, rpcPort, err := net.SplitHostPort(rpcAddr)
	require.NoError(t, err)

	path := filepath.Join(dir, "node.yaml")
	body := "base_path: " + filepath.Join(dir, "data") + "\n" +
		"raft_path: " + filepath.Join(dir, "raft") + "\n" +
		"group_id: test-cluster\n" +
		"peer_addr: " + raftAddr + "\n" +
		"initial_conf: " + raftAddr + "\n" +
		"rpc_addr: " + rpcHost + "\n" +
		"rpc_port: " + rpcPort + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNewWiresSingleNodeCluster(t *testing.T) {
	dir := t.TempDir()
	raftAddr := freePort(t)
	rpcAddr := freePort(t)

	cfg := writeNodeConfig(t, dir, raftAddr, rpcAddr)

	n, err := New(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- n.Serve() }()

	require.Eventually(t, func() bool {
		return n.raft.IsLeader()
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, n.Stop())
	require.NoError(t, <-errCh)
}
