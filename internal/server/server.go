// Package server wires one node's storage, consensus, and RPC layers
// together from a loaded config.Config: initialize storage, initialize
// consensus, then start accepting connections, in that order, so
// nothing can serve traffic against a half-initialized node.
package server

import (
	"fmt"
	"time"

	"github.com/raftfs/raftfs/internal/config"
	"github.com/raftfs/raftfs/internal/raftadapter"
	"github.com/raftfs/raftfs/internal/rpcserver"
	"github.com/raftfs/raftfs/internal/statemachine"
	"github.com/raftfs/raftfs/internal/store"
	"github.com/raftfs/raftfs/internal/submit"
)

// raftShutdownTimeout bounds how long Stop waits for the consensus
// layer to release its log store and transport.
const raftShutdownTimeout = 10 * time.Second

// Node is a fully wired replica: local store, consensus, and the TCP
// front door clients talk to.
type Node struct {
	cfg   *config.Config
	store *store.Store
	raft  raftadapter.Node
	rpc   *rpcserver.Server
}

// New constructs a Node from cfg: it initializes the store and starts
// the consensus node, but does not open the client listener (Serve does).
func New(cfg *config.Config) (*Node, error) {
	st := store.New(cfg.BasePath)
	if err := st.Init(); err != nil {
		return nil, fmt.Errorf("server: init store: %w", err)
	}

	fsm := statemachine.New(st)

	bindAddr, nodeID := config.ParsedPeerAddr(cfg.PeerAddr)
	peers := config.ParsedInitialConf(cfg.InitialConf)

	raftNode, err := raftadapter.New(raftadapter.Config{
		NodeID:           nodeID,
		BindAddr:         bindAddr,
		DataDir:          cfg.RaftPath,
		Bootstrap:        len(peers) > 0,
		Peers:            peers,
		ElectionTimeout:  cfg.ElectionTimeout(),
		SnapshotInterval: cfg.SnapshotInterval(),
		Logger:           cfg.Logger(),
	}, fsm)
	if err != nil {
		return nil, fmt.Errorf("server: init raft: %w", err)
	}

	sub := submit.New(raftNode)
	rpc := rpcserver.New(cfg.RPCListenAddr(), st, sub, cfg.MaxMessageBytes(), cfg.Logger())

	return &Node{cfg: cfg, store: st, raft: raftNode, rpc: rpc}, nil
}

// Serve blocks, accepting client connections until Stop is called or
// the listener fails.
func (n *Node) Serve() error {
	return n.rpc.ListenAndServe()
}

// Stop shuts down the RPC front door and the consensus layer, in that
// order, so no new write can be accepted mid-shutdown.
func (n *Node) Stop() error {
	if err := n.rpc.Shutdown(); err != nil {
		return fmt.Errorf("server: shutdown rpc: %w", err)
	}
	if err := n.raft.Shutdown(raftShutdownTimeout); err != nil {
		return fmt.Errorf("server: shutdown raft: %w", err)
	}
	return nil
}
