// Package raftadapter wraps hashicorp/raft behind the narrow interface
// the rest of this module actually needs.
//
// The original system treats its consensus library (braft) the same
// way: raft_fs_service.cpp never touches braft's election or log-sync
// internals directly, only submit_operation/on_apply/on_leader_start/
// on_leader_stop. hashicorp/raft plays that same external black-box role
// here.
package raftadapter

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// Node is the consensus contract the rest of the module programs
// against. Nothing outside this package should import hashicorp/raft
// directly.
type Node interface {
	// Propose submits cmd for replication and blocks until the local
	// Raft library has committed and applied it or reports an error.
	// The timeout bounds only how long the entry may wait to be
	// enqueued. The returned value is whatever the FSM's Apply returned
	// for this entry.
	Propose(cmd []byte, timeout time.Duration) (interface{}, error)

	// IsLeader reports whether this node currently believes itself to
	// be the cluster leader.
	IsLeader() bool

	// LeaderAddress returns the last known leader's transport address,
	// or "" if unknown.
	LeaderAddress() string

	// LeadershipChanges streams true when this node becomes leader and
	// false when it stops being leader.
	LeadershipChanges() <-chan bool

	// AddVoter admits a new voting member at the given address. Only
	// meaningful when called on the current leader.
	AddVoter(id, addr string, timeout time.Duration) error

	// Shutdown stops the consensus library and releases its resources.
	Shutdown(timeout time.Duration) error
}

// Config describes how to bring up a single Raft node.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool
	// Peers lists the other known members, used only when Bootstrap is
	// true to seed the initial configuration.
	Peers map[string]string

	// ElectionTimeout overrides the library default when non-zero,
	// sourced from spec's election_timeout_ms config key.
	ElectionTimeout time.Duration
	// SnapshotInterval overrides the library default when non-zero,
	// sourced from spec's snapshot_interval_s config key.
	SnapshotInterval time.Duration
	// Logger, when non-nil, replaces the library's default stderr
	// logger, sourced from spec's log_level config key.
	Logger hclog.Logger
}

type node struct {
	raft  *raft.Raft
	trans *raft.NetworkTransport
	ldrCh chan bool
}

// New brings up a hashicorp/raft node whose log, stable store and
// snapshots live under cfg.DataDir, communicating with peers over a TCP
// transport bound to cfg.BindAddr, applying committed entries to fsm.
func New(cfg Config, fsm raft.FSM) (Node, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftadapter: create data dir: %w", err)
	}

	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.ElectionTimeout > 0 {
		conf.ElectionTimeout = cfg.ElectionTimeout
		conf.HeartbeatTimeout = cfg.ElectionTimeout
	}
	if cfg.SnapshotInterval > 0 {
		conf.SnapshotInterval = cfg.SnapshotInterval
	}
	if cfg.Logger != nil {
		conf.Logger = cfg.Logger
	}

	boltStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("raftadapter: open log store: %w", err)
	}

	snapshotDir := filepath.Join(cfg.DataDir, "snapshots")
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("raftadapter: create snapshot dir: %w", err)
	}
	snapStore, err := raft.NewFileSnapshotStore(snapshotDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftadapter: open snapshot store: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftadapter: resolve bind addr: %w", err)
	}
	trans, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftadapter: create transport: %w", err)
	}

	r, err := raft.NewRaft(conf, fsm, boltStore, boltStore, snapStore, trans)
	if err != nil {
		return nil, fmt.Errorf("raftadapter: start raft: %w", err)
	}

	if cfg.Bootstrap {
		servers := []raft.Server{{ID: conf.LocalID, Address: trans.LocalAddr()}}
		for id, peerAddr := range cfg.Peers {
			if id == cfg.NodeID {
				continue
			}
			servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(peerAddr)})
		}
		f := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := f.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("raftadapter: bootstrap cluster: %w", err)
		}
	}

	n := &node{raft: r, trans: trans, ldrCh: make(chan bool, 8)}
	go n.watchLeadership()
	return n, nil
}

func (n *node) watchLeadership() {
	for leader := range n.raft.LeaderCh() {
		select {
		case n.ldrCh <- leader:
		default:
		}
	}
}

func (n *node) Propose(cmd []byte, timeout time.Duration) (interface{}, error) {
	f := n.raft.Apply(cmd, timeout)
	if err := f.Error(); err != nil {
		return nil, err
	}
	return f.Response(), nil
}

func (n *node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

func (n *node) LeaderAddress() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

func (n *node) LeadershipChanges() <-chan bool {
	return n.ldrCh
}

func (n *node) AddVoter(id, addr string, timeout time.Duration) error {
	f := n.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, timeout)
	return f.Error()
}

func (n *node) Shutdown(timeout time.Duration) error {
	f := n.raft.Shutdown()
	done := make(chan error, 1)
	go func() { done <- f.Error() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("raftadapter: shutdown timed out after %s", timeout)
	}
}
