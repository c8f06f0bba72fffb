// Package config loads the YAML configuration file that describes a
// single node's storage root, Raft identity/peers, and RPC listener.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Config is the flat set of options one node's configuration file
// names, one file per node.
type Config struct {
	BasePath          string `yaml:"base_path"`
	RaftPath          string `yaml:"raft_path"`
	GroupID           string `yaml:"group_id"`
	PeerAddr          string `yaml:"peer_addr"`
	InitialConf       string `yaml:"initial_conf"`
	ElectionTimeoutMs int    `yaml:"election_timeout_ms"`
	SnapshotIntervalS int    `yaml:"snapshot_interval_s"`
	RPCAddr           string `yaml:"rpc_addr"`
	RPCPort           int    `yaml:"rpc_port"`
	LogLevel          string `yaml:"log_level"`
	MaxMessageSize    string `yaml:"max_message_size"`

	maxMessageBytes uint64
	logger          hclog.Logger
}

// Load reads and validates a YAML config file from path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if c.MaxMessageSize != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(c.MaxMessageSize)); err != nil {
			return nil, fmt.Errorf("config: max_message_size %q: %w", c.MaxMessageSize, err)
		}
		c.maxMessageBytes = size.Bytes()
	}

	level := hclog.LevelFromString(normalizeLevel(c.LogLevel))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	name := "raftfsd"
	if c.GroupID != "" {
		name = "raftfsd." + c.GroupID
	}
	c.logger = hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: level,
	})

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// normalizeLevel maps the "critical" log level onto hclog's closest
// tier: hclog has no separate critical level, so it collapses onto
// Error.
func normalizeLevel(level string) string {
	if strings.EqualFold(level, "critical") {
		return "error"
	}
	return level
}

// MaxMessageBytes returns the parsed byte cap, defaulting to 100 MiB if
// MaxMessageSize was left blank.
func (c *Config) MaxMessageBytes() uint64 {
	if c.maxMessageBytes == 0 {
		return 100 * 1024 * 1024
	}
	return c.maxMessageBytes
}

// Logger returns the hclog.Logger built from LogLevel.
func (c *Config) Logger() hclog.Logger {
	return c.logger
}

// ElectionTimeout returns the configured Raft election timeout, or 0 if
// unset (meaning the consensus library's own default applies).
func (c *Config) ElectionTimeout() time.Duration {
	if c.ElectionTimeoutMs <= 0 {
		return 0
	}
	return time.Duration(c.ElectionTimeoutMs) * time.Millisecond
}

// SnapshotInterval returns the configured snapshot cadence, or 0 if
// unset.
func (c *Config) SnapshotInterval() time.Duration {
	if c.SnapshotIntervalS <= 0 {
		return 0
	}
	return time.Duration(c.SnapshotIntervalS) * time.Second
}

// RPCListenAddr combines RPCAddr and RPCPort into a net.Listen address.
func (c *Config) RPCListenAddr() string {
	return fmt.Sprintf("%s:%d", c.RPCAddr, c.RPCPort)
}

// ParsedPeerAddr splits this node's peer_addr ("ip:port" or
// "ip:port:idx") into its dial address and a stable node ID. The idx
// suffix, when present, distinguishes multiple peers colocated on one
// address-without-port scheme the way braft's PeerId does; hashicorp/raft
// has no use for it beyond uniquely identifying the server, so it stays
// folded into the ID rather than the dial address.
func ParsedPeerAddr(peerAddr string) (dialAddr, nodeID string) {
	parts := strings.Split(peerAddr, ":")
	if len(parts) >= 2 {
		dialAddr = parts[0] + ":" + parts[1]
	} else {
		dialAddr = peerAddr
	}
	return dialAddr, peerAddr
}

// ParsedInitialConf splits a comma-separated peer_addr list into a map
// of nodeID -> dialAddr suitable for raftadapter.Config.Peers.
func ParsedInitialConf(initialConf string) map[string]string {
	peers := map[string]string{}
	for _, entry := range strings.Split(initialConf, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dialAddr, nodeID := ParsedPeerAddr(entry)
		peers[nodeID] = dialAddr
	}
	return peers
}

func (c *Config) validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("config: base_path is required")
	}
	if c.RaftPath == "" {
		return fmt.Errorf("config: raft_path is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("config: group_id is required")
	}
	if c.PeerAddr == "" {
		return fmt.Errorf("config: peer_addr is required")
	}
	if c.RPCAddr == "" {
		return fmt.Errorf("config: rpc_addr is required")
	}
	if c.RPCPort == 0 {
		return fmt.Errorf("config: rpc_port is required")
	}
	return nil
}
