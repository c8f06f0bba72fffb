// Command raftfsd runs a single node of the replicated filesystem
// service: load its YAML config, wire up storage/consensus/RPC, and
// serve until told to stop. A signal handler drives a clean shutdown;
// main blocks until it fires or Serve itself fails.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/raftfs/raftfs/internal/config"
	"github.com/raftfs/raftfs/internal/server"
)

func main() {
	bootLog := hclog.Default()

	configPath := flag.String("config", "", "path to node config YAML file")
	flag.Parse()

	if *configPath == "" {
		bootLog.Error("-config is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	node, err := server.New(cfg)
	if err != nil {
		logger.Error("init node", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		if err := node.Stop(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("serving", "peer_addr", cfg.PeerAddr, "rpc_addr", cfg.RPCListenAddr())
	if err := node.Serve(); err != nil {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
