// Command talkto sends a single TalkTo datagram to a lite rendezvous server,
// asking it to relay a TalkRequest to the named peer.
//
//	talkto <address> <port> <peerAddr> <peerPort>
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"natlite/internal/config"
	"natlite/internal/signaler"
)

func main() {
	cfg, err := config.LoadTalkTo(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg.Common)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := signaler.RequestTalk(nil, cfg.Server, cfg.PeerAddr, cfg.PeerPort); err != nil {
		logger.Error("talk request failed", "err", err, "server", cfg.Server.String())
		os.Exit(1)
	}

	logger.Info("talk request sent",
		"server", cfg.Server.String(),
		"peer_addr", cfg.PeerAddr,
		"peer_port", cfg.PeerPort,
	)
}
