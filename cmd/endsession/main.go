// Command endsession sends a single TerminateSession datagram to a peer or
// relay, telling it to tear down a NAT traversal session.
//
//	endsession <address> <port> <sessionIdA> <sessionIdB>
//
// Fire and forget: exit 0 means the datagram was handed to the network, not
// that it was delivered.
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
	cfg, err := config.LoadEndSession(os.Args[1:])
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

	if err := signaler.Terminate(nil, cfg.Target, cfg.SessionA, cfg.SessionB); err != nil {
		logger.Error("session termination failed", "err", err, "target", cfg.Target.String())
		os.Exit(1)
	}

	logger.Info("session termination sent",
		"target", cfg.Target.String(),
		"session_a", cfg.SessionA,
		"session_b", cfg.SessionB,
	)
}
