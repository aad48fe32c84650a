// Command natinfo asks a rendezvous server for this host's external UDP
// mapping and prints it to stdout.
//
//	natinfo [-timeout 5s] [-stun] <address> <port>
//
// By default it speaks the lite rendezvous grammar (GetInfo probe). With
// -stun it issues an RFC 5389 binding request instead, so it also works
// against regular STUN servers.
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
	cfg, err := config.LoadNATInfo(os.Args[1:])
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

	var mapping signaler.Mapping
	if cfg.STUN {
		mapping, err = signaler.DiscoverSTUN(nil, cfg.Server)
	} else {
		mapping, err = signaler.Discover(nil, cfg.Server, cfg.Timeout)
	}
	if err != nil {
		logger.Error("discovery failed", "err", err, "server", cfg.Server.String(), "stun", cfg.STUN)
		os.Exit(1)
	}

	logger.Debug("discovery complete", "server", cfg.Server.String(), "stun", cfg.STUN)
	fmt.Println(mapping.String())
}
