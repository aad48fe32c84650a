// Package config parses the command lines of the natlite binaries into typed
// structs, so message construction never reads the process argument vector
// directly.
//
// Flags use the stdlib flag package with ContinueOnError; ambient settings
// (log format/level) fall back to environment variables, optionally loaded
// from a .env file. Each Load* has a pure load* seam taking a lookup func so
// tests never touch the process environment.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"natlite/internal/signaler"
)

const (
	envVarLogFormat = "NATLITE_LOG_FORMAT"
	envVarLogLevel  = "NATLITE_LOG_LEVEL"

	// DefaultDiscoveryTimeout bounds how long natinfo waits for the
	// rendezvous server's answer datagrams.
	DefaultDiscoveryTimeout = 5 * time.Second
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Common holds the ambient settings shared by every binary.
type Common struct {
	LogFormat LogFormat
	LogLevel  slog.Level
}

// EndSession is the parsed command line of cmd/endsession:
//
//	endsession <address> <port> <sessionIdA> <sessionIdB>
type EndSession struct {
	Common
	Target   signaler.Endpoint
	SessionA string
	SessionB string
}

// TalkTo is the parsed command line of cmd/talkto:
//
//	talkto <address> <port> <peerAddr> <peerPort>
type TalkTo struct {
	Common
	Server   signaler.Endpoint
	PeerAddr string
	PeerPort uint16
}

// NATInfo is the parsed command line of cmd/natinfo:
//
//	natinfo [-timeout 5s] [-stun] <address> <port>
type NATInfo struct {
	Common
	Server  signaler.Endpoint
	Timeout time.Duration
	STUN    bool
}

type lookupFunc func(string) (string, bool)

func LoadEndSession(args []string) (EndSession, error) {
	_ = godotenv.Load()
	return loadEndSession(os.LookupEnv, args)
}

func loadEndSession(lookup lookupFunc, args []string) (EndSession, error) {
	fs := newFlagSet("endsession", "<address> <port> <sessionIdA> <sessionIdB>")
	logFormat, logLevel := commonFlags(fs, lookup)
	if err := fs.Parse(args); err != nil {
		return EndSession{}, err
	}

	rest := fs.Args()
	if len(rest) != 4 {
		return EndSession{}, usageError(fs, len(rest), 4)
	}
	common, err := parseCommon(*logFormat, *logLevel)
	if err != nil {
		return EndSession{}, err
	}
	target, err := parseEndpoint(rest[0], rest[1])
	if err != nil {
		return EndSession{}, err
	}

	return EndSession{
		Common:   common,
		Target:   target,
		SessionA: rest[2],
		SessionB: rest[3],
	}, nil
}

func LoadTalkTo(args []string) (TalkTo, error) {
	_ = godotenv.Load()
	return loadTalkTo(os.LookupEnv, args)
}

func loadTalkTo(lookup lookupFunc, args []string) (TalkTo, error) {
	fs := newFlagSet("talkto", "<address> <port> <peerAddr> <peerPort>")
	logFormat, logLevel := commonFlags(fs, lookup)
	if err := fs.Parse(args); err != nil {
		return TalkTo{}, err
	}

	rest := fs.Args()
	if len(rest) != 4 {
		return TalkTo{}, usageError(fs, len(rest), 4)
	}
	common, err := parseCommon(*logFormat, *logLevel)
	if err != nil {
		return TalkTo{}, err
	}
	server, err := parseEndpoint(rest[0], rest[1])
	if err != nil {
		return TalkTo{}, err
	}
	peerPort, err := parsePort(rest[3])
	if err != nil {
		return TalkTo{}, err
	}

	return TalkTo{
		Common:   common,
		Server:   server,
		PeerAddr: rest[2],
		PeerPort: peerPort,
	}, nil
}

func LoadNATInfo(args []string) (NATInfo, error) {
	_ = godotenv.Load()
	return loadNATInfo(os.LookupEnv, args)
}

func loadNATInfo(lookup lookupFunc, args []string) (NATInfo, error) {
	fs := newFlagSet("natinfo", "[-timeout 5s] [-stun] <address> <port>")
	logFormat, logLevel := commonFlags(fs, lookup)
	timeout := fs.Duration("timeout", DefaultDiscoveryTimeout, "Read deadline for the server's answer datagrams (e.g. 5s)")
	stunMode := fs.Bool("stun", false, "Use an RFC 5389 STUN binding request instead of the lite grammar")
	if err := fs.Parse(args); err != nil {
		return NATInfo{}, err
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return NATInfo{}, usageError(fs, len(rest), 2)
	}
	common, err := parseCommon(*logFormat, *logLevel)
	if err != nil {
		return NATInfo{}, err
	}
	server, err := parseEndpoint(rest[0], rest[1])
	if err != nil {
		return NATInfo{}, err
	}
	if *timeout <= 0 {
		return NATInfo{}, fmt.Errorf("timeout must be positive, got %s", *timeout)
	}

	return NATInfo{
		Common:  common,
		Server:  server,
		Timeout: *timeout,
		STUN:    *stunMode,
	}, nil
}

// NewLogger builds the process logger. Logs go to stderr: stdout is reserved
// for command output (natinfo prints the discovered mapping there).
func NewLogger(c Common) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: c.LogLevel,
	}

	var handler slog.Handler
	switch c.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	return slog.New(handler), nil
}

func newFlagSet(name, positionals string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] %s\n", name, positionals)
		fs.PrintDefaults()
	}
	return fs
}

func commonFlags(fs *flag.FlagSet, lookup lookupFunc) (logFormat, logLevel *string) {
	logFormat = fs.String("log-format", envOrDefault(lookup, envVarLogFormat, string(LogFormatText)),
		"Log format: text or json (env "+envVarLogFormat+")")
	logLevel = fs.String("log-level", envOrDefault(lookup, envVarLogLevel, "info"),
		"Log level: debug, info, warn, error (env "+envVarLogLevel+")")
	return logFormat, logLevel
}

func parseCommon(logFormat, logLevel string) (Common, error) {
	var c Common

	switch LogFormat(strings.ToLower(strings.TrimSpace(logFormat))) {
	case LogFormatText:
		c.LogFormat = LogFormatText
	case LogFormatJSON:
		c.LogFormat = LogFormatJSON
	default:
		return Common{}, fmt.Errorf("invalid log format %q (want text or json)", logFormat)
	}

	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		c.LogLevel = slog.LevelDebug
	case "info":
		c.LogLevel = slog.LevelInfo
	case "warn":
		c.LogLevel = slog.LevelWarn
	case "error":
		c.LogLevel = slog.LevelError
	default:
		return Common{}, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", logLevel)
	}

	return c, nil
}

func parseEndpoint(host, portStr string) (signaler.Endpoint, error) {
	if host == "" {
		return signaler.Endpoint{}, fmt.Errorf("empty destination address")
	}
	port, err := parsePort(portStr)
	if err != nil {
		return signaler.Endpoint{}, err
	}
	return signaler.Endpoint{Host: host, Port: port}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: not an integer", s)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("invalid port %d: out of range 1-65535", n)
	}
	return uint16(n), nil
}

func usageError(fs *flag.FlagSet, got, want int) error {
	fs.Usage()
	return fmt.Errorf("%s: expected %d positional arguments, got %d", fs.Name(), want, got)
}

func envOrDefault(lookup lookupFunc, key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}
