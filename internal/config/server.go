package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
)

// Environment variables read by LoadServerConfig.
const (
	EnvAddr     = "KVS_ADDR"
	EnvZMQAddr  = "KVS_ZMQ_ADDR"
	EnvEngine   = "KVS_ENGINE"
	EnvDataDir  = "KVS_DATA_DIR"
	EnvLogLevel = "KVS_LOG_LEVEL"
)

// ServerConfig holds the settings of kvs-server.
type ServerConfig struct {
	Addr     string
	ZMQAddr  string // empty disables the ZeroMQ transport
	Engine   string // empty selects the engine the data dir was created with
	DataDir  string
	LogLevel string
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:     "127.0.0.1:4000",
		DataDir:  ".",
		LogLevel: "info",
	}
}

// LoadServerConfig builds a ServerConfig from defaults, a .env file in the
// working directory, KVS_* environment variables and finally args, in
// increasing order of precedence.
func LoadServerConfig(args []string) (*ServerConfig, error) {
	// A missing .env file is fine.
	_ = godotenv.Load(".env")

	cfg := DefaultServerConfig()
	cfg.applyEnv()

	fs := flag.NewFlagSet("kvs-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ZMQAddr, "zmq-addr", cfg.ZMQAddr, "ZeroMQ endpoint, e.g. tcp://127.0.0.1:4001 (disabled when empty)")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "storage engine: kvs or bolt")
	fs.StringVar(&cfg.DataDir, "dir", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return cfg, nil
}

func (c *ServerConfig) applyEnv() {
	for env, field := range map[string]*string{
		EnvAddr:     &c.Addr,
		EnvZMQAddr:  &c.ZMQAddr,
		EnvEngine:   &c.Engine,
		EnvDataDir:  &c.DataDir,
		EnvLogLevel: &c.LogLevel,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*field = v
		}
	}
}

// NewLogger returns a console logger at the configured level.
func (c *ServerConfig) NewLogger() *log.Logger {
	return &log.Logger{
		Level:      log.ParseLevel(c.LogLevel),
		TimeFormat: "15:04:05",
		Caller:     1,
		Writer: &log.ConsoleWriter{
			Writer:      os.Stderr,
			ColorOutput: true,
		},
	}
}
