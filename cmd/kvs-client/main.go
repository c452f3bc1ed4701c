// Command kvs-client sends one command to kvs-server.
//
//	kvs-client [-addr A] [-transport http|zmq] set KEY VALUE | get KEY | rm KEY | ping
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/MikhailWahib/caskdb"
	"github.com/MikhailWahib/caskdb/internal/client"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(fs.Output(), "usage: kvs-client [flags] set KEY VALUE | get KEY | rm KEY | ping")
	fs.PrintDefaults()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvs-client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "127.0.0.1:4000", "server address")
	transport := fs.String("transport", "http", "transport: http or zmq")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := &log.Logger{
		Level:  log.WarnLevel,
		Writer: &log.ConsoleWriter{Writer: stderr},
	}

	cmd := fs.Args()
	if !validArgs(cmd) {
		usage(fs)
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var c client.Client
	switch *transport {
	case "http":
		c = client.NewHTTPClient(*addr)
	case "zmq":
		zc, err := client.NewZMQClient(ctx, *addr)
		if err != nil {
			logger.Error().Err(err).Str("addr", *addr).Msg("failed to connect")
			return 1
		}
		c = zc
	default:
		usage(fs)
		return 2
	}
	defer c.Close()

	var err error
	switch cmd[0] {
	case "set":
		err = c.Set(ctx, cmd[1], cmd[2])

	case "get":
		var (
			value string
			found bool
		)
		value, found, err = c.Get(ctx, cmd[1])
		if err == nil {
			if found {
				fmt.Fprintln(stdout, value)
			} else {
				fmt.Fprintln(stdout, "Key not found")
			}
		}

	case "rm":
		err = c.Remove(ctx, cmd[1])
		if errors.Is(err, caskdb.ErrKeyNotFound) {
			fmt.Fprintln(stderr, "Key not found")
			return 1
		}

	case "ping":
		if err = c.Ping(ctx); err == nil {
			fmt.Fprintln(stdout, "Pong!")
		}
	}

	if err != nil {
		logger.Error().Err(err).Str("command", cmd[0]).Str("addr", *addr).Msg("request failed")
		return 1
	}
	return 0
}

func validArgs(cmd []string) bool {
	if len(cmd) == 0 {
		return false
	}
	switch cmd[0] {
	case "set":
		return len(cmd) == 3
	case "get", "rm":
		return len(cmd) == 2
	case "ping":
		return len(cmd) == 1
	}
	return false
}
