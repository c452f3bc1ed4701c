// Command kvs reads and writes a caskdb directory directly.
//
//	kvs [-dir D] [-engine kvs|bolt] set KEY VALUE
//	kvs [-dir D] [-engine kvs|bolt] get KEY
//	kvs [-dir D] [-engine kvs|bolt] rm KEY
//	kvs [-dir D] compact
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"

	"github.com/MikhailWahib/caskdb"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: kvs [flags] set KEY VALUE | get KEY | rm KEY | compact")
	fs.PrintDefaults()
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "data directory")
	engineName := fs.String("engine", "", "storage engine: kvs or bolt (default: detect)")
	verbose := fs.Bool("v", false, "log engine activity")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := &log.Logger{
		Level:  log.WarnLevel,
		Writer: &log.ConsoleWriter{Writer: stderr},
	}
	if *verbose {
		logger.Level = log.DebugLevel
	}

	cmd := fs.Args()
	if len(cmd) == 0 || !validArgs(cmd) {
		usage(fs)
		return 2
	}

	cfg := caskdb.DefaultConfig()
	cfg.Logger = logger
	db, err := caskdb.Open(*dir, *engineName, cfg)
	if err != nil {
		logger.Error().Err(err).Str("dir", *dir).Msg("failed to open store")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	switch cmd[0] {
	case "set":
		err = db.Set(cmd[1], cmd[2])

	case "get":
		var (
			value string
			found bool
		)
		value, found, err = db.Get(cmd[1])
		if err == nil {
			if found {
				fmt.Fprintln(stdout, value)
			} else {
				fmt.Fprintln(stdout, "Key not found")
			}
		}

	case "rm":
		err = db.Remove(cmd[1])
		if errors.Is(err, caskdb.ErrKeyNotFound) {
			fmt.Fprintln(stdout, "Key not found")
			return 1
		}

	case "compact":
		c, ok := db.(interface{ Compact() error })
		if !ok {
			logger.Error().Msg("compact is only supported by the kvs engine")
			return 1
		}
		err = c.Compact()
	}

	if err != nil {
		logger.Error().Err(err).Str("command", cmd[0]).Msg("command failed")
		return 1
	}
	return 0
}

func validArgs(cmd []string) bool {
	switch cmd[0] {
	case "set":
		return len(cmd) == 3
	case "get", "rm":
		return len(cmd) == 2
	case "compact":
		return len(cmd) == 1
	}
	return false
}
