package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
)

// Name is used for log files and the status/OTel service identity.
const Name = "handoff"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(Name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config-dir", ".", "directory containing "+Name+".cfg.json")
	fs.Int("count", 0, "stop after this many handoffs (0 runs until interrupted)")
	fs.String("exchange", "monitor", "exchange implementation: monitor or channel")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] [inspect <export.json[.gz]>...]\n", Name)
		fs.PrintDefaults()
	}
	return fs
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	rest := fs.Args()
	if len(rest) > 0 {
		switch strings.ToLower(rest[0]) {
		case "inspect":
			if len(rest) < 2 {
				fmt.Fprintln(stderr, "No export files provided.")
				return 1
			}
			if err := inspectExports(stdout, rest[1:]); err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			return 0
		default:
			fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
			fs.Usage()
			return 1
		}
	}

	a := newApp(stdout)
	if err := a.setup(ctx, fs); err != nil {
		fmt.Fprintln(stderr, "setup failed:", err)
		if cerr := a.shutdown(); cerr != nil {
			fmt.Fprintln(stderr, "shutdown:", cerr)
		}
		return 1
	}

	runErr := a.serve(ctx)
	shutdownErr := a.shutdown()
	if err := errors.Join(runErr, shutdownErr); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
