package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/samvad-hq/briteverify-go/internal/app"
	"github.com/samvad-hq/briteverify-go/internal/config"
	"github.com/samvad-hq/briteverify-go/internal/logger"
)

const usage = `usage: briteverify <command> [flags] [args]

commands:
  balance                   show account credits
  verify <contact>...       verify emails, phones or JSON contacts one at a time
  bulk [--file f] [c...]    submit a bulk list and wait for its results
  status <list-id>          show a bulk list
  results <list-id>         fetch the results of a completed list
  lists                     list bulk lists (--page, --state, --date, --external-id)
  pending                   show unfinished lists recorded in the local ledger
  resume [list-id...]       keep waiting for lists; all pending ones when none given
  watch [--every s]         resume pending lists periodically until interrupted
  terminate <list-id>       abandon a running list
  delete <list-id>          delete a list
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "briteverify: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	name, args := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (known: %v)", name, commandNames())
	}

	fs := pflag.NewFlagSet("briteverify "+name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	registerCommandFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("briteverify starting", "config", map[string]any{
		"command":      name,
		"v1_base_url":  cfg.V1BaseURL,
		"v3_base_url":  cfg.V3BaseURL,
		"storage_type": cfg.StorageType,
		"poll_timeout": cfg.PollTimeout.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier, err := app.NewVerifier(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize verifier", "error", err.Error())
		return err
	}
	defer func() {
		if cerr := verifier.Close(); cerr != nil {
			log.WarnObj("shutdown incomplete", "error", cerr.Error())
		}
	}()

	return cmd(ctx, &env{cfg: cfg, verifier: verifier, flags: fs, args: fs.Args(), out: stdout, log: log})
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
